/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package canon

import (
	"bytes"
	"testing"
)

func TestMarshalIsFixedPointUnderRoundTrip(t *testing.T) {
	doc := Document{
		Key:  DocKey{Amtsgericht: "Prenzlau", Bezirk: "Seeluebbe", Blatt: 42},
		Body: map[string]any{"eigentuemer": "Mustermann", "flaeche_qm": 1200, "belastungen": []any{"Grundschuld"}},
	}

	first, err := Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var roundtripped any
	if err := Unmarshal(first, &roundtripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	second, err := Marshal(roundtripped)
	if err != nil {
		t.Fatalf("marshal #2: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Fatalf("canonical form is not a fixed point:\nfirst:  %q\nsecond: %q", first, second)
	}
}

func TestMarshalUsesCRLF(t *testing.T) {
	b, err := Marshal(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if bytes.Contains(b, []byte("\n")) && !bytes.Contains(b, []byte("\r\n")) {
		t.Fatalf("expected CRLF line endings, got: %q", b)
	}
	if bytes.Count(b, []byte("\r\n")) == 0 {
		t.Fatalf("expected at least one CRLF, got: %q", b)
	}
}

func TestMarshalOrdersKeysLexically(t *testing.T) {
	b, err := Marshal(map[string]any{"zeta": 1, "alpha": 2, "mitte": 3})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	alphaIdx := bytes.Index(b, []byte(`"alpha"`))
	mitteIdx := bytes.Index(b, []byte(`"mitte"`))
	zetaIdx := bytes.Index(b, []byte(`"zeta"`))
	if !(alphaIdx < mitteIdx && mitteIdx < zetaIdx) {
		t.Fatalf("keys not in lexical order: alpha=%d mitte=%d zeta=%d", alphaIdx, mitteIdx, zetaIdx)
	}
}

func TestDocKeyValid(t *testing.T) {
	cases := []struct {
		key  DocKey
		want bool
	}{
		{DocKey{"Prenzlau", "Seeluebbe", 42}, true},
		{DocKey{"", "Seeluebbe", 42}, false},
		{DocKey{"Prenzlau", "", 42}, false},
		{DocKey{"Prenzlau", "Seeluebbe", 0}, false},
		{DocKey{"../etc", "Seeluebbe", 42}, false},
		{DocKey{"Prenzlau", "a/b", 42}, false},
	}
	for _, c := range cases {
		if got := c.key.Valid(); got != c.want {
			t.Errorf("DocKey(%+v).Valid() = %v, want %v", c.key, got, c.want)
		}
	}
}
