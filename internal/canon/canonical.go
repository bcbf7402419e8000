/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Marshal renders v in canonical form: UTF-8 JSON, object keys in fixed
// lexical order, two-space indent, CRLF line endings. v is round-tripped
// through the empty interface first so struct field order never leaks
// into the output — only the JSON tag names, sorted, do.
//
// Re-serialising the result of Unmarshal is guaranteed to reproduce the
// same bytes: that is the round-trip invariant the signature verifier
// and the document store both depend on.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: decode intermediate: %w", err)
	}

	var buf bytes.Buffer
	if err := encodeValue(&buf, generic, 0); err != nil {
		return nil, fmt.Errorf("canon: encode: %w", err)
	}
	buf.WriteByte('\n')

	return toCRLF(buf.Bytes()), nil
}

// Unmarshal parses canonical-form bytes into v. It accepts both CRLF and
// bare-LF input since callers on Windows-hostile filesystems may have
// normalised line endings upstream.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(fromCRLF(data), v)
}

func toCRLF(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}

func fromCRLF(b []byte) []byte {
	return bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
}

const indentUnit = "  "

func encodeValue(buf *bytes.Buffer, v any, depth int) error {
	switch t := v.(type) {
	case map[string]any:
		return encodeObject(buf, t, depth)
	case []any:
		return encodeArray(buf, t, depth)
	default:
		enc, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(enc)
		return nil
	}
}

func encodeObject(buf *bytes.Buffer, m map[string]any, depth int) error {
	if len(m) == 0 {
		buf.WriteString("{}")
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteString("{\n")
	inner := indent(depth + 1)
	for i, k := range keys {
		buf.WriteString(inner)
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteString(": ")
		if err := encodeValue(buf, m[k], depth+1); err != nil {
			return err
		}
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(indent(depth))
	buf.WriteByte('}')
	return nil
}

func encodeArray(buf *bytes.Buffer, a []any, depth int) error {
	if len(a) == 0 {
		buf.WriteString("[]")
		return nil
	}
	buf.WriteString("[\n")
	inner := indent(depth + 1)
	for i, v := range a {
		buf.WriteString(inner)
		if err := encodeValue(buf, v, depth+1); err != nil {
			return err
		}
		if i < len(a)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(indent(depth))
	buf.WriteByte(']')
	return nil
}

func indent(depth int) string {
	out := make([]byte, 0, depth*len(indentUnit))
	for i := 0; i < depth; i++ {
		out = append(out, indentUnit...)
	}
	return string(out)
}
