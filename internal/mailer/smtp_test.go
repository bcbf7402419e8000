/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package mailer

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
)

func TestSendBuildsExpectedMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	m := &netSMTP{
		cfg: Config{Host: "smtp.example.org", Port: 587, From: "registry@example.org"},
		dial: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	if err := m.Send(context.Background(), "user@example.org", "Neue Eintragung", "Es gibt eine neue Eintragung."); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAddr != "smtp.example.org:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "registry@example.org" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.org" {
		t.Errorf("to = %v", gotTo)
	}
	if !strings.Contains(string(gotMsg), "Subject: Neue Eintragung") {
		t.Errorf("message missing subject line: %q", gotMsg)
	}
}
