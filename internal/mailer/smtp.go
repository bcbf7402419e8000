/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package mailer is the narrow interface internal/notify depends on
// for the email delivery channel. SMTP is explicitly out of scope as a
// subsystem to build well; this package exists so the core has
// something concrete to call.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTP sends a single plaintext email.
type SMTP interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Config is the minimal set of credentials net/smtp needs.
type Config struct {
	Host     string `env:"GRUNDBUCH_SMTP_HOST"`
	Port     int    `env:"GRUNDBUCH_SMTP_PORT,default=587"`
	Username string `env:"GRUNDBUCH_SMTP_USERNAME"`
	Password string `env:"GRUNDBUCH_SMTP_PASSWORD"`
	From     string `env:"GRUNDBUCH_SMTP_FROM"`
}

// netSMTP sends mail directly through net/smtp.SendMail, with no
// connection pooling or retry — a subscriber's email notification is
// one attempt; retries for this channel are optional.
type netSMTP struct {
	cfg Config
	// dial is overridable in tests to avoid a real network connection.
	dial func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New builds the default SMTP sender from cfg.
func New(cfg Config) SMTP {
	return &netSMTP{cfg: cfg, dial: smtp.SendMail}
}

func (m *netSMTP) Send(ctx context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.cfg.From, to, subject, body)
	return m.dial(addr, auth, m.cfg.From, []string{to}, []byte(msg))
}
