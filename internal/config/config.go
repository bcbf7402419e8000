/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config declares the envconfig-tagged startup configuration
// shared by cmd/registryd and cmd/grundbuchctl.
package config

// Registryd is the configuration for the HTTP server binary, populated
// by github.com/sethvargo/go-envconfig from the process environment.
type Registryd struct {
	Port        int    `env:"PORT,default=8080"`
	MetricsPort int    `env:"METRICS_PORT,default=2112"`
	DataDir     string `env:"GRUNDBUCH_DATA_DIR,default=/var/lib/grundbuch"`

	// PublicURL is this node's own externally reachable base address,
	// stamped into outbound webhook payloads so a subscriber can tell
	// which registry node fired the notification.
	PublicURL string `env:"GRUNDBUCH_PUBLIC_URL,required"`

	// Role selects the replication behavior: "standalone", "writer", or
	// "follower". See internal/replica.Mode.
	Role string `env:"GRUNDBUCH_ROLE,default=standalone"`

	Peers       string `env:"GRUNDBUCH_PEERS"`
	WriterAddr  string `env:"GRUNDBUCH_WRITER_ADDR"`
	PeerToken   string `env:"GRUNDBUCH_PEER_TOKEN"`
	CommitName  string `env:"GRUNDBUCH_COMMIT_NAME,default=Grundbuch Registry"`
	CommitEmail string `env:"GRUNDBUCH_COMMIT_EMAIL,default=registry@grundbuch.dev"`

	SMTPHost     string `env:"GRUNDBUCH_SMTP_HOST"`
	SMTPPort     int    `env:"GRUNDBUCH_SMTP_PORT,default=587"`
	SMTPUsername string `env:"GRUNDBUCH_SMTP_USERNAME"`
	SMTPPassword string `env:"GRUNDBUCH_SMTP_PASSWORD"`
	SMTPFrom     string `env:"GRUNDBUCH_SMTP_FROM"`
}

// Grundbuchctl is the configuration for the administrative CLI.
type Grundbuchctl struct {
	ServerAddr string `env:"GRUNDBUCH_SERVER_ADDR,default=http://localhost:8080"`
	Token      string `env:"GRUNDBUCH_TOKEN"`
}
