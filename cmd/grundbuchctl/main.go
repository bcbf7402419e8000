/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Command grundbuchctl is a thin HTTP client for registryd: login,
// submit a signed changeset, and fetch documents, for operators and
// scripts that would otherwise have to hand-craft requests against the
// envelope API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sethvargo/go-envconfig"

	"grundbuch.dev/registry/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	var cfg config.Grundbuchctl
	if err := envconfig.Process(ctx, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "grundbuchctl: reading configuration: %v\n", err)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "login":
		err = runLogin(ctx, cfg, os.Args[2:])
	case "commit":
		err = runCommit(ctx, cfg, os.Args[2:])
	case "download":
		err = runDownload(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "grundbuchctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: grundbuchctl <login|commit|download> [flags]")
}

func runLogin(ctx context.Context, cfg config.Grundbuchctl, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	form := fmt.Sprintf("email=%s&password=%s", *email, *password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.ServerAddr+"/login", bytes.NewBufferString(form))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doAndPrint(req)
}

func runCommit(ctx context.Context, cfg config.Grundbuchctl, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	file := fs.String("file", "", "path to a JSON-encoded signed changeset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	body, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("reading changeset: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.ServerAddr+"/commit", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
	return doAndPrint(req)
}

func runDownload(ctx context.Context, cfg config.Grundbuchctl, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	amtsgericht := fs.String("amtsgericht", "", "district court")
	bezirk := fs.String("bezirk", "", "cadastral district")
	blatt := fs.String("blatt", "", "sheet number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/download/doc/%s/%s/%s", cfg.ServerAddr, *amtsgericht, *bezirk, *blatt)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}
	return doAndPrint(req)
}

func doAndPrint(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(body))
	}
	return nil
}
