// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joamaki/rxcore/rx"
)

func TestConfigReports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("answer: 42\n"), 0o644)

	lines, err := rx.ToSlice(context.TODO(), configReports(path, false))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "answer") || !strings.Contains(lines[0], "42") {
		t.Fatalf("unexpected report: %v", lines)
	}

	_, err = rx.ToSlice(context.TODO(), configReports(path+".missing", false))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestURLReports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "body 1")
	}))
	defer srv.Close()

	looper := rx.NewLooper()
	looper.Start()
	defer looper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := rx.First(ctx, urlReports(rx.NewLooperScheduler(looper), srv.URL, time.Millisecond, 100, 10))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !strings.HasPrefix(first, srv.URL+": 6 bytes") {
		t.Fatalf("unexpected report: %s", first)
	}
}

func TestRootCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("name: example\n"), 0o644)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", path, "--log-level", "warn"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !strings.Contains(out.String(), "example") {
		t.Fatalf("expected config to be printed, got %q", out.String())
	}
}
