// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joamaki/rxcore/rx"
)

func TestParse(t *testing.T) {
	doc, err := Parse([]byte("server:\n  port: 8080\nname: test\n"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if port, ok := doc.Lookup("server.port"); !ok || port != 8080 {
		t.Fatalf("expected server.port 8080, got %v", port)
	}
	if name, ok := doc.Lookup("name"); !ok || name != "test" {
		t.Fatalf("expected name test, got %v", name)
	}
	if _, ok := doc.Lookup("server.missing"); ok {
		t.Fatalf("expected missing key")
	}
	if _, ok := doc.Lookup("name.nested"); ok {
		t.Fatalf("expected lookup through scalar to fail")
	}

	same, _ := Parse([]byte("server:\n  port: 8080\nname: test\n"))
	if same.Revision != doc.Revision {
		t.Fatalf("expected equal revisions for equal content")
	}

	empty, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error for empty document: %s", err)
	}
	if empty.Values == nil || len(empty.Values) != 0 {
		t.Fatalf("expected empty values, got %v", empty.Values)
	}

	if _, err := Parse([]byte("- not\n- a mapping\n")); err == nil {
		t.Fatalf("expected error for non-mapping document")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(dir, "bad.yaml")
	os.WriteFile(path, []byte("a: [\n"), 0o644)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("expected parse error naming the file, got %v", err)
	}
}

func TestDiff(t *testing.T) {
	a, _ := Parse([]byte("a: 1\nb: 2\n"))
	b, _ := Parse([]byte("a: 1\nb: 3\n"))
	if diff := Diff(a, a); len(diff) != 0 {
		t.Fatalf("expected no differences, got %v", diff)
	}
	diff := Diff(a, b)
	if len(diff) != 1 || !strings.Contains(diff[0], "b") {
		t.Fatalf("expected one difference on b, got %v", diff)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("value: 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}

	docs := make(chan Document, 16)
	errs := make(chan error, 1)
	sub := Watch(path).Subscribe(rx.ObserverFuncs[Document]{
		Next:  func(doc Document) { docs <- doc },
		Error: func(err error) { errs <- err },
	})
	defer sub.Cancel()

	next := func(what string) Document {
		t.Helper()
		select {
		case doc := <-docs:
			return doc
		case err := <-errs:
			t.Fatalf("%s: unexpected error: %s", what, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("%s: timed out", what)
		}
		return Document{}
	}

	doc := next("initial")
	if v, _ := doc.Lookup("value"); v != 1 {
		t.Fatalf("expected value 1, got %v", v)
	}

	os.WriteFile(path, []byte("value: 2\n"), 0o644)
	for {
		doc = next("change")
		if doc.Revision == "" {
			t.Fatalf("expected a revision")
		}
		// A write may be observed half-way, e.g. as an empty file.
		if v, _ := doc.Lookup("value"); v == 2 {
			break
		}
	}

	// Repeated events for the same content are dropped, as are writes to
	// other files in the directory.
	os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("value: 3\n"), 0o644)
	select {
	case doc := <-docs:
		t.Fatalf("unexpected document: %v", doc.Values)
	case <-time.After(100 * time.Millisecond):
	}
}
