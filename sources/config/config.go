// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

// Package config loads YAML configuration documents and republishes them
// whenever the file changes.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/kr/pretty"
	"gopkg.in/yaml.v3"

	"github.com/joamaki/rxcore/rx"
	"github.com/joamaki/rxcore/sources/fswatch"
)

// Document is a decoded configuration file.
type Document struct {
	// Values is the decoded top-level mapping. Never nil.
	Values map[string]any

	// Revision identifies the content the document was decoded from.
	Revision string
}

// Lookup returns the value at a dotted path, e.g. "server.port".
func (d Document) Lookup(path string) (any, bool) {
	var cur any = d.Values
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Parse decodes a YAML document.
func Parse(data []byte) (Document, error) {
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return Document{}, fmt.Errorf("error parsing config: %w", err)
	}
	if values == nil {
		values = map[string]any{}
	}
	sum := sha256.Sum256(data)
	return Document{Values: values, Revision: hex.EncodeToString(sum[:])}, nil
}

// Load reads and decodes the file at 'path'.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("error reading config file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Watch emits the current document at 'path' and then a new document each
// time the file content changes. Writes that leave the content unchanged
// are not emitted. Read and parse errors terminate the stream.
func Watch(path string) rx.Observable[Document] {
	path = filepath.Clean(path)

	// The directory is watched so that files replaced by rename are still
	// followed.
	changes := rx.Filter(
		fswatch.Filter(fswatch.Watch(filepath.Dir(path)), fsnotify.Create|fsnotify.Write),
		func(ev fsnotify.Event) bool { return filepath.Clean(ev.Name) == path })

	// The watcher is subscribed before the initial load so no change is
	// missed in between.
	triggers := rx.Merge(
		rx.Map(changes, func(fsnotify.Event) struct{} { return struct{}{} }),
		rx.Just(struct{}{}),
	)

	docs := rx.FlatMap(triggers, func(struct{}) rx.Observable[Document] {
		doc, err := Load(path)
		if err != nil {
			return rx.Error[Document](err)
		}
		return rx.Just(doc)
	})
	return rx.DistinctUntilChangedBy(docs, func(doc Document) string { return doc.Revision })
}

// Diff describes the differences between two documents, one line per
// changed value.
func Diff(old, updated Document) []string {
	return pretty.Diff(old.Values, updated.Values)
}
