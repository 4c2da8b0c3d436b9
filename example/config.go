// SPDX-License-Identifier: Apache-2.0
// Copyright 2022 Jussi Maki

package main

import (
	"github.com/kr/pretty"

	"github.com/joamaki/rxcore/rx"
	"github.com/joamaki/rxcore/sources/config"
)

// configReports prints the document at 'path' and, when following it, the
// differences for every change.
func configReports(path string, follow bool) rx.Observable[string] {
	docs := rx.Defer(func() rx.Observable[config.Document] {
		doc, err := config.Load(path)
		if err != nil {
			return rx.Error[config.Document](err)
		}
		return rx.Just(doc)
	})
	if follow {
		docs = config.Watch(path)
	}

	return rx.Defer(func() rx.Observable[string] {
		var prev *config.Document
		return rx.FlatMap(docs, func(doc config.Document) rx.Observable[string] {
			var lines []string
			if prev == nil {
				lines = []string{pretty.Sprintf("%s: %# v", path, doc.Values)}
			} else {
				for _, d := range config.Diff(*prev, doc) {
					lines = append(lines, path+": "+d)
				}
			}
			prev = &doc
			return rx.FromSlice(lines)
		})
	})
}
