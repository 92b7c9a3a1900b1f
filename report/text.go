// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/perfexpert/perfexpert/profile"
	"github.com/perfexpert/perfexpert/report/internal/texttab"
)

const width = 81

// Text writes a plain-text report of profiles to w.
//
// For every reported (rank, thread) pair and every profile, Text
// prints the share of the runtime taken by each module, followed by
// one block per hotspot whose importance reaches opts.Threshold.
func Text(w io.Writer, profiles []*profile.Profile, opts Options) error {
	var buf bytes.Buffer
	for _, pair := range opts.pairs() {
		for _, p := range profiles {
			buf.WriteString(strings.Repeat("-", width) + "\n")
			for _, m := range modules(p) {
				fmt.Fprintf(&buf, "Module %s takes %.2f%% of the total runtime\n", m.Name, m.Importance*100)
			}
			buf.WriteString("\n")
			for _, h := range reported(p, &opts) {
				if err := writeSection(&buf, newSection(h, pair[0], pair[1], &opts)); err != nil {
					return err
				}
			}
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func writeSection(w io.Writer, s section) error {
	var tab texttab.Table
	tab.Line(s.Title)
	tab.Line(strings.Repeat("=", width))
	for _, r := range s.Rows {
		if r.Heading != "" {
			tab.Line("")
			tab.Line(r.Heading)
		}
		tab.Row().Cell(r.Desc).Cell(r.Value, texttab.Right).Cell(strings.Repeat(">", r.Bar))
	}
	for _, warn := range s.Warnings {
		tab.Line("")
		tab.Line("WARNING: " + warn + "!")
	}
	if s.Notice != "" {
		tab.Line("")
		tab.Line("NOTICE:  " + s.Notice + "!")
	}
	tab.Line(strings.Repeat("-", width))
	if err := tab.Format(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
