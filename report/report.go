// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report renders ranked profiles as text, HTML and charts.
//
// Reports only read the profiles. Hotspots are shown in the order
// the profile lists them, so callers rank first.
package report

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/perfexpert/perfexpert/profile"
	"github.com/perfexpert/perfexpert/store"
)

// VarianceLimit is the instruction count variation above which a
// hotspot's results are flagged as unreliable.
const VarianceLimit = 0.2

// Options configure a report.
type Options struct {
	// Threshold is the minimum importance of a reported hotspot.
	Threshold float64
	// Mode selects the (rank, thread) pairs to report, like the
	// derivation mode.
	Mode            store.Mode
	Ranks, Threads int
	// Scale is the number of bar characters per LCPI unit. If
	// zero, 20 is used.
	Scale float64
	// CPIThreshold, if positive, marks hotspots whose cycles per
	// instruction do not exceed it as performing fine.
	CPIThreshold float64
	// MinCycles, if positive, marks hotspots with fewer cycles as
	// too short to measure. It is usually the CPU frequency.
	MinCycles float64
}

func (o *Options) scale() float64 {
	if o.Scale <= 0 {
		return 20
	}
	return o.Scale
}

// pairs returns the (rank, thread) pairs to report.
func (o *Options) pairs() [][2]int {
	return o.Mode.Pairs(o.Ranks, o.Threads)
}

// A section is one hotspot of a report for one (rank, thread) pair.
type section struct {
	Title    string
	Rows     []row
	Warnings []string
	Notice   string
}

// A row is one metric line of a section.
type row struct {
	Desc    string
	Value   string
	Bar     int
	Heading string // printed before the row when set
	Level   level
}

type level int

const (
	levelNone level = iota
	levelGood
	levelFair
	levelPoor
	levelBad
)

func (l level) String() string {
	return [...]string{"", "good", "fair", "poor", "bad"}[l]
}

// overallLevel classifies an overall LCPI value. Values that are not
// finite get no level.
func overallLevel(v float64) level {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return levelNone
	case v <= 0.5:
		return levelGood
	case v <= 1.5:
		return levelFair
	case v <= 2.5:
		return levelPoor
	}
	return levelBad
}

// reported returns the hotspots of p whose importance reaches the
// threshold.
func reported(p *profile.Profile, opts *Options) []*profile.Hotspot {
	var hs []*profile.Hotspot
	for _, h := range p.Hotspots {
		if h.Importance >= opts.Threshold {
			hs = append(hs, h)
		}
	}
	return hs
}

func title(h *profile.Hotspot, rank, thread int, opts *Options) string {
	file := filepath.Base(h.File)
	pct := h.Importance * 100
	var s string
	switch h.Kind {
	case profile.Program:
		return fmt.Sprintf("Aggregate (%.2f%% of the total runtime)", pct)
	case profile.Loop:
		s = fmt.Sprintf("Loop in function %s in %s:%d (%.2f%% of the total runtime)", h.Name, file, h.Line, pct)
	default:
		s = fmt.Sprintf("Function %s in line %d of %s (%.2f%% of the total runtime)", h.Name, h.Line, file, pct)
	}
	if opts.Mode != store.Serial {
		s = fmt.Sprintf("[MPI %d / Thread %d] %s", rank, thread, s)
	}
	return s
}

// split returns the display category and subcategory of a metric
// name such as "data_accesses.L1d_hits".
func split(name string) (cat, sub string) {
	name = strings.ReplaceAll(name, "_", " ")
	cat, sub, _ = strings.Cut(name, ".")
	return cat, sub
}

// group orders metric categories: the overall LCPI, then the
// instruction ratios, then everything else.
func group(cat string) int {
	switch {
	case cat == "overall":
		return 0
	case cat == "ratio" || strings.HasPrefix(cat, "GFLOPS"):
		return 1
	}
	return 2
}

func metricLess(a, b profile.Metric) bool {
	ca, sa := split(a.Name)
	cb, sb := split(b.Name)
	if ga, gb := group(ca), group(cb); ga != gb {
		return ga < gb
	}
	if ca != cb {
		return ca < cb
	}
	if oa, ob := sa == "overall", sb == "overall"; oa != ob {
		return oa
	}
	return sa < sb
}

// newSection builds the section of h for the (rank, thread) pair.
func newSection(h *profile.Hotspot, rank, thread int, opts *Options) section {
	s := section{Title: title(h, rank, thread, opts)}
	var ms []profile.Metric
	for _, m := range h.Metrics() {
		if m.Rank == rank && m.Thread == thread {
			ms = append(ms, m)
		}
	}
	sort.SliceStable(ms, func(i, j int) bool { return metricLess(ms[i], ms[j]) })

	scale := opts.scale()
	overcount := false
	ratioHeading := false
	for _, m := range ms {
		cat, sub := split(m.Name)
		r := row{Desc: " - " + sub}
		if sub == "" || sub == "overall" {
			r.Desc = "* " + cat
		}
		v := m.Value
		switch g := group(cat); {
		case g == 1:
			if !ratioHeading {
				r.Heading = "Instructions Ratio"
				ratioHeading = true
			}
			r.Value = fmt.Sprintf("%.1f", v*100)
			r.Bar = bar(v, 50, 50)
			if v > 1 {
				overcount = true
			}
		case g == 0:
			r.Heading = "LCPI (good . . . . bad)"
			r.Value = fmt.Sprintf("%.2f", v)
			r.Bar = bar(v, scale, 0)
			r.Level = overallLevel(v)
		case cat == "memory bandwidth":
			r.Value = fmt.Sprintf("%.1f", v*100)
			r.Bar = bar(v, scale, 0)
		default:
			r.Value = fmt.Sprintf("%.2f", v)
			r.Bar = bar(v, scale, 0)
		}
		s.Rows = append(s.Rows, r)
	}

	if h.Variance > VarianceLimit {
		s.Warnings = append(s.Warnings, fmt.Sprintf(
			"the instruction count variation for this bottleneck is %.2f%%, making the results unreliable", h.Variance*100))
	}
	if h.Cycles == 0 || h.Instructions == 0 {
		s.Warnings = append(s.Warnings,
			"the runtime for this code section is too short to collect the performance counters needed, making the results unreliable")
	} else if opts.MinCycles > 0 && h.Cycles < opts.MinCycles {
		s.Warnings = append(s.Warnings,
			"the runtime for this code section is too short to gather meaningful measurements")
	} else if opts.CPIThreshold > 0 && h.Cycles/h.Instructions <= opts.CPIThreshold {
		s.Notice = "this code section performs just fine"
	}
	if overcount {
		s.Warnings = append(s.Warnings,
			"this architecture overcounts floating-point operations, expect to see more than 100% of these instructions")
	}
	return s
}

// bar returns the length of the bar for v at scale characters per
// unit, capped at max if max is positive.
func bar(v, scale float64, max int) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	n := math.Round(v * scale)
	if max > 0 && n > float64(max) {
		return max
	}
	if n > 1000 {
		n = 1000
	}
	return int(n)
}

type moduleLine struct {
	Name       string
	Importance float64
}

func modules(p *profile.Profile) []moduleLine {
	var ms []moduleLine
	for _, m := range p.Modules() {
		ms = append(ms, moduleLine{m.Short, m.Importance})
	}
	return ms
}
