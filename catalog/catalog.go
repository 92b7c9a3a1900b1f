// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package catalog selects and evaluates the LCPI metric formulas of
// a micro-architecture.
//
// Each supported processor family has a Table listing logical
// metrics, each with an ordered list of formula variants. Build picks
// for every logical metric the first variant whose counters were
// measured on the machine; metrics with no usable variant are left
// out. The resulting Catalog is immutable and is shared by all
// workers deriving metrics.
package catalog

import (
	"sort"

	"github.com/op/go-logging"
	"github.com/perfexpert/perfexpert/formula"
	"github.com/perfexpert/perfexpert/profile"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("catalog")

// ErrDuplicateMetric is returned when a metric name is added to a
// Catalog twice.
var ErrDuplicateMetric = errors.New("duplicate metric")

// An Entry is one metric of a Catalog.
type Entry struct {
	Name string
	Key  profile.Key
	Expr *formula.Expr
	// Variant is the index of the chosen formula in the table
	// definition, or -1 for metrics added directly.
	Variant int
}

// A Catalog is the set of metric formulas selected for one run.
type Catalog struct {
	Arch    string
	Version int
	// TotalCycles and TotalInstructions name the counters holding
	// the cycle and instruction totals of a hotspot.
	TotalCycles       string
	TotalInstructions string

	entries []*Entry
	byKey   map[profile.Key]*Entry
}

// New returns an empty Catalog for arch.
func New(arch string) *Catalog {
	return &Catalog{Arch: arch, byKey: make(map[profile.Key]*Entry)}
}

// Add parses src and adds it to c as the metric name.
func (c *Catalog) Add(name, src string) error {
	e, err := formula.Parse(src)
	if err != nil {
		return errors.Wrapf(err, "metric %s", name)
	}
	return c.add(&Entry{Name: name, Key: profile.KeyOf(name), Expr: e, Variant: -1})
}

func (c *Catalog) add(e *Entry) error {
	if _, ok := c.byKey[e.Key]; ok {
		return errors.Wrap(ErrDuplicateMetric, e.Name)
	}
	c.byKey[e.Key] = e
	c.entries = append(c.entries, e)
	return nil
}

// Entries returns the metrics of c in definition order. Metrics
// referring to other metrics must come after them.
func (c *Catalog) Entries() []*Entry {
	return c.entries
}

// Lookup returns the metric called name, or nil.
func (c *Catalog) Lookup(name string) *Entry {
	return c.byKey[profile.KeyOf(name)]
}

// Len returns the number of metrics in c.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Counters returns the sorted, normalized names of the raw counters
// referenced by c's formulas: every variable that is neither a
// machine constant nor another metric of c.
func (c *Catalog) Counters() []string {
	seen := make(map[string]bool)
	for _, e := range c.entries {
		for _, v := range e.Expr.Vars() {
			if IsConstant(v) || c.Lookup(v) != nil {
				continue
			}
			seen[profile.Normalize(v)] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build returns the Catalog for arch. For each metric of the arch's
// table it chooses the first formula variant whose variables are all
// either machine constants, metrics already chosen, or counters for
// which avail returns true. A nil avail accepts every counter.
func Build(arch string, avail func(counter string) bool) (*Catalog, error) {
	t, err := Lookup(arch)
	if err != nil {
		return nil, err
	}
	c := New(arch)
	c.Version = t.Version
	c.TotalCycles = t.Cycles
	c.TotalInstructions = t.Instructions
	for _, d := range t.Metrics {
		chosen := -1
		var expr *formula.Expr
		for i, src := range d.Variants {
			e, err := formula.Parse(src)
			if err != nil {
				return nil, errors.Wrapf(err, "%s table, metric %s", t.Family, d.Name)
			}
			if c.usable(e, avail) {
				chosen, expr = i, e
				break
			}
		}
		if chosen < 0 {
			log.Debugf("%s: no usable formula for %s", arch, d.Name)
			continue
		}
		if err := c.add(&Entry{Name: d.Name, Key: profile.KeyOf(d.Name), Expr: expr, Variant: chosen}); err != nil {
			return nil, errors.Wrapf(err, "%s table", t.Family)
		}
	}
	log.Infof("catalog %s v%d: %d of %d metrics available", t.Family, t.Version, c.Len(), len(t.Metrics))
	return c, nil
}

func (c *Catalog) usable(e *formula.Expr, avail func(string) bool) bool {
	for _, v := range e.Vars() {
		if IsConstant(v) || c.Lookup(v) != nil {
			continue
		}
		if avail != nil && !avail(v) {
			return false
		}
	}
	return true
}

// CounterSet returns an availability function accepting exactly the
// given counters, compared by normalized name.
func CounterSet(counters []string) func(string) bool {
	set := make(map[profile.Key]bool, len(counters))
	for _, n := range counters {
		set[profile.KeyOf(n)] = true
	}
	return func(name string) bool {
		return set[profile.KeyOf(name)]
	}
}
