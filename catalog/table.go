// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownArch is returned by Lookup and Build for a
// micro-architecture with no registered table.
var ErrUnknownArch = errors.New("unknown micro-architecture")

// A Table lists the metric definitions of one processor family.
type Table struct {
	Family  string
	Version int
	// Cycles and Instructions are the counters of total cycles
	// and retired instructions on this family.
	Cycles       string
	Instructions string
	Metrics      []Def
}

// A Def is a logical metric with its formula variants in order of
// preference.
type Def struct {
	Name     string
	Variants []string
}

var (
	tables  = make(map[string][]*Table)
	aliases = make(map[string]string)
)

// Register adds t to the set of known tables. Several versions of a
// family may be registered; Lookup returns the newest.
func Register(t *Table, alias ...string) {
	fam := strings.ToLower(t.Family)
	ts := append(tables[fam], t)
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].Version > ts[j].Version })
	tables[fam] = ts
	for _, a := range alias {
		aliases[strings.ToLower(a)] = fam
	}
}

// Lookup returns the newest table for arch, which is a family name
// or one of its aliases.
func Lookup(arch string) (*Table, error) {
	return LookupVersion(arch, 0)
}

// LookupVersion returns version v of the table for arch, or the
// newest version if v is 0.
func LookupVersion(arch string, v int) (*Table, error) {
	fam := strings.ToLower(arch)
	if a, ok := aliases[fam]; ok {
		fam = a
	}
	ts := tables[fam]
	for _, t := range ts {
		if v == 0 || t.Version == v {
			return t, nil
		}
	}
	if len(ts) > 0 {
		return nil, errors.Wrapf(ErrUnknownArch, "%s version %d", arch, v)
	}
	return nil, errors.Wrap(ErrUnknownArch, arch)
}

// Families returns the names of all registered families.
func Families() []string {
	var names []string
	for f := range tables {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

// expand returns every formula obtained by substituting one
// alternative from each list into the %s verbs of format. The
// result is ordered so that earlier alternatives of earlier lists
// are preferred.
func expand(format string, alts ...[]string) []string {
	args := [][]interface{}{nil}
	for _, list := range alts {
		var next [][]interface{}
		for _, prefix := range args {
			for _, a := range list {
				p := append(append([]interface{}{}, prefix...), a)
				next = append(next, p)
			}
		}
		args = next
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, fmt.Sprintf(format, a...))
	}
	return out
}
