// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"github.com/perfexpert/perfexpert/profile"
)

// A Source resolves formula variables to values.
//
// Lookup returns ok == false if the source has no value for name.
// A non-nil error means the source could not be consulted; it aborts
// the evaluation of the current metric.
type Source interface {
	Lookup(name string) (v float64, ok bool, err error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(name string) (float64, bool, error)

func (f SourceFunc) Lookup(name string) (float64, bool, error) { return f(name) }

// ConstantSource returns a Source backed by a machine constant table.
func ConstantSource(c profile.Constants) Source {
	return SourceFunc(func(name string) (float64, bool, error) {
		v, ok := c.Lookup(name)
		return v, ok, nil
	})
}

// HotspotSource returns a Source backed by the metrics already
// attached to h for the (rank, thread) pair.
func HotspotSource(h *profile.Hotspot, rank, thread int) Source {
	return SourceFunc(func(name string) (float64, bool, error) {
		v, ok := h.Lookup(profile.KeyOf(name), rank, thread)
		return v, ok, nil
	})
}

// Evaluate computes e for the (rank, thread) pair.
//
// Each variable is resolved by the first source that has a value for
// it. Variables no source knows evaluate as 0 and are returned in
// missing; this is not an error. The catalog entry itself is never
// modified, so Evaluate may be called concurrently.
func (e *Entry) Evaluate(rank, thread int, sources ...Source) (m profile.Metric, missing []string, err error) {
	vars := e.Expr.Vars()
	vals := make(map[string]float64, len(vars))
outer:
	for _, name := range vars {
		for _, src := range sources {
			v, ok, err := src.Lookup(name)
			if err != nil {
				return profile.Metric{}, nil, err
			}
			if ok {
				vals[name] = v
				continue outer
			}
		}
		missing = append(missing, name)
	}
	v := e.Expr.Eval(func(name string) float64 { return vals[name] })
	return profile.Metric{Name: e.Name, Key: e.Key, Value: v, Rank: rank, Thread: thread}, missing, nil
}
