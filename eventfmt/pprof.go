// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventfmt

import (
	"io"

	pprof "github.com/google/pprof/profile"
	"github.com/perfexpert/perfexpert/profile"
	"github.com/pkg/errors"
)

// ReadPprof reads a pprof profile, such as one converted from perf
// data, and adds its samples to run as profile name.
//
// Every sample type becomes a counter named after the type. A sample
// is charged to the function of its innermost frame, and the sum of
// all samples to the program. Numeric labels "rank", "thread" and
// "experiment" place a sample; unlabeled samples belong to rank 0,
// thread 0.
func (run *Run) ReadPprof(r io.Reader, name string) error {
	p, err := pprof.Parse(r)
	if err != nil {
		return errors.Wrap(err, "parsing pprof profile")
	}
	return run.AddPprof(p, name)
}

// AddPprof adds the samples of p to run as profile name.
func (run *Run) AddPprof(p *pprof.Profile, name string) error {
	if len(p.SampleType) == 0 {
		return errors.New("pprof profile has no sample types")
	}
	var exe string
	if len(p.Mapping) > 0 {
		exe = p.Mapping[0].File
	}
	type place struct{ rank, thread, experiment int }
	totals := make(map[place][]int64)
	var order []place

	for _, ps := range p.Sample {
		at := place{
			rank:       numLabel(ps, "rank"),
			thread:     numLabel(ps, "thread"),
			experiment: numLabel(ps, "experiment"),
		}
		if _, ok := totals[at]; !ok {
			totals[at] = make([]int64, len(p.SampleType))
			order = append(order, at)
		}
		for i, v := range ps.Value {
			if i < len(p.SampleType) {
				totals[at][i] += v
			}
		}
		if len(ps.Location) == 0 || len(ps.Location[0].Line) == 0 {
			continue
		}
		// The last line of a location is the function the others
		// were inlined into.
		loc := ps.Location[0]
		fn := loc.Line[len(loc.Line)-1].Function
		if fn == nil {
			continue
		}
		module := exe
		if loc.Mapping != nil {
			module = loc.Mapping.File
		}
		s := &Sample{
			Profile:    name,
			Module:     module,
			File:       fn.Filename,
			Kind:       profile.Procedure,
			Name:       fn.Name,
			Line:       int(fn.StartLine),
			Rank:       at.rank,
			Thread:     at.thread,
			Experiment: at.experiment,
			Values:     pprofValues(p, ps.Value),
		}
		if err := run.Add(s); err != nil {
			return err
		}
	}

	for _, at := range order {
		s := &Sample{
			Profile:    name,
			Module:     exe,
			Kind:       profile.Program,
			Rank:       at.rank,
			Thread:     at.thread,
			Experiment: at.experiment,
			Values:     pprofValues(p, totals[at]),
		}
		if err := run.Add(s); err != nil {
			return err
		}
	}
	return nil
}

func pprofValues(p *pprof.Profile, vals []int64) []Value {
	out := make([]Value, 0, len(vals))
	for i, v := range vals {
		if i >= len(p.SampleType) {
			break
		}
		out = append(out, Value{float64(v), p.SampleType[i].Type})
	}
	return out
}

func numLabel(s *pprof.Sample, key string) int {
	if vs := s.NumLabel[key]; len(vs) > 0 && vs[0] > 0 {
		return int(vs[0])
	}
	return 0
}
