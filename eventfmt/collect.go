// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventfmt

import (
	"github.com/perfexpert/perfexpert/profile"
	"github.com/perfexpert/perfexpert/store"
	"github.com/pkg/errors"
)

// A Run is the content of one or more event files, ready to be
// ingested with store.DB.Ingest.
type Run struct {
	// Profiles lists the profiles in order of first appearance.
	// Their hotspot ids are distinct across profiles.
	Profiles   []*profile.Profile
	Events     []store.Event
	Experiment store.Experiment
}

// NewRun returns an empty Run.
func NewRun() *Run {
	return &Run{}
}

// Add adds the hotspot and events of s to run.
func (run *Run) Add(s *Sample) error {
	p := run.profile(s.Profile)
	var h *profile.Hotspot
	switch s.Kind {
	case profile.Program:
		h = p.AddProgram(s.Module)
	case profile.Procedure:
		h = p.AddProcedure(s.Module, s.File, s.Name, s.Line)
	case profile.Loop:
		parent := p.FindProcedure(s.Module, s.Name)
		if parent == nil {
			parent = p.FindLoop(s.Name)
		}
		if parent == nil {
			return errors.Errorf("loop at line %d: unknown parent %s", s.Line, s.Name)
		}
		h = p.AddLoop(parent, s.Line)
	default:
		return errors.Errorf("unexpected hotspot kind %v", s.Kind)
	}
	for _, v := range s.Values {
		run.Events = append(run.Events, store.Event{
			Hotspot:    h.ID,
			Name:       v.Counter,
			Value:      v.Value,
			Rank:       s.Rank,
			Thread:     s.Thread,
			Experiment: s.Experiment,
		})
	}
	e := &run.Experiment
	e.Ranks = maxInt(e.Ranks, s.Rank+1)
	e.Threads = maxInt(e.Threads, s.Thread+1)
	e.Experiments = maxInt(e.Experiments, s.Experiment+1)
	return nil
}

func (run *Run) profile(name string) *profile.Profile {
	for _, p := range run.Profiles {
		if p.Name == name {
			return p
		}
	}
	p := profile.New(name)
	if len(run.Profiles) > 0 {
		p.ShareIDs(run.Profiles[0])
	}
	run.Profiles = append(run.Profiles, p)
	return p
}

// Collect reads every record of r into a Run. It stops at the first
// syntax error or invalid sample.
func Collect(r *Reader) (*Run, error) {
	run := NewRun()
	if err := run.Collect(r); err != nil {
		return nil, err
	}
	return run, nil
}

// Collect reads every record of r into run.
func (run *Run) Collect(r *Reader) error {
	for r.Scan() {
		switch rec := r.Result().(type) {
		case *SyntaxError:
			return rec
		case *Sample:
			if err := run.Add(rec); err != nil {
				file, line := rec.Pos()
				return errors.Wrapf(err, "%s:%d", file, line)
			}
		}
	}
	return r.Err()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
