// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventfmt

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	pprof "github.com/google/pprof/profile"
	"github.com/perfexpert/perfexpert/profile"
	"github.com/perfexpert/perfexpert/store"
)

func testPprof() *pprof.Profile {
	m := &pprof.Mapping{ID: 1, File: "/usr/bin/app"}
	fMain := &pprof.Function{ID: 1, Name: "main", Filename: "/src/main.c", StartLine: 3}
	fSolve := &pprof.Function{ID: 2, Name: "solve", Filename: "/src/solve.c", StartLine: 20}
	fAxpy := &pprof.Function{ID: 3, Name: "axpy", Filename: "/src/blas.h", StartLine: 7}
	l1 := &pprof.Location{ID: 1, Mapping: m, Address: 0x1000, Line: []pprof.Line{{Function: fMain, Line: 5}}}
	l2 := &pprof.Location{ID: 2, Mapping: m, Address: 0x2000, Line: []pprof.Line{
		{Function: fAxpy, Line: 9},
		{Function: fSolve, Line: 22},
	}}
	return &pprof.Profile{
		SampleType: []*pprof.ValueType{{Type: "CYC", Unit: "count"}, {Type: "INS", Unit: "count"}},
		Mapping:    []*pprof.Mapping{m},
		Function:   []*pprof.Function{fMain, fSolve, fAxpy},
		Location:   []*pprof.Location{l1, l2},
		Sample: []*pprof.Sample{
			{Location: []*pprof.Location{l2, l1}, Value: []int64{300, 100}},
			{Location: []*pprof.Location{l1}, Value: []int64{100, 100}},
			{Location: []*pprof.Location{l2, l1}, Value: []int64{60, 20}, NumLabel: map[string][]int64{"thread": {1}}},
		},
	}
}

func TestReadPprof(t *testing.T) {
	var buf bytes.Buffer
	if err := testPprof().Write(&buf); err != nil {
		t.Fatal(err)
	}
	run := NewRun()
	if err := run.ReadPprof(&buf, "app"); err != nil {
		t.Fatal(err)
	}
	if len(run.Profiles) != 1 {
		t.Fatalf("got %d profiles, want 1", len(run.Profiles))
	}
	p := run.Profiles[0]
	solve := p.FindName("solve")
	if solve == nil || solve.Kind != profile.Procedure || solve.File != "/src/solve.c" || solve.Line != 20 {
		t.Fatalf("solve = %v", solve)
	}
	if solve.Module == nil || solve.Module.Name != "/usr/bin/app" {
		t.Errorf("solve module = %v", solve.Module)
	}
	if p.FindName("axpy") != nil {
		t.Errorf("inlined function became a hotspot")
	}
	main, prog := p.FindName("main"), p.Program()
	if main == nil || prog == nil {
		t.Fatalf("main = %v, program = %v", main, prog)
	}

	want := []store.Event{
		{Hotspot: solve.ID, Name: "CYC", Value: 300},
		{Hotspot: solve.ID, Name: "INS", Value: 100},
		{Hotspot: main.ID, Name: "CYC", Value: 100},
		{Hotspot: main.ID, Name: "INS", Value: 100},
		{Hotspot: solve.ID, Name: "CYC", Value: 60, Thread: 1},
		{Hotspot: solve.ID, Name: "INS", Value: 20, Thread: 1},
		{Hotspot: prog.ID, Name: "CYC", Value: 400},
		{Hotspot: prog.ID, Name: "INS", Value: 200},
		{Hotspot: prog.ID, Name: "CYC", Value: 60, Thread: 1},
		{Hotspot: prog.ID, Name: "INS", Value: 20, Thread: 1},
	}
	if diff := cmp.Diff(want, run.Events); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	if want := (store.Experiment{Ranks: 1, Threads: 2, Experiments: 1}); run.Experiment != want {
		t.Errorf("experiment = %+v, want %+v", run.Experiment, want)
	}
}

func TestReadPprofErrors(t *testing.T) {
	run := NewRun()
	if err := run.ReadPprof(bytes.NewReader([]byte("not a profile")), "x"); err == nil {
		t.Errorf("ReadPprof of garbage succeeded")
	}
	if err := run.AddPprof(&pprof.Profile{}, "x"); err == nil {
		t.Errorf("AddPprof without sample types succeeded")
	}
}
