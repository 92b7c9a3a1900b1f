// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package profile

import (
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestNormalize(t *testing.T) {
	for _, test := range []struct {
		in, want string
	}{
		{"PAPI_TOT_CYC", "PAPI_TOT_CYC"},
		{"L2_RQSTS.CODE_RD_HIT", "L2_RQSTS_CODE_RD_HIT"},
		{"L2_RQSTS:CODE_RD_HIT", "L2_RQSTS_CODE_RD_HIT"},
		{"a.b:c", "a_b_c"},
		{"", ""},
	} {
		if got := Normalize(test.in); got != test.want {
			t.Errorf("Normalize(%q) = %q, want %q", test.in, got, test.want)
		}
	}
	if KeyOf("L2_RQSTS.CODE_RD_HIT") != KeyOf("L2_RQSTS:CODE_RD_HIT") {
		t.Errorf("KeyOf differs across separator spellings")
	}
	if KeyOf("CYC") == KeyOf("INS") {
		t.Errorf("KeyOf(CYC) == KeyOf(INS)")
	}
}

func TestAddLoopNames(t *testing.T) {
	p := New("run")
	proc := p.AddProcedure("/usr/bin/app", "/src/solver.c", "compute", 10)
	outer := p.AddLoop(proc, 12)
	inner := p.AddLoop(outer, 14)

	if want := "app_solver.c_compute_loop12"; outer.Name != want {
		t.Errorf("outer loop name = %q, want %q", outer.Name, want)
	}
	if want := "app_solver.c_compute_loop12_loop14"; inner.Name != want {
		t.Errorf("inner loop name = %q, want %q", inner.Name, want)
	}
	if outer.Depth != 1 || inner.Depth != 2 {
		t.Errorf("depths = %d, %d, want 1, 2", outer.Depth, inner.Depth)
	}
	if inner.Procedure != proc || outer.Procedure != proc {
		t.Errorf("loops do not reference their procedure")
	}

	// A second sample for the same loop must not create a record.
	n := len(p.Hotspots)
	if again := p.AddLoop(proc, 12); again != outer {
		t.Errorf("AddLoop did not deduplicate: got %v, want %v", again, outer)
	}
	if again := p.AddProcedure("/usr/bin/app", "/src/solver.c", "compute", 10); again != proc {
		t.Errorf("AddProcedure did not deduplicate")
	}
	if len(p.Hotspots) != n {
		t.Errorf("len(Hotspots) = %d after duplicates, want %d", len(p.Hotspots), n)
	}
}

func TestFindAndAttach(t *testing.T) {
	p := New("run")
	h := p.AddProcedure("app", "main.c", "main", 1)
	if got := p.Find(h.ID); got != h {
		t.Fatalf("Find(%d) = %v, want %v", h.ID, got, h)
	}
	if got := p.FindName("main"); got != h {
		t.Fatalf("FindName(main) = %v, want %v", got, h)
	}
	if got := p.FindProcedure("app", "main"); got != h {
		t.Errorf("FindProcedure(app, main) = %v, want %v", got, h)
	}
	if got := p.FindProcedure("libc.so", "main"); got != nil {
		t.Errorf("FindProcedure(libc.so, main) = %v, want nil", got)
	}
	if err := p.AttachMetric(h.ID, "overall", 2, 0, 0); err != nil {
		t.Fatal(err)
	}
	if got := h.Value("overall", 0, 0); got != 2 {
		t.Errorf("overall = %v, want 2", got)
	}
	if got := h.Value("overall", 1, 0); !math.IsNaN(got) {
		t.Errorf("overall for rank 1 = %v, want NaN", got)
	}

	err := p.AttachMetric(h.ID+100, "overall", 1, 0, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("AttachMetric on unknown id: err = %v, want ErrNotFound", err)
	}

	if _, err := p.Insert(&Hotspot{ID: h.ID, Name: "dup"}); !errors.Is(err, ErrDuplicateHotspot) {
		t.Errorf("Insert with taken id: err = %v, want ErrDuplicateHotspot", err)
	}
}

func TestShareIDs(t *testing.T) {
	a, b := New("a"), New("b")
	b.ShareIDs(a)
	f := a.AddProcedure("app", "a.c", "f", 1)
	g := b.AddProcedure("app", "b.c", "g", 1)
	l := a.AddLoop(f, 3)
	if f.ID != 1 || g.ID != 2 || l.ID != 3 {
		t.Errorf("ids = %d, %d, %d, want 1, 2, 3", f.ID, g.ID, l.ID)
	}
	if b.Find(f.ID) != nil {
		t.Errorf("b finds a's hotspot")
	}
}

func TestMetricsOrder(t *testing.T) {
	h := &Hotspot{Name: "f"}
	h.Attach(NewMetric("b", 1, 0, 0))
	h.Attach(NewMetric("a", 2, 1, 0))
	h.Attach(NewMetric("a", 3, 0, 1))
	h.Attach(NewMetric("a", 4, 0, 0))
	var got []string
	for _, m := range h.Metrics() {
		got = append(got, m.Name)
	}
	if diff := cmp.Diff([]string{"a", "a", "a", "b"}, got); diff != "" {
		t.Errorf("Metrics order (-want +got):\n%s", diff)
	}
	if m := h.Metrics()[0]; m.Rank != 0 || m.Thread != 0 || m.Value != 4 {
		t.Errorf("first metric = %+v, want a(0,0)=4", m)
	}
}

func TestAttachConcurrent(t *testing.T) {
	h := &Hotspot{Name: "f"}
	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h.Attach(NewMetric("m", float64(i), r, i))
			}
		}(r)
	}
	wg.Wait()
	if n := h.NumMetrics(); n != 800 {
		t.Errorf("NumMetrics = %d, want 800", n)
	}
}

func TestAggregate(t *testing.T) {
	p := New("run")
	prog := p.AddProgram("app")
	f := p.AddProcedure("app", "a.c", "f", 1)
	g := p.AddProcedure("libm.so", "b.c", "g", 1)
	l := p.AddLoop(f, 3)

	prog.Cycles = 1000
	f.Cycles, f.Samples = 600, []float64{100, 80, 90}
	g.Cycles, g.Samples = 400, []float64{50}
	l.Cycles, l.Samples = 500, []float64{0, 0}

	p.Aggregate()

	if p.Cycles != 1000 {
		t.Errorf("profile cycles = %v, want 1000", p.Cycles)
	}
	if f.Instructions != 90 {
		t.Errorf("f instructions = %v, want mean 90", f.Instructions)
	}
	if want := (100.0 - 80) / 100; math.Abs(f.Variance-want) > 1e-12 {
		t.Errorf("f variance = %v, want %v", f.Variance, want)
	}
	if g.Variance != 0 {
		t.Errorf("single-sample variance = %v, want 0", g.Variance)
	}
	if l.Variance != 0 {
		t.Errorf("zero-max variance = %v, want 0", l.Variance)
	}

	var sum float64
	for _, h := range p.Hotspots {
		if h.Importance < 0 || h.Importance > 1 {
			t.Errorf("%v importance %v out of [0,1]", h, h.Importance)
		}
		if topLevel(h) {
			sum += h.Importance
		}
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("sum of top-level importance = %v, want 1", sum)
	}
	if l.Importance != 0.5 {
		t.Errorf("loop importance = %v, want 0.5", l.Importance)
	}
	if m := p.Module("libm.so"); m.Importance != 0.4 {
		t.Errorf("libm.so importance = %v, want 0.4", m.Importance)
	}
}

func TestAggregateNoCycles(t *testing.T) {
	p := New("idle")
	f := p.AddProcedure("app", "a.c", "f", 1)
	f.Samples = []float64{10, 10}
	p.Aggregate()
	if f.Importance != 0 {
		t.Errorf("importance with zero profile cycles = %v, want 0", f.Importance)
	}
}

func TestImportanceBounds(t *testing.T) {
	for _, test := range []struct {
		cycles, total, want float64
	}{
		{50, 100, 0.5},
		{150, 100, 1},
		{-10, 100, 0},
		{math.NaN(), 100, 0},
		{10, 0, 0},
		{10, math.Inf(1), 0},
	} {
		if got := importance(test.cycles, test.total); got != test.want {
			t.Errorf("importance(%v, %v) = %v, want %v", test.cycles, test.total, got, test.want)
		}
	}
	if _, v := spread([]float64{-5, 10}); v != 1 {
		t.Errorf("spread of samples below zero = %v, want 1", v)
	}
}
