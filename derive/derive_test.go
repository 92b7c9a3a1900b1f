// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package derive

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/perfexpert/perfexpert/catalog"
	"github.com/perfexpert/perfexpert/profile"
	"github.com/perfexpert/perfexpert/store"
	"github.com/perfexpert/perfexpert/store/storetest"
)

const runID = 7

// setup ingests a run with two ranks of two threads and returns the
// imported profiles. Every hotspot measures CYC and INS; rank r thread
// t of hotspot i sees CYC = 100*(i+1)*(r+1) and INS = 10*(t+1).
func setup(t *testing.T, db *store.DB) []*profile.Profile {
	t.Helper()
	ctx := context.Background()
	p := profile.New("app")
	f := p.AddProcedure("app", "main.c", "main", 1)
	g := p.AddProcedure("app", "main.c", "kernel", 40)
	l := p.AddLoop(g, 44)
	var events []store.Event
	for i, h := range []*profile.Hotspot{f, g, l} {
		for r := 0; r < 2; r++ {
			for th := 0; th < 2; th++ {
				events = append(events,
					store.Event{Hotspot: h.ID, Name: "CYC", Value: float64(100 * (i + 1) * (r + 1)), Rank: r, Thread: th},
					store.Event{Hotspot: h.ID, Name: "INS", Value: float64(10 * (th + 1)), Rank: r, Thread: th})
			}
		}
	}
	exp := store.Experiment{Ranks: 2, Threads: 2, Experiments: 1}
	if err := db.Ingest(ctx, runID, exp, []*profile.Profile{p}, events); err != nil {
		t.Fatal(err)
	}
	profiles, err := db.Import(ctx, runID, "CYC", "INS")
	if err != nil {
		t.Fatal(err)
	}
	return profiles
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New("test")
	for _, def := range [][2]string{
		{"overall", "CYC / INS"},
		{"scaled", "overall * 2 + L1_dlat"},
		{"absent", "CYC * NO_SUCH_COUNTER"},
	} {
		if err := c.Add(def[0], def[1]); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

type tuple struct {
	Hotspot      string
	Name         string
	Value        float64
	Rank, Thread int
}

func tuples(profiles []*profile.Profile) []tuple {
	var ts []tuple
	for _, p := range profiles {
		for _, h := range p.Hotspots {
			for _, m := range h.Metrics() {
				ts = append(ts, tuple{h.Name, m.Name, m.Value, m.Rank, m.Thread})
			}
		}
	}
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if a.Hotspot != b.Hotspot {
			return a.Hotspot < b.Hotspot
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.Thread < b.Thread
	})
	return ts
}

func TestRunHybrid(t *testing.T) {
	db, cleanup := storetest.NewDB(t)
	defer cleanup()
	profiles := setup(t, db)

	consts := profile.Constants{}
	consts.Set("L1_dlat", 4)
	s := &Scheduler{DB: db, Catalog: testCatalog(t), Constants: consts, Mode: store.Hybrid, Workers: 3}
	stats, err := s.Run(context.Background(), runID, profiles)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{Tasks: 12, Metrics: 36, Missing: 12}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	kernel := profiles[0].FindName("kernel")
	for _, test := range []struct {
		name         string
		rank, thread int
		want         float64
	}{
		{"overall", 0, 0, 20},  // 200 / 10
		{"overall", 1, 1, 20},  // 400 / 20
		{"overall", 0, 1, 10},  // 200 / 20
		{"scaled", 1, 0, 84},   // 400 / 10 * 2 + 4
		{"absent", 1, 1, 0},
	} {
		if got := kernel.Value(test.name, test.rank, test.thread); got != test.want {
			t.Errorf("kernel %s (%d,%d) = %v, want %v", test.name, test.rank, test.thread, got, test.want)
		}
	}
}

func TestRunModes(t *testing.T) {
	db, cleanup := storetest.NewDB(t)
	defer cleanup()
	profiles := setup(t, db)
	ctx := context.Background()

	// main: CYC sums to 100+100+200+200 over all pairs, INS to 60.
	s := &Scheduler{DB: db, Catalog: testCatalog(t), Mode: store.Serial, Workers: 2}
	if _, err := s.Run(ctx, runID, profiles); err != nil {
		t.Fatal(err)
	}
	main := profiles[0].FindName("main")
	if got := main.Value("overall", 0, 0); got != 10 {
		t.Errorf("serial overall = %v, want 10", got)
	}
	if main.NumMetrics() != 3 {
		t.Errorf("serial run attached %d metrics, want 3", main.NumMetrics())
	}

	// Rank 1 of main: CYC 400, INS 30.
	s.Mode = store.Parallel
	if _, err := s.Run(ctx, runID, profiles); err != nil {
		t.Fatal(err)
	}
	if got, want := main.Value("overall", 1, 0), 400.0/30; got != want {
		t.Errorf("parallel overall rank 1 = %v, want %v", got, want)
	}
	if !math.IsNaN(main.Value("overall", 1, 1)) {
		t.Errorf("parallel run derived a per-thread metric")
	}
}

func TestRunWorkersAgree(t *testing.T) {
	db, cleanup := storetest.NewDB(t)
	defer cleanup()
	ctx := context.Background()
	setup(t, db)

	var results [][]tuple
	for _, workers := range []int{1, 5} {
		profiles, err := db.Import(ctx, runID, "CYC", "INS")
		if err != nil {
			t.Fatal(err)
		}
		s := &Scheduler{DB: db, Catalog: testCatalog(t), Constants: profile.Constants{}, Mode: store.Hybrid, Workers: workers}
		if _, err := s.Run(ctx, runID, profiles); err != nil {
			t.Fatal(err)
		}
		results = append(results, tuples(profiles))
	}
	if len(results[0]) != 36 {
		t.Errorf("derived %d metrics, want 36", len(results[0]))
	}
	if diff := cmp.Diff(results[0], results[1], cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("1 vs 5 workers (-1 +5):\n%s", diff)
	}
}

func TestRunClosedDB(t *testing.T) {
	db, cleanup := storetest.NewDB(t)
	profiles := setup(t, db)
	cleanup()

	s := &Scheduler{DB: db, Catalog: testCatalog(t), Mode: store.Serial}
	if _, err := s.Run(context.Background(), runID, profiles); err == nil {
		t.Fatal("Run on closed database succeeded")
	}
	if n := profiles[0].Hotspots[0].NumMetrics(); n != 0 {
		t.Errorf("failed run attached %d metrics", n)
	}
}
