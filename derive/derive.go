// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package derive computes the catalog metrics of every hotspot for
// every (rank, thread) pair of a run.
//
// Work is split into one task per (hotspot, rank, thread). Tasks run
// on a bounded pool of goroutines, each holding its own database
// connection for the duration of the task. Tasks of different pairs
// write disjoint entries of a hotspot's metric table, so the result
// does not depend on the number of workers.
package derive

import (
	"context"
	"runtime"
	"sync"

	"github.com/op/go-logging"
	"github.com/perfexpert/perfexpert/catalog"
	"github.com/perfexpert/perfexpert/profile"
	"github.com/perfexpert/perfexpert/store"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("derive")

// A Scheduler derives metrics for the hotspots of a run.
//
// Catalog and Constants must not be modified while Run executes.
type Scheduler struct {
	DB        *store.DB
	Catalog   *catalog.Catalog
	Constants profile.Constants
	Mode      store.Mode
	// Workers is the number of concurrent tasks and database
	// connections. If zero, GOMAXPROCS is used.
	Workers int
}

// Stats summarizes a Run.
type Stats struct {
	Tasks   int // (hotspot, rank, thread) tasks run
	Metrics int // metrics derived
	Skipped int // metrics skipped because a query failed
	Missing int // variables that resolved to zero
}

func (s *Stats) add(o Stats) {
	s.Tasks += o.Tasks
	s.Metrics += o.Metrics
	s.Skipped += o.Skipped
	s.Missing += o.Missing
}

type task struct {
	h            *profile.Hotspot
	rank, thread int
}

// Run derives every catalog metric for every hotspot of profiles and
// attaches the results to the hotspots.
//
// A variable of a formula is resolved from, in order: the metrics
// already derived for the same hotspot and pair, the machine
// constants, the raw events of the run, and finally zero. A failed
// event query skips only the metric being derived. Failing to open
// the worker connections fails the whole run.
func (s *Scheduler) Run(ctx context.Context, runID int64, profiles []*profile.Profile) (Stats, error) {
	var stats Stats
	ranks, threads, err := s.DB.Tasks(ctx, runID)
	if err != nil {
		return stats, err
	}
	pairs := s.Mode.Pairs(ranks, threads)
	var tasks []task
	for _, p := range profiles {
		for _, h := range p.Hotspots {
			for _, pr := range pairs {
				tasks = append(tasks, task{h, pr[0], pr[1]})
			}
		}
	}
	if len(tasks) == 0 {
		return stats, nil
	}

	n := s.Workers
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n > len(tasks) {
		n = len(tasks)
	}
	conns, err := s.open(ctx, runID, n)
	if err != nil {
		return stats, err
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	log.Infof("run %d: %d tasks (%d ranks, %d threads, %s) on %d workers",
		runID, len(tasks), ranks, threads, s.Mode, n)

	// A worker holds a connection for the duration of a task, so
	// the pool also bounds the number of running tasks.
	pool := make(chan *store.Conn, n)
	for _, c := range conns {
		pool <- c
	}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, t := range tasks {
		c := <-pool
		wg.Add(1)
		go func(t task, c *store.Conn) {
			defer wg.Done()
			st := s.derive(ctx, c, t)
			pool <- c
			mu.Lock()
			stats.add(st)
			mu.Unlock()
		}(t, c)
	}
	wg.Wait()
	return stats, nil
}

// open opens n connections, closing them all if any fails.
func (s *Scheduler) open(ctx context.Context, runID int64, n int) ([]*store.Conn, error) {
	conns := make([]*store.Conn, 0, n)
	for i := 0; i < n; i++ {
		c, err := s.DB.Conn(ctx, runID, s.Mode)
		if err != nil {
			for _, c := range conns {
				c.Close()
			}
			return nil, errors.Wrapf(err, "opening worker connection %d of %d", i+1, n)
		}
		conns = append(conns, c)
	}
	return conns, nil
}

type event struct {
	v  float64
	ok bool
}

func (s *Scheduler) derive(ctx context.Context, c *store.Conn, t task) Stats {
	st := Stats{Tasks: 1}
	cache := make(map[profile.Key]event)
	measured := catalog.SourceFunc(func(name string) (float64, bool, error) {
		k := profile.KeyOf(name)
		if e, ok := cache[k]; ok {
			return e.v, e.ok, nil
		}
		v, ok, err := c.Event(ctx, t.h.ID, name, t.rank, t.thread)
		if err != nil {
			return 0, false, err
		}
		cache[k] = event{v, ok}
		return v, ok, nil
	})
	sources := []catalog.Source{
		catalog.HotspotSource(t.h, t.rank, t.thread),
		catalog.ConstantSource(s.Constants),
		measured,
	}
	for _, e := range s.Catalog.Entries() {
		m, missing, err := e.Evaluate(t.rank, t.thread, sources...)
		if err != nil {
			log.Warningf("%s (%d,%d): skipping %s: %v", t.h.Name, t.rank, t.thread, e.Name, err)
			st.Skipped++
			continue
		}
		if len(missing) > 0 {
			log.Debugf("%s (%d,%d): %s: no value for %v", t.h.Name, t.rank, t.thread, e.Name, missing)
			st.Missing += len(missing)
		}
		t.h.Attach(m)
		st.Metrics++
	}
	return st
}
