// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"

	"github.com/perfexpert/perfexpert/profile"
)

// Experiment describes the shape of a run.
type Experiment struct {
	Ranks       int // number of MPI ranks
	Threads     int // number of threads per rank
	Experiments int // number of repeated measurements
}

// An Event is one raw counter sample of a hotspot.
type Event struct {
	Hotspot    int64
	Name       string
	Value      float64
	Rank       int
	Thread     int
	Experiment int
}

// Ingest stores the hotspots of profiles and their raw events as run
// runID, replacing anything previously stored under that id,
// derived metrics included. Counter names are stored normalized.
// Everything is written in a single transaction.
func (db *DB) Ingest(ctx context.Context, runID int64, exp Experiment, profiles []*profile.Profile, events []Event) error {
	return db.withTx(ctx, "ingest", func(tx *sql.Tx) error {
		for _, table := range []string{"lcpi_metric", "perfexpert_event", "perfexpert_hotspot", "perfexpert_experiment"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE perfexpert_id = ?", runID); err != nil {
				return err
			}
		}
		// The experiment table holds the highest rank and thread
		// ids, not their counts.
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO perfexpert_experiment (perfexpert_id, threads, mpi_tasks, experiments) VALUES (?, ?, ?, ?)",
			runID, atLeast1(exp.Threads)-1, atLeast1(exp.Ranks)-1, atLeast1(exp.Experiments)); err != nil {
			return err
		}

		var rows [][]interface{}
		for _, p := range profiles {
			for _, h := range p.Hotspots {
				var module string
				if h.Module != nil {
					module = h.Module.Name
				}
				var proc sql.NullInt64
				if h.Procedure != nil {
					proc = sql.NullInt64{Int64: h.Procedure.ID, Valid: true}
				}
				rows = append(rows, []interface{}{
					runID, h.ID, h.Name, int(h.Kind), p.Name, module, h.File, h.Line, h.Depth, proc,
				})
			}
		}
		cols := []string{"perfexpert_id", "id", "name", "type", "profile", "module", "file", "line", "depth", "procedure_id"}
		if err := insertRows(ctx, tx, "perfexpert_hotspot", cols, rows); err != nil {
			return err
		}

		rows = rows[:0]
		for _, e := range events {
			rows = append(rows, []interface{}{
				runID, e.Hotspot, profile.Normalize(e.Name), e.Rank, e.Thread, e.Experiment, e.Value,
			})
		}
		cols = []string{"perfexpert_id", "hotspot_id", "name", "mpi_task", "thread_id", "experiment", "value"}
		if err := insertRows(ctx, tx, "perfexpert_event", cols, rows); err != nil {
			return err
		}
		log.Infof("run %d: stored %d events", runID, len(events))
		return nil
	})
}

func atLeast1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// SetConstants stores machine constants for arch, replacing existing
// values of the same names.
func (db *DB) SetConstants(ctx context.Context, arch string, values map[string]float64) error {
	return db.withTx(ctx, "set constants", func(tx *sql.Tx) error {
		// REPLACE is understood by both MySQL and SQLite.
		stmt, err := tx.PrepareContext(ctx, "REPLACE INTO machine_constant (arch, name, value) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for name, v := range values {
			if _, err := stmt.ExecContext(ctx, arch, name, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Constants returns the machine constants stored for arch.
func (db *DB) Constants(ctx context.Context, arch string) (profile.Constants, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT name, value FROM machine_constant WHERE arch = ?", arch)
	if err != nil {
		return nil, storeErr("constants", err)
	}
	defer rows.Close()
	c := profile.Constants{}
	for rows.Next() {
		var name string
		var v float64
		if err := rows.Scan(&name, &v); err != nil {
			return nil, storeErr("constants", err)
		}
		c.Set(name, v)
	}
	return c, storeErr("constants", rows.Err())
}

// Tasks returns the number of MPI ranks and threads of run runID.
// A run without an experiment record has one rank and one thread.
func (db *DB) Tasks(ctx context.Context, runID int64) (ranks, threads int, err error) {
	err = db.sql.QueryRowContext(ctx,
		"SELECT mpi_tasks, threads FROM perfexpert_experiment WHERE perfexpert_id = ?", runID).Scan(&ranks, &threads)
	if err == sql.ErrNoRows {
		return 1, 1, nil
	}
	if err != nil {
		return 0, 0, storeErr("tasks", err)
	}
	return ranks + 1, threads + 1, nil
}

// Counters returns the distinct normalized counter names recorded for
// run runID, sorted.
func (db *DB) Counters(ctx context.Context, runID int64) ([]string, error) {
	rows, err := db.sql.QueryContext(ctx,
		"SELECT DISTINCT name FROM perfexpert_event WHERE perfexpert_id = ? ORDER BY name", runID)
	if err != nil {
		return nil, storeErr("counters", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, storeErr("counters", err)
		}
		names = append(names, n)
	}
	return names, storeErr("counters", rows.Err())
}
