// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"math"

	"github.com/perfexpert/perfexpert/profile"
	"github.com/pkg/errors"
)

// ExportMetrics writes the metrics attached to the hotspots of
// profiles as the derived metrics of run runID, replacing earlier
// exports of the run. Non-finite values are stored as NULL.
func (db *DB) ExportMetrics(ctx context.Context, runID int64, profiles []*profile.Profile) error {
	return db.withTx(ctx, "export metrics", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM lcpi_metric WHERE perfexpert_id = ?", runID); err != nil {
			return err
		}
		var rows [][]interface{}
		for _, p := range profiles {
			for _, h := range p.Hotspots {
				for _, m := range h.Metrics() {
					var v sql.NullFloat64
					if !math.IsNaN(m.Value) && !math.IsInf(m.Value, 0) {
						v = sql.NullFloat64{Float64: m.Value, Valid: true}
					}
					rows = append(rows, []interface{}{runID, h.ID, m.Name, m.Rank, m.Thread, v})
				}
			}
		}
		cols := []string{"perfexpert_id", "hotspot_id", "name", "mpi_task", "thread_id", "value"}
		if err := insertRows(ctx, tx, "lcpi_metric", cols, rows); err != nil {
			return err
		}
		log.Infof("run %d: exported %d metrics", runID, len(rows))
		return nil
	})
}

// LoadMetrics attaches the derived metrics stored for run runID to the
// matching hotspots of profiles. NULL values load as NaN. A metric of
// a hotspot not present in profiles is an error wrapping
// profile.ErrNotFound.
func (db *DB) LoadMetrics(ctx context.Context, runID int64, profiles []*profile.Profile) error {
	rows, err := db.sql.QueryContext(ctx,
		"SELECT hotspot_id, name, mpi_task, thread_id, value FROM lcpi_metric WHERE perfexpert_id = ?", runID)
	if err != nil {
		return storeErr("load metrics", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id           int64
			name         string
			rank, thread int
			v            sql.NullFloat64
		)
		if err := rows.Scan(&id, &name, &rank, &thread, &v); err != nil {
			return storeErr("load metrics", err)
		}
		value := math.NaN()
		if v.Valid {
			value = v.Float64
		}
		if !attach(profiles, id, profile.NewMetric(name, value, rank, thread)) {
			return errors.Wrapf(profile.ErrNotFound, "load metric %s of hotspot %d", name, id)
		}
	}
	return storeErr("load metrics", rows.Err())
}

func attach(profiles []*profile.Profile, id int64, m profile.Metric) bool {
	for _, p := range profiles {
		if h := p.Find(id); h != nil {
			h.Attach(m)
			return true
		}
	}
	return false
}
