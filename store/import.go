// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"

	"github.com/perfexpert/perfexpert/profile"
)

// Import loads the hotspots of run runID, one Profile per distinct
// profile name in order of first appearance.
//
// Hotspot cycles are the sum of the cycles counter over all samples;
// the instruction samples are the per-experiment sums of the
// instructions counter. Import aggregates each profile and writes the
// resulting importance back to the relevance column.
func (db *DB) Import(ctx context.Context, runID int64, cycles, instructions string) ([]*profile.Profile, error) {
	profiles, err := db.loadHotspots(ctx, runID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*profile.Hotspot)
	for _, p := range profiles {
		for _, h := range p.Hotspots {
			byID[h.ID] = h
		}
	}

	rows, err := db.sql.QueryContext(ctx,
		"SELECT hotspot_id, SUM(value) FROM perfexpert_event WHERE perfexpert_id = ? AND name = ? GROUP BY hotspot_id",
		runID, profile.Normalize(cycles))
	if err != nil {
		return nil, storeErr("import cycles", err)
	}
	err = scanEach(rows, func(id int64, v float64) {
		if h := byID[id]; h != nil {
			h.Cycles = v
		}
	}, nil)
	if err != nil {
		return nil, storeErr("import cycles", err)
	}

	rows, err = db.sql.QueryContext(ctx,
		"SELECT hotspot_id, experiment, SUM(value) FROM perfexpert_event WHERE perfexpert_id = ? AND name = ? "+
			"GROUP BY hotspot_id, experiment ORDER BY hotspot_id, experiment",
		runID, profile.Normalize(instructions))
	if err != nil {
		return nil, storeErr("import instructions", err)
	}
	var exp int
	err = scanEach(rows, func(id int64, v float64) {
		if h := byID[id]; h != nil {
			h.Samples = append(h.Samples, v)
		}
	}, &exp)
	if err != nil {
		return nil, storeErr("import instructions", err)
	}

	for _, p := range profiles {
		p.Aggregate()
		log.Infof("profile %s: %d hotspots, %.0f cycles", p.Name, len(p.Hotspots), p.Cycles)
	}
	if err := db.updateRelevance(ctx, runID, profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// scanEach scans (hotspot_id, [experiment,] value) rows and calls f
// for each. If exp is non-nil the experiment column is present.
func scanEach(rows *sql.Rows, f func(id int64, v float64), exp *int) error {
	defer rows.Close()
	for rows.Next() {
		var id int64
		var v float64
		var err error
		if exp != nil {
			err = rows.Scan(&id, exp, &v)
		} else {
			err = rows.Scan(&id, &v)
		}
		if err != nil {
			return err
		}
		f(id, v)
	}
	return rows.Err()
}

func (db *DB) loadHotspots(ctx context.Context, runID int64) ([]*profile.Profile, error) {
	rows, err := db.sql.QueryContext(ctx,
		"SELECT id, name, type, profile, module, file, line, depth, procedure_id FROM perfexpert_hotspot "+
			"WHERE perfexpert_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, storeErr("import hotspots", err)
	}
	defer rows.Close()

	var profiles []*profile.Profile
	byName := make(map[string]*profile.Profile)
	procOf := make(map[*profile.Hotspot]int64)
	for rows.Next() {
		var (
			id                   int64
			name, pname          string
			kind                 int
			module, file         sql.NullString
			line, depth, procRef sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &kind, &pname, &module, &file, &line, &depth, &procRef); err != nil {
			return nil, storeErr("import hotspots", err)
		}
		p := byName[pname]
		if p == nil {
			p = profile.New(pname)
			byName[pname] = p
			profiles = append(profiles, p)
		}
		h := &profile.Hotspot{
			ID:    id,
			Name:  name,
			Kind:  profile.Kind(kind),
			File:  file.String,
			Line:  int(line.Int64),
			Depth: int(depth.Int64),
		}
		if module.Valid && module.String != "" {
			h.Module = p.Module(module.String)
		}
		if _, err := p.Insert(h); err != nil {
			return nil, storeErr("import hotspots", err)
		}
		if procRef.Valid {
			procOf[h] = procRef.Int64
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("import hotspots", err)
	}
	for _, p := range profiles {
		for _, h := range p.Hotspots {
			if id, ok := procOf[h]; ok {
				h.Procedure = p.Find(id)
			}
		}
	}
	return profiles, nil
}

func (db *DB) updateRelevance(ctx context.Context, runID int64, profiles []*profile.Profile) error {
	return db.withTx(ctx, "update relevance", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			"UPDATE perfexpert_hotspot SET cycles = ?, instructions = ?, relevance = ?, variance = ? "+
				"WHERE perfexpert_id = ? AND id = ?")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range profiles {
			for _, h := range p.Hotspots {
				if _, err := stmt.ExecContext(ctx, h.Cycles, h.Instructions, h.Importance, h.Variance, runID, h.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
