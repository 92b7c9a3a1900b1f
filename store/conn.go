// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"

	"github.com/perfexpert/perfexpert/profile"
)

// A Conn is a dedicated database connection for reading the raw
// events of one run. A Conn must not be shared between goroutines;
// the derivation workers each open their own.
type Conn struct {
	conn  *sql.Conn
	event *sql.Stmt
	runID int64
	mode  Mode
}

// Conn opens a dedicated connection for reading the events of run
// runID combined according to mode.
func (db *DB) Conn(ctx context.Context, runID int64, mode Mode) (*Conn, error) {
	conn, err := db.sql.Conn(ctx)
	if err != nil {
		return nil, storeErr("open connection", err)
	}
	q := "SELECT SUM(value), COUNT(*) FROM perfexpert_event WHERE perfexpert_id = ? AND hotspot_id = ? AND name = ?"
	switch mode {
	case Parallel:
		q += " AND mpi_task = ?"
	case Hybrid:
		q += " AND mpi_task = ? AND thread_id = ?"
	}
	stmt, err := conn.PrepareContext(ctx, q)
	if err != nil {
		conn.Close()
		return nil, storeErr("open connection", err)
	}
	return &Conn{conn: conn, event: stmt, runID: runID, mode: mode}, nil
}

// Event returns the value of counter name for the hotspot and the
// (rank, thread) pair, summed over experiments and, depending on the
// mode, over ranks and threads. ok is false if no sample matches.
func (c *Conn) Event(ctx context.Context, hotspot int64, name string, rank, thread int) (v float64, ok bool, err error) {
	args := []interface{}{c.runID, hotspot, profile.Normalize(name)}
	switch c.mode {
	case Parallel:
		args = append(args, rank)
	case Hybrid:
		args = append(args, rank, thread)
	}
	var sum sql.NullFloat64
	var n int64
	if err := c.event.QueryRowContext(ctx, args...).Scan(&sum, &n); err != nil {
		return 0, false, storeErr("event "+name, err)
	}
	if n == 0 || !sum.Valid {
		return 0, false, nil
	}
	return sum.Float64, true, nil
}

// Close releases the connection back to the database.
func (c *Conn) Close() error {
	c.event.Close()
	return c.conn.Close()
}
