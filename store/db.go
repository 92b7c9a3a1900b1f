// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store persists profiles, raw counter events and derived
// metrics in a SQL database.
//
// Every table is scoped by a run id (the perfexpert_id column) so one
// database can hold many runs.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"text/template"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("store")

// DB is a high-level interface to a PerfExpert database. It's safe
// for concurrent use by multiple goroutines.
type DB struct {
	sql    *sql.DB // underlying database connection
	driver string
}

// An Error reports a failed database operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// OpenSQL creates a DB backed by a SQL database. The parameters are
// the same as the parameters for sql.Open. Only mysql and sqlite3 are
// explicitly supported; other database engines will receive MySQL
// query syntax which may or may not be compatible.
func OpenSQL(driverName, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, storeErr("open", err)
	}
	if hook := openHooks[driverName]; hook != nil {
		if err := hook(db); err != nil {
			db.Close()
			return nil, storeErr("open", err)
		}
	}
	d := &DB{sql: db, driver: driverName}
	if err := d.createTables(driverName); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

var openHooks = make(map[string]func(*sql.DB) error)

// RegisterOpenHook registers a hook to be called after opening a connection to driverName.
// This is used by the sqlite3 package to register a ConnectHook.
// It must be called from an init function.
func RegisterOpenHook(driverName string, hook func(*sql.DB) error) {
	openHooks[driverName] = hook
}

// createTmpl is the template used to prepare the CREATE statements
// for the database. It is evaluated with . as a map containing one
// entry whose key is the driver name.
var createTmpl = template.Must(template.New("create").Parse(`
CREATE TABLE IF NOT EXISTS perfexpert_experiment (
	perfexpert_id BIGINT NOT NULL,
	threads INTEGER NOT NULL DEFAULT 0,
	mpi_tasks INTEGER NOT NULL DEFAULT 0,
	experiments INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (perfexpert_id)
);
CREATE TABLE IF NOT EXISTS perfexpert_hotspot (
	perfexpert_id BIGINT NOT NULL,
	id BIGINT NOT NULL,
	name VARCHAR(255) NOT NULL,
	type INTEGER NOT NULL,
	profile VARCHAR(255) NOT NULL,
	module VARCHAR(1024),
	file VARCHAR(1024),
	line INTEGER,
	depth INTEGER,
	procedure_id BIGINT,
	cycles DOUBLE,
	instructions DOUBLE,
	relevance DOUBLE,
	variance DOUBLE,
	PRIMARY KEY (perfexpert_id, id)
);
CREATE TABLE IF NOT EXISTS perfexpert_event (
	perfexpert_id BIGINT NOT NULL,
	hotspot_id BIGINT NOT NULL,
	name VARCHAR(255) NOT NULL,
	mpi_task INTEGER NOT NULL DEFAULT 0,
	thread_id INTEGER NOT NULL DEFAULT 0,
	experiment INTEGER NOT NULL DEFAULT 0,
	value DOUBLE NOT NULL{{if not .sqlite3}},
	INDEX (perfexpert_id, hotspot_id, name(100)){{end}}
);
{{if .sqlite3}}
CREATE INDEX IF NOT EXISTS perfexpert_event_lookup ON perfexpert_event(perfexpert_id, hotspot_id, name);
{{end}}
CREATE TABLE IF NOT EXISTS lcpi_metric (
	perfexpert_id BIGINT NOT NULL,
	hotspot_id BIGINT NOT NULL,
	name VARCHAR(255) NOT NULL,
	mpi_task INTEGER NOT NULL DEFAULT 0,
	thread_id INTEGER NOT NULL DEFAULT 0,
	value DOUBLE,
	PRIMARY KEY (perfexpert_id, hotspot_id, name, mpi_task, thread_id)
);
CREATE TABLE IF NOT EXISTS machine_constant (
	arch VARCHAR(64) NOT NULL,
	name VARCHAR(64) NOT NULL,
	value DOUBLE NOT NULL,
	PRIMARY KEY (arch, name)
);
`))

// createTables creates any missing tables on the connection in
// db.sql. driverName is the same driver name passed to sql.Open and
// is used to select the correct syntax.
func (db *DB) createTables(driverName string) error {
	var buf bytes.Buffer
	if err := createTmpl.Execute(&buf, map[string]bool{driverName: true}); err != nil {
		return err
	}
	for _, q := range strings.Split(buf.String(), ";") {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if _, err := db.sql.Exec(q); err != nil {
			return storeErr("create table", err)
		}
	}
	return nil
}

// Close closes the database connections, releasing any open resources.
func (db *DB) Close() error {
	return db.sql.Close()
}

// An execer is a *sql.Tx or *sql.Conn.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// insertRows inserts rows into table with multi-row INSERT
// statements. Each row must have len(cols) values.
func insertRows(ctx context.Context, ex execer, table string, cols []string, rows [][]interface{}) error {
	// SQLite limits a statement to 999 parameters.
	per := 999 / len(cols)
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))
	for len(rows) > 0 {
		n := len(rows)
		if n > per {
			n = per
		}
		query := prefix + strings.TrimSuffix(strings.Repeat(tuple+", ", n), ", ")
		args := make([]interface{}, 0, n*len(cols))
		for _, r := range rows[:n] {
			args = append(args, r...)
		}
		if _, err := ex.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrapf(err, "insert into %s", table)
		}
		rows = rows[n:]
	}
	return nil
}

// withTx runs f in a transaction, committing if f succeeds and rolling
// back otherwise.
func (db *DB) withTx(ctx context.Context, op string, f func(tx *sql.Tx) error) (err error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return storeErr(op, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = storeErr(op, tx.Commit())
		}
	}()
	if err := f(tx); err != nil {
		return storeErr(op, err)
	}
	return nil
}
