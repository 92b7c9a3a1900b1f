// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqlite3 provides the sqlite3 driver for
// perfexpert/store. It must be imported instead of go-sqlite3 to
// ensure foreign keys and the write-ahead log are enabled on every
// connection.
package sqlite3

import (
	"database/sql"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/perfexpert/perfexpert/store"
)

func init() {
	store.RegisterOpenHook("sqlite3", func(db *sql.DB) error {
		db.Driver().(*sqlite3.SQLiteDriver).ConnectHook = func(c *sqlite3.SQLiteConn) error {
			// Workers read concurrently on separate connections.
			for _, pragma := range []string{
				"PRAGMA foreign_keys = ON;",
				"PRAGMA journal_mode = WAL;",
				"PRAGMA busy_timeout = 5000;",
			} {
				if _, err := c.Exec(pragma, nil); err != nil {
					return err
				}
			}
			return nil
		}
		return nil
	})
}
