// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import "database/sql"

// SQL returns the underlying database for inspection in tests.
func (db *DB) SQL() *sql.DB {
	return db.sql
}
