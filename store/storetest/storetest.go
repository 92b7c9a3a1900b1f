// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storetest opens throwaway databases for tests.
package storetest

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"flag"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/GoogleCloudPlatform/cloudsql-proxy/proxy/dialers/mysql"
	"github.com/perfexpert/perfexpert/store"
	_ "github.com/perfexpert/perfexpert/store/sqlite3"
)

var cloud = flag.Bool("cloud", false, "connect to Cloud SQL database instead of a temporary SQLite file")
var cloudsql = flag.String("cloudsql", "perfexpert:us-central1:perfexpert", "name of Cloud SQL instance to run tests on")

// createEmptyCloudDB makes a new, empty database for the test.
func createEmptyCloudDB(t *testing.T) (dsn string, cleanup func()) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		t.Fatal(err)
	}

	name := "perfexpert-test-" + base64.RawURLEncoding.EncodeToString(buf)

	prefix := fmt.Sprintf("root:@cloudsql(%s)/", *cloudsql)

	db, err := sql.Open("mysql", prefix)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE `%s`", name)); err != nil {
		db.Close()
		t.Fatal(err)
	}

	t.Logf("Using database %q", name)

	return prefix + name, func() {
		if _, err := db.Exec(fmt.Sprintf("DROP DATABASE `%s`", name)); err != nil {
			t.Error(err)
		}
		db.Close()
	}
}

// NewDB makes a connection to a testing database, either a SQLite
// file in a temporary directory or Cloud SQL depending on the -cloud
// flag. cleanup must be called when done with the testing database,
// instead of calling db.Close().
//
// An in-memory SQLite database cannot be used: every pooled
// connection would see its own empty database.
func NewDB(t *testing.T) (*store.DB, func()) {
	driverName := "sqlite3"
	dataSourceName := filepath.Join(t.TempDir(), "perfexpert.db") + "?_busy_timeout=5000"
	var cloudCleanup func()
	if *cloud {
		driverName = "mysql"
		dataSourceName, cloudCleanup = createEmptyCloudDB(t)
	}
	d, err := store.OpenSQL(driverName, dataSourceName)
	if err != nil {
		if cloudCleanup != nil {
			cloudCleanup()
		}
		t.Fatalf("open database: %v", err)
	}

	cleanup := func() {
		if cloudCleanup != nil {
			cloudCleanup()
		}
		d.Close()
	}
	return d, cleanup
}
