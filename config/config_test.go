// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/perfexpert/perfexpert/store"
)

const sample = `
arch = "haswell"
mode = "hybrid"
threshold = 0.05
order = "mixed"
workers = 8
run_id = 3

[report]
format = "html"
chart = "lcpi.png"

[constants]
CPU_freq = 2.6e9
mem_lat = 230
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		Arch:      "haswell",
		Mode:      store.Hybrid,
		Threshold: 0.05,
		Order:     "mixed",
		Workers:   8,
		Driver:    "sqlite3",
		DSN:       "perfexpert.db",
		RunID:     3,
		Report:    Report{Format: "html", Chart: "lcpi.png"},
		Constants: map[string]float64{"CPU_freq": 2.6e9, "mem_lat": 230},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Parse (-want +got):\n%s", diff)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if v, ok := c.MachineConstants().Lookup("mem_lat"); !ok || v != 230 {
		t.Errorf("mem_lat = %v, %v, want 230", v, ok)
	}
}

func TestParseErrors(t *testing.T) {
	for _, test := range []struct {
		src, want string
	}{
		{`bogus = 1`, "bogus"},
		{`mode = "sideways"`, "sideways"},
		{`threshold = "high"`, ""},
	} {
		_, err := Parse([]byte(test.src))
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("Parse(%q) error = %v, want mention of %q", test.src, err, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	for _, test := range []struct {
		name string
		edit func(c *Config)
		ok   bool
	}{
		{"default", func(c *Config) {}, true},
		{"alias", func(c *Config) { c.Arch = "sandybridge" }, true},
		{"unknown arch", func(c *Config) { c.Arch = "z80" }, false},
		{"catalog file", func(c *Config) { c.Arch = "z80"; c.Catalog = "z80.lcpi" }, true},
		{"threshold", func(c *Config) { c.Threshold = 1.5 }, false},
		{"workers", func(c *Config) { c.Workers = -1 }, false},
		{"format", func(c *Config) { c.Report.Format = "pdf" }, false},
		{"constant", func(c *Config) { c.Constants = map[string]float64{"warp_lat": 1} }, false},
		{"bogus order", func(c *Config) { c.Order = "bogus" }, true},
	} {
		t.Run(test.name, func(t *testing.T) {
			c := Default()
			test.edit(c)
			if err := c.Validate(); (err == nil) != test.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, test.ok)
			}
		})
	}
}

func TestLoadWrite(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "lcpi.toml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Write(f); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("Load after Write (-want +got):\n%s", diff)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("Load of missing file succeeded")
	}
}
