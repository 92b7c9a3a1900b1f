// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the settings of an LCPI analysis.
//
// Settings come from an optional TOML file:
//
//	arch = "haswell"
//	mode = "hybrid"
//	threshold = 0.05
//	order = "mixed"
//	workers = 8
//	driver = "sqlite3"
//	dsn = "perfexpert.db"
//	run_id = 1
//
//	[report]
//	format = "text"
//	output = "report.txt"
//
//	[constants]
//	CPU_freq = 2.6e9
//	mem_lat = 230
//
// Command-line flags override the file.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/perfexpert/perfexpert/catalog"
	"github.com/perfexpert/perfexpert/profile"
	"github.com/perfexpert/perfexpert/store"
	"github.com/pkg/errors"
)

// Config is the configuration of an analysis run.
type Config struct {
	// Arch names the micro-architecture whose catalog is used.
	Arch string `toml:"arch"`
	// Catalog, if set, is a file of "name = formula" lines used
	// instead of the built-in catalog of Arch.
	Catalog string `toml:"catalog,omitempty"`
	Mode    store.Mode `toml:"mode"`
	// Threshold is the minimum importance of a reported hotspot.
	Threshold float64 `toml:"threshold"`
	Order     string  `toml:"order"`
	// Workers is the number of derivation workers; 0 means one
	// per CPU.
	Workers int `toml:"workers"`

	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
	RunID  int64  `toml:"run_id"`

	// Cycles and Instructions override the counters the catalog
	// uses for hotspot cycles and instructions.
	Cycles       string `toml:"cycles,omitempty"`
	Instructions string `toml:"instructions,omitempty"`

	Report Report `toml:"report"`

	// Constants override the machine constants stored for Arch.
	Constants map[string]float64 `toml:"constants,omitempty"`
}

// Report configures the report output.
type Report struct {
	// Format is "text" or "html".
	Format string `toml:"format"`
	// Output is the report file; empty means standard output.
	Output string `toml:"output,omitempty"`
	// Chart, if set, is the PNG file the overall LCPI chart of
	// each profile is written to. Multiple profiles get their name
	// inserted before the extension.
	Chart string `toml:"chart,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Arch:      "papi",
		Mode:      store.Serial,
		Threshold: 0.1,
		Order:     "relevance",
		Driver:    "sqlite3",
		DSN:       "perfexpert.db",
		Report:    Report{Format: "text"},
	}
}

// Load reads a configuration file on top of the defaults. Unknown
// keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading configuration")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return c, nil
}

// Parse parses TOML configuration data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return nil, errors.New(serr.String())
		}
		return nil, err
	}
	return c, nil
}

// Write writes c to w as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate reports the first invalid setting of c.
//
// An unknown sort order is not an error: ranking warns about it and
// keeps the ingestion order.
func (c *Config) Validate() error {
	if c.Catalog == "" {
		if _, err := catalog.Lookup(c.Arch); err != nil {
			return err
		}
	}
	switch {
	case c.Threshold < 0 || c.Threshold > 1:
		return errors.Errorf("threshold %v out of range [0, 1]", c.Threshold)
	case c.Workers < 0:
		return errors.Errorf("negative number of workers %d", c.Workers)
	case c.Driver == "":
		return errors.New("no database driver")
	}
	switch c.Report.Format {
	case "text", "html":
	default:
		return errors.Errorf("unknown report format %q", c.Report.Format)
	}
	for name := range c.Constants {
		if !catalog.IsConstant(name) {
			return errors.Errorf("unknown machine constant %s", name)
		}
	}
	return nil
}

// MachineConstants returns the constant overrides of c as a table.
func (c *Config) MachineConstants() profile.Constants {
	t := make(profile.Constants, len(c.Constants))
	for name, v := range c.Constants {
		t.Set(name, v)
	}
	return t
}
