// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Lcpi derives LCPI (local cycles per instruction) metrics for the
// hotspots of a profiled run and reports the hotspots that take most
// of the runtime.
//
// Usage:
//
//	lcpi [flags] [events...]
//
// If event files are given, their samples are first stored as run
// -run, replacing anything stored under that id. Files named *.pb.gz,
// *.pb or *.pprof are read as pprof profiles, one profile each;
// anything else is read in the raw event format of package eventfmt. Lcpi then imports
// the run, derives every metric of the architecture's catalog for
// every hotspot, stores the metrics, ranks the hotspots and prints a
// report.
//
// Settings may also come from a TOML file given with -config; flags
// set on the command line override it. See package config for the
// file format.
//
// The -mode flag selects the (rank, thread) pairs metrics are derived
// and reported for: "serial" aggregates all of them, "parallel" keeps
// every pair of an MPI run, and "hybrid" does both.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/op/go-logging"
	"github.com/perfexpert/perfexpert/catalog"
	"github.com/perfexpert/perfexpert/config"
	"github.com/perfexpert/perfexpert/derive"
	"github.com/perfexpert/perfexpert/eventfmt"
	"github.com/perfexpert/perfexpert/internal/logger"
	"github.com/perfexpert/perfexpert/profile"
	"github.com/perfexpert/perfexpert/rank"
	"github.com/perfexpert/perfexpert/report"
	"github.com/perfexpert/perfexpert/store"
	_ "github.com/perfexpert/perfexpert/store/sqlite3"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("lcpi")

const usageText = `Usage of lcpi:
	lcpi [flags] [events...]
`

type flags struct {
	config    string
	arch      string
	catalog   string
	mode      store.Mode
	threshold float64
	order     string
	workers   int
	driver    string
	dsn       string
	run       int64
	format    string
	output    string
	chart     string
	stored    bool
	verbose   int
	log       string
}

func newFlagSet(f *flags, out io.Writer) *flag.FlagSet {
	def := config.Default()
	fs := flag.NewFlagSet("lcpi", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageText)
		fs.PrintDefaults()
	}
	fs.StringVar(&f.config, "config", "", "read settings from TOML `file`")
	fs.StringVar(&f.arch, "arch", def.Arch, "use the metric catalog of micro-architecture `name`")
	fs.StringVar(&f.catalog, "catalog", "", "read metric formulas from `file` instead of the built-in catalog")
	fs.TextVar(&f.mode, "mode", def.Mode, "derive and report for `mode`: serial, parallel or hybrid")
	fs.Float64Var(&f.threshold, "threshold", def.Threshold, "report hotspots taking at least `fraction` of the runtime")
	fs.StringVar(&f.order, "order", def.Order, "sort hotspots by `order`: "+strings.Join(rank.Orders(), ", "))
	fs.IntVar(&f.workers, "workers", def.Workers, "derive with `n` concurrent workers (0 means one per CPU)")
	fs.StringVar(&f.driver, "driver", def.Driver, "database `driver`: sqlite3 or mysql")
	fs.StringVar(&f.dsn, "dsn", def.DSN, "database `source` name")
	fs.Int64Var(&f.run, "run", def.RunID, "analyze the run with this `id`")
	fs.StringVar(&f.format, "format", def.Report.Format, "report `format`: text or html")
	fs.StringVar(&f.output, "o", "", "write the report to `file` instead of standard output")
	fs.StringVar(&f.chart, "chart", "", "write a PNG chart of the overall LCPI to `file`")
	fs.BoolVar(&f.stored, "stored", false, "report the metrics stored for the run instead of deriving them")
	fs.IntVar(&f.verbose, "v", 0, "log verbosity `level`, 0 to 3")
	fs.StringVar(&f.log, "log", "", "also log to `file`, rotated daily")
	return fs
}

// settings merges the configuration file named by f with the flags
// set on the command line.
func settings(fs *flag.FlagSet, f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return nil, err
		}
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "arch":
			cfg.Arch = f.arch
		case "catalog":
			cfg.Catalog = f.catalog
		case "mode":
			cfg.Mode = f.mode
		case "threshold":
			cfg.Threshold = f.threshold
		case "order":
			cfg.Order = f.order
		case "workers":
			cfg.Workers = f.workers
		case "driver":
			cfg.Driver = f.driver
		case "dsn":
			cfg.DSN = f.dsn
		case "run":
			cfg.RunID = f.run
		case "format":
			cfg.Report.Format = f.format
		case "o":
			cfg.Report.Output = f.output
		case "chart":
			cfg.Report.Chart = f.chart
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := lcpi(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err == flag.ErrHelp {
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// lcpi runs the command with the given arguments, writing the report
// to w unless the configuration names an output file.
func lcpi(ctx context.Context, w, wErr io.Writer, args []string) error {
	var f flags
	fs := newFlagSet(&f, wErr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := logger.Init(f.verbose, f.log); err != nil {
		return err
	}
	cfg, err := settings(fs, &f)
	if err != nil {
		return err
	}

	db, err := store.OpenSQL(cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if fs.NArg() > 0 {
		if err := ingest(ctx, db, cfg.RunID, fs.Args()); err != nil {
			return err
		}
		// Constants given with new measurements become the stored
		// calibration of the architecture.
		if len(cfg.Constants) > 0 {
			if err := db.SetConstants(ctx, cfg.Arch, cfg.Constants); err != nil {
				return err
			}
		}
	}
	profiles, opts, err := analyze(ctx, db, cfg, f.stored)
	if err != nil {
		return err
	}
	if err := writeReport(w, cfg, profiles, opts); err != nil {
		return err
	}
	if cfg.Report.Chart != "" {
		return writeCharts(cfg.Report.Chart, profiles, opts)
	}
	return nil
}

// ingest stores the samples of the event files as run runID.
func ingest(ctx context.Context, db *store.DB, runID int64, files []string) error {
	run := eventfmt.NewRun()
	r := new(eventfmt.Reader)
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		if isPprof(name) {
			if err = run.ReadPprof(f, pprofName(name)); err != nil {
				err = errors.Wrapf(err, "%s", name)
			}
		} else {
			r.Reset(f, name)
			err = run.Collect(r)
		}
		f.Close()
		if err != nil {
			return err
		}
	}
	if len(run.Events) == 0 {
		return errors.New("no samples in input")
	}
	log.Noticef("storing %d profiles with %d events as run %d", len(run.Profiles), len(run.Events), runID)
	return db.Ingest(ctx, runID, run.Experiment, run.Profiles, run.Events)
}

var pprofExts = []string{".pb.gz", ".pb", ".pprof"}

// isPprof reports whether name looks like a pprof profile rather than
// an event file.
func isPprof(name string) bool {
	for _, ext := range pprofExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// pprofName returns the profile name of a pprof file: its base name
// without extension.
func pprofName(name string) string {
	base := filepath.Base(name)
	for _, ext := range pprofExts {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

// analyze imports run cfg.RunID, derives its metrics (or loads the
// stored ones) and ranks the hotspots.
func analyze(ctx context.Context, db *store.DB, cfg *config.Config, stored bool) ([]*profile.Profile, report.Options, error) {
	var opts report.Options
	cat, err := loadCatalog(ctx, db, cfg)
	if err != nil {
		return nil, opts, err
	}
	profiles, err := db.Import(ctx, cfg.RunID, cat.TotalCycles, cat.TotalInstructions)
	if err != nil {
		return nil, opts, err
	}
	if len(profiles) == 0 {
		return nil, opts, errors.Errorf("run %d has no hotspots", cfg.RunID)
	}

	consts, err := db.Constants(ctx, cfg.Arch)
	if err != nil {
		return nil, opts, err
	}
	for k, v := range cfg.MachineConstants() {
		consts[k] = v
	}

	if stored {
		if err := db.LoadMetrics(ctx, cfg.RunID, profiles); err != nil {
			return nil, opts, err
		}
	} else {
		s := &derive.Scheduler{
			DB:        db,
			Catalog:   cat,
			Constants: consts,
			Mode:      cfg.Mode,
			Workers:   cfg.Workers,
		}
		stats, err := s.Run(ctx, cfg.RunID, profiles)
		if err != nil {
			return nil, opts, err
		}
		log.Noticef("derived %d metrics in %d tasks (%d skipped, %d variables missing)",
			stats.Metrics, stats.Tasks, stats.Skipped, stats.Missing)
		if err := db.ExportMetrics(ctx, cfg.RunID, profiles); err != nil {
			return nil, opts, err
		}
	}

	// An unknown order keeps the ingestion order; SortAll has
	// already warned about it.
	_ = rank.SortAll(profiles, cfg.Order)

	ranks, threads, err := db.Tasks(ctx, cfg.RunID)
	if err != nil {
		return nil, opts, err
	}
	opts = report.Options{
		Threshold: cfg.Threshold,
		Mode:      cfg.Mode,
		Ranks:     ranks,
		Threads:   threads,
	}
	if v, ok := consts.Lookup("CPI_threshold"); ok {
		opts.CPIThreshold = v
	}
	if v, ok := consts.Lookup("CPU_freq"); ok {
		opts.MinCycles = v
	}
	return profiles, opts, nil
}

// loadCatalog returns the catalog file named by cfg, or the built-in
// catalog of cfg.Arch restricted to the counters recorded for the
// run.
func loadCatalog(ctx context.Context, db *store.DB, cfg *config.Config) (*catalog.Catalog, error) {
	var cat *catalog.Catalog
	if cfg.Catalog != "" {
		f, err := os.Open(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if cat, err = catalog.Load(f, cfg.Arch); err != nil {
			return nil, errors.Wrapf(err, "%s", cfg.Catalog)
		}
		if t, err := catalog.Lookup(cfg.Arch); err == nil {
			cat.TotalCycles, cat.TotalInstructions = t.Cycles, t.Instructions
		}
	} else {
		counters, err := db.Counters(ctx, cfg.RunID)
		if err != nil {
			return nil, err
		}
		if cat, err = catalog.Build(cfg.Arch, catalog.CounterSet(counters)); err != nil {
			return nil, err
		}
	}
	if cfg.Cycles != "" {
		cat.TotalCycles = cfg.Cycles
	}
	if cfg.Instructions != "" {
		cat.TotalInstructions = cfg.Instructions
	}
	if cat.TotalCycles == "" || cat.TotalInstructions == "" {
		return nil, errors.Errorf("no cycles and instructions counters known for %s", cfg.Arch)
	}
	log.Infof("catalog %s: %d metrics", cfg.Arch, cat.Len())
	return cat, nil
}

func writeReport(w io.Writer, cfg *config.Config, profiles []*profile.Profile, opts report.Options) (err error) {
	if cfg.Report.Output != "" {
		f, err := os.Create(cfg.Report.Output)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}
	if cfg.Report.Format == "html" {
		return report.HTML(w, profiles, opts)
	}
	return report.Text(w, profiles, opts)
}

// writeCharts writes one chart per profile. With several profiles,
// each file name gets the profile name inserted before the
// extension.
func writeCharts(name string, profiles []*profile.Profile, opts report.Options) error {
	for _, p := range profiles {
		file := name
		if len(profiles) > 1 {
			ext := filepath.Ext(name)
			file = strings.TrimSuffix(name, ext) + "-" + p.Name + ext
		}
		var buf bytes.Buffer
		if err := report.Chart(&buf, p, opts); err != nil {
			if errors.Is(err, report.ErrNothingToChart) {
				log.Warningf("profile %s: %v", p.Name, err)
				continue
			}
			return err
		}
		if err := os.WriteFile(file, buf.Bytes(), 0666); err != nil {
			return err
		}
	}
	return nil
}
