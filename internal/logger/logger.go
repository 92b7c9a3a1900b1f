// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logger installs the logging backends of the commands.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

const (
	Format = "%{time:2006-01-02 15:04:05.000} [%{level:.4s}] %{shortfile} %{message}"

	rotationInterval = 24 * time.Hour
	maxAge           = 30 * 24 * time.Hour
)

// Level maps a -v verbosity to a log level: 0 logs warnings and
// errors, 1 adds notices, 2 adds progress and 3 or more adds debug
// output.
func Level(verbosity int) logging.Level {
	switch {
	case verbosity <= 0:
		return logging.WARNING
	case verbosity == 1:
		return logging.NOTICE
	case verbosity == 2:
		return logging.INFO
	}
	return logging.DEBUG
}

func backend(w io.Writer, level logging.Level) logging.LeveledBackend {
	b := logging.AddModuleLevel(
		logging.NewBackendFormatter(
			logging.NewLogBackend(w, "", 0),
			logging.MustStringFormatter(Format),
		),
	)
	b.SetLevel(level, "")
	return b
}

// Init logs to standard error at the level selected by verbosity.
// If file is not empty, the same records also go to file, rotated
// daily and kept for a month.
func Init(verbosity int, file string) error {
	level := Level(verbosity)
	backends := []logging.Backend{backend(os.Stderr, level)}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return errors.Wrap(err, "creating log directory")
		}
		w, err := rotatelogs.New(
			file+".%Y-%m-%d",
			rotatelogs.WithLinkName(file),
			rotatelogs.WithMaxAge(maxAge),
			rotatelogs.WithRotationTime(rotationInterval),
		)
		if err != nil {
			return errors.Wrapf(err, "opening log file %s", file)
		}
		backends = append(backends, backend(w, level))
	}
	logging.SetBackend(backends...)
	return nil
}
