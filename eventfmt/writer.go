// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventfmt

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/perfexpert/perfexpert/profile"
	"github.com/pkg/errors"
)

// A Writer writes the raw event format.
type Writer struct {
	w   io.Writer
	buf bytes.Buffer

	first  bool
	config map[string]string
}

// NewWriter returns a writer that writes samples to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, first: true, config: make(map[string]string)}
}

var configKeys = []string{"profile", "module", "file", "rank", "thread", "experiment"}

func sampleConfig(s *Sample) map[string]string {
	c := map[string]string{
		"profile": s.Profile,
		"module":  s.Module,
		"file":    s.File,
	}
	if s.Rank != 0 {
		c["rank"] = strconv.Itoa(s.Rank)
	}
	if s.Thread != 0 {
		c["thread"] = strconv.Itoa(s.Thread)
	}
	if s.Experiment != 0 {
		c["experiment"] = strconv.Itoa(s.Experiment)
	}
	return c
}

// Write writes Record rec to w. If rec is a *Sample whose
// configuration differs from the current configuration of w, it first
// emits the changed configuration lines. Syntax errors are skipped.
func (w *Writer) Write(rec Record) error {
	switch rec := rec.(type) {
	case *Sample:
		if err := w.writeSample(rec); err != nil {
			return err
		}
	case *SyntaxError:
		return nil
	default:
		return errors.Errorf("unknown Record type %T", rec)
	}

	_, err := w.w.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

func (w *Writer) writeSample(s *Sample) error {
	if len(s.Values) == 0 {
		return errors.New("sample without measurements")
	}
	c := sampleConfig(s)
	changed := false
	for _, key := range configKeys {
		if c[key] != w.config[key] {
			changed = true
			break
		}
	}
	if changed {
		w.writeConfig(c)
	}

	switch s.Kind {
	case profile.Program:
		w.buf.WriteString("Program")
	case profile.Procedure:
		fmt.Fprintf(&w.buf, "Procedure %s %d", s.Name, s.Line)
	case profile.Loop:
		fmt.Fprintf(&w.buf, "Loop %s %d", s.Name, s.Line)
	default:
		w.buf.Reset()
		return errors.Errorf("cannot write hotspot of kind %v", s.Kind)
	}
	for _, v := range s.Values {
		fmt.Fprintf(&w.buf, " %v %s", v.Value, v.Counter)
	}
	w.buf.WriteByte('\n')
	w.first = false
	return nil
}

func (w *Writer) writeConfig(c map[string]string) {
	if !w.first {
		// Configuration blocks after samples get an extra blank.
		w.buf.WriteByte('\n')
		w.first = true
	}
	for _, key := range configKeys {
		if c[key] == w.config[key] {
			continue
		}
		if v := c[key]; v == "" {
			fmt.Fprintf(&w.buf, "%s:\n", key)
			delete(w.config, key)
		} else {
			fmt.Fprintf(&w.buf, "%s: %s\n", key, v)
			w.config[key] = v
		}
	}
	w.buf.WriteByte('\n')
}
