// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eventfmt reads and writes the PerfExpert raw event format.
//
// An event file is a sequence of configuration lines and sample
// lines. A configuration line has the form "key: value" and sets key
// for every following sample, until the key is set again; an empty
// value clears it. The keys are
//
//	profile     name of the profiled run
//	module      binary image of the following hotspots
//	file        source file of the following hotspots
//	rank        MPI rank, default 0
//	thread      thread id, default 0
//	experiment  repetition number, default 0
//
// Other keys are ignored. A sample line names a hotspot and lists
// counter values as "value COUNTER" pairs:
//
//	Procedure <name> <line> <value> <counter> ...
//	Loop <parent> <line> <value> <counter> ...
//	Program <value> <counter> ...
//
// The parent of a loop is its enclosing procedure, or the full name
// of its enclosing loop. Blank lines and lines starting with '#' are
// ignored.
package eventfmt

import (
	"github.com/perfexpert/perfexpert/profile"
)

// A Value is one counter reading of a sample.
type Value struct {
	Value   float64
	Counter string
}

// A Sample is the counter readings of one hotspot, as read from one
// sample line, together with the configuration in effect.
type Sample struct {
	Profile string
	Module  string
	File    string

	Kind profile.Kind
	// Name is the procedure name of a procedure, the parent name
	// of a loop, and empty for the program.
	Name string
	Line int

	Rank, Thread, Experiment int

	Values []Value

	fileName string
	line     int
}

// Pos returns the file name and line number of the sample line.
func (s *Sample) Pos() (fileName string, line int) {
	return s.fileName, s.line
}

// Clone makes a copy of s that does not share its values slice.
func (s *Sample) Clone() *Sample {
	s2 := *s
	s2.Values = append([]Value(nil), s.Values...)
	return &s2
}

// A Record is a single record read from an event file. It is either a
// *Sample or a *SyntaxError.
type Record interface {
	// Pos returns the position of this record as a file name and a
	// 1-based line number within that file. If this record was not read
	// from a file, it returns "", 0.
	Pos() (fileName string, line int)
}

var _ Record = (*Sample)(nil)
var _ Record = (*SyntaxError)(nil)
