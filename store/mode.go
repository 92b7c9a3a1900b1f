// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"fmt"
	"strings"
)

// A Mode selects how raw events of different MPI ranks and threads
// are combined.
type Mode int

const (
	// Serial sums events over all ranks and threads and derives
	// metrics for (0, 0) only.
	Serial Mode = iota
	// Parallel derives metrics per rank, summing over threads.
	Parallel
	// Hybrid derives metrics per rank and thread.
	Hybrid
)

func (m Mode) String() string {
	switch m {
	case Serial:
		return "serial"
	case Parallel:
		return "parallel"
	case Hybrid:
		return "hybrid"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "serial", "aggregate", "":
		return Serial, nil
	case "parallel", "mpi":
		return Parallel, nil
	case "hybrid", "omp", "mpi+omp":
		return Hybrid, nil
	}
	return Serial, fmt.Errorf("unknown output mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Pairs returns the (rank, thread) pairs derived in mode m for a run
// with the given numbers of ranks and threads.
func (m Mode) Pairs(ranks, threads int) [][2]int {
	switch m {
	case Parallel:
		ps := make([][2]int, 0, ranks)
		for r := 0; r < ranks; r++ {
			ps = append(ps, [2]int{r, 0})
		}
		return ps
	case Hybrid:
		ps := make([][2]int, 0, ranks*threads)
		for r := 0; r < ranks; r++ {
			for t := 0; t < threads; t++ {
				ps = append(ps, [2]int{r, t})
			}
		}
		return ps
	}
	return [][2]int{{0, 0}}
}
