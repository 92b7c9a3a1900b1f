// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package profile

import (
	"math"

	"github.com/aclements/go-moremath/stats"
)

// Aggregate recomputes the derived statistics of p from the raw
// cycle totals and instruction samples of its hotspots.
//
// For every hotspot with samples, Instructions becomes the mean of
// the samples and Variance their relative spread (max-min)/max.
// Cycles and instructions of top-level hotspots roll up to their
// module and to the profile. Loops nested in a procedure and the
// whole-program pseudo-hotspot are already accounted for by their
// procedure and do not roll up again. Finally every hotspot and
// module gets Importance = cycles / profile cycles, or 0 when the
// profile has no cycles.
func (p *Profile) Aggregate() {
	p.Cycles, p.Instructions = 0, 0
	for _, m := range p.modules {
		m.Cycles, m.Instructions = 0, 0
	}
	for _, h := range p.Hotspots {
		if len(h.Samples) > 0 {
			h.Instructions, h.Variance = spread(h.Samples)
		}
		if !topLevel(h) {
			continue
		}
		if h.Module != nil {
			h.Module.Cycles += h.Cycles
			h.Module.Instructions += h.Instructions
		}
		p.Cycles += h.Cycles
		p.Instructions += h.Instructions
	}
	for _, h := range p.Hotspots {
		h.Importance = importance(h.Cycles, p.Cycles)
	}
	for _, m := range p.modules {
		m.Importance = importance(m.Cycles, p.Cycles)
	}
}

// topLevel reports whether h's cycles are not already counted by an
// enclosing hotspot.
func topLevel(h *Hotspot) bool {
	switch h.Kind {
	case Procedure:
		return true
	case Loop:
		return h.Procedure == nil
	}
	return false
}

// spread returns the mean and the relative spread of samples.
func spread(samples []float64) (mean, variance float64) {
	s := stats.Sample{Xs: samples}
	mean = s.Mean()
	if len(samples) < 2 {
		return mean, 0
	}
	lo, hi := s.Bounds()
	if hi <= 0 {
		return mean, 0
	}
	return mean, clamp((hi-lo)/hi, 0, 1)
}

func importance(cycles, total float64) float64 {
	if total <= 0 || math.IsInf(total, 0) || math.IsNaN(cycles) {
		return 0
	}
	return clamp(cycles/total, 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
