// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package profile models a profiled program as a set of modules,
// procedures and loops ("hotspots") carrying raw and derived counter
// values.
//
// A Profile is built single-threaded during ingestion. After that
// the hotspot graph is fixed and only the per-hotspot metric tables
// change, which is safe for concurrent use.
package profile

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when a hotspot id does not exist in a
// Profile.
var ErrNotFound = errors.New("hotspot not found")

// ErrDuplicateHotspot is returned by Insert when the id is taken.
var ErrDuplicateHotspot = errors.New("duplicate hotspot id")

// A Kind is the category of a Hotspot.
type Kind int

const (
	Unknown Kind = iota
	// Program is the pseudo-hotspot aggregating the whole program.
	Program
	Procedure
	Loop
)

var kindNames = []string{"unknown", "program", "procedure", "loop"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// A Module is a binary image (the executable or a shared library).
type Module struct {
	Name  string
	Short string // base name of Name
	Key   Key

	Cycles       float64
	Instructions float64
	Importance   float64
}

// A Metric is one value attached to a hotspot for one (rank, thread)
// pair. It is either a raw counter value or a derived metric.
type Metric struct {
	Name   string
	Key    Key
	Value  float64
	Rank   int
	Thread int
}

// NewMetric returns a Metric with its Key filled in.
func NewMetric(name string, value float64, rank, thread int) Metric {
	return Metric{Name: name, Key: KeyOf(name), Value: value, Rank: rank, Thread: thread}
}

type metricKey struct {
	name         Key
	rank, thread int
}

// A Hotspot is a profiled code location: a procedure, a loop, or the
// whole-program aggregate.
type Hotspot struct {
	ID    int64
	Name  string
	Key   Key
	Kind  Kind
	File  string
	Line  int
	Depth int // loop nesting depth; 0 for procedures

	Cycles       float64
	Instructions float64
	// Importance is the fraction of the profile's cycles spent in
	// this hotspot, in [0, 1] once Aggregate has run.
	Importance float64
	// Variance is the relative spread (max-min)/max of Samples. It
	// is a reliability signal, not a statistical variance.
	Variance float64
	// Samples holds the instruction count observed by each
	// experiment.
	Samples []float64

	Module *Module
	// Procedure is the enclosing procedure of a loop.
	Procedure *Hotspot

	mu      sync.RWMutex
	metrics map[metricKey]Metric
}

// Attach stores m in h, replacing any metric with the same name,
// rank and thread. It is safe to call concurrently.
func (h *Hotspot) Attach(m Metric) {
	if m.Key == 0 {
		m.Key = KeyOf(m.Name)
	}
	h.mu.Lock()
	if h.metrics == nil {
		h.metrics = make(map[metricKey]Metric)
	}
	h.metrics[metricKey{m.Key, m.Rank, m.Thread}] = m
	h.mu.Unlock()
}

// Lookup returns the value of the metric with the given key for the
// (rank, thread) pair.
func (h *Hotspot) Lookup(key Key, rank, thread int) (float64, bool) {
	h.mu.RLock()
	m, ok := h.metrics[metricKey{key, rank, thread}]
	h.mu.RUnlock()
	return m.Value, ok
}

// Metric returns the named metric for the (rank, thread) pair.
func (h *Hotspot) Metric(name string, rank, thread int) (Metric, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.metrics[metricKey{KeyOf(name), rank, thread}]
	return m, ok
}

// Value returns the value of the named metric for the (rank, thread)
// pair, or NaN if h has no such metric.
func (h *Hotspot) Value(name string, rank, thread int) float64 {
	if v, ok := h.Lookup(KeyOf(name), rank, thread); ok {
		return v
	}
	return math.NaN()
}

// Metrics returns all metrics of h ordered by name, rank and thread.
func (h *Hotspot) Metrics() []Metric {
	h.mu.RLock()
	ms := make([]Metric, 0, len(h.metrics))
	for _, m := range h.metrics {
		ms = append(ms, m)
	}
	h.mu.RUnlock()
	sort.Slice(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.Thread < b.Thread
	})
	return ms
}

// NumMetrics returns the number of metrics attached to h.
func (h *Hotspot) NumMetrics() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.metrics)
}

func (h *Hotspot) String() string {
	return fmt.Sprintf("%s %s (%s:%d)", h.Kind, h.Name, h.File, h.Line)
}

type procKey struct {
	module, name Key
}

// A Profile is one profiled run of a program.
type Profile struct {
	Name         string
	Cycles       float64
	Instructions float64

	// Hotspots lists every hotspot. Ingestion order is preserved
	// until the list is ranked.
	Hotspots []*Hotspot

	modules []*Module
	byMod   map[Key]*Module
	byID    map[int64]*Hotspot
	byName  map[Key]*Hotspot
	procs   map[procKey]*Hotspot
	loops   map[Key]*Hotspot
	program *Hotspot
	lastID  *int64 // highest id assigned so far
}

// New returns an empty Profile.
func New(name string) *Profile {
	return &Profile{
		Name:   name,
		byMod:  make(map[Key]*Module),
		byID:   make(map[int64]*Hotspot),
		byName: make(map[Key]*Hotspot),
		procs:  make(map[procKey]*Hotspot),
		loops:  make(map[Key]*Hotspot),
		lastID: new(int64),
	}
}

// ShareIDs makes p draw hotspot ids from the same sequence as q, so
// the hotspots of all profiles of one run have distinct ids. It must
// be called before any hotspot is added to p.
func (p *Profile) ShareIDs(q *Profile) {
	p.lastID = q.lastID
}

// Module returns the module called name, creating it if needed.
func (p *Profile) Module(name string) *Module {
	k := KeyOf(name)
	if m := p.byMod[k]; m != nil {
		return m
	}
	m := &Module{Name: name, Short: shortName(name), Key: k}
	p.byMod[k] = m
	p.modules = append(p.modules, m)
	return m
}

// Modules returns the profile's modules in creation order.
func (p *Profile) Modules() []*Module {
	return p.modules
}

// AddProcedure returns the procedure called name in module,
// creating it if this is the first sample seen for it.
func (p *Profile) AddProcedure(module, file, name string, line int) *Hotspot {
	mod := p.Module(module)
	pk := procKey{mod.Key, KeyOf(name)}
	if h := p.procs[pk]; h != nil {
		return h
	}
	h := &Hotspot{Name: name, Kind: Procedure, File: file, Line: line, Module: mod}
	p.mustInsert(h)
	p.procs[pk] = h
	return h
}

// AddLoop returns the loop starting at line inside parent, which is
// either the enclosing procedure or the enclosing loop. Loops are
// named after their parent: "<parent>_loop<line>" inside another
// loop and "<module>_<file>_<procedure>_loop<line>" for outermost
// loops. A loop that already exists under the same name is returned
// as is, so repeated samples of one loop share a hotspot.
func (p *Profile) AddLoop(parent *Hotspot, line int) *Hotspot {
	var name string
	h := &Hotspot{Kind: Loop, File: parent.File, Line: line, Module: parent.Module}
	if parent.Kind == Loop {
		name = fmt.Sprintf("%s_loop%d", parent.Name, line)
		h.Depth = parent.Depth + 1
		h.Procedure = parent.Procedure
	} else {
		var mod string
		if parent.Module != nil {
			mod = parent.Module.Short
		}
		name = fmt.Sprintf("%s_%s_%s_loop%d", mod, shortName(parent.File), parent.Name, line)
		h.Depth = 1
		h.Procedure = parent
	}
	k := KeyOf(name)
	if l := p.loops[k]; l != nil {
		return l
	}
	h.Name = name
	p.mustInsert(h)
	p.loops[k] = h
	return h
}

// AddProgram returns the whole-program pseudo-hotspot of module.
func (p *Profile) AddProgram(module string) *Hotspot {
	if p.program != nil {
		return p.program
	}
	mod := p.Module(module)
	h := &Hotspot{Name: mod.Short, Kind: Program, Module: mod}
	p.mustInsert(h)
	p.program = h
	return h
}

// Program returns the whole-program pseudo-hotspot, or nil.
func (p *Profile) Program() *Hotspot {
	return p.program
}

// Insert adds h to p and returns its id. If h.ID is zero, the next
// free id is assigned.
func (p *Profile) Insert(h *Hotspot) (int64, error) {
	if h.ID == 0 {
		h.ID = *p.lastID + 1
	}
	if _, ok := p.byID[h.ID]; ok {
		return 0, errors.Wrapf(ErrDuplicateHotspot, "id %d", h.ID)
	}
	if h.Key == 0 {
		h.Key = KeyOf(h.Name)
	}
	if h.ID > *p.lastID {
		*p.lastID = h.ID
	}
	p.byID[h.ID] = h
	if _, ok := p.byName[h.Key]; !ok {
		p.byName[h.Key] = h
	}
	switch h.Kind {
	case Procedure:
		var mk Key
		if h.Module != nil {
			mk = h.Module.Key
		}
		pk := procKey{mk, h.Key}
		if _, ok := p.procs[pk]; !ok {
			p.procs[pk] = h
		}
	case Loop:
		if _, ok := p.loops[h.Key]; !ok {
			p.loops[h.Key] = h
		}
	case Program:
		if p.program == nil {
			p.program = h
		}
	}
	p.Hotspots = append(p.Hotspots, h)
	return h.ID, nil
}

func (p *Profile) mustInsert(h *Hotspot) {
	if _, err := p.Insert(h); err != nil {
		// Ids are assigned by Insert, so this cannot collide.
		panic(err)
	}
}

// Find returns the hotspot with the given id, or nil.
func (p *Profile) Find(id int64) *Hotspot {
	return p.byID[id]
}

// FindName returns the first hotspot called name, or nil.
func (p *Profile) FindName(name string) *Hotspot {
	return p.byName[KeyOf(name)]
}

// FindProcedure returns the procedure called name in module, or nil.
func (p *Profile) FindProcedure(module, name string) *Hotspot {
	return p.procs[procKey{KeyOf(module), KeyOf(name)}]
}

// FindLoop returns the loop called name, or nil.
func (p *Profile) FindLoop(name string) *Hotspot {
	return p.loops[KeyOf(name)]
}

// AttachMetric attaches a metric to the hotspot with the given id.
func (p *Profile) AttachMetric(id int64, name string, value float64, rank, thread int) error {
	h := p.Find(id)
	if h == nil {
		return errors.Wrapf(ErrNotFound, "attach %s to hotspot %d", name, id)
	}
	h.Attach(NewMetric(name, value, rank, thread))
	return nil
}

// shortName returns the last path element of name, as the profiler
// reports full paths for modules and source files.
func shortName(name string) string {
	if name == "" {
		return ""
	}
	name = strings.TrimRight(name, "/")
	return filepath.Base(name)
}
