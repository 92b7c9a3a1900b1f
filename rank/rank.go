// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rank orders the hotspots of a profile.
//
// Every order sorts ascending by a per-hotspot key. Hotspots whose
// key is NaN or infinite, including hotspots that lack the metric
// the key is computed from, sort after all finite keys. The sort is
// stable, so ties and non-finite keys keep their ingestion order.
package rank

import (
	"math"
	"sort"
	"strings"

	"github.com/op/go-logging"
	"github.com/perfexpert/perfexpert/profile"
)

var log = logging.MustGetLogger("rank")

// Overall is the name of the metric the performance and mixed orders
// sort by.
const Overall = "overall"

// A KeyFunc extracts the sort key of a hotspot.
type KeyFunc func(h *profile.Hotspot) float64

// ByRelevance keys hotspots by importance.
func ByRelevance(h *profile.Hotspot) float64 {
	return h.Importance
}

// ByPerformance keys hotspots by the overall LCPI of rank 0, thread 0.
func ByPerformance(h *profile.Hotspot) float64 {
	return h.Value(Overall, 0, 0)
}

// ByMixed keys hotspots by the overall LCPI weighted by importance.
func ByMixed(h *profile.Hotspot) float64 {
	return h.Value(Overall, 0, 0) * h.Importance
}

var orders = map[string]KeyFunc{
	"relevance":   ByRelevance,
	"performance": ByPerformance,
	"mixed":       ByMixed,
}

// Orders returns the names of the known orders.
func Orders() []string {
	names := make([]string, 0, len(orders))
	for name := range orders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// An UnknownOrderError reports an order name Parse does not
// recognize.
type UnknownOrderError struct {
	Name string
}

func (e *UnknownOrderError) Error() string {
	return "unknown sorting order " + e.Name + " (want " + strings.Join(Orders(), ", ") + ")"
}

// Parse returns the KeyFunc of the named order. An empty name returns
// a nil KeyFunc and no error, meaning "leave the order unchanged".
func Parse(name string) (KeyFunc, error) {
	if name == "" {
		return nil, nil
	}
	if f, ok := orders[strings.ToLower(name)]; ok {
		return f, nil
	}
	return nil, &UnknownOrderError{name}
}

// Less reports whether key a sorts before key b. It is a strict weak
// order over all float64 values: finite keys compare numerically and
// every non-finite key is equivalent to every other and greater than
// any finite key.
func Less(a, b float64) bool {
	fa, fb := finite(a), finite(b)
	if fa && fb {
		return a < b
	}
	return fa && !fb
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Sort sorts the hotspots of p by key. A nil key leaves p unchanged.
func Sort(p *profile.Profile, key KeyFunc) {
	if key == nil {
		return
	}
	keys := make(map[*profile.Hotspot]float64, len(p.Hotspots))
	for _, h := range p.Hotspots {
		keys[h] = key(h)
	}
	sort.SliceStable(p.Hotspots, func(i, j int) bool {
		return Less(keys[p.Hotspots[i]], keys[p.Hotspots[j]])
	})
}

// SortAll sorts every profile by the named order. An unknown order is
// logged as a warning and every profile is left in ingestion order;
// the error is also returned so callers can surface it.
func SortAll(profiles []*profile.Profile, order string) error {
	key, err := Parse(order)
	if err != nil {
		log.Warningf("%v, hotspots will not be sorted", err)
		return err
	}
	for _, p := range profiles {
		log.Debugf("sorting %s by %s", p.Name, order)
		Sort(p, key)
	}
	return nil
}
