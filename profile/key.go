// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package profile

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// A Key is the fixed-width hash of a normalized counter, metric or
// hotspot name.
//
// Vendor tools spell the same counter as "L2_RQSTS.CODE_RD_HIT",
// "L2_RQSTS:CODE_RD_HIT" or "L2_RQSTS_CODE_RD_HIT", so names are
// normalized before hashing and all three share a Key.
type Key uint64

// KeyOf returns the Key of name.
func KeyOf(name string) Key {
	return Key(xxhash.Sum64String(Normalize(name)))
}

// Normalize rewrites the separators '.' and ':' in name to '_'.
func Normalize(name string) string {
	if strings.IndexAny(name, ".:") < 0 {
		return name
	}
	return strings.Map(func(r rune) rune {
		if r == '.' || r == ':' {
			return '_'
		}
		return r
	}, name)
}

// Constants is a table of per-machine calibration constants such as
// cache and branch latencies. It is read-only once loaded and may be
// shared by any number of goroutines.
type Constants map[Key]float64

// Set records the value of the constant name.
func (c Constants) Set(name string, value float64) {
	c[KeyOf(name)] = value
}

// Lookup returns the value of the constant name.
func (c Constants) Lookup(name string) (float64, bool) {
	v, ok := c[KeyOf(name)]
	return v, ok
}

// Has reports whether name is a known constant.
func (c Constants) Has(name string) bool {
	_, ok := c[KeyOf(name)]
	return ok
}
