// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import "github.com/perfexpert/perfexpert/profile"

// ConstantNames lists the machine constants formulas may refer to.
// Latencies are in cycles; CPU_freq is in Hz. CPI_threshold is the
// cycles per instruction below which a hotspot is reported as fine.
var ConstantNames = []string{
	"CPU_freq",
	"L1_dlat",
	"L1_ilat",
	"L2_lat",
	"L2_dlat",
	"L3_lat",
	"mem_lat",
	"TLB_lat",
	"BR_lat",
	"BR_miss_lat",
	"FP_lat",
	"FP_slow_lat",
	"CPI_threshold",
}

var constantKeys = func() map[profile.Key]bool {
	m := make(map[profile.Key]bool)
	for _, n := range ConstantNames {
		m[profile.KeyOf(n)] = true
	}
	return m
}()

// IsConstant reports whether name is a machine constant.
func IsConstant(name string) bool {
	return constantKeys[profile.KeyOf(name)]
}
