// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

// Tables for Intel Xeon cores, written against native counters.

const (
	intelCycles = "CPU_CLK_UNHALTED.THREAD_P"
	intelInst   = "INST_RETIRED.ANY_P"
)

// intelMemory holds the cache, TLB and branch metrics shared by
// Sandy Bridge and newer cores.
var intelMemory = []Def{
	{"ratio.data_accesses", []string{"MEM_UOPS_RETIRED.ALL_LOADS / INST_RETIRED.ANY_P"}},
	{"overall", []string{"CPU_CLK_UNHALTED.THREAD_P / INST_RETIRED.ANY_P"}},
	{"data_accesses.overall", []string{
		"((MEM_UOPS_RETIRED.ALL_LOADS * L1_dlat) + (L2_RQSTS.DEMAND_DATA_RD_HIT * L2_lat) + " +
			"(LONGEST_LAT_CACHE.REFERENCE * L3_lat) + LONGEST_LAT_CACHE.MISS * mem_lat) / INST_RETIRED.ANY_P",
	}},
	{"data_accesses.L1_cache_hits", []string{"(MEM_UOPS_RETIRED.ALL_LOADS * L1_dlat) / INST_RETIRED.ANY_P"}},
	{"data_accesses.L2_cache_hits", []string{"(L2_RQSTS.DEMAND_DATA_RD_HIT * L2_lat) / INST_RETIRED.ANY_P"}},
	{"data_accesses.L3_cache_hits", []string{"(LONGEST_LAT_CACHE.REFERENCE * L3_lat) / INST_RETIRED.ANY_P"}},
	{"data_accesses.LLC_misses", []string{"(LONGEST_LAT_CACHE.MISS * mem_lat) / INST_RETIRED.ANY_P"}},
	{"instruction_accesses.overall", []string{
		"((ICACHE.MISSES * L1_ilat) + (L2_RQSTS.CODE_RD_HIT * L2_lat) + " +
			"(L2_RQSTS.CODE_RD_MISS * mem_lat)) / INST_RETIRED.ANY_P",
	}},
	{"instruction_accesses.L1_hits", []string{"(ICACHE.MISSES * L1_ilat) / INST_RETIRED.ANY_P"}},
	{"instruction_accesses.L2_hits", []string{"(L2_RQSTS.CODE_RD_HIT * L2_lat) / INST_RETIRED.ANY_P"}},
	{"instruction_accesses.L2_misses", []string{"(L2_RQSTS.CODE_RD_MISS * mem_lat) / INST_RETIRED.ANY_P"}},
	{"data_TLB.overall", []string{"DTLB_LOAD_MISSES.WALK_DURATION / INST_RETIRED.ANY_P"}},
	{"instruction_TLB.overall", []string{"ITLB_MISSES.WALK_DURATION / INST_RETIRED.ANY_P"}},
	{"branch_instructions.overall", []string{
		"((BR_INST_RETIRED.ALL_BRANCHES * BR_lat) + (BR_MISP_RETIRED.ALL_BRANCHES * BR_miss_lat)) / INST_RETIRED.ANY_P",
	}},
	{"branch_instructions.correctly_predicted", []string{"(BR_INST_RETIRED.ALL_BRANCHES * BR_lat) / INST_RETIRED.ANY_P"}},
	{"branch_instructions.mispredicted", []string{"(BR_MISP_RETIRED.ALL_BRANCHES * BR_miss_lat) / INST_RETIRED.ANY_P"}},
}

const (
	jktFPOps = "SIMD_FP_256.PACKED_SINGLE + SIMD_FP_256.PACKED_DOUBLE + FP_COMP_OPS_EXE.X87 + " +
		"FP_COMP_OPS_EXE.SSE_PACKED_SINGLE + FP_COMP_OPS_EXE.SSE_PACKED_DOUBLE + " +
		"FP_COMP_OPS_EXE.SSE_SCALAR_SINGLE + FP_COMP_OPS_EXE.SSE_SCALAR_DOUBLE"
	jktPacked = "(SIMD_FP_256.PACKED_SINGLE * 8) + ((SIMD_FP_256.PACKED_DOUBLE + FP_COMP_OPS_EXE.SSE_PACKED_SINGLE) * 4) + " +
		"(FP_COMP_OPS_EXE.SSE_PACKED_DOUBLE * 2)"
	jktScalar = "FP_COMP_OPS_EXE.SSE_SCALAR_SINGLE + FP_COMP_OPS_EXE.SSE_SCALAR_DOUBLE"
)

var jaketownTable = &Table{
	Family:       "jaketown",
	Version:      1,
	Cycles:       intelCycles,
	Instructions: intelInst,
	Metrics: concat(
		[]Def{
			{"ratio.floating_point", []string{"(" + jktFPOps + ") / INST_RETIRED.ANY_P"}},
			{"GFLOPS_(%_max).overall", []string{"((" + jktPacked + " + " + jktScalar + ") / INST_RETIRED.ANY_P) / 8"}},
			{"GFLOPS_(%_max).packed", []string{"((" + jktPacked + ") / INST_RETIRED.ANY_P) / 8"}},
			{"GFLOPS_(%_max).scalar", []string{"((" + jktScalar + ") / INST_RETIRED.ANY_P) / 8"}},
		},
		intelMemory,
		[]Def{
			{"FP_instructions.overall", []string{"((" + jktFPOps + ") + ARITH.FPU_DIV) / INST_RETIRED.ANY_P"}},
			{"FP_instructions.fast", []string{"(" + jktFPOps + ") / INST_RETIRED.ANY_P"}},
			{"FP_instructions.slow", []string{"ARITH.FPU_DIV / INST_RETIRED.ANY_P"}},
		},
	),
}

var haswellTable = &Table{
	Family:       "haswell",
	Version:      1,
	Cycles:       intelCycles,
	Instructions: intelInst,
	Metrics:      concat(intelMemory),
}

func concat(lists ...[]Def) []Def {
	var out []Def
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func init() {
	Register(jaketownTable, "sandybridge", "sandybridge-ep", "ivybridge", "ivytown", "snb", "ivb")
	Register(haswellTable, "haswell-ep", "broadwell", "hsw", "bdw")
}
