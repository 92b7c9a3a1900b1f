// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

// Tables for Xeon Phi coprocessors and processors.

const (
	// mcdramRead is the MCDRAM read traffic in cache mode, where
	// EDC hits and misses split the read queue.
	mcdramRead = "(UNC_E_RPQ_INSERTS - UNC_E_EDC_ACCESS.HIT_CLEAN / UNC_E_EDC_ACCESS.MISS_CLEAN - " +
		"UNC_E_EDC_ACCESS.HIT_DIRTY / UNC_E_EDC_ACCESS.MISS_DIRTY) * 64 / CPU_CLK_UNHALTED.THREAD_P"
	mcdramWrite = "UNC_E_WPQ_INSERTS * 64 / CPU_CLK_UNHALTED.THREAD_P"
)

var knlTable = &Table{
	Family:       "knl",
	Version:      1,
	Cycles:       intelCycles,
	Instructions: intelInst,
	Metrics: []Def{
		{"ratio.data_accesses", []string{"MEM_UOPS_RETIRED.ALL_LOADS / INST_RETIRED.ANY_P"}},
		{"SIMD.overall", []string{"(UOPS_RETIRED.SCALAR_SIMD + UOPS_RETIRED.PACKED_SIMD) / UOPS_RETIRED.ALL"}},
		{"overall", []string{"CPU_CLK_UNHALTED.THREAD_P / INST_RETIRED.ANY_P"}},
		{"data_accesses.overall", []string{
			"((MEM_UOPS_RETIRED.ALL_LOADS * L1_dlat) + (L2_RQSTS.DEMAND_DATA_RD_HIT * L2_lat) + " +
				"LONGEST_LAT_CACHE.MISS * mem_lat) / INST_RETIRED.ANY_P",
		}},
		{"data_accesses.L1_cache_hits", []string{"(MEM_UOPS_RETIRED.ALL_LOADS * L1_dlat) / INST_RETIRED.ANY_P"}},
		{"data_accesses.L2_cache_hits", []string{"(LONGEST_LAT_CACHE.REFERENCE * L2_lat) / INST_RETIRED.ANY_P"}},
		{"data_accesses.LLC_misses", []string{"(LONGEST_LAT_CACHE.MISS * mem_lat) / INST_RETIRED.ANY_P"}},
		{"instruction_accesses.L1_hits", []string{"(ICACHE.MISSES * L1_ilat) / INST_RETIRED.ANY_P"}},
		{"instruction_accesses.L1_misses", []string{"FETCH_STALL.ICACHE_FILL_PENDING_CYCLES / CPU_CLK_UNHALTED.THREAD_P"}},
		{"instruction_TLB.overall", []string{"PAGE_WALKS.WALKS / INST_RETIRED.ANY_P"}},
		{"instruction_TLB.time", []string{"(PAGE_WALKS.D_SIDE_CYCLES + PAGE_WALKS.I_SIDE_CYCLES) / CPU_CLK_UNHALTED.THREAD_P"}},
		{"branch_instructions.overall", []string{
			"((BR_INST_RETIRED.ALL_BRANCHES * BR_lat) + (BR_MISP_RETIRED.ALL_BRANCHES * BR_miss_lat)) / INST_RETIRED.ANY_P",
		}},
		{"branch_instructions.correctly_predicted", []string{"(BR_INST_RETIRED.ALL_BRANCHES * BR_lat) / INST_RETIRED.ANY_P"}},
		{"branch_instructions.mispredicted", []string{"(BR_MISP_RETIRED.ALL_BRANCHES * BR_miss_lat) / INST_RETIRED.ANY_P"}},
		{"mcdram.overall", []string{
			"(" + mcdramRead + ") + (" + mcdramWrite + ")",
			"(UNC_E_RPQ_INSERTS * 64 / CPU_CLK_UNHALTED.THREAD_P) + (" + mcdramWrite + ")",
		}},
		// In flat mode the EDC counters are absent and the whole
		// read queue goes to MCDRAM.
		{"mcdram.read_bandwidth", []string{
			mcdramRead,
			"UNC_E_RPQ_INSERTS * 64 / CPU_CLK_UNHALTED.THREAD_P",
		}},
		{"mcdram.write_bandwidth", []string{mcdramWrite}},
	},
}

var micTable = &Table{
	Family:       "mic",
	Version:      1,
	Cycles:       "CPU_CLK_UNHALTED",
	Instructions: "INSTRUCTIONS_EXECUTED",
	Metrics: []Def{
		{"ratio.floating_point", []string{"VPU_INSTRUCTIONS_EXECUTED / INSTRUCTIONS_EXECUTED"}},
		{"ratio.data_accesses", []string{"DATA_READ_OR_WRITE / INSTRUCTIONS_EXECUTED"}},
		{"overall", []string{"CPU_CLK_UNHALTED / INSTRUCTIONS_EXECUTED"}},
		{"vectorization_intensity.overall", []string{"VPU_ELEMENTS_ACTIVE / VPU_INSTRUCTIONS_EXECUTED"}},
		{"data_accesses.overall", []string{
			"((DATA_READ_OR_WRITE * L1_dlat) + (DATA_READ_MISS_OR_WRITE_MISS * L2_dlat) + " +
				"(L2_CODE_READ_MISS_MEM_FILL * mem_lat)) / INSTRUCTIONS_EXECUTED",
		}},
		{"data_accesses.L1_cache_hits", []string{"(DATA_READ_OR_WRITE * L1_dlat) / INSTRUCTIONS_EXECUTED"}},
		{"data_accesses.L2_cache_hits", []string{"(DATA_READ_MISS_OR_WRITE_MISS * L2_dlat) / INSTRUCTIONS_EXECUTED"}},
		{"data_accesses.LLC_misses", []string{
			"((L2_DATA_READ_MISS_MEM_FILL + L2_DATA_WRITE_MISS_MEM_FILL) * mem_lat) / INSTRUCTIONS_EXECUTED",
		}},
		{"memory_bandwidth.read", []string{
			"(L2_DATA_READ_MISS_MEM_FILL + L2_DATA_WRITE_MISS_MEM_FILL + HWP_L2MISS) * 64 / CPU_CLK_UNHALTED",
		}},
		{"memory_bandwidth.write", []string{"(L2_VICTIM_REQ_WITH_DATA + SNP_HITM_L2) * 64 / CPU_CLK_UNHALTED"}},
		{"memory_bandwidth.overall", []string{"(memory_bandwidth.read + memory_bandwidth.write) * CPU_freq"}},
		{"instruction_accesses.overall", []string{
			"((CODE_READ * L1_ilat) + (CODE_CACHE_MISS * mem_lat)) / INSTRUCTIONS_EXECUTED",
		}},
		{"instruction_accesses.L1_hits", []string{"(CODE_READ * L1_ilat) / INSTRUCTIONS_EXECUTED"}},
		{"instruction_accesses.L1_misses", []string{"(CODE_CACHE_MISS * mem_lat) / INSTRUCTIONS_EXECUTED"}},
		{"data_TLB.overall", []string{"DATA_PAGE_WALK * TLB_lat / INSTRUCTIONS_EXECUTED"}},
		{"instruction_TLB.overall", []string{"CODE_PAGE_WALK * TLB_lat / INSTRUCTIONS_EXECUTED"}},
		{"branch_instructions.overall", []string{
			"(((BRANCHES - BRANCHES_MISPREDICTED) * BR_lat) + (BRANCHES_MISPREDICTED * BR_miss_lat)) / INSTRUCTIONS_EXECUTED",
		}},
		{"branch_instructions.correctly_predicted", []string{"(BRANCHES - BRANCHES_MISPREDICTED) * BR_lat / INSTRUCTIONS_EXECUTED"}},
		{"branch_instructions.mispredicted", []string{"BRANCHES_MISPREDICTED * BR_miss_lat / INSTRUCTIONS_EXECUTED"}},
		{"FP_instructions.overall", []string{"(VPU_INSTRUCTIONS_EXECUTED * FP_slow_lat) / INSTRUCTIONS_EXECUTED"}},
	},
}

func init() {
	Register(knlTable, "knightslanding", "knights-landing", "xeonphi-knl")
	Register(micTable, "knightscorner", "knights-corner", "knc")
}
