// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

// The generic table is written against PAPI preset counters, with
// native counters as fallbacks where the presets are often missing.

var (
	genL1Data  = []string{"PAPI_L1_DCA", "PAPI_LD_INS"}
	genL2Data  = []string{"L2_RQSTS:DEMAND_DATA_RD_HIT", "PAPI_L2_DCA", "(PAPI_L2_TCA - PAPI_L2_ICA)"}
	genL2Miss  = []string{"PAPI_L2_DCM", "(PAPI_L2_TCM - PAPI_L2_ICM)"}
	genL1Inst  = []string{"PAPI_L1_ICA", "ICACHE"}
	genL2Inst  = []string{"PAPI_L2_ICA", "(PAPI_L2_TCA - PAPI_L2_DCA)"}
	genL2IMiss = []string{"PAPI_L2_ICM", "(PAPI_L2_TCM - PAPI_L2_DCM)"}

	genFastFP = []string{
		"(PAPI_FML_INS + PAPI_FAD_INS) * FP_lat",
		"PAPI_FML_INS * FP_lat",
		"(FP_COMP_OPS_EXE:SSE_DOUBLE_PRECISION + FP_COMP_OPS_EXE:SSE_FP + " +
			"FP_COMP_OPS_EXE:SSE_FP_PACKED + FP_COMP_OPS_EXE:SSE_FP_SCALAR + " +
			"FP_COMP_OPS_EXE:SSE_SINGLE_PRECISION + FP_COMP_OPS_EXE:X87) * FP_lat",
		"(FP_COMP_OPS_EXE:SSE_FP_PACKED_DOUBLE + FP_COMP_OPS_EXE:SSE_FP_SCALAR_SINGLE + " +
			"FP_COMP_OPS_EXE:SSE_PACKED_SINGLE + FP_COMP_OPS_EXE:SSE_SCALAR_DOUBLE) * FP_lat",
		"ARITH * FP_lat",
	}
	genSlowFP = []string{
		"PAPI_FDV_INS * FP_slow_lat",
		"ARITH:CYCLES_DIV_BUSY",
	}
)

// Intel SSE/AVX floating point operation counters, weighted by the
// number of operations per instruction.
const (
	sseOps = "(SSEX_UOPS_RETIRED:PACKED_DOUBLE * 2 + SSEX_UOPS_RETIRED:PACKED_SINGLE * 4 + " +
		"SSEX_UOPS_RETIRED:SCALAR_SINGLE + SSEX_UOPS_RETIRED:SCALAR_DOUBLE)"
	ssePacked = "(SSEX_UOPS_RETIRED:PACKED_DOUBLE * 2 + SSEX_UOPS_RETIRED:PACKED_SINGLE * 4)"
	sseScalar = "(SSEX_UOPS_RETIRED:SCALAR_DOUBLE + SSEX_UOPS_RETIRED:SCALAR_SINGLE)"

	simdOps = "(SIMD_COMP_INST_RETIRED:PACKED_DOUBLE * 2 + SIMD_COMP_INST_RETIRED:PACKED_SINGLE * 4 + " +
		"SIMD_COMP_INST_RETIRED:SCALAR_SINGLE + SIMD_COMP_INST_RETIRED:SCALAR_DOUBLE)"
	simdPacked = "(SIMD_COMP_INST_RETIRED:PACKED_DOUBLE * 2 + SIMD_COMP_INST_RETIRED:PACKED_SINGLE * 4)"
	simdScalar = "(SIMD_COMP_INST_RETIRED:SCALAR_SINGLE + SIMD_COMP_INST_RETIRED:SCALAR_DOUBLE)"

	avxOps = "(SIMD_FP_256:PACKED_SINGLE * 8 + (SIMD_FP_256:PACKED_DOUBLE + FP_COMP_OPS_EXE:SSE_PACKED_SINGLE) * 4 + " +
		"FP_COMP_OPS_EXE:SSE_FP_PACKED_DOUBLE * 2 + FP_COMP_OPS_EXE:SSE_FP_SCALAR_SINGLE + " +
		"FP_COMP_OPS_EXE:SSE_SCALAR_DOUBLE)"
	avxPacked = "(SIMD_FP_256:PACKED_SINGLE * 8 + (SIMD_FP_256:PACKED_DOUBLE + FP_COMP_OPS_EXE:SSE_PACKED_SINGLE) * 4 + " +
		"FP_COMP_OPS_EXE:SSE_FP_PACKED_DOUBLE * 2)"
	avxScalar = "(FP_COMP_OPS_EXE:SSE_FP_SCALAR_SINGLE + FP_COMP_OPS_EXE:SSE_SCALAR_DOUBLE)"
)

var genericTable = &Table{
	Family:       "generic",
	Version:      1,
	Cycles:       "PAPI_TOT_CYC",
	Instructions: "PAPI_TOT_INS",
	Metrics: []Def{
		{"ratio.floating_point", []string{
			"(PAPI_FML_INS + PAPI_FDV_INS + PAPI_FAD_INS) / PAPI_TOT_INS",
			"(PAPI_FML_INS + PAPI_FDV_INS) / PAPI_TOT_INS",
			"(FP_COMP_OPS_EXE:SSE_PACKED_SINGLE + FP_COMP_OPS_EXE:SSE_FP_PACKED_DOUBLE + " +
				"FP_COMP_OPS_EXE:SSE_FP_SCALAR_SINGLE + FP_COMP_OPS_EXE:SSE_SCALAR_DOUBLE) / PAPI_TOT_INS",
			"PAPI_FP_INS / PAPI_TOT_INS",
		}},
		{"ratio.data_accesses", expand("%s / PAPI_TOT_INS", genL1Data)},
		{"GFLOPS_(%_max).overall", []string{
			"(RETIRED_SSE_OPERATIONS:ALL / PAPI_TOT_CYC) / 4",
			"(RETIRED_SSE_OPS:ALL / PAPI_TOT_CYC) / 4",
			"(" + sseOps + " / PAPI_TOT_CYC) / 4",
			"(" + simdOps + " / PAPI_TOT_CYC) / 4",
			"(" + avxOps + " / PAPI_TOT_CYC) / 8",
		}},
		{"GFLOPS_(%_max).packed", []string{
			"(" + ssePacked + " / PAPI_TOT_CYC) / 4",
			"(" + simdPacked + " / PAPI_TOT_CYC) / 4",
			"(" + avxPacked + " / PAPI_TOT_CYC) / 8",
		}},
		{"GFLOPS_(%_max).scalar", []string{
			"(" + sseScalar + " / PAPI_TOT_CYC) / 4",
			"(" + simdScalar + " / PAPI_TOT_CYC) / 4",
			"(" + avxScalar + " / PAPI_TOT_CYC) / 8",
		}},
		{"overall", []string{"PAPI_TOT_CYC / PAPI_TOT_INS"}},
		{"data_accesses.overall", append(
			expand("(%s * L1_dlat + %s * L2_lat + (PAPI_L3_TCA - PAPI_L3_TCM) * L3_lat + PAPI_L3_TCM * mem_lat) / PAPI_TOT_INS",
				genL1Data, genL2Data),
			expand("(%s * L1_dlat + %s * L2_lat + %s * mem_lat) / PAPI_TOT_INS",
				genL1Data, genL2Data, genL2Miss)...,
		)},
		{"data_accesses.L1d_hits", expand("%s * L1_dlat / PAPI_TOT_INS", genL1Data)},
		{"data_accesses.L2d_hits", expand("%s * L2_lat / PAPI_TOT_INS", genL2Data)},
		{"data_accesses.L3d_hits", []string{"(PAPI_L3_TCA - PAPI_L3_TCM) * L3_lat / PAPI_TOT_INS"}},
		{"data_accesses.LLC_misses", append(
			[]string{"PAPI_L3_TCM * mem_lat / PAPI_TOT_INS"},
			expand("%s * mem_lat / PAPI_TOT_INS", genL2Miss)...,
		)},
		{"instruction_accesses.overall", expand("(%s * L1_ilat + %s * L2_lat + %s * mem_lat) / PAPI_TOT_INS",
			genL1Inst, genL2Inst, genL2IMiss)},
		{"instruction_accesses.L1i_hits", expand("%s * L1_ilat / PAPI_TOT_INS", genL1Inst)},
		{"instruction_accesses.L2i_hits", expand("%s * L2_lat / PAPI_TOT_INS", genL2Inst)},
		{"instruction_accesses.L2i_misses", expand("%s * mem_lat / PAPI_TOT_INS", genL2IMiss)},
		{"data_TLB.overall", []string{
			"DTLB_LOAD_MISSES:WALK_DURATION / PAPI_TOT_INS",
			"PAPI_TLB_DM * TLB_lat / PAPI_TOT_INS",
			"(DTLB_LOAD_MISSES:CAUSES_A_WALK + DTLB_STORE_MISSES:CAUSES_A_WALK) * TLB_lat / PAPI_TOT_INS",
		}},
		{"instruction_TLB.overall", []string{
			"ITLB_MISSES:WALK_DURATION / PAPI_TOT_INS",
			"PAPI_TLB_IM * TLB_lat / PAPI_TOT_INS",
		}},
		{"branch_instructions.overall", []string{"(PAPI_BR_INS * BR_lat + PAPI_BR_MSP * BR_miss_lat) / PAPI_TOT_INS"}},
		{"branch_instructions.correctly_predicted", []string{"PAPI_BR_INS * BR_lat / PAPI_TOT_INS"}},
		{"branch_instructions.mispredicted", []string{"PAPI_BR_MSP * BR_miss_lat / PAPI_TOT_INS"}},
		{"FP_instructions.overall", expand("(%s + %s) / PAPI_TOT_INS", genFastFP, genSlowFP)},
		{"FP_instructions.fast", expand("%s / PAPI_TOT_INS", genFastFP)},
		{"FP_instructions.slow", expand("%s / PAPI_TOT_INS", genSlowFP)},
	},
}

func init() {
	Register(genericTable, "papi", "unknown", "")
}
