// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/perfexpert/perfexpert/formula"
	"github.com/perfexpert/perfexpert/profile"
	"github.com/pkg/errors"
)

func TestTablesParse(t *testing.T) {
	for _, fam := range Families() {
		tab, err := Lookup(fam)
		if err != nil {
			t.Fatal(err)
		}
		seen := make(map[string]bool)
		for _, d := range tab.Metrics {
			if seen[d.Name] {
				t.Errorf("%s: metric %s defined twice", fam, d.Name)
			}
			seen[d.Name] = true
			if len(d.Variants) == 0 {
				t.Errorf("%s: metric %s has no formula", fam, d.Name)
			}
			for _, v := range d.Variants {
				if _, err := formula.Parse(v); err != nil {
					t.Errorf("%s: metric %s: %v", fam, d.Name, err)
				}
			}
		}
		c, err := Build(fam, nil)
		if err != nil {
			t.Fatalf("Build(%s, nil): %v", fam, err)
		}
		if c.Len() != len(tab.Metrics) {
			t.Errorf("Build(%s, nil) has %d metrics, want %d", fam, c.Len(), len(tab.Metrics))
		}
		if c.Lookup("overall") == nil {
			t.Errorf("%s: no overall metric", fam)
		}
	}
}

func TestLookupAliases(t *testing.T) {
	for _, test := range []struct {
		arch, family string
	}{
		{"jaketown", "jaketown"},
		{"IvyBridge", "jaketown"},
		{"broadwell", "haswell"},
		{"KnightsLanding", "knl"},
		{"knightscorner", "mic"},
		{"", "generic"},
	} {
		tab, err := Lookup(test.arch)
		if err != nil {
			t.Errorf("Lookup(%q): %v", test.arch, err)
			continue
		}
		if tab.Family != test.family {
			t.Errorf("Lookup(%q) = %s, want %s", test.arch, tab.Family, test.family)
		}
	}
	if _, err := Lookup("pdp11"); !errors.Is(err, ErrUnknownArch) {
		t.Errorf("Lookup(pdp11): err = %v, want ErrUnknownArch", err)
	}
	if _, err := Build("pdp11", nil); !errors.Is(err, ErrUnknownArch) {
		t.Errorf("Build(pdp11): err = %v, want ErrUnknownArch", err)
	}
	if _, err := LookupVersion("haswell", 7); !errors.Is(err, ErrUnknownArch) {
		t.Errorf("LookupVersion(haswell, 7): err = %v, want ErrUnknownArch", err)
	}
}

func TestBuildFallback(t *testing.T) {
	avail := CounterSet([]string{
		"PAPI_TOT_CYC", "PAPI_TOT_INS", "PAPI_LD_INS", "PAPI_L2_DCA", "PAPI_L2_DCM",
	})
	c, err := Build("generic", avail)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"overall":             "PAPI_TOT_CYC / PAPI_TOT_INS",
		"ratio.data_accesses": "PAPI_LD_INS / PAPI_TOT_INS",
		// No L3 counters: the L2-only variant is chosen.
		"data_accesses.overall":    "(PAPI_LD_INS * L1_dlat + PAPI_L2_DCA * L2_lat + PAPI_L2_DCM * mem_lat) / PAPI_TOT_INS",
		"data_accesses.LLC_misses": "PAPI_L2_DCM * mem_lat / PAPI_TOT_INS",
	}
	for name, src := range want {
		e := c.Lookup(name)
		if e == nil {
			t.Errorf("metric %s missing", name)
			continue
		}
		if e.Expr.String() != src {
			t.Errorf("metric %s = %s, want %s", name, e.Expr, src)
		}
	}
	for _, name := range []string{"data_accesses.L3d_hits", "branch_instructions.overall", "ratio.floating_point"} {
		if c.Lookup(name) != nil {
			t.Errorf("metric %s present without its counters", name)
		}
	}
	if c.TotalCycles != "PAPI_TOT_CYC" || c.TotalInstructions != "PAPI_TOT_INS" {
		t.Errorf("totals = %s, %s", c.TotalCycles, c.TotalInstructions)
	}
}

func TestBuildDependentMetric(t *testing.T) {
	// memory_bandwidth.overall is defined in terms of the read and
	// write bandwidth metrics and disappears with them.
	full, err := Build("mic", nil)
	if err != nil {
		t.Fatal(err)
	}
	if full.Lookup("memory_bandwidth.overall") == nil {
		t.Fatalf("memory_bandwidth.overall missing from full catalog")
	}
	partial, err := Build("mic", CounterSet([]string{"CPU_CLK_UNHALTED", "INSTRUCTIONS_EXECUTED"}))
	if err != nil {
		t.Fatal(err)
	}
	if partial.Lookup("memory_bandwidth.overall") != nil {
		t.Errorf("memory_bandwidth.overall present without its inputs")
	}
	for _, c := range full.Counters() {
		if strings.HasPrefix(c, "memory_bandwidth") || IsConstant(c) {
			t.Errorf("Counters() includes %s", c)
		}
	}
}

func TestAddDuplicate(t *testing.T) {
	c := New("test")
	if err := c.Add("overall", "CYC / INS"); err != nil {
		t.Fatal(err)
	}
	if err := c.Add("overall", "CYC"); !errors.Is(err, ErrDuplicateMetric) {
		t.Errorf("second Add: err = %v, want ErrDuplicateMetric", err)
	}
	var se *formula.SyntaxError
	if err := c.Add("bad", "CYC /"); !errors.As(err, &se) {
		t.Errorf("Add with bad formula: err = %v, want *formula.SyntaxError", err)
	}
}

func TestEvaluate(t *testing.T) {
	c := New("test")
	if err := c.Add("overall", "CYC / INS"); err != nil {
		t.Fatal(err)
	}
	e := c.Lookup("overall")

	h := &profile.Hotspot{Name: "H"}
	h.Attach(profile.NewMetric("CYC", 200, 0, 0))
	h.Attach(profile.NewMetric("INS", 100, 0, 0))
	h.Attach(profile.NewMetric("CYC", 900, 1, 0))
	h.Attach(profile.NewMetric("INS", 100, 1, 0))

	m, missing, err := e.Evaluate(0, 0, HotspotSource(h, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if m.Value != 2 || m.Rank != 0 || m.Thread != 0 || len(missing) != 0 {
		t.Errorf("overall(0,0) = %+v missing %v, want 2", m, missing)
	}
	if m.Key != profile.KeyOf("overall") {
		t.Errorf("metric key does not match catalog entry")
	}
	if e.Expr.String() != "CYC / INS" {
		t.Errorf("evaluation modified the template: %s", e.Expr)
	}
}

func TestEvaluateSources(t *testing.T) {
	c := New("test")
	if err := c.Add("data_accesses.L2", "L2_HIT * L2_lat / INS + NOPE"); err != nil {
		t.Fatal(err)
	}
	e := c.Lookup("data_accesses.L2")

	consts := profile.Constants{}
	consts.Set("L2_lat", 12)
	consts.Set("INS", 1e9) // shadowed by the measured value

	measured := SourceFunc(func(name string) (float64, bool, error) {
		switch name {
		case "L2_HIT":
			return 50, true, nil
		case "INS":
			return 100, true, nil
		}
		return 0, false, nil
	})

	m, missing, err := e.Evaluate(0, 0, measured, ConstantSource(consts))
	if err != nil {
		t.Fatal(err)
	}
	if m.Value != 6 {
		t.Errorf("value = %v, want 6", m.Value)
	}
	if diff := cmp.Diff([]string{"NOPE"}, missing); diff != "" {
		t.Errorf("missing (-want +got):\n%s", diff)
	}

	boom := errors.New("store unavailable")
	failing := SourceFunc(func(string) (float64, bool, error) { return 0, false, boom })
	if _, _, err := e.Evaluate(0, 0, failing); !errors.Is(err, boom) {
		t.Errorf("Evaluate with failing source: err = %v, want %v", err, boom)
	}

	// With no sources every variable is 0 and 0/0 is NaN.
	m, missing, err = e.Evaluate(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(m.Value) || len(missing) != 4 {
		t.Errorf("no sources: value %v, missing %v", m.Value, missing)
	}
}

func TestLoad(t *testing.T) {
	const text = `
# custom metrics
overall = CPU_CLK_UNHALTED:THREAD_P / INST_RETIRED:ANY_P
data_TLB.overall = DTLB_LOAD_MISSES.WALK_DURATION / INST_RETIRED.ANY_P   # walk cycles

`
	c, err := Load(strings.NewReader(text), "custom")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range c.Entries() {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"overall", "data_TLB.overall"}, names); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}
	want := []string{"CPU_CLK_UNHALTED_THREAD_P", "DTLB_LOAD_MISSES_WALK_DURATION", "INST_RETIRED_ANY_P"}
	if diff := cmp.Diff(want, c.Counters()); diff != "" {
		t.Errorf("Counters (-want +got):\n%s", diff)
	}

	var buf strings.Builder
	if err := c.Write(&buf); err != nil {
		t.Fatal(err)
	}
	c2, err := Load(strings.NewReader(buf.String()), "custom")
	if err != nil {
		t.Fatalf("reloading written catalog: %v", err)
	}
	if c2.Len() != c.Len() {
		t.Errorf("reloaded %d metrics, want %d", c2.Len(), c.Len())
	}

	for _, test := range []struct {
		text string
		err  string
	}{
		{"overall CYC / INS", "line 1: missing \"=\""},
		{"\n = CYC", "line 2: missing metric name"},
		{"a = CYC\na = INS", "line 2: a: duplicate metric"},
		{"a = (CYC", "line 1: metric a: syntax error"},
		{"a = b * 2\nb = CYC", "line 1: metric a uses b before its definition"},
		{"# loop\n\na = a + 1", "line 3: metric a uses a before its definition"},
	} {
		_, err := Load(strings.NewReader(test.text), "custom")
		if err == nil || !strings.HasPrefix(err.Error(), test.err) {
			t.Errorf("Load(%q): err = %v, want prefix %q", test.text, err, test.err)
		}
	}
}
