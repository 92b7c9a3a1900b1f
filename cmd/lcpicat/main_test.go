// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestList(t *testing.T) {
	var buf bytes.Buffer
	if err := list(&buf); err != nil {
		t.Fatal(err)
	}
	for _, fam := range []string{"generic", "haswell", "jaketown", "knl", "mic"} {
		if !strings.Contains(buf.String(), fam+"\t") {
			t.Errorf("list lacks %s:\n%s", fam, buf.String())
		}
	}
}

func TestShow(t *testing.T) {
	var buf bytes.Buffer
	if err := show(&buf, "papi", "PAPI_TOT_CYC,PAPI_TOT_INS"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "overall = PAPI_TOT_CYC / PAPI_TOT_INS\n") {
		t.Errorf("catalog lacks overall:\n%s", buf.String())
	}

	if err := show(&buf, "z80", ""); err == nil {
		t.Errorf("show of unknown architecture succeeded")
	}
}
