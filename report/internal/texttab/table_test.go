// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package texttab

import (
	"strings"
	"testing"
)

func TestAlign(t *testing.T) {
	check := func(s string, a align, w int, want string) {
		t.Helper()
		got := a.pad(s, w)
		if got != want {
			t.Errorf("want %q, got %q", want, got)
		}
	}

	check("abc", alignLeft, 10, "abc")
	check("abc", alignRight, 10, "       abc")
	check("☃", alignRight, 4, "   ☃")
}

func TestTable(t *testing.T) {
	var tab Table
	check := func(want string) {
		t.Helper()
		var gotBuf strings.Builder
		tab.Format(&gotBuf)
		got := gotBuf.String()
		if want != got {
			t.Errorf("want:\n%sgot:\n%s", want, got)
		}
		tab = Table{}
	}

	tab.Row().Cell("a").Cell("b").Cell("c")
	tab.Row().Cell("d").Cell("e").Cell("f")
	check("a b c\nd e f\n")

	// Padding, and no trailing spaces.
	tab.Row().Cell("a").Cell("b").Cell("c")
	tab.Row().Cell("long").Cell("e").Cell("long")
	check("a    b c\nlong e long\n")

	tab.Row().Cell("a", Left).Cell("c", Right)
	tab.Row().Cell("xxx").Cell("xxx")
	check("a     c\nxxx xxx\n")

	tab.Row().Cell("a").Cell("b", LeftMargin("  "))
	tab.Row().Cell("c").Cell("d")
	check("a  b\nc  d\n")

	// Blank rows.
	tab.Row().Cell("a")
	tab.Row()
	tab.Row().Cell("b")
	check("a\n\nb\n")

	// Spans expanding other cells.
	tab.Row().Cell("a").Cell("b")
	tab.Row().Span(2, "abcdefg")
	check("a   b\nabcdefg\n")

	// Raw lines do not widen columns.
	tab.Line("=====")
	tab.Row().Cell("ab").Cell("1", Right)
	tab.Row().Cell("c").Cell("10", Right)
	check("=====\nab  1\nc  10\n")
}
