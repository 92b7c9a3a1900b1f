// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package texttab lays out plain-text report tables.
package texttab

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

// Table does layout of text-based tables.
//
// Many of its methods return the Table so callers can easily chain
// them to build up many cells at once.
type Table struct {
	cells []textCell
	cols  int

	curRow, curCol int
}

type textCell struct {
	row, col, span int
	value          string
	leftMargin     string
	alignment      align
	// raw cells occupy a whole row, are printed verbatim and do
	// not contribute to column widths.
	raw bool
}

type CellOption func(c *textCell)

// LeftMargin sets the string printed before a cell.
func LeftMargin(x string) CellOption {
	return func(c *textCell) {
		c.leftMargin = x
	}
}

var (
	Left  CellOption = func(c *textCell) { c.alignment = alignLeft }
	Right CellOption = func(c *textCell) { c.alignment = alignRight }
)

type align int

const (
	alignLeft align = iota
	alignRight
)

func (a align) pad(s string, w int) string {
	if a == alignRight {
		return fmt.Sprintf("%*s", w, s)
	}
	return s
}

// Row starts a new row in table t.
func (t *Table) Row() *Table {
	if len(t.cells) > 0 {
		t.curRow++
	}
	t.curCol = 0
	return t
}

// Line adds a row holding s verbatim, such as a ruler or a heading.
func (t *Table) Line(s string) *Table {
	t.Row()
	t.cells = append(t.cells, textCell{row: t.curRow, span: 1, value: s, raw: true})
	return t
}

// Cell adds a single-column cell at the current row and column.
func (t *Table) Cell(value string, opts ...CellOption) *Table {
	return t.Span(1, value, opts...)
}

// Span adds a multi-column cell at the current row and column.
func (t *Table) Span(cols int, value string, opts ...CellOption) *Table {
	lMargin := " "
	if t.curCol == 0 || len(value) == 0 {
		lMargin = ""
	}
	t.cells = append(t.cells, textCell{t.curRow, t.curCol, cols, value, lMargin, alignLeft, false})
	for _, o := range opts {
		o(&t.cells[len(t.cells)-1])
	}

	t.curCol += cols
	if t.curCol > t.cols {
		t.cols = t.curCol
	}
	return t
}

// Format lays out table t and writes it to w.
func (t *Table) Format(w io.Writer) error {
	lmargin := make([]int, t.cols)
	for _, cell := range t.cells {
		if cell.raw {
			continue
		}
		lmargin[cell.col] = max(utf8.RuneCountInString(cell.leftMargin), lmargin[cell.col])
	}

	// Compute column widths, including their left margins. Spanning
	// cells are considered last and widen their columns evenly.
	ws := make([]int, t.cols)
	sort.SliceStable(t.cells, func(i, j int) bool {
		return t.cells[i].span < t.cells[j].span
	})
	for _, cell := range t.cells {
		if cell.raw {
			continue
		}
		w := utf8.RuneCountInString(cell.value) + lmargin[cell.col]
		if cell.span == 1 {
			ws[cell.col] = max(ws[cell.col], w)
			continue
		}
		tw := 0
		for col := cell.col; col < cell.col+cell.span; col++ {
			tw += ws[col]
		}
		for col := cell.col; tw < w; col++ {
			if col == cell.col+cell.span {
				col = cell.col
			}
			ws[col]++
			tw++
		}
	}

	offs := make([]int, t.cols+1)
	off := 0
	for i, w := range ws {
		offs[i] = off
		off += w
	}
	offs[len(ws)] = off

	// Put the cells back into top-to-bottom left-to-right order.
	sort.SliceStable(t.cells, func(i, j int) bool {
		if t.cells[i].row != t.cells[j].row {
			return t.cells[i].row < t.cells[j].row
		}
		return t.cells[i].col < t.cells[j].col
	})
	row, off := 0, 0
	for _, cell := range t.cells {
		if !cell.raw && strings.TrimSpace(cell.value) == "" && strings.TrimSpace(cell.leftMargin) == "" {
			// Skip empty cells so rows carry no trailing spaces.
			continue
		}
		for cell.row > row {
			if _, err := fmt.Fprintf(w, "\n"); err != nil {
				return err
			}
			row++
			off = 0
		}
		if cell.raw {
			if _, err := fmt.Fprint(w, cell.value); err != nil {
				return err
			}
			continue
		}

		spaces := offs[cell.col] - off
		if _, err := fmt.Fprintf(w, "%*s%*s", spaces, "", lmargin[cell.col], cell.leftMargin); err != nil {
			return err
		}
		off += spaces + lmargin[cell.col]

		tw := offs[cell.col+cell.span] - offs[cell.col] - lmargin[cell.col]
		s := cell.alignment.pad(cell.value, tw)
		if _, err := fmt.Fprintf(w, "%s", s); err != nil {
			return err
		}
		off += utf8.RuneCountInString(s)
	}
	if len(t.cells) > 0 {
		if _, err := fmt.Fprintf(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
