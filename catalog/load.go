// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package catalog

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Load reads a catalog in text form. Each non-blank line has the form
//
//	name = formula
//
// and '#' starts a comment that runs to the end of the line. Formulas
// may use '.' or ':' in counter names. Metrics are kept in file order,
// and a formula may only use metrics defined on earlier lines.
func Load(r io.Reader, arch string) (*Catalog, error) {
	c := New(arch)
	sc := bufio.NewScanner(r)
	line := 0
	var lines []int
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		eq := strings.IndexByte(text, '=')
		if eq < 0 {
			return nil, errors.Errorf("line %d: missing \"=\" in %q", line, text)
		}
		name := strings.TrimSpace(text[:eq])
		if name == "" {
			return nil, errors.Errorf("line %d: missing metric name", line)
		}
		if err := c.Add(name, strings.TrimSpace(text[eq+1:])); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	index := make(map[*Entry]int, len(c.entries))
	for i, e := range c.entries {
		index[e] = i
	}
	for i, e := range c.entries {
		for _, v := range e.Expr.Vars() {
			if d := c.Lookup(v); d != nil && index[d] >= i {
				return nil, errors.Errorf("line %d: metric %s uses %s before its definition", lines[i], e.Name, d.Name)
			}
		}
	}
	return c, nil
}

// Write writes c in the form read by Load.
func (c *Catalog) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s v%d\n", c.Arch, c.Version)
	for _, e := range c.entries {
		fmt.Fprintf(bw, "%s = %s\n", e.Name, e.Expr)
	}
	return bw.Flush()
}
