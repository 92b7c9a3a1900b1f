// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package formula parses and evaluates the arithmetic formulas that
// define derived metrics.
//
// A formula combines numbers and named variables with the binary
// operators + - * /, unary minus and parentheses:
//
//	(L1_DCA * L1_dlat + L2_DCA * L2_lat) / TOT_INS
//
// Variable names are counter or constant names and may contain '.'
// and ':' (as in "L2_RQSTS.CODE_RD_HIT"). Evaluation follows IEEE
// 754: dividing by zero yields an infinity or NaN, never a panic.
package formula

import (
	"strconv"
)

// A Node is a node of a formula tree. It is one of *Num, *Var,
// *BinOp or *Neg.
type Node interface {
	isNode()
	String() string
}

// A Num is a numeric literal.
type Num struct {
	Value float64
	Lit   string
}

// A Var is a reference to a counter, constant or metric.
type Var struct {
	Name string
	Off  int // Byte offset in the formula, for error reporting
}

// A BinOp applies one of '+', '-', '*', '/' to X and Y.
type BinOp struct {
	Op   byte
	X, Y Node
}

// A Neg negates X.
type Neg struct {
	X Node
}

func (*Num) isNode()   {}
func (*Var) isNode()   {}
func (*BinOp) isNode() {}
func (*Neg) isNode()   {}

func (n *Num) String() string {
	if n.Lit != "" {
		return n.Lit
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

func (n *Var) String() string { return n.Name }
func (n *Neg) String() string { return "-" + n.X.String() }

func (n *BinOp) String() string {
	return "(" + n.X.String() + " " + string(n.Op) + " " + n.Y.String() + ")"
}

// An Expr is a parsed formula. It is immutable and safe for
// concurrent use.
type Expr struct {
	src  string
	root Node
	vars []string
}

// Parse parses src into an Expr. Errors are of type *SyntaxError.
func Parse(src string) (*Expr, error) {
	toks := newTokenizer(src)
	p := parser{}
	root, toks := p.expr(toks)
	toks.end()
	if toks.errt.err != nil {
		return nil, toks.errt.err
	}
	return &Expr{src: src, root: root, vars: collectVars(root)}, nil
}

// MustParse is like Parse but panics on error. It is meant for
// built-in formula tables.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Root returns the root node of e.
func (e *Expr) Root() Node { return e.root }

// Vars returns the distinct variables referenced by e in order of
// first use. The caller must not modify the result.
func (e *Expr) Vars() []string { return e.vars }

// String returns the source text of e.
func (e *Expr) String() string { return e.src }

// Eval evaluates e, resolving each variable through env.
func (e *Expr) Eval(env func(name string) float64) float64 {
	return eval(e.root, env)
}

func eval(n Node, env func(string) float64) float64 {
	switch n := n.(type) {
	case *Num:
		return n.Value
	case *Var:
		return env(n.Name)
	case *Neg:
		return -eval(n.X, env)
	case *BinOp:
		x, y := eval(n.X, env), eval(n.Y, env)
		switch n.Op {
		case '+':
			return x + y
		case '-':
			return x - y
		case '*':
			return x * y
		case '/':
			return x / y
		}
	}
	panic("formula: bad node " + n.String())
}

func collectVars(n Node) []string {
	var vars []string
	seen := make(map[string]bool)
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Var:
			if !seen[n.Name] {
				seen[n.Name] = true
				vars = append(vars, n.Name)
			}
		case *Neg:
			walk(n.X)
		case *BinOp:
			walk(n.X)
			walk(n.Y)
		}
	}
	walk(n)
	return vars
}

type parser struct{}

func (p *parser) error(toks tokenizer, msg string) tokenizer {
	_, toks = toks.error(msg)
	return toks
}

// expr parses a sum: term {("+" | "-") term}.
func (p *parser) expr(toks tokenizer) (Node, tokenizer) {
	var x Node
	x, toks = p.term(toks)
	for {
		op, toks2 := toks.next()
		if op.Kind != '+' && op.Kind != '-' {
			return x, toks
		}
		var y Node
		y, toks = p.term(toks2)
		x = &BinOp{op.Kind, x, y}
	}
}

// term parses a product: unary {("*" | "/") unary}.
func (p *parser) term(toks tokenizer) (Node, tokenizer) {
	var x Node
	x, toks = p.unary(toks)
	for {
		op, toks2 := toks.next()
		if op.Kind != '*' && op.Kind != '/' {
			return x, toks
		}
		var y Node
		y, toks = p.unary(toks2)
		x = &BinOp{op.Kind, x, y}
	}
}

func (p *parser) unary(start tokenizer) (Node, tokenizer) {
	tok, rest := start.next()
	switch tok.Kind {
	case '-':
		x, rest := p.unary(rest)
		if n, ok := x.(*Num); ok {
			// Fold negative literals.
			return &Num{Value: -n.Value, Lit: "-" + n.Lit}, rest
		}
		return &Neg{x}, rest
	case '+':
		return p.unary(rest)
	}
	return p.primary(start)
}

func (p *parser) primary(start tokenizer) (Node, tokenizer) {
	tok, rest := start.next()
	switch tok.Kind {
	case 'n':
		return &Num{Value: tok.Num, Lit: tok.Tok}, rest
	case 'v':
		return &Var{Name: tok.Tok, Off: tok.Off}, rest
	case '(':
		x, rest := p.expr(rest)
		op, rest2 := rest.next()
		if op.Kind != ')' {
			return x, p.error(rest, "missing \")\"")
		}
		return x, rest2
	case 0:
		return &Num{}, p.error(start, "missing operand")
	}
	return &Num{}, p.error(start, "unexpected "+strconv.Quote(tok.Tok))
}
