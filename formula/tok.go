// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package formula

import (
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// A SyntaxError is an error produced by parsing a malformed formula.
type SyntaxError struct {
	Formula string // The original formula
	Off     int    // Byte offset of the error in Formula
	Msg     string // Error message
}

func (e *SyntaxError) Error() string {
	// Translate byte offset to a rune offset.
	pos := 0
	for i, r := range e.Formula {
		if i >= e.Off {
			break
		}
		if unicode.IsGraphic(r) {
			pos++
		}
	}
	return fmt.Sprintf("syntax error: %s\n\t%s\n\t%*s^", e.Msg, e.Formula, pos, "")
}

type errorTracker struct {
	orig string
	err  *SyntaxError
}

func (t *errorTracker) error(rest string, msg string) {
	if t.err == nil {
		t.err = &SyntaxError{t.orig, len(t.orig) - len(rest), msg}
	}
}

// A tok is a single token of a formula.
type tok struct {
	// Kind is 'n' for a number, 'v' for a variable name, an
	// operator character, or 0 for the end of the formula.
	Kind byte
	Off  int    // Byte offset of the beginning of this token
	Tok  string // Literal token contents
	Num  float64
}

type tokenizer struct {
	q    string
	errt *errorTracker
}

func newTokenizer(q string) tokenizer {
	return tokenizer{q, &errorTracker{q, nil}}
}

func isOp(ch byte) bool {
	switch ch {
	case '+', '-', '*', '/', '(', ')':
		return true
	}
	return false
}

// isIdent reports whether r may appear in a variable name. Counter
// names use '.' and ':' to separate event and umask, and machine
// constants start with a letter, so both are accepted.
func isIdent(r rune, first bool) bool {
	if r == '_' || unicode.IsLetter(r) {
		return true
	}
	if first {
		return false
	}
	return unicode.IsDigit(r) || r == '.' || r == ':'
}

func (t *tokenizer) next() (tok, tokenizer) {
	for len(t.q) > 0 {
		c := t.q[0]
		r, size := utf8.DecodeRuneInString(t.q)
		switch {
		case unicode.IsSpace(r):
			t.q = t.q[size:]
		case isOp(c):
			return t.tok(c, t.q[:1], t.q[1:])
		case c == '.' || ('0' <= c && c <= '9'):
			return t.number()
		case isIdent(r, true):
			return t.ident()
		default:
			return t.error("unexpected " + strconv.QuoteRune(r))
		}
	}
	// Add an EOF token. This eliminates the need for lots of
	// bounds checks in the parser and gives the EOF a position.
	return t.tok(0, "", "")
}

// end asserts that t has reached the end of the token stream.
func (t *tokenizer) end() tokenizer {
	if tok, _ := t.next(); tok.Kind != 0 {
		_, t2 := t.error("unexpected " + strconv.Quote(tok.Tok))
		return t2
	}
	return *t
}

func (t *tokenizer) tok(kind byte, token string, rest string) (tok, tokenizer) {
	off := len(t.errt.orig) - len(t.q)
	return tok{Kind: kind, Off: off, Tok: token}, tokenizer{rest, t.errt}
}

func (t *tokenizer) error(msg string) (tok, tokenizer) {
	t.errt.error(t.q, msg)
	// Move to the end.
	return t.tok(0, "", "")
}

func (t *tokenizer) number() (tok, tokenizer) {
	end := 0
	for end < len(t.q) {
		c := t.q[end]
		if '0' <= c && c <= '9' || c == '.' {
			end++
		} else if (c == 'e' || c == 'E') && end+1 < len(t.q) {
			// Exponent, optionally signed.
			end++
			if t.q[end] == '+' || t.q[end] == '-' {
				end++
			}
		} else {
			break
		}
	}
	v, err := strconv.ParseFloat(t.q[:end], 64)
	if err != nil {
		return t.error("malformed number " + strconv.Quote(t.q[:end]))
	}
	tk, next := t.tok('n', t.q[:end], t.q[end:])
	tk.Num = v
	return tk, next
}

func (t *tokenizer) ident() (tok, tokenizer) {
	end := len(t.q)
	first := true
	for i, r := range t.q {
		if !isIdent(r, first) {
			end = i
			break
		}
		first = false
	}
	return t.tok('v', t.q[:end], t.q[end:])
}
