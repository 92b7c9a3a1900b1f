// Copyright 2024 The PerfExpert Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eventfmt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/perfexpert/perfexpert/profile"
	"github.com/pkg/errors"
)

// A Reader reads the raw event format.
//
// Its API is modeled on bufio.Scanner. A Reader retains ownership of
// the Sample it returns; a caller should Clone anything it needs to
// retain.
type Reader struct {
	s   *bufio.Scanner
	err error // current I/O error

	fileName string
	line     int
	config   map[string]string

	sample Sample
	rec    Record

	interns map[string]string
}

// A SyntaxError represents a syntax error on a particular line of an
// event file.
type SyntaxError struct {
	FileName string
	Line     int
	Msg      string
}

func (e *SyntaxError) Pos() (fileName string, line int) {
	return e.FileName, e.Line
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.FileName, e.Line, e.Msg)
}

var noResult = &SyntaxError{"", 0, "Reader.Scan has not been called"}

// NewReader constructs a reader to parse the raw event format from r.
// fileName is used in error messages; it is purely diagnostic.
func NewReader(r io.Reader, fileName string) *Reader {
	reader := new(Reader)
	reader.Reset(r, fileName)
	return reader
}

func (r *Reader) newSyntaxError(msg string) *SyntaxError {
	return &SyntaxError{r.fileName, r.line, msg}
}

// Reset resets the reader to begin reading from a new input and
// clears the configuration.
//
// initConfig is an alternating sequence of keys and values installed
// as the configuration before any line is read.
func (r *Reader) Reset(ior io.Reader, fileName string, initConfig ...string) {
	r.s = bufio.NewScanner(ior)
	if fileName == "" {
		fileName = "<unknown>"
	}
	r.err = nil
	r.fileName = fileName
	r.line = 0
	r.rec = nil
	if r.interns == nil {
		r.interns = make(map[string]string)
	}
	r.config = make(map[string]string)
	if len(initConfig)%2 != 0 {
		panic("len(initConfig) must be a multiple of 2")
	}
	for i := 0; i < len(initConfig); i += 2 {
		r.config[initConfig[i]] = initConfig[i+1]
	}
}

var kinds = map[string]profile.Kind{
	"Procedure": profile.Procedure,
	"Loop":      profile.Loop,
	"Program":   profile.Program,
}

// Scan advances the reader to the next record and reports whether one
// was read. The caller should use the Result method to get it.
// If Scan reaches EOF or an I/O error occurs, it returns false, in
// which case the caller should use the Err method to check for errors.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	for r.s.Scan() {
		r.line++
		line := r.s.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if line[0] >= 'A' && line[0] <= 'Z' {
			f, rest := splitField(line)
			if kind, ok := kinds[string(f)]; ok {
				if err := r.parseSample(kind, rest); err != nil {
					r.rec = err
				} else {
					r.rec = &r.sample
				}
				return true
			}
		}
		if key, val, ok := parseKeyValueLine(line); ok {
			k := r.intern(key)
			if len(val) == 0 {
				delete(r.config, k)
			} else {
				r.config[k] = r.intern(val)
			}
			continue
		}
		// Ignore the line.
	}
	if err := r.s.Err(); err != nil {
		r.err = errors.Wrapf(err, "%s:%d", r.fileName, r.line)
	}
	return false
}

// parseKeyValueLine attempts to parse line as a key: val pair,
// with ok reporting whether the line could be parsed.
func parseKeyValueLine(line []byte) (key, val []byte, ok bool) {
	for i := 0; i < len(line); {
		r, n := utf8.DecodeRune(line[i:])
		// key begins with a lower case character ...
		if i == 0 && !unicode.IsLower(r) {
			return
		}
		// and contains no space characters nor upper case
		// characters.
		if unicode.IsSpace(r) || unicode.IsUpper(r) {
			return
		}
		if i > 0 && r == ':' {
			key, val = line[:i], line[i+1:]
			break
		}
		i += n
	}
	if len(key) == 0 {
		return
	}
	val = bytes.TrimSpace(val)
	return key, val, true
}

// parseSample parses the rest of a sample line of the given kind into
// r.sample.
func (r *Reader) parseSample(kind profile.Kind, line []byte) *SyntaxError {
	s := &r.sample
	s.Kind = kind
	s.Name, s.Line = "", 0
	s.Values = s.Values[:0]
	s.fileName, s.line = r.fileName, r.line
	s.Profile = r.config["profile"]
	s.Module = r.config["module"]
	s.File = r.config["file"]
	for _, c := range []struct {
		key string
		dst *int
	}{
		{"rank", &s.Rank},
		{"thread", &s.Thread},
		{"experiment", &s.Experiment},
	} {
		*c.dst = 0
		v, ok := r.config[c.key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return r.newSyntaxError(fmt.Sprintf("bad %s %q", c.key, v))
		}
		*c.dst = n
	}

	var f []byte
	if kind != profile.Program {
		f, line = splitField(line)
		if len(f) == 0 {
			return r.newSyntaxError("missing hotspot name")
		}
		s.Name = r.intern(f)
		f, line = splitField(line)
		n, err := strconv.Atoi(string(f))
		if err != nil || n < 0 {
			return r.newSyntaxError(fmt.Sprintf("bad line number %q", f))
		}
		s.Line = n
	}

	// Read value/counter pairs.
	for {
		f, line = splitField(line)
		if len(f) == 0 {
			if len(s.Values) > 0 {
				break
			}
			return r.newSyntaxError("missing measurements")
		}
		v, err := strconv.ParseFloat(string(f), 64)
		if err != nil {
			return r.newSyntaxError("parsing measurement: " + err.(*strconv.NumError).Err.Error())
		}
		f, line = splitField(line)
		if len(f) == 0 {
			return r.newSyntaxError("missing counter")
		}
		s.Values = append(s.Values, Value{v, r.intern(f)})
	}
	return nil
}

func (r *Reader) intern(x []byte) string {
	const maxIntern = 1024
	if s, ok := r.interns[string(x)]; ok {
		return s
	}
	if len(r.interns) >= maxIntern {
		// The choice of item to evict doesn't affect correctness.
		for k := range r.interns {
			delete(r.interns, k)
			break
		}
	}
	s := string(x)
	r.interns[s] = s
	return s
}

// Result returns the record that was just read by Scan. This is either
// a *Sample or a *SyntaxError indicating a parse error.
//
// Parse errors are non-fatal, so the caller can continue to call
// Scan.
//
// If this returns a *Sample, the caller should not retain it, as it
// will be overwritten by the next call to Scan.
func (r *Reader) Result() Record {
	if r.rec == nil {
		return noResult
	}
	return r.rec
}

// Err returns the first non-EOF I/O error that was encountered by the
// Reader.
func (r *Reader) Err() error {
	return r.err
}

// splitField consumes and returns non-whitespace in x as field,
// consumes whitespace following the field, and then returns the
// remaining bytes of x.
func splitField(x []byte) (field, rest []byte) {
	x = bytes.TrimLeftFunc(x, unicode.IsSpace)
	i := bytes.IndexFunc(x, unicode.IsSpace)
	if i < 0 {
		return x, nil
	}
	return x[:i], bytes.TrimLeftFunc(x[i:], unicode.IsSpace)
}
