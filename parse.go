// seehuhn.de/go/pdfkit - a library for reading and writing PDF files
// Copyright (C) 2021  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pdf

import (
	"bytes"
	"fmt"
	"io"
)

// Parser turns a token stream into Objects, implementing the object
// grammar of spec.md §4.3: arrays, dictionaries, the stream contract, and
// indirect object definitions. A Parser never resolves indirect
// references; it only recognizes the "N G R" syntax and returns a Ref.
// That is the Registry's job.
type Parser struct {
	tok  *Tokenizer
	buf  []Token
	warn func(stage string, err error)
}

// NewParser returns a Parser reading from s.
func NewParser(s *Scanner) *Parser {
	return &Parser{tok: NewTokenizer(s)}
}

// SetWarningSink installs fn as the recipient of recoverable parse
// warnings (duplicate dict keys, a missing endobj, stream length repair).
// If fn is nil, warnings are silently dropped.
func (p *Parser) SetWarningSink(fn func(stage string, err error)) {
	p.warn = fn
}

func (p *Parser) warnf(stage string, format string, args ...any) {
	if p.warn != nil {
		p.warn(stage, fmt.Errorf(format, args...))
	}
}

// Scanner returns the underlying Scanner.
func (p *Parser) Scanner() *Scanner {
	return p.tok.Scanner()
}

func (p *Parser) next() (Token, error) {
	if n := len(p.buf); n > 0 {
		t := p.buf[n-1]
		p.buf = p.buf[:n-1]
		return t, nil
	}
	return p.tok.Next()
}

func (p *Parser) pushback(t Token) {
	p.buf = append(p.buf, t)
}

// ParseObject reads one object (scalar, array, dictionary or stream) from
// the current position.
func (p *Parser) ParseObject() (Object, error) {
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	return p.parseFrom(t)
}

func (p *Parser) parseFrom(t Token) (Object, error) {
	switch t.Kind {
	case TokEOF:
		return nil, withLoc(io.ErrUnexpectedEOF, "object")

	case TokNumber:
		return p.parseNumberOrRef(t)

	case TokName:
		return Name(t.Str), nil

	case TokString:
		return String{Bytes: t.Bytes, Form: t.Form}, nil

	case TokKeyword:
		switch t.Str {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return nil, nil
		default:
			return nil, withLoc(fmt.Errorf("unexpected keyword %q", t.Str), "object")
		}

	case TokDelim:
		switch t.Str {
		case "[":
			return p.parseArray()
		case "<<":
			return p.parseDictOrStream()
		default:
			return nil, withLoc(fmt.Errorf("unexpected delimiter %q", t.Str), "object")
		}
	}
	return nil, withLoc(fmt.Errorf("unexpected token"), "object")
}

// parseNumberOrRef implements the grammar's one piece of genuine
// lookahead: "N G R" is a reference, anything else starting with a
// non-negative integer is just a number followed by whatever comes next.
func (p *Parser) parseNumberOrRef(t Token) (Object, error) {
	if !isNonNegInt(t.Num) {
		return Number(t.Num), nil
	}

	t2, err := p.next()
	if err != nil {
		return nil, err
	}
	if t2.Kind == TokNumber && isNonNegInt(t2.Num) {
		t3, err := p.next()
		if err != nil {
			return nil, err
		}
		if t3.Kind == TokKeyword && t3.Str == "R" {
			return Ref{Num: uint32(t.Num), Gen: uint16(t2.Num)}, nil
		}
		p.pushback(t3)
	}
	p.pushback(t2)
	return Number(t.Num), nil
}

func isNonNegInt(x float64) bool {
	return x >= 0 && x == float64(int64(x))
}

func (p *Parser) parseArray() (Object, error) {
	arr := Array{}
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.Kind == TokDelim && t.Str == "]" {
			return arr, nil
		}
		if t.Kind == TokEOF {
			return arr, withLoc(io.ErrUnexpectedEOF, "array")
		}
		obj, err := p.parseFrom(t)
		if err != nil {
			return nil, withLoc(err, "array")
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) parseDictOrStream() (Object, error) {
	d := NewDict()
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.Kind == TokDelim && t.Str == ">>" {
			break
		}
		if t.Kind == TokEOF {
			return nil, withLoc(io.ErrUnexpectedEOF, "dict")
		}
		if t.Kind != TokName {
			return nil, withLoc(fmt.Errorf("expected a name key, found %s", t.Kind), "dict")
		}
		key := Name(t.Str)

		vt, err := p.next()
		if err != nil {
			return nil, err
		}
		val, err := p.parseFrom(vt)
		if err != nil {
			return nil, withLoc(err, "dict")
		}
		if d.Get(key) != nil {
			p.warnf(StageLex, "duplicate dict key %q, keeping last value", key)
		}
		d.Set(key, val)
	}

	t, err := p.next()
	if err != nil {
		return nil, err
	}
	if t.Kind == TokKeyword && t.Str == "stream" {
		return p.parseStreamBody(d)
	}
	p.pushback(t)
	return d, nil
}

// parseStreamBody implements spec.md §4.3's stream contract: the keyword
// "stream" is followed by CRLF or LF (a bare CR is accepted leniently
// with a warning), then exactly /Length raw bytes, then whitespace and
// the keyword "endstream". If /Length is missing, not a literal integer,
// or does not land on "endstream", the raw data is recovered by scanning
// forward for the next "endstream" keyword instead.
func (p *Parser) parseStreamBody(d *Dict) (Object, error) {
	s := p.tok.Scanner()

	switch s.Peek() {
	case '\r':
		s.Advance()
		if s.Peek() == '\n' {
			s.Advance()
		} else {
			p.warnf(StageLex, "stream keyword followed by a bare CR")
		}
	case '\n':
		s.Advance()
	default:
		p.warnf(StageLex, "stream keyword not followed by an end-of-line")
	}

	start := s.Pos()
	buf := s.Bytes()

	var raw []byte
	if n, ok := d.Get("Length").(Number); ok && isNonNegInt(float64(n)) {
		end := start + int64(n)
		if end >= start && end <= s.Len() && endstreamFollows(buf, end) {
			raw = append([]byte(nil), buf[start:end]...)
			s.Seek(end)
		}
	}

	if raw == nil {
		end := scanForEndstream(buf, start)
		raw = append([]byte(nil), buf[start:end]...)
		s.Seek(end)
		p.warnf(StageLex, "stream /Length missing or incorrect, recovered by scanning for endstream")
	}

	p.tok.SkipWhiteSpace()
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	if !(t.Kind == TokKeyword && t.Str == "endstream") {
		return nil, withLoc(fmt.Errorf("expected endstream, found %q", t.Str), "stream")
	}

	return NewStream(d, raw), nil
}

// endstreamFollows reports whether, starting at pos, only whitespace
// precedes the keyword "endstream".
func endstreamFollows(buf []byte, pos int64) bool {
	i := pos
	for i < int64(len(buf)) && isWhiteSpace(int(buf[i])) {
		i++
	}
	return bytes.HasPrefix(buf[i:], []byte("endstream"))
}

// scanForEndstream returns the offset of the end of stream data, found by
// searching for the next "endstream" keyword and stripping the single
// end-of-line sequence that conventionally precedes it.
func scanForEndstream(buf []byte, start int64) int64 {
	idx := bytes.Index(buf[start:], []byte("endstream"))
	if idx < 0 {
		return int64(len(buf))
	}
	end := start + int64(idx)
	switch {
	case end > start && buf[end-1] == '\n' && end-1 > start && buf[end-2] == '\r':
		end -= 2
	case end > start && (buf[end-1] == '\n' || buf[end-1] == '\r'):
		end--
	}
	return end
}

// ParseIndirectObject reads one "N G obj ... endobj" definition starting
// at the current position.
func (p *Parser) ParseIndirectObject() (Ref, Object, error) {
	t1, err := p.next()
	if err != nil {
		return Ref{}, nil, err
	}
	if t1.Kind != TokNumber || !isNonNegInt(t1.Num) {
		return Ref{}, nil, withLoc(fmt.Errorf("expected object number, found %s", t1.Kind), "obj")
	}
	t2, err := p.next()
	if err != nil {
		return Ref{}, nil, err
	}
	if t2.Kind != TokNumber || !isNonNegInt(t2.Num) {
		return Ref{}, nil, withLoc(fmt.Errorf("expected generation number, found %s", t2.Kind), "obj")
	}
	t3, err := p.next()
	if err != nil {
		return Ref{}, nil, err
	}
	if !(t3.Kind == TokKeyword && t3.Str == "obj") {
		return Ref{}, nil, withLoc(fmt.Errorf("expected %q, found %q", "obj", t3.Str), "obj")
	}

	ref := Ref{Num: uint32(t1.Num), Gen: uint16(t2.Num)}

	obj, err := p.ParseObject()
	if err != nil {
		return ref, nil, withLoc(err, fmt.Sprintf("object %d %d", ref.Num, ref.Gen))
	}

	t4, err := p.next()
	if err != nil {
		return ref, obj, err
	}
	if !(t4.Kind == TokKeyword && t4.Str == "endobj") {
		p.warnf(StageLex, "object %d %d: missing endobj", ref.Num, ref.Gen)
		p.pushback(t4)
	}
	return ref, obj, nil
}
