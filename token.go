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
	"fmt"
	"strconv"
)

// TokenKind classifies a Token produced by the object-grammar tokenizer.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokNumber
	TokName
	TokString
	TokKeyword
	TokDelim
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "EOF"
	case TokNumber:
		return "number"
	case TokName:
		return "name"
	case TokString:
		return "string"
	case TokKeyword:
		return "keyword"
	case TokDelim:
		return "delimiter"
	default:
		return "?"
	}
}

// Token is one lexical unit of the object grammar (spec.md §4.2).
type Token struct {
	Kind TokenKind
	Pos  int64

	Num float64 // valid when Kind == TokNumber

	Str string // valid when Kind is TokName, TokKeyword or TokDelim

	Bytes []byte     // valid when Kind == TokString
	Form  StringForm // valid when Kind == TokString
}

func isWhiteSpace(c int) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	default:
		return false
	}
}

func isDelimiter(c int) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return false
	}
}

func isRegular(c int) bool {
	return c >= 0 && !isWhiteSpace(c) && !isDelimiter(c)
}

// Tokenizer produces a stream of Tokens from a Scanner, implementing the
// object grammar of spec.md §4.2. It never panics on malformed input:
// lexical errors are reported as recoverable via the returned error, and
// callers are expected to skip forward and retry (spec.md §7).
type Tokenizer struct {
	s *Scanner
}

// NewTokenizer returns a Tokenizer reading from s.
func NewTokenizer(s *Scanner) *Tokenizer {
	return &Tokenizer{s: s}
}

// Scanner returns the underlying Scanner, so that callers (the object
// parser, in particular) can inspect or adjust the cursor between tokens,
// e.g. to read raw stream bytes.
func (t *Tokenizer) Scanner() *Scanner {
	return t.s
}

// SkipWhiteSpace advances past whitespace and "%" comments.
func (t *Tokenizer) SkipWhiteSpace() {
	s := t.s
	for {
		c := s.Peek()
		switch {
		case isWhiteSpace(c):
			s.Advance()
		case c == '%':
			for {
				c := s.Peek()
				if c < 0 || c == '\n' || c == '\r' {
					break
				}
				s.Advance()
			}
		default:
			return
		}
	}
}

// Next reads and returns the next token.
func (t *Tokenizer) Next() (Token, error) {
	t.SkipWhiteSpace()
	s := t.s
	pos := s.Pos()
	c := s.Peek()

	switch {
	case c < 0:
		return Token{Kind: TokEOF, Pos: pos}, nil

	case c == '/':
		s.Advance()
		name, err := t.readName()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: TokName, Pos: pos, Str: name}, nil

	case c == '(':
		s.Advance()
		data, err := t.readLiteralString()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: TokString, Pos: pos, Bytes: data, Form: StringLiteral}, nil

	case c == '<':
		if s.PeekAt(1) == '<' {
			s.AdvanceN(2)
			return Token{Kind: TokDelim, Pos: pos, Str: "<<"}, nil
		}
		s.Advance()
		data, err := t.readHexString()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: TokString, Pos: pos, Bytes: data, Form: StringHex}, nil

	case c == '>':
		if s.PeekAt(1) == '>' {
			s.AdvanceN(2)
			return Token{Kind: TokDelim, Pos: pos, Str: ">>"}, nil
		}
		s.Advance()
		return Token{}, withLoc(fmt.Errorf("unexpected '>'"), "token")

	case c == '[' || c == ']' || c == '{' || c == '}':
		s.Advance()
		return Token{Kind: TokDelim, Pos: pos, Str: string(rune(c))}, nil

	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return t.readNumberOrKeyword(pos)

	default:
		return t.readKeyword(pos)
	}
}

func (t *Tokenizer) readName() (string, error) {
	s := t.s
	var buf []byte
	for {
		c := s.Peek()
		if !isRegular(c) {
			break
		}
		if c == '#' && isHexDigit(s.PeekAt(1)) && isHexDigit(s.PeekAt(2)) {
			hi := hexVal(s.PeekAt(1))
			lo := hexVal(s.PeekAt(2))
			buf = append(buf, byte(hi<<4|lo))
			s.AdvanceN(3)
			continue
		}
		buf = append(buf, byte(c))
		s.Advance()
	}
	return string(buf), nil
}

func (t *Tokenizer) readLiteralString() ([]byte, error) {
	s := t.s
	var buf []byte
	depth := 1
	for {
		c := s.Peek()
		if c < 0 {
			return buf, withLoc(fmt.Errorf("unterminated literal string"), "token")
		}
		s.Advance()
		switch c {
		case '(':
			depth++
			buf = append(buf, '(')
		case ')':
			depth--
			if depth == 0 {
				return buf, nil
			}
			buf = append(buf, ')')
		case '\\':
			esc := s.Peek()
			switch esc {
			case 'n':
				buf = append(buf, '\n')
				s.Advance()
			case 'r':
				buf = append(buf, '\r')
				s.Advance()
			case 't':
				buf = append(buf, '\t')
				s.Advance()
			case 'b':
				buf = append(buf, '\b')
				s.Advance()
			case 'f':
				buf = append(buf, '\f')
				s.Advance()
			case '(', ')', '\\':
				buf = append(buf, byte(esc))
				s.Advance()
			case '\r':
				s.Advance()
				if s.Peek() == '\n' {
					s.Advance()
				}
			case '\n':
				s.Advance()
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := 0
				for i := 0; i < 3; i++ {
					d := s.Peek()
					if d < '0' || d > '7' {
						break
					}
					v = v*8 + int(d-'0')
					s.Advance()
				}
				buf = append(buf, byte(v))
			default:
				if esc >= 0 {
					buf = append(buf, byte(esc))
					s.Advance()
				}
			}
		default:
			buf = append(buf, byte(c))
		}
	}
}

func (t *Tokenizer) readHexString() ([]byte, error) {
	s := t.s
	var buf []byte
	var nibble int
	haveNibble := false
	for {
		c := s.Peek()
		if c < 0 {
			return buf, withLoc(fmt.Errorf("unterminated hex string"), "token")
		}
		if c == '>' {
			s.Advance()
			if haveNibble {
				buf = append(buf, byte(nibble<<4))
			}
			return buf, nil
		}
		if isWhiteSpace(c) {
			s.Advance()
			continue
		}
		if !isHexDigit(c) {
			return buf, withLoc(fmt.Errorf("invalid hex digit %q", rune(c)), "token")
		}
		v := hexVal(c)
		s.Advance()
		if haveNibble {
			buf = append(buf, byte(nibble<<4|v))
			haveNibble = false
		} else {
			nibble = v
			haveNibble = true
		}
	}
}

func (t *Tokenizer) readNumberOrKeyword(pos int64) (Token, error) {
	s := t.s
	var buf []byte
	isNumeric := true
	sawDigit := false
	sawDot := false

	c := s.Peek()
	if c == '+' || c == '-' {
		buf = append(buf, byte(c))
		s.Advance()
	}
	for {
		c := s.Peek()
		switch {
		case c >= '0' && c <= '9':
			sawDigit = true
			buf = append(buf, byte(c))
			s.Advance()
		case c == '.' && !sawDot:
			sawDot = true
			buf = append(buf, byte(c))
			s.Advance()
		case isRegular(c):
			// Not a well formed number after all; this is a keyword such
			// as a malformed number ("1.2.3") - consume the rest as part
			// of the keyword token and let the parser reject it.
			isNumeric = false
			buf = append(buf, byte(c))
			s.Advance()
		default:
			goto done
		}
	}
done:
	if isNumeric && sawDigit {
		v, err := strconv.ParseFloat(string(buf), 64)
		if err != nil {
			return Token{}, withLoc(err, "token")
		}
		return Token{Kind: TokNumber, Pos: pos, Num: v}, nil
	}
	return Token{Kind: TokKeyword, Pos: pos, Str: string(buf)}, nil
}

func (t *Tokenizer) readKeyword(pos int64) (Token, error) {
	s := t.s
	var buf []byte
	for {
		c := s.Peek()
		if !isRegular(c) {
			break
		}
		buf = append(buf, byte(c))
		s.Advance()
	}
	if len(buf) == 0 {
		c := s.Peek()
		s.Advance()
		return Token{}, withLoc(fmt.Errorf("unexpected byte %q", rune(c)), "token")
	}
	return Token{Kind: TokKeyword, Pos: pos, Str: string(buf)}, nil
}

func isHexDigit(c int) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c int) int {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
