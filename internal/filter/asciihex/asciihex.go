// seehuhn.de/go/pdfkit - a library for reading and writing PDF files
// Copyright (C) 2024  Jochen Voss <voss@seehuhn.de>
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

// Package asciihex implements the PDF ASCIIHexDecode filter (PDF
// 32000-1:2008, 7.4.2).
package asciihex

import (
	"bufio"
	"fmt"
	"io"
)

const hexDigits = "0123456789abcdef"

// Encode returns a WriteCloser that hex-encodes everything written to it,
// wrapping lines so that none exceeds width characters, and writes the
// result plus the ">" EOD marker to w on Close.
func Encode(w io.WriteCloser, width int) io.WriteCloser {
	return &encoder{w: w, width: width}
}

type encoder struct {
	w     io.WriteCloser
	width int
	buf   []byte
}

func (e *encoder) Write(p []byte) (int, error) {
	e.buf = append(e.buf, p...)
	return len(p), nil
}

func (e *encoder) Close() error {
	var out []byte
	col := 0
	for _, b := range e.buf {
		if col > 0 && col+2 > e.width {
			out = append(out, '\n')
			col = 0
		}
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0F])
		col += 2
	}
	if col > 0 && col+1 > e.width {
		out = append(out, '\n')
	}
	out = append(out, '>')

	if _, err := e.w.Write(out); err != nil {
		return err
	}
	return e.w.Close()
}

// Decode returns a Reader producing the bytes represented by the
// ASCIIHex-encoded data read from r. Whitespace is ignored, an odd
// trailing digit is padded with an implicit zero nibble, and a non-hex,
// non-whitespace byte other than the ">" terminator is reported as an
// error once all bytes decoded before it have been returned.
func Decode(r io.Reader) io.Reader {
	return &decoder{r: bufio.NewReader(r)}
}

type decoder struct {
	r       *bufio.Reader
	pending []byte
	err     error
	started bool
}

func (d *decoder) Read(p []byte) (int, error) {
	if !d.started {
		d.started = true
		d.fill()
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	if n > 0 {
		return n, nil
	}
	if d.err != nil {
		return 0, d.err
	}
	return 0, io.EOF
}

func (d *decoder) fill() {
	haveNibble := false
	var nibble byte
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			if haveNibble {
				d.pending = append(d.pending, nibble<<4)
			}
			d.err = fmt.Errorf("asciihex: missing EOD marker: %w", err)
			return
		}
		switch {
		case c == '>':
			if haveNibble {
				d.pending = append(d.pending, nibble<<4)
			}
			return
		case isSpace(c):
			continue
		case isHex(c):
			v := hexVal(c)
			if haveNibble {
				d.pending = append(d.pending, nibble<<4|v)
				haveNibble = false
			} else {
				nibble = v
				haveNibble = true
			}
		default:
			if haveNibble {
				d.pending = append(d.pending, nibble<<4)
			}
			d.err = fmt.Errorf("asciihex: invalid character %q", rune(c))
			return
		}
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	default:
		return false
	}
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
