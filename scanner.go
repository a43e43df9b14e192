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

// Scanner is a byte cursor over an immutable input buffer. It is the only
// component that touches the raw bytes of a PDF file; the tokenizers for
// both grammars (object grammar and content-stream grammar) are built on
// top of a shared Scanner. Scanner never allocates: Slice returns a
// sub-slice of the original buffer, not a copy.
type Scanner struct {
	buf []byte
	pos int64
}

// NewScanner returns a Scanner positioned at the start of buf.
func NewScanner(buf []byte) *Scanner {
	return &Scanner{buf: buf}
}

// Pos returns the current cursor position.
func (s *Scanner) Pos() int64 {
	return s.pos
}

// Len returns the total length of the underlying buffer.
func (s *Scanner) Len() int64 {
	return int64(len(s.buf))
}

// AtEOF reports whether the cursor has reached the end of the buffer.
func (s *Scanner) AtEOF() bool {
	return s.pos >= int64(len(s.buf))
}

// Peek returns the byte at the current position without advancing, or -1
// if the position is at or past the end of the buffer.
func (s *Scanner) Peek() int {
	return s.PeekAt(0)
}

// PeekAt returns the byte at offset bytes from the current position
// without advancing, or -1 if that position is out of range in either
// direction.
func (s *Scanner) PeekAt(offset int64) int {
	p := s.pos + offset
	if p < 0 || p >= int64(len(s.buf)) {
		return -1
	}
	return int(s.buf[p])
}

// Advance moves the cursor forward by one byte. It is a no-op at EOF.
func (s *Scanner) Advance() {
	if s.pos < int64(len(s.buf)) {
		s.pos++
	}
}

// AdvanceN moves the cursor forward by n bytes, clamped to the end of the
// buffer.
func (s *Scanner) AdvanceN(n int64) {
	s.pos += n
	if s.pos > int64(len(s.buf)) {
		s.pos = int64(len(s.buf))
	}
	if s.pos < 0 {
		s.pos = 0
	}
}

// Seek moves the cursor to an absolute position, clamped to [0, Len()].
func (s *Scanner) Seek(pos int64) {
	if pos < 0 {
		pos = 0
	}
	if pos > int64(len(s.buf)) {
		pos = int64(len(s.buf))
	}
	s.pos = pos
}

// Slice returns buf[a:b]. It panics if the range is invalid, matching the
// behavior of a plain slice expression; callers are expected to bounds
// check using Len() first.
func (s *Scanner) Slice(a, b int64) []byte {
	return s.buf[a:b]
}

// Bytes returns the whole underlying buffer. Callers must not modify it.
func (s *Scanner) Bytes() []byte {
	return s.buf
}

// HasPrefixAt reports whether buf[pos:] starts with prefix.
func (s *Scanner) HasPrefixAt(pos int64, prefix string) bool {
	end := pos + int64(len(prefix))
	if pos < 0 || end > int64(len(s.buf)) {
		return false
	}
	return string(s.buf[pos:end]) == prefix
}
