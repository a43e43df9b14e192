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

package content

import (
	"fmt"
	"io"

	"seehuhn.de/go/pdfkit"
)

// Operation is one operator invocation in a content stream: zero or more
// operands followed by the operator keyword. BI/ID/EI sequences are
// collapsed into a single Operation with Op "BI" and Image populated.
type Operation struct {
	Op       string
	Operands []pdf.Object
	Image    *InlineImage // non-nil only when Op == "BI"
}

// InlineImage is the payload of a BI/ID/EI sequence: the dictionary of
// image parameters (using the usual abbreviated inline-image keys, e.g.
// "W"/"H"/"CS"/"F" rather than "Width"/"Height"/"ColorSpace"/"Filter") and
// the still-encoded raw image bytes between "ID " and the terminating
// "EI".
type InlineImage struct {
	Params *pdf.Dict
	Data   []byte
}

// Parser reads a content stream (spec.md §4.6-§4.7): an operand/operator
// grammar lexed with the same tokens as the object grammar, but with
// different semantics (any bare keyword other than true/false/null is an
// operator, not a parse error) and a lenient recovery rule for stray
// delimiters.
type Parser struct {
	tok  *pdf.Tokenizer
	buf  []pdf.Token
	warn func(stage string, err error)
}

// NewParser returns a Parser reading the content stream in buf.
func NewParser(buf []byte) *Parser {
	return &Parser{tok: pdf.NewTokenizer(pdf.NewScanner(buf))}
}

// SetWarningSink installs fn as the recipient of recoverable parse
// warnings. If fn is nil, warnings are silently dropped.
func (p *Parser) SetWarningSink(fn func(stage string, err error)) {
	p.warn = fn
}

func (p *Parser) warnf(format string, args ...any) {
	if p.warn != nil {
		p.warn("content", fmt.Errorf(format, args...))
	}
}

func (p *Parser) next() (pdf.Token, error) {
	if n := len(p.buf); n > 0 {
		t := p.buf[n-1]
		p.buf = p.buf[:n-1]
		return t, nil
	}
	return p.tok.Next()
}

func (p *Parser) pushback(t pdf.Token) {
	p.buf = append(p.buf, t)
}

// ParseAll reads every operation in the stream. It never aborts on a
// malformed operand: unexpected closing delimiters are skipped with a
// warning and parsing resumes at the next token, so that one corrupt
// operator does not lose the rest of the page's content.
func (p *Parser) ParseAll() ([]Operation, error) {
	var ops []Operation
	var operands []pdf.Object
	for {
		t, err := p.next()
		if err != nil {
			return ops, err
		}
		if t.Kind == pdf.TokEOF {
			return ops, nil
		}

		obj, cls, err := p.classify(t)
		if err != nil {
			return ops, err
		}
		switch cls {
		case clsSkip:
			continue
		case clsOperand:
			operands = append(operands, obj)
			continue
		case clsOperator:
			if t.Str == "BI" {
				img, err := p.parseInlineImage()
				if err != nil {
					return ops, err
				}
				ops = append(ops, Operation{Op: "BI", Image: img})
				operands = nil
				continue
			}
			ops = append(ops, Operation{Op: t.Str, Operands: operands})
			operands = nil
		}
	}
}

func (p *Parser) parseArray() (pdf.Array, error) {
	arr := pdf.Array{}
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.Kind == pdf.TokDelim && t.Str == "]" {
			return arr, nil
		}
		if t.Kind == pdf.TokEOF {
			return arr, io.ErrUnexpectedEOF
		}
		obj, cls, err := p.classify(t)
		if err != nil {
			return nil, err
		}
		if cls != clsOperand {
			p.warnf("unexpected token %s inside array, skipping", t.Kind)
			continue
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) parseDict() (*pdf.Dict, error) {
	d := pdf.NewDict()
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.Kind == pdf.TokDelim && t.Str == ">>" {
			return d, nil
		}
		if t.Kind == pdf.TokEOF {
			return d, io.ErrUnexpectedEOF
		}
		if t.Kind != pdf.TokName {
			p.warnf("expected a name key inside dict, found %s, skipping", t.Kind)
			continue
		}
		key := pdf.Name(t.Str)

		vt, err := p.next()
		if err != nil {
			return nil, err
		}
		val, cls, err := p.classify(vt)
		if err != nil {
			return nil, err
		}
		if cls != clsOperand {
			p.warnf("expected a value for dict key %q, found %s, skipping", key, vt.Kind)
			continue
		}
		d.Set(key, val)
	}
}

// parseInlineImage reads the dictionary and raw data of a BI...ID...EI
// sequence. The dictionary is read as key/value pairs up to the "ID"
// keyword, reusing the operand classifier for the values; the raw data is delimited
// by a single whitespace byte after "ID" and a heuristic end-of-data
// scan, since no /Length is available to bound it (spec.md §4.7).
func (p *Parser) parseInlineImage() (*InlineImage, error) {
	params := pdf.NewDict()
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.Kind == pdf.TokKeyword && t.Str == "ID" {
			break
		}
		if t.Kind == pdf.TokEOF {
			return nil, io.ErrUnexpectedEOF
		}
		if t.Kind != pdf.TokName {
			p.warnf("expected a name key inside inline image dict, found %s, skipping", t.Kind)
			continue
		}
		key := pdf.Name(t.Str)
		vt, err := p.next()
		if err != nil {
			return nil, err
		}
		val, cls, err := p.classify(vt)
		if err != nil {
			return nil, err
		}
		if cls != clsOperand {
			p.warnf("expected a value for inline image key %q, found %s, skipping", key, vt.Kind)
			continue
		}
		params.Set(key, val)
	}

	s := p.tok.Scanner()
	// exactly one whitespace byte separates "ID" from the raw data
	if !isSpaceByte(byte(s.Peek())) {
		p.warnf("ID not followed by whitespace")
	} else {
		s.Advance()
	}
	start := s.Pos()
	buf := s.Bytes()

	end := p.findImageEnd(params, buf, start)
	data := append([]byte(nil), buf[start:end]...)
	s.Seek(end)

	p.tok.SkipWhiteSpace()
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	if !(t.Kind == pdf.TokKeyword && t.Str == "EI") {
		p.warnf("expected EI after inline image data, found %s %q", t.Kind, t.Str)
		p.pushback(t)
	}

	return &InlineImage{Params: params, Data: data}, nil
}

// findImageEnd locates the end of an inline image's raw data, dispatching
// on the first filter named in /F (or /Filter): the encoding applied
// first during decode is the one whose syntax directly wraps the bytes on
// the wire, so it determines how the end of data is recognized.
func (p *Parser) findImageEnd(params *pdf.Dict, buf []byte, start int64) int64 {
	switch inlineImageFilterName(params) {
	case pdf.FilterDCTDecode:
		return findDCTEnd(buf, start)
	case pdf.FilterASCII85Decode:
		return findASCII85End(buf, start)
	case pdf.FilterASCIIHexDecode:
		return findASCIIHexEnd(buf, start)
	default:
		return p.findEIHeuristic(buf, start)
	}
}

func inlineImageFilterName(params *pdf.Dict) pdf.Name {
	raw := params.Get("F")
	if raw == nil {
		raw = params.Get("Filter")
	}
	switch f := raw.(type) {
	case pdf.Name:
		return pdf.ResolveFilterName(f)
	case pdf.Array:
		if len(f) > 0 {
			if n, ok := f[0].(pdf.Name); ok {
				return pdf.ResolveFilterName(n)
			}
		}
	}
	return ""
}

// findDCTEnd walks the JPEG marker stream: 0xFF 0x00 is a stuffed data
// byte, 0xFF 0xFF is a fill byte, 0xFF 0xD9 is EOI, and any other marker
// byte is followed by a big-endian 16-bit length (including the two
// length bytes themselves). On EOI, the scan continues forward for the
// literal "EI" operator, since producers sometimes pad between the two.
func findDCTEnd(buf []byte, start int64) int64 {
	n := int64(len(buf))
	i := start
	for i+1 < n {
		if buf[i] != 0xFF {
			i++
			continue
		}
		switch buf[i+1] {
		case 0x00:
			i += 2
		case 0xD9:
			return scanForEI(buf, i+2)
		case 0xFF:
			i++
		default:
			if i+3 >= n {
				return n
			}
			length := int64(buf[i+2])<<8 | int64(buf[i+3])
			if length < 2 {
				return n
			}
			i += 2 + length
		}
	}
	return n
}

func scanForEI(buf []byte, from int64) int64 {
	n := int64(len(buf))
	i := from
	for i+1 < n {
		if buf[i] == 'E' && buf[i+1] == 'I' && (i == from || isSpaceByte(buf[i-1])) {
			end := i
			if end > from && isSpaceByte(buf[end-1]) {
				end--
			}
			return end
		}
		i++
	}
	return n
}

// findASCII85End scans for the "~>" end-of-data marker, tolerating
// whitespace between the two bytes and a missing ">" when "EI" follows
// directly (some producers omit the terminator since EI already ends the
// data unambiguously).
func findASCII85End(buf []byte, start int64) int64 {
	n := int64(len(buf))
	for i := start; i < n; i++ {
		if buf[i] != '~' {
			continue
		}
		j := i + 1
		for j < n && isSpaceByte(buf[j]) {
			j++
		}
		if j < n && buf[j] == '>' {
			return j + 1
		}
		if j+1 < n && buf[j] == 'E' && buf[j+1] == 'I' {
			return i + 1
		}
	}
	return n
}

// findASCIIHexEnd scans for the ">" end-of-data marker.
func findASCIIHexEnd(buf []byte, start int64) int64 {
	n := int64(len(buf))
	for i := start; i < n; i++ {
		if buf[i] == '>' {
			return i + 1
		}
	}
	return n
}

// findEIHeuristic is used for filters with no unambiguous terminator (and
// for uncompressed data): it searches for a whitespace-preceded "EI",
// requires the following bytes to look like content-stream syntax (15
// ASCII-printable bytes, tolerating a single NUL but rejecting runs of
// them), and additionally requires a syntactically valid next operation
// with an operand count matching the known operator arity table. If no
// candidate passes the full check, the scan falls back to the last
// candidate that at least passed the ASCII-printable test, with a
// warning; failing that, the whole remainder is treated as image data.
func (p *Parser) findEIHeuristic(buf []byte, start int64) int64 {
	n := int64(len(buf))
	lastCandidate := int64(-1)
	for i := start; i+1 < n; i++ {
		if !(buf[i] == 'E' && buf[i+1] == 'I' && (i == start || isSpaceByte(buf[i-1]))) {
			continue
		}
		after := i + 2
		if !asciiPrintableRun(buf, after, 15) {
			continue
		}
		lastCandidate = i
		if validOperatorFollows(buf, after) {
			return i
		}
	}
	if lastCandidate >= 0 {
		p.warnf("inline image: no fully validated EI found, recovering at the last plausible candidate")
		return lastCandidate
	}
	p.warnf("inline image: no EI found, treating remainder as image data")
	return n
}

func asciiPrintableRun(buf []byte, pos int64, count int) bool {
	n := int64(len(buf))
	prevNul := false
	for checked := 0; pos < n && checked < count; checked++ {
		c := buf[pos]
		if c == 0 {
			if prevNul {
				return false
			}
			prevNul = true
		} else {
			prevNul = false
			if c < 0x20 || c > 0x7E {
				return false
			}
		}
		pos++
	}
	return true
}

// operatorArity maps known content-stream operators to their expected
// operand count; -1 marks operators with a variable, non-zero count
// (the color-setting operators, whose arity depends on the active color
// space).
var operatorArity = map[string]int{
	"q": 0, "Q": 0, "cm": 6, "w": 1, "J": 1, "j": 1, "M": 1, "d": 2,
	"ri": 1, "i": 1, "gs": 1,
	"m": 2, "l": 2, "c": 6, "v": 4, "y": 4, "h": 0, "re": 4,
	"S": 0, "s": 0, "f": 0, "F": 0, "f*": 0, "B": 0, "B*": 0, "b": 0, "b*": 0, "n": 0,
	"W": 0, "W*": 0,
	"Tc": 1, "Tw": 1, "Tz": 1, "TL": 1, "Tf": 2, "Tr": 1, "Ts": 1,
	"BT": 0, "ET": 0, "Td": 2, "TD": 2, "Tm": 6, "T*": 0,
	"Tj": 1, "TJ": 1, "'": 1, "\"": 3,
	"CS": 1, "cs": 1, "SC": -1, "SCN": -1, "sc": -1, "scn": -1,
	"G": 1, "g": 1, "RG": 3, "rg": 3, "K": 4, "k": 4,
	"Do": 1,
	"MP": 1, "DP": 2, "BMC": 1, "BDC": 2, "EMC": 0,
	"sh": 1,
	"BX": 0, "EX": 0,
	"d0": 2, "d1": 6,
}

// validOperatorFollows tokenizes forward from pos (the presumed start of
// the next operation) and checks that it consists of a recognized
// operator preceded by the right number of operands.
func validOperatorFollows(buf []byte, pos int64) bool {
	tok := pdf.NewTokenizer(pdf.NewScanner(buf))
	tok.Scanner().Seek(pos)
	count := 0
	for i := 0; i < 64; i++ {
		t, err := tok.Next()
		if err != nil || t.Kind == pdf.TokEOF {
			return false
		}
		if t.Kind == pdf.TokKeyword {
			switch t.Str {
			case "true", "false", "null":
				count++
				continue
			}
			arity, known := operatorArity[t.Str]
			if !known {
				return false
			}
			if arity < 0 {
				return count > 0
			}
			return count == arity
		}
		if t.Kind == pdf.TokDelim {
			switch t.Str {
			case "[":
				if !skipBalanced(tok, "]") {
					return false
				}
			case "<<":
				if !skipBalanced(tok, ">>") {
					return false
				}
			default:
				return false
			}
		}
		count++
	}
	return false
}

func skipBalanced(tok *pdf.Tokenizer, close string) bool {
	depth := 1
	for depth > 0 {
		t, err := tok.Next()
		if err != nil || t.Kind == pdf.TokEOF {
			return false
		}
		if t.Kind == pdf.TokDelim {
			switch t.Str {
			case close:
				depth--
			case "[", "<<":
				depth++
			}
		}
	}
	return true
}
