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

	"seehuhn.de/go/pdfkit"
	"seehuhn.de/go/pdfkit/internal/numfmt"
)

// WriteOperation appends the bit-exact encoding of op to buf: operands
// separated by a single space, the operator token, and a trailing LF.
// The only exception is Op == "BI", whose inline-image form is emitted by
// writeInlineImage instead of the generic operand/operator shape.
func WriteOperation(buf []byte, op Operation) []byte {
	if op.Op == "BI" && op.Image != nil {
		return writeInlineImage(buf, op.Image)
	}
	for i, operand := range op.Operands {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = writeObject(buf, operand)
	}
	if len(op.Operands) > 0 {
		buf = append(buf, ' ')
	}
	buf = append(buf, op.Op...)
	buf = append(buf, '\n')
	return buf
}

// writeObject renders one operand. This only needs to cover the object
// kinds the content grammar can produce: Bool, Number, Name, String,
// Array, *Dict (null is the nil Object). Indirect references never
// appear as content-stream operands.
func writeObject(buf []byte, obj pdf.Object) []byte {
	switch v := obj.(type) {
	case nil:
		return append(buf, "null"...)
	case pdf.Bool:
		if v {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	case pdf.Number:
		return append(buf, numfmt.Format(float64(v))...)
	case pdf.Name:
		return writeName(buf, v)
	case pdf.String:
		return writeString(buf, v)
	case pdf.Array:
		buf = append(buf, '[')
		for i, elem := range v {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = writeObject(buf, elem)
		}
		return append(buf, ']')
	case *pdf.Dict:
		buf = append(buf, "<<"...)
		first := true
		for _, key := range v.Keys() {
			if !first {
				buf = append(buf, ' ')
			}
			first = false
			buf = writeName(buf, key)
			buf = append(buf, ' ')
			buf = writeObject(buf, v.Get(key))
		}
		return append(buf, ">>"...)
	default:
		panic(fmt.Sprintf("content: object kind %T cannot appear in a content stream", obj))
	}
}

// writeName escapes bytes outside 0x21-0x7E, and the PDF delimiter/
// reserved bytes #%()/<>[]{}, as #HH with upper-case hex digits.
func writeName(buf []byte, n pdf.Name) []byte {
	buf = append(buf, '/')
	for _, c := range []byte(n) {
		if needsNameEscape(c) {
			buf = append(buf, '#')
			buf = append(buf, "0123456789ABCDEF"[c>>4], "0123456789ABCDEF"[c&0xF])
		} else {
			buf = append(buf, c)
		}
	}
	return buf
}

func needsNameEscape(c byte) bool {
	if c < 0x21 || c > 0x7E {
		return true
	}
	switch c {
	case '#', '%', '(', ')', '/', '<', '>', '[', ']', '{', '}':
		return true
	default:
		return false
	}
}

// writeString renders a literal string (escaping only "(", ")" and "\")
// for StringHex strings it emits a "<...>" hex form with upper-case
// nibbles instead, since that is how the source form is tagged.
func writeString(buf []byte, s pdf.String) []byte {
	if s.Form == pdf.StringHex {
		buf = append(buf, '<')
		for _, c := range s.Bytes {
			buf = append(buf, "0123456789ABCDEF"[c>>4], "0123456789ABCDEF"[c&0xF])
		}
		return append(buf, '>')
	}

	buf = append(buf, '(')
	for _, c := range s.Bytes {
		switch c {
		case '(', ')', '\\':
			buf = append(buf, '\\', c)
		default:
			buf = append(buf, c)
		}
	}
	return append(buf, ')')
}

// writeInlineImage emits "BI" LF, one "/Key value" line per dictionary
// entry, "ID" SP, the raw (still-encoded) data with no escaping, LF and
// "EI".
func writeInlineImage(buf []byte, img *InlineImage) []byte {
	buf = append(buf, "BI\n"...)
	if img.Params != nil {
		for _, key := range img.Params.Keys() {
			buf = writeName(buf, key)
			buf = append(buf, ' ')
			buf = writeObject(buf, img.Params.Get(key))
			buf = append(buf, '\n')
		}
	}
	buf = append(buf, "ID "...)
	buf = append(buf, img.Data...)
	buf = append(buf, "\nEI\n"...)
	return buf
}

// Builder is an append-only ordered sequence of content-stream
// Operations, the in-memory representation spec.md §4.8 calls the
// content-stream builder.
type Builder struct {
	ops []Operation
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// NewBuilderFromOperations returns a Builder seeded with ops, as when
// continuing to edit a stream that was just parsed.
func NewBuilderFromOperations(ops []Operation) *Builder {
	b := &Builder{ops: append([]Operation(nil), ops...)}
	return b
}

// Append adds one operation to the end of the sequence.
func (b *Builder) Append(op Operation) {
	b.ops = append(b.ops, op)
}

// AppendIf adds op only when cond is true; a convenience for
// conditionally-emitted operators (e.g. only setting /Tz when the
// horizontal scale differs from 100).
func (b *Builder) AppendIf(cond bool, op Operation) {
	if cond {
		b.Append(op)
	}
}

// Op appends an operation built from an operator name and operands,
// without requiring the caller to construct an Operation literal.
func (b *Builder) Op(op string, operands ...pdf.Object) {
	b.Append(Operation{Op: op, Operands: operands})
}

// Len reports the number of operations appended so far.
func (b *Builder) Len() int {
	return len(b.ops)
}

// Empty reports whether no operations have been appended.
func (b *Builder) Empty() bool {
	return len(b.ops) == 0
}

// Operations returns the accumulated operation sequence. The returned
// slice must not be mutated by the caller.
func (b *Builder) Operations() []Operation {
	return b.ops
}

// Bytes renders the full operation sequence to its bit-exact byte form,
// ready to become a content stream's raw payload (before any filter
// chain is applied by the filter pipeline).
func (b *Builder) Bytes() []byte {
	var out []byte
	for _, op := range b.ops {
		out = WriteOperation(out, op)
	}
	return out
}

// AsForm wraps the builder's content as a Form XObject stream dictionary:
// /Type /XObject, /Subtype /Form, /BBox bbox, and optionally /Resources
// and /Matrix. The caller is responsible for attaching the raw bytes
// (b.Bytes(), optionally filtered) via pdf.NewStream.
func (b *Builder) AsForm(bbox pdf.Array, resources *pdf.Dict, matrix pdf.Array) *pdf.Dict {
	d := pdf.NewDict()
	d.Set("Type", pdf.Name("XObject"))
	d.Set("Subtype", pdf.Name("Form"))
	d.Set("BBox", bbox)
	if resources != nil {
		d.Set("Resources", resources)
	}
	if matrix != nil {
		d.Set("Matrix", matrix)
	}
	return d
}

// Bracketed wraps ops in q ... Q, the convention for appending new
// content to a page or form whose prior content must not leak graphics
// state into what follows (spec.md §4.9: form flattening and any other
// append-only content mutation use this).
func Bracketed(ops []Operation) []Operation {
	out := make([]Operation, 0, len(ops)+2)
	out = append(out, Operation{Op: "q"})
	out = append(out, ops...)
	out = append(out, Operation{Op: "Q"})
	return out
}
