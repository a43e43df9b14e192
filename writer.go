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
	"crypto/md5"
	"fmt"
	"time"

	"seehuhn.de/go/pdfkit/internal/numfmt"
)

// SaveOptions controls how Document.Save encodes the file body.
type SaveOptions struct {
	// UseXRefStream selects a PDF 1.5+ cross-reference stream instead of
	// a classic xref table. The classic table is the default: every
	// reader understands it, and it keeps the trailer human-readable.
	UseXRefStream bool
}

// Save serializes the document to its complete byte form: header, every
// object reachable from /Root and /Info, a cross-reference section, and
// the trailer (spec.md §4.11). The effective version written to the
// header is the maximum of the file's declared version and the
// Catalog's /Version override; Save never downgrades it.
func (d *Document) Save(opts SaveOptions) ([]byte, error) {
	d.syncCatalog()

	order := d.reachableObjects()

	var buf bytes.Buffer
	version := maxVersion(d.version, d.Catalog.Version)
	fmt.Fprintf(&buf, "%%PDF-%s\n", version)
	buf.WriteString("%\xE2\xE3\xCF\xD3\n")

	offsets := make(map[uint32]int64, len(order))
	for _, ref := range order {
		offsets[ref.Num] = int64(buf.Len())
		writeIndirectObject(&buf, ref, d.reg.Resolve(ref))
	}

	trailer := NewDict()
	trailer.Set("Root", d.rootRef)
	if !d.infoRef.IsZero() {
		trailer.Set("Info", d.infoRef)
	}
	trailer.Set("ID", d.trailerID(trailer))

	xrefOffset, err := d.writeXRef(&buf, order, offsets, trailer, opts, 0)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)
	return buf.Bytes(), nil
}

// SaveIncremental appends a new revision after the bytes the document was
// loaded from: every object currently reachable from /Root is rewritten
// into the appended section (this is a conservative, not a minimal,
// incremental update — it does not attempt to diff against the loaded
// revision to find only the objects that actually changed), followed by
// a fresh xref section whose /Prev chains to the original file's own
// final xref. This is the mode the sign package builds on, since a
// signature's byte range must cover bytes that are never rewritten after
// the signing digest is computed.
func (d *Document) SaveIncremental(opts SaveOptions) ([]byte, error) {
	if d.raw == nil {
		return nil, fmt.Errorf("pdf: SaveIncremental requires a document returned by Load")
	}
	d.syncCatalog()

	order := d.reachableObjects()

	var buf bytes.Buffer
	buf.Write(d.raw)
	if len(d.raw) == 0 || d.raw[len(d.raw)-1] != '\n' {
		buf.WriteString("\n")
	}

	base := int64(buf.Len())
	offsets := make(map[uint32]int64, len(order))
	for _, ref := range order {
		offsets[ref.Num] = int64(buf.Len())
		writeIndirectObject(&buf, ref, d.reg.Resolve(ref))
	}
	_ = base

	trailer := NewDict()
	trailer.Set("Root", d.rootRef)
	if !d.infoRef.IsZero() {
		trailer.Set("Info", d.infoRef)
	}
	trailer.Set("ID", d.trailerID(trailer))

	xrefOffset, err := d.writeXRef(&buf, order, offsets, trailer, opts, d.prevStartXRef)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF", xrefOffset)
	return buf.Bytes(), nil
}

// trailerID returns the trailer's /ID value, [original, new], per spec.md
// §4.11 step 4: new is the MD5 digest of the (still-ID-less) trailer's
// object syntax plus the current time; original is the loaded file's own
// /ID[0] if Load found one, else new itself, cached so that later saves
// of the same Document keep the same /ID[0] across revisions.
func (d *Document) trailerID(trailer *Dict) Array {
	var buf bytes.Buffer
	writeObjectSyntax(&buf, trailer)
	fmt.Fprintf(&buf, "%d", time.Now().UnixNano())
	sum := md5.Sum(buf.Bytes())
	newID := sum[:]

	if d.idOriginal == nil {
		d.idOriginal = newID
	}
	return Array{
		String{Bytes: d.idOriginal, Form: StringHex},
		String{Bytes: newID, Form: StringHex},
	}
}

// syncCatalog re-derives the Catalog's dictionary form and stores it back
// under rootRef, so edits made to d.Catalog since Load/Create are
// reflected in the written file.
func (d *Document) syncCatalog() {
	if d.rootRef.IsZero() {
		d.rootRef = d.reg.Register(d.Catalog.AsDict())
		return
	}
	d.reg.Put(d.rootRef, d.Catalog.AsDict())
}

// reachableObjects walks the object graph from /Root (and /Info, if
// present), returning every Ref encountered in first-visit order. A Dict
// or Array value is walked in place without itself consuming a Ref slot;
// only values that are themselves indirect references get an entry, so
// the output faithfully distinguishes direct from indirect structure.
func (d *Document) reachableObjects() []Ref {
	visited := make(map[Ref]bool)
	var order []Ref

	var walk func(obj Object)
	walk = func(obj Object) {
		switch v := obj.(type) {
		case Ref:
			if v.IsZero() || visited[v] {
				return
			}
			visited[v] = true
			order = append(order, v)
			walk(d.reg.Resolve(v))
		case *Dict:
			for _, k := range v.Keys() {
				walk(v.Get(k))
			}
		case Array:
			for _, e := range v {
				walk(e)
			}
		case *Stream:
			walk(v.Dict)
		}
	}
	walk(d.rootRef)
	if !d.infoRef.IsZero() {
		walk(d.infoRef)
	}
	return order
}

func maxObjNum(order []Ref) uint32 {
	var max uint32
	for _, r := range order {
		if r.Num > max {
			max = r.Num
		}
	}
	return max
}

// writeXRef emits either a classic xref table plus a separate trailer, or
// a PDF 1.5+ cross-reference stream carrying the trailer keys inline,
// returning the byte offset the final "startxref" must name. prev is the
// /Prev offset for an incremental update, or 0 for a full save.
func (d *Document) writeXRef(buf *bytes.Buffer, order []Ref, offsets map[uint32]int64, trailer *Dict, opts SaveOptions, prev int64) (int64, error) {
	if prev != 0 {
		trailer.Set("Prev", Number(prev))
	}

	if !opts.UseXRefStream {
		maxNum := maxObjNum(order)
		trailer.Set("Size", Number(maxNum+1))

		xrefOffset := int64(buf.Len())
		writeClassicXRef(buf, maxNum, offsets)
		buf.WriteString("trailer\n")
		writeObjectSyntax(buf, trailer)
		buf.WriteString("\n")
		return xrefOffset, nil
	}

	xrefRef := Ref{Num: maxObjNum(order) + 1, Gen: 0}
	xrefOffset := int64(buf.Len())
	offsets[xrefRef.Num] = xrefOffset

	maxNum := xrefRef.Num
	var data bytes.Buffer
	for num := uint32(0); num <= maxNum; num++ {
		switch {
		case num == 0:
			data.Write([]byte{0, 0, 0, 0, 0xFF, 0xFF})
		case offsets[num] != 0 || num == xrefRef.Num:
			data.WriteByte(1)
			writeBigEndian(&data, uint64(offsets[num]), 4)
			writeBigEndian(&data, 0, 2)
		default:
			data.WriteByte(0)
			writeBigEndian(&data, 0, 4)
			writeBigEndian(&data, 0xFFFF, 2)
		}
	}

	trailer.Set("Type", Name("XRef"))
	trailer.Set("Size", Number(maxNum+1))
	trailer.Set("W", Array{Number(1), Number(4), Number(2)})
	trailer.Set("Index", Array{Number(0), Number(maxNum + 1)})

	stream := NewStream(trailer, nil)
	if err := stream.EncodeWith(data.Bytes(), []Name{FilterFlateDecode}, []*Dict{nil}); err != nil {
		return 0, err
	}
	writeIndirectObject(buf, xrefRef, stream)
	return xrefOffset, nil
}

// writeClassicXRef emits a single "0 N" subsection covering every object
// number from 0 to maxNum, marking numbers with no entry in offsets as
// free. A single subsection is simpler than the minimal set of
// contiguous runs a more elaborate writer would compute, at the cost of
// a few redundant free entries in a sparse object-number space.
func writeClassicXRef(buf *bytes.Buffer, maxNum uint32, offsets map[uint32]int64) {
	buf.WriteString("xref\n")
	fmt.Fprintf(buf, "0 %d\n", maxNum+1)
	fmt.Fprintf(buf, "%010d %05d f \n", 0, 65535)
	for num := uint32(1); num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(buf, "%010d %05d n \n", off, 0)
		} else {
			fmt.Fprintf(buf, "%010d %05d f \n", 0, 65535)
		}
	}
}

func writeBigEndian(buf *bytes.Buffer, v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		buf.WriteByte(byte(v >> (8 * uint(i))))
	}
}

// writeIndirectObject emits "N G obj" ... "endobj", dispatching to the
// stream form (dictionary, "stream", raw bytes, "endstream") when obj is
// a *Stream.
func writeIndirectObject(buf *bytes.Buffer, ref Ref, obj Object) {
	fmt.Fprintf(buf, "%d %d obj\n", ref.Num, ref.Gen)
	if stream, ok := obj.(*Stream); ok {
		writeObjectSyntax(buf, stream.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(stream.Raw)
		if len(stream.Raw) == 0 || stream.Raw[len(stream.Raw)-1] != '\n' {
			buf.WriteString("\n")
		}
		buf.WriteString("endstream\nendobj\n")
		return
	}
	writeObjectSyntax(buf, obj)
	buf.WriteString("\nendobj\n")
}

// writeObjectSyntax renders obj in PDF object syntax (as opposed to
// content.WriteObject's content-stream operand syntax): the one place
// this grammar needs an indirect-reference case, since "N G R" can
// appear as a dictionary or array value but never as a content-stream
// operand.
func writeObjectSyntax(buf *bytes.Buffer, obj Object) {
	switch v := obj.(type) {
	case nil:
		buf.WriteString("null")
	case Bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(numfmt.Format(float64(v)))
	case Name:
		writeNameSyntax(buf, v)
	case String:
		writeStringSyntax(buf, v)
	case Array:
		buf.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeObjectSyntax(buf, e)
		}
		buf.WriteByte(']')
	case *Dict:
		buf.WriteString("<<")
		first := true
		for _, k := range v.Keys() {
			if !first {
				buf.WriteByte(' ')
			}
			first = false
			writeNameSyntax(buf, k)
			buf.WriteByte(' ')
			writeObjectSyntax(buf, v.Get(k))
		}
		buf.WriteString(">>")
	case Ref:
		fmt.Fprintf(buf, "%d %d R", v.Num, v.Gen)
	default:
		panic(fmt.Sprintf("pdf: object kind %T cannot be serialized", obj))
	}
}

func writeNameSyntax(buf *bytes.Buffer, n Name) {
	buf.WriteByte('/')
	for _, c := range []byte(n) {
		if needsNameEscapeSyntax(c) {
			buf.WriteByte('#')
			buf.WriteByte("0123456789ABCDEF"[c>>4])
			buf.WriteByte("0123456789ABCDEF"[c&0xF])
		} else {
			buf.WriteByte(c)
		}
	}
}

func needsNameEscapeSyntax(c byte) bool {
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

func writeStringSyntax(buf *bytes.Buffer, s String) {
	if s.Form == StringHex {
		buf.WriteByte('<')
		for _, c := range s.Bytes {
			buf.WriteByte("0123456789ABCDEF"[c>>4])
			buf.WriteByte("0123456789ABCDEF"[c&0xF])
		}
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, c := range s.Bytes {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')
}
