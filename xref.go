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

import "fmt"

// xrefEntryType is the meaning of one cross-reference table entry (PDF
// 32000-1:2008, table 18).
type xrefEntryType int

const (
	xrefFree xrefEntryType = iota
	xrefInUse
	xrefCompressed
)

// xrefEntry locates one object: either a byte offset into the file
// (xrefInUse) or the object number of the object stream that holds it
// plus an index within that stream (xrefCompressed).
type xrefEntry struct {
	Type   xrefEntryType
	Offset int64
	Gen    uint16
}

// xrefTable is the unified (obj, gen) -> location map assembled by
// walking classic xref tables and/or xref streams across every
// incremental-update layer (spec.md §4.3, "Xref ingestion").
type xrefTable struct {
	entries map[uint32]xrefEntry
}

func newXRefTable() *xrefTable {
	return &xrefTable{entries: make(map[uint32]xrefEntry)}
}

func (t *xrefTable) lookup(num uint32) (xrefEntry, bool) {
	e, ok := t.entries[num]
	return e, ok
}

// ReadXRef walks the xref/trailer chain starting at startPos (the offset
// named by the file's final "startxref"), merging every section it finds
// into a single table and trailer dictionary. Sections closer to
// startPos take precedence: an object number already present in the
// table is never overwritten by an older (/Prev) section, and a trailer
// key already present is never overwritten either.
func ReadXRef(buf []byte, startPos int64, warn func(stage string, err error)) (*xrefTable, *Dict, error) {
	table := newXRefTable()
	trailer := NewDict()
	seen := make(map[int64]bool)

	pos := startPos
	for {
		if pos < 0 || pos >= int64(len(buf)) {
			warn(StageXref, fmt.Errorf("xref offset %d out of range", pos))
			break
		}
		if seen[pos] {
			warn(StageXref, fmt.Errorf("cycle in /Prev chain at offset %d", pos))
			break
		}
		seen[pos] = true

		sectionTrailer, prev, xrefStm, err := readOneXRefSection(buf, pos, table, warn)
		if err != nil {
			warn(StageXref, err)
			break
		}
		mergeTrailerDefaults(trailer, sectionTrailer)

		if xrefStm != 0 && !seen[xrefStm] {
			seen[xrefStm] = true
			if hybridTrailer, _, _, err := readOneXRefSection(buf, xrefStm, table, warn); err != nil {
				warn(StageXref, err)
			} else {
				mergeTrailerDefaults(trailer, hybridTrailer)
			}
		}

		if _, ok := sectionTrailer.Get("Prev").(Number); !ok {
			break
		}
		pos = prev
	}

	return table, trailer, nil
}

func mergeTrailerDefaults(dst, src *Dict) {
	if src == nil {
		return
	}
	for _, k := range src.Keys() {
		if dst.Get(k) == nil {
			dst.Set(k, src.Get(k))
		}
	}
}

// readOneXRefSection parses the single xref section (classic table or
// xref stream) at pos, recording its entries into table and returning
// its trailer dictionary plus the /Prev and /XRefStm offsets it names.
func readOneXRefSection(buf []byte, pos int64, table *xrefTable, warn func(string, error)) (trailer *Dict, prev, xrefStm int64, err error) {
	s := NewScanner(buf)
	s.Seek(pos)
	tok := NewTokenizer(s)
	tok.SkipWhiteSpace()

	if s.HasPrefixAt(s.Pos(), "xref") {
		s.AdvanceN(4)
		if err := parseClassicXRefTable(tok, table, warn); err != nil {
			return nil, 0, 0, err
		}
		p := NewParser(s)
		p.SetWarningSink(warn)
		obj, err := p.ParseObject()
		if err != nil {
			return nil, 0, 0, withLoc(err, "trailer")
		}
		d, ok := obj.(*Dict)
		if !ok {
			return nil, 0, 0, withLoc(fmt.Errorf("trailer is not a dictionary"), "trailer")
		}
		trailer = d
	} else {
		p := NewParser(s)
		p.SetWarningSink(warn)
		_, obj, err := p.ParseIndirectObject()
		if err != nil {
			return nil, 0, 0, withLoc(err, "xref")
		}
		stream, ok := obj.(*Stream)
		if !ok {
			return nil, 0, 0, withLoc(fmt.Errorf("cross-reference stream object is not a stream"), "xref")
		}
		trailer = stream.Dict
		if err := parseXRefStream(stream, table, warn); err != nil {
			return nil, 0, 0, err
		}
	}

	if n, ok := trailer.Get("Prev").(Number); ok {
		prev = int64(n)
	}
	if n, ok := trailer.Get("XRefStm").(Number); ok {
		xrefStm = int64(n)
	}
	return trailer, prev, xrefStm, nil
}

// parseClassicXRefTable consumes "start count" subsection headers and
// their 20-byte-per-entry bodies until the "trailer" keyword, which is
// consumed but not returned: the caller parses the dictionary that
// follows it.
func parseClassicXRefTable(tok *Tokenizer, table *xrefTable, warn func(string, error)) error {
	for {
		t, err := tok.Next()
		if err != nil {
			return withLoc(err, "xref")
		}
		if t.Kind == TokKeyword && t.Str == "trailer" {
			return nil
		}
		if t.Kind != TokNumber {
			return withLoc(fmt.Errorf("expected a subsection header or %q, found %s", "trailer", t.Kind), "xref")
		}
		start := int64(t.Num)

		countTok, err := tok.Next()
		if err != nil {
			return withLoc(err, "xref")
		}
		if countTok.Kind != TokNumber {
			return withLoc(fmt.Errorf("expected subsection entry count"), "xref")
		}
		count := int64(countTok.Num)

		for i := int64(0); i < count; i++ {
			offTok, err := tok.Next()
			if err != nil {
				return withLoc(err, "xref")
			}
			genTok, err := tok.Next()
			if err != nil {
				return withLoc(err, "xref")
			}
			kwTok, err := tok.Next()
			if err != nil {
				return withLoc(err, "xref")
			}
			if offTok.Kind != TokNumber || genTok.Kind != TokNumber || kwTok.Kind != TokKeyword {
				return withLoc(fmt.Errorf("malformed xref entry at subsection %d+%d", start, i), "xref")
			}

			num := uint32(start + i)
			if _, exists := table.lookup(num); exists {
				continue
			}
			switch kwTok.Str {
			case "n":
				table.entries[num] = xrefEntry{Type: xrefInUse, Offset: int64(offTok.Num), Gen: uint16(genTok.Num)}
			case "f":
				table.entries[num] = xrefEntry{Type: xrefFree}
			default:
				warn(StageXref, fmt.Errorf("object %d: unexpected xref entry marker %q", num, kwTok.Str))
			}
		}
	}
}

// parseXRefStream decodes a cross-reference stream (PDF 32000-1:2008,
// 7.5.8) and records its entries into table.
func parseXRefStream(stream *Stream, table *xrefTable, warn func(string, error)) error {
	data, err := stream.DecodedWarn(warn)
	if err != nil {
		return withLoc(err, "xref")
	}

	w, ok := stream.Dict.Get("W").(Array)
	if !ok || len(w) < 3 {
		return withLoc(fmt.Errorf("cross-reference stream missing /W"), "xref")
	}
	w1 := fieldWidth(w[0])
	w2 := fieldWidth(w[1])
	w3 := fieldWidth(w[2])
	entryLen := w1 + w2 + w3
	if entryLen <= 0 {
		return withLoc(fmt.Errorf("cross-reference stream has zero-width entries"), "xref")
	}

	var index []int64
	if arr, ok := stream.Dict.Get("Index").(Array); ok {
		for _, o := range arr {
			if n, ok := o.(Number); ok {
				index = append(index, int64(n))
			}
		}
	} else if size, ok := stream.Dict.Get("Size").(Number); ok {
		index = []int64{0, int64(size)}
	} else {
		return withLoc(fmt.Errorf("cross-reference stream missing /Size"), "xref")
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start := index[i]
		count := index[i+1]
		for j := int64(0); j < count; j++ {
			if pos+entryLen > len(data) {
				warn(StageXref, fmt.Errorf("cross-reference stream truncated"))
				return nil
			}
			entry := data[pos : pos+entryLen]
			pos += entryLen

			num := uint32(start + j)
			if _, exists := table.lookup(num); exists {
				continue
			}

			fieldType := int64(1)
			if w1 > 0 {
				fieldType = beInt(entry[:w1])
			}
			f2 := beInt(entry[w1 : w1+w2])
			f3 := beInt(entry[w1+w2 : w1+w2+w3])

			switch fieldType {
			case 0:
				table.entries[num] = xrefEntry{Type: xrefFree}
			case 1:
				table.entries[num] = xrefEntry{Type: xrefInUse, Offset: f2, Gen: uint16(f3)}
			case 2:
				table.entries[num] = xrefEntry{Type: xrefCompressed, Offset: f2, Gen: uint16(f3)}
			default:
				warn(StageXref, fmt.Errorf("object %d: unknown cross-reference stream entry type %d", num, fieldType))
			}
		}
	}
	return nil
}

func fieldWidth(o Object) int {
	if n, ok := o.(Number); ok {
		return int(n)
	}
	return 0
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
