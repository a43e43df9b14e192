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
	"errors"
	"fmt"
)

// Rectangle is a PDF rectangle: two opposite corners, not necessarily in
// any particular order (PDF 32000-1:2008, 7.9.5).
type Rectangle struct {
	LLx, LLy, URx, URy float64
}

// A4 is the ISO 216 A4 page size, in points.
var A4 = Rectangle{URx: 595.28, URy: 841.89}

// Letter is the US Letter page size, in points.
var Letter = Rectangle{URx: 612, URy: 792}

// AsArray renders r as the PDF array form [llx lly urx ury].
func (r Rectangle) AsArray() Array {
	return Array{Number(r.LLx), Number(r.LLy), Number(r.URx), Number(r.URy)}
}

func rectFromArray(a Array) (Rectangle, bool) {
	if len(a) != 4 {
		return Rectangle{}, false
	}
	var v [4]float64
	for i, elem := range a {
		n, ok := elem.(Number)
		if !ok {
			return Rectangle{}, false
		}
		v[i] = float64(n)
	}
	return Rectangle{LLx: v[0], LLy: v[1], URx: v[2], URy: v[3]}, true
}

// Document is a loaded or in-progress PDF document: the object registry
// that owns every indirect object, the parsed Catalog, and the cached
// depth-first list of page-tree leaves (spec.md §4.9).
type Document struct {
	warningSink

	reg     *Registry
	Catalog *Catalog
	version Version

	pagesRoot Ref
	pages     []Ref

	// rootRef and infoRef are the trailer's /Root and /Info references,
	// read from the trailer by Load (Create mints a fresh rootRef and
	// leaves infoRef zero), so the writer knows what to walk from and
	// where to re-serialize the Catalog to on Save.
	rootRef Ref
	infoRef Ref

	// raw and prevStartXRef are set by Load, for SaveIncremental: raw is
	// the original file image to prepend unchanged, prevStartXRef is the
	// offset its own final "startxref" pointed to, to become this
	// revision's /Prev.
	raw           []byte
	prevStartXRef int64

	// idOriginal is the first element of the trailer's /ID array: the
	// loaded file's own value if Load found one, else the value minted by
	// this Document's first Save/SaveIncremental call, cached so that
	// later saves of the same Document keep a stable /ID[0] while /ID[1]
	// changes with each new revision (spec.md §4.11 step 4).
	idOriginal []byte
}

// Load parses data as a complete PDF file: it locates the cross-reference
// information via the trailing "startxref" keyword, walks the /Prev (and
// /XRefStm) chain to build the unified xref table, resolves /Root, and
// caches the page tree's leaves in depth-first order.
func Load(data []byte) (*Document, error) {
	version, err := readHeaderVersion(data)
	if err != nil {
		return nil, err
	}

	startPos, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}

	doc := &Document{version: version, raw: data, prevStartXRef: startPos}
	xref, trailer, err := ReadXRef(data, startPos, doc.addWarning)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry(data, xref)
	doc.reg = reg

	rootObj := trailer.Get("Root")
	if rootObj == nil {
		return nil, &MalformedFileError{Err: errors.New("trailer has no /Root entry")}
	}
	if ref, ok := rootObj.(Ref); ok {
		doc.rootRef = ref
	}
	if ref, ok := trailer.Get("Info").(Ref); ok {
		doc.infoRef = ref
	}
	if idArr, ok := trailer.Get("ID").(Array); ok && len(idArr) > 0 {
		if s, ok := idArr[0].(String); ok {
			doc.idOriginal = s.Bytes
		}
	}
	cat, err := ExtractCatalog(reg, rootObj)
	if err != nil {
		return nil, err
	}
	doc.Catalog = cat
	doc.pagesRoot = cat.Pages
	doc.version = maxVersion(doc.version, cat.Version)

	leaves, err := collectPageLeaves(reg, cat.Pages)
	if err != nil {
		return nil, err
	}
	doc.pages = leaves

	for _, w := range reg.Warnings() {
		doc.addWarning(w.Stage, w.Err)
	}
	return doc, nil
}

// Create returns a new, empty Document: an empty page tree and a catalog
// pointing to it, targeting PDF version 1.7.
func Create() *Document {
	reg := NewRegistry(nil, nil)
	pagesDict := NewDict()
	pagesDict.Set("Type", Name("Pages"))
	pagesDict.Set("Kids", Array{})
	pagesDict.Set("Count", Number(0))
	pagesRef := reg.Register(pagesDict)

	cat := &Catalog{Pages: pagesRef}
	rootRef := reg.Register(cat.AsDict())

	return &Document{
		reg:       reg,
		Catalog:   cat,
		version:   V1_7,
		pagesRoot: pagesRef,
		pages:     nil,
		rootRef:   rootRef,
	}
}

// Version returns the document's effective PDF version (the maximum of
// the file header's declared version and the catalog's /Version
// override, per spec.md §4.9/§4.11 — the writer never downgrades it).
func (d *Document) Version() Version {
	return d.version
}

// Registry returns the object registry backing this document, for
// components (the form package, the writer, the signing hook) that need
// to resolve or mint references directly.
func (d *Document) Registry() *Registry {
	return d.reg
}

// Pages returns the Refs of the document's page-tree leaves, in
// depth-first order.
func (d *Document) Pages() []Ref {
	return d.pages
}

// NumPages returns the number of leaves in the page tree.
func (d *Document) NumPages() int {
	return len(d.pages)
}

// GetPage returns the i-th page (0-based, depth-first order).
func (d *Document) GetPage(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("page index %d out of range (document has %d pages)", i, len(d.pages))
	}
	ref := d.pages[i]
	dict := d.reg.GetDict(ref)
	if dict == nil {
		return nil, &MalformedFileError{Err: fmt.Errorf("page %d: object is not a dictionary", i)}
	}
	return newPage(d, ref, dict), nil
}

// AddPage appends a new, empty leaf of the given size to the page tree
// and returns it for the caller to draw on.
func (d *Document) AddPage(size Rectangle) *Page {
	dict := NewDict()
	dict.Set("Type", Name("Page"))
	dict.Set("Parent", d.pagesRoot)
	dict.Set("MediaBox", size.AsArray())
	dict.Set("Resources", NewDict())

	ref := d.reg.Register(dict)

	pagesDict := d.reg.GetDict(d.pagesRoot)
	kids := d.reg.GetArray(pagesDict.Get("Kids"))
	kids = append(kids, ref)
	pagesDict.Set("Kids", kids)
	pagesDict.Set("Count", Number(len(kids)))
	d.reg.Put(d.pagesRoot, pagesDict)

	d.pages = append(d.pages, ref)
	return newPage(d, ref, dict)
}

// GetObject resolves ref to its direct object, exactly as the registry
// would for any internal caller; this is the façade's escape hatch for
// reading parts of the document model this package has no typed wrapper
// for.
func (d *Document) GetObject(ref Ref) Object {
	return d.reg.Resolve(ref)
}

// readHeaderVersion parses the "%PDF-1.7" (or similar) header comment
// that must begin a PDF file.
func readHeaderVersion(data []byte) (Version, error) {
	const prefix = "%PDF-"
	if len(data) < len(prefix)+3 || string(data[:len(prefix)]) != prefix {
		return 0, &MalformedFileError{Err: errors.New("missing %PDF- header")}
	}
	end := len(prefix) + 3
	v, err := ParseVersion(string(data[len(prefix):end]))
	if err != nil {
		return 0, &MalformedFileError{Err: fmt.Errorf("unrecognized header version: %w", err)}
	}
	return v, nil
}

// findStartXRef locates the byte offset named by the final "startxref"
// keyword, searched for from the end of the file (spec.md §4.3: the
// entry point into the xref/trailer chain).
func findStartXRef(data []byte) (int64, error) {
	const marker = "startxref"
	idx := lastIndex(data, []byte(marker))
	if idx < 0 {
		return 0, &MalformedFileError{Err: errors.New("no startxref keyword found")}
	}

	s := NewScanner(data)
	s.Seek(int64(idx) + int64(len(marker)))
	tok := NewTokenizer(s)
	tok.SkipWhiteSpace()
	t, err := tok.Next()
	if err != nil {
		return 0, &MalformedFileError{Err: fmt.Errorf("malformed startxref: %w", err)}
	}
	if t.Kind != TokNumber || !isNonNegInt(t.Num) {
		return 0, &MalformedFileError{Err: errors.New("startxref not followed by an integer offset")}
	}
	return int64(t.Num), nil
}

func lastIndex(data, sep []byte) int {
	for i := len(data) - len(sep); i >= 0; i-- {
		if string(data[i:i+len(sep)]) == string(sep) {
			return i
		}
	}
	return -1
}
