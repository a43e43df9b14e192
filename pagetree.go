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

	"seehuhn.de/go/pdfkit/content"
)

// collectPageLeaves walks the page tree rooted at root in depth-first
// order, returning the Ref of every leaf (a node with no /Kids). Cycles
// are broken via a visited set of Refs, per spec.md §4.9; a cycle emits a
// warning and stops that branch rather than failing the whole load.
func collectPageLeaves(reg *Registry, root Ref) ([]Ref, error) {
	var leaves []Ref
	visited := make(map[Ref]bool)

	var walk func(ref Ref)
	walk = func(ref Ref) {
		if ref.IsZero() || visited[ref] {
			if !ref.IsZero() {
				reg.addWarning(StageCatalog, fmt.Errorf("cycle in page tree at object %d %d R", ref.Num, ref.Gen))
			}
			return
		}
		visited[ref] = true

		dict := reg.GetDict(ref)
		if dict == nil {
			reg.addWarning(StageCatalog, fmt.Errorf("page tree node %d %d R is not a dictionary", ref.Num, ref.Gen))
			return
		}

		kidsObj := dict.Get("Kids")
		if kidsObj == nil {
			leaves = append(leaves, ref)
			return
		}
		for _, k := range reg.GetArray(kidsObj) {
			if kidRef, ok := k.(Ref); ok {
				walk(kidRef)
			}
		}
	}
	walk(root)
	return leaves, nil
}

// Page is one leaf of the document's page tree, wrapping its dictionary
// with the inheritable attributes (Resources, MediaBox, CropBox, Rotate)
// already resolved by walking /Parent (spec.md §4.9: "first definition
// wins").
type Page struct {
	doc  *Document
	ref  Ref
	dict *Dict

	resources *Dict
	mediaBox  Rectangle
	cropBox   Rectangle
	haveCrop  bool
	rotate    int

	original []content.Operation
	loaded   bool
	appended *content.Builder
}

func newPage(doc *Document, ref Ref, dict *Dict) *Page {
	p := &Page{doc: doc, ref: ref, dict: dict, appended: content.NewBuilder()}
	p.resolveInherited()
	return p
}

func (p *Page) resolveInherited() {
	reg := p.doc.reg
	var haveRes, haveMedia, haveRotate bool

	cur := p.dict
	seen := make(map[*Dict]bool)
	for cur != nil && !seen[cur] {
		seen[cur] = true
		if !haveRes {
			if r := reg.GetDict(cur.Get("Resources")); r != nil {
				p.resources = r
				haveRes = true
			}
		}
		if !haveMedia {
			if arr := reg.GetArray(cur.Get("MediaBox")); arr != nil {
				if rect, ok := rectFromArray(arr); ok {
					p.mediaBox = rect
					haveMedia = true
				}
			}
		}
		if !p.haveCrop {
			if arr := reg.GetArray(cur.Get("CropBox")); arr != nil {
				if rect, ok := rectFromArray(arr); ok {
					p.cropBox = rect
					p.haveCrop = true
				}
			}
		}
		if !haveRotate {
			if n, ok := reg.GetNumber(cur.Get("Rotate")); ok {
				p.rotate = int(n)
				haveRotate = true
			}
		}

		parentRef, ok := cur.Get("Parent").(Ref)
		if !ok {
			break
		}
		cur = reg.GetDict(parentRef)
	}

	if !haveMedia {
		p.mediaBox = Letter
	}
	if p.resources == nil {
		p.resources = NewDict()
	}
}

// Ref returns the indirect reference identifying this page in the
// document's object graph.
func (p *Page) Ref() Ref {
	return p.ref
}

// Dict returns the page's own dictionary, for components (the form
// package's flattening pass) that need to read or rewrite entries
// (/Annots in particular) this package has no typed wrapper for.
func (p *Page) Dict() *Dict {
	return p.dict
}

// MediaBox returns the page's effective media box.
func (p *Page) MediaBox() Rectangle {
	return p.mediaBox
}

// Rotate returns the page's effective /Rotate value, in degrees.
func (p *Page) Rotate() int {
	return p.rotate
}

// GetResources returns the page's effective resource dictionary (its own
// if it has one, otherwise the nearest ancestor's). Mutating the returned
// dictionary mutates the page's resources directly.
func (p *Page) GetResources() *Dict {
	return p.resources
}

// ensureSubDict returns the resource dictionary's sub-dictionary named
// category ("Font", "XObject", "ExtGState", "Shading", "Pattern"),
// creating it if absent.
func (p *Page) ensureSubDict(category Name) *Dict {
	sub := p.doc.reg.GetDict(p.resources.Get(category))
	if sub == nil {
		sub = NewDict()
		p.resources.Set(category, sub)
	}
	return sub
}

// freshResourceName returns a resource name not already used in sub,
// built from prefix plus a 1-based counter (e.g. "F1", "F2", ...).
func freshResourceName(sub *Dict, prefix string) Name {
	for i := 1; ; i++ {
		name := Name(fmt.Sprintf("%s%d", prefix, i))
		if sub.Get(name) == nil {
			return name
		}
	}
}

// RegisterFont adds ref to the page's /Resources /Font dictionary under a
// freshly allocated resource name, for use as the operand of a Tf
// operator.
func (p *Page) RegisterFont(ref Ref) Name {
	sub := p.ensureSubDict("Font")
	name := freshResourceName(sub, "F")
	sub.Set(name, ref)
	return name
}

// RegisterXObject adds ref to the page's /Resources /XObject dictionary
// under a freshly allocated resource name, for use as the operand of a Do
// operator.
func (p *Page) RegisterXObject(ref Ref) Name {
	sub := p.ensureSubDict("XObject")
	name := freshResourceName(sub, "X")
	sub.Set(name, ref)
	return name
}

// RegisterExtGState adds ref to the page's /Resources /ExtGState
// dictionary under a freshly allocated resource name, for use as the
// operand of a gs operator.
func (p *Page) RegisterExtGState(ref Ref) Name {
	sub := p.ensureSubDict("ExtGState")
	name := freshResourceName(sub, "GS")
	sub.Set(name, ref)
	return name
}

// RegisterShading adds ref to the page's /Resources /Shading dictionary
// under a freshly allocated resource name, for use as the operand of an
// sh operator.
func (p *Page) RegisterShading(ref Ref) Name {
	sub := p.ensureSubDict("Shading")
	name := freshResourceName(sub, "Sh")
	sub.Set(name, ref)
	return name
}

// RegisterPattern adds ref to the page's /Resources /Pattern dictionary
// under a freshly allocated resource name, for use as a pattern color
// space's color component operand.
func (p *Page) RegisterPattern(ref Ref) Name {
	sub := p.ensureSubDict("Pattern")
	name := freshResourceName(sub, "P")
	sub.Set(name, ref)
	return name
}

// loadOriginal decodes the page's existing content stream(s), if any,
// into a parsed operation sequence, caching the result.
func (p *Page) loadOriginal() ([]content.Operation, error) {
	if p.loaded {
		return p.original, nil
	}
	p.loaded = true

	reg := p.doc.reg
	obj := reg.Resolve(p.dict.Get("Contents"))
	var raw []byte
	switch v := obj.(type) {
	case *Stream:
		data, err := v.DecodedWarn(p.doc.addWarning)
		if err != nil && data == nil {
			return nil, err
		}
		raw = data
	case Array:
		var buf bytes.Buffer
		for _, elem := range v {
			s, ok := reg.Resolve(elem).(*Stream)
			if !ok {
				continue
			}
			data, err := s.DecodedWarn(p.doc.addWarning)
			if err != nil && data == nil {
				continue
			}
			buf.Write(data)
			buf.WriteByte('\n')
		}
		raw = buf.Bytes()
	}

	parser := content.NewParser(raw)
	parser.SetWarningSink(p.doc.addWarning)
	ops, err := parser.ParseAll()
	if err != nil {
		return nil, err
	}
	p.original = ops
	return ops, nil
}

// Operations returns the page's existing content, parsed on first
// access, followed by anything appended via DrawOperators. The existing
// content is bracketed in q ... Q so that appended operators start from
// a clean graphics state regardless of what it left behind (spec.md
// §4.9).
func (p *Page) Operations() ([]content.Operation, error) {
	orig, err := p.loadOriginal()
	if err != nil {
		return nil, err
	}
	if p.appended.Empty() {
		return orig, nil
	}
	bracketed := content.Bracketed(orig)
	out := make([]content.Operation, 0, len(bracketed)+p.appended.Len())
	out = append(out, bracketed...)
	out = append(out, p.appended.Operations()...)
	return out, nil
}

// DrawOperators appends ops to the page's content, to be drawn after the
// existing content (which Operations brackets in q ... Q so that ops
// starts from a clean graphics state regardless of what it left
// behind).
func (p *Page) DrawOperators(ops []content.Operation) {
	for _, op := range ops {
		p.appended.Append(op)
	}
}

// contentBytes renders the page's full content (original plus appended)
// to its bit-exact byte form, for the writer to wrap in a (possibly
// filtered) stream.
func (p *Page) contentBytes() ([]byte, error) {
	ops, err := p.Operations()
	if err != nil {
		return nil, err
	}
	b := content.NewBuilderFromOperations(ops)
	return b.Bytes(), nil
}
