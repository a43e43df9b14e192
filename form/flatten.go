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

package form

import (
	"math"

	"seehuhn.de/go/pdfkit"
	"seehuhn.de/go/pdfkit/content"
)

// matrix is a PDF transformation matrix [a b c d e f].
type matrix struct{ a, b, c, d, e, f float64 }

var identityMatrix = matrix{1, 0, 0, 1, 0, 0}

func matrixFromArray(m pdf.Array) matrix {
	var v [6]float64
	for i := 0; i < 6 && i < len(m); i++ {
		if n, ok := m[i].(pdf.Number); ok {
			v[i] = float64(n)
		}
	}
	return matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
}

func (m matrix) operands() []pdf.Object {
	return []pdf.Object{pdf.Number(m.a), pdf.Number(m.b), pdf.Number(m.c), pdf.Number(m.d), pdf.Number(m.e), pdf.Number(m.f)}
}

// transformBBox applies m to all four corners of r and returns the
// axis-aligned bounding box of the result.
func transformBBox(r pdf.Rectangle, m matrix) pdf.Rectangle {
	corners := [4][2]float64{
		{r.LLx, r.LLy}, {r.URx, r.LLy}, {r.URx, r.URy}, {r.LLx, r.URy},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		x := m.a*c[0] + m.c*c[1] + m.e
		y := m.b*c[0] + m.d*c[1] + m.f
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return pdf.Rectangle{LLx: minX, LLy: minY, URx: maxX, URy: maxY}
}

// placementMatrix computes the cm operand that maps the appearance
// stream's BBox (after its own /Matrix has been applied) onto the
// widget's Rect: a translate plus an axis-independent scale. The
// appearance's own /Matrix is applied by the Do operator automatically
// and is not folded into this result.
func placementMatrix(widget, bbox pdf.Rectangle, apMatrix matrix) matrix {
	transformed := transformBBox(bbox, apMatrix)
	tw := transformed.URx - transformed.LLx
	th := transformed.URy - transformed.LLy
	sx, sy := 1.0, 1.0
	if tw != 0 {
		sx = (widget.URx - widget.LLx) / tw
	}
	if th != 0 {
		sy = (widget.URy - widget.LLy) / th
	}
	return matrix{
		a: sx, b: 0, c: 0, d: sy,
		e: widget.LLx - transformed.LLx*sx,
		f: widget.LLy - transformed.LLy*sy,
	}
}

// Flatten bakes every terminal field's current appearance into the
// corresponding page as static content, then removes the interactive
// form (spec.md §4.10's flattening algorithm): for each widget, fetch its
// effective normal appearance, skip it if Hidden, Invisible, NoView or
// its BBox is degenerate, register it as a page XObject, compute the
// placement matrix and emit "q matrix cm /Name Do Q" into the page's
// content, then drop the widget from /Annots. Afterward /Fields is
// cleared and /NeedAppearances, /XFA and /SigFlags are removed.
func Flatten(af *AcroForm, pages []*pdf.Page) error {
	for _, page := range pages {
		flattenPage(af.reg, page)
	}

	af.Dict.Set("Fields", pdf.Array{})
	af.Dict.Delete("NeedAppearances")
	af.Dict.Delete("XFA")
	af.Dict.Delete("SigFlags")
	return nil
}

// FlattenDocument flattens af into every page of doc, in page order.
func FlattenDocument(af *AcroForm, doc *pdf.Document) error {
	pages := make([]*pdf.Page, 0, doc.NumPages())
	for i := 0; i < doc.NumPages(); i++ {
		page, err := doc.GetPage(i)
		if err != nil {
			return err
		}
		pages = append(pages, page)
	}
	return Flatten(af, pages)
}

func flattenPage(reg *pdf.Registry, page *pdf.Page) {
	dict := page.Dict()
	annots := reg.GetArray(dict.Get("Annots"))
	if len(annots) == 0 {
		return
	}

	var kept pdf.Array
	var ops []content.Operation
	for _, a := range annots {
		wd := reg.GetDict(a)
		if wd == nil {
			kept = append(kept, a)
			continue
		}
		if subtype, _ := wd.Get("Subtype").(pdf.Name); subtype != "Widget" {
			kept = append(kept, a)
			continue
		}

		flags := 0
		if n, ok := reg.GetNumber(wd.Get("F")); ok {
			flags = int(n)
		}
		if flags&(WidgetHidden|WidgetInvisible|WidgetNoView) != 0 {
			continue
		}

		op, ok := flattenWidget(reg, page, wd)
		if !ok {
			continue
		}
		ops = append(ops, op...)
	}

	if len(ops) > 0 {
		page.DrawOperators(ops)
	}
	dict.Set("Annots", kept)
}

// flattenWidget resolves wd's effective normal appearance (via /AS when
// /AP /N is itself a sub-dictionary of states) and returns the bracketed
// "q cm Do Q" operation group placing it, or ok=false if it has no usable
// appearance.
func flattenWidget(reg *pdf.Registry, page *pdf.Page, wd *pdf.Dict) ([]content.Operation, bool) {
	ap := reg.GetDict(wd.Get("AP"))
	if ap == nil {
		return nil, false
	}

	nObj := ap.Get("N")
	var apRef pdf.Ref
	var apStream *pdf.Stream
	if s, ok := reg.Resolve(nObj).(*pdf.Stream); ok {
		apStream = s
		apRef, _ = nObj.(pdf.Ref)
	} else if sub := reg.GetDict(nObj); sub != nil {
		state, _ := wd.Get("AS").(pdf.Name)
		if state == "" {
			state = "Off"
		}
		entry := sub.Get(state)
		if s, ok := reg.Resolve(entry).(*pdf.Stream); ok {
			apStream = s
			apRef, _ = entry.(pdf.Ref)
		}
	}
	if apStream == nil {
		return nil, false
	}

	bbox, ok := rectFromArray(reg.GetArray(apStream.Dict.Get("BBox")))
	if !ok || bbox.URx == bbox.LLx || bbox.URy == bbox.LLy {
		return nil, false
	}

	rect, ok := rectFromArray(reg.GetArray(wd.Get("Rect")))
	if !ok {
		return nil, false
	}

	apMatrix := identityMatrix
	if m := reg.GetArray(apStream.Dict.Get("Matrix")); len(m) == 6 {
		apMatrix = matrixFromArray(m)
	}
	placement := placementMatrix(rect, bbox, apMatrix)

	if apRef.IsZero() {
		apRef = reg.Register(apStream)
	}
	name := page.RegisterXObject(apRef)

	return []content.Operation{
		{Op: "q"},
		{Op: "cm", Operands: placement.operands()},
		{Op: "Do", Operands: []pdf.Object{name}},
		{Op: "Q"},
	}, true
}
