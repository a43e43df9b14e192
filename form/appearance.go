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
	"strconv"
	"strings"

	"seehuhn.de/go/pdfkit"
	"seehuhn.de/go/pdfkit/content"
)

// UpdateAppearances regenerates the normal appearance stream of every
// field touched by a Set call since the last regeneration. Read-only
// fields and fields whose value has no on-page text representation
// (Checkbox, Radio, Signature, Unknown) keep their author- or
// viewer-supplied appearance untouched.
func (af *AcroForm) UpdateAppearances() {
	for _, f := range af.Fields {
		if !f.needsAppearance {
			continue
		}
		f.needsAppearance = false
		if f.Flags&FlagReadOnly != 0 {
			continue
		}
		switch f.Type {
		case Text, Dropdown, Listbox:
			if err := f.regenerateTextAppearance(af); err != nil {
				f.reg.Warn(pdf.StageForm, err)
			}
		}
	}
}

func (f *Field) currentDisplayText() (string, bool) {
	switch f.Type {
	case Text:
		return f.GetText()
	case Dropdown:
		return f.GetDropdown()
	case Listbox:
		vals, ok := f.GetListbox()
		if !ok {
			return "", false
		}
		return strings.Join(vals, ", "), true
	default:
		return "", false
	}
}

func (f *Field) effectiveDA(af *AcroForm) string {
	if s, ok := f.reg.GetString(fieldLookup(f.reg, f.Dict, "DA")); ok {
		return string(s.Bytes)
	}
	return af.DA
}

func (f *Field) effectiveQ(af *AcroForm) int {
	if n, ok := f.reg.GetNumber(fieldLookup(f.reg, f.Dict, "Q")); ok {
		return int(n)
	}
	return af.Q
}

// parseDA extracts the font resource name and size from a "/Name size Tf
// ..." default-appearance string. A zero size means "auto-size": the
// renderer must choose the largest size that fits the field's rectangle.
func parseDA(da string) (fontName string, size float64) {
	fontName = "Helv"
	fields := strings.Fields(da)
	for i, tok := range fields {
		if tok == "Tf" && i >= 2 {
			fontName = strings.TrimPrefix(fields[i-2], "/")
			if v, err := strconv.ParseFloat(fields[i-1], 64); err == nil {
				size = v
			}
		}
	}
	return fontName, size
}

// estimateWidth approximates the width of text set at size, in the
// absence of real glyph metrics at this layer: half an em per character,
// close enough for Helvetica-class fonts to size and position text
// without overflowing the field rectangle.
func estimateWidth(text string, size float64) float64 {
	return float64(len([]rune(text))) * size * 0.5
}

func autoSize(text string, width, height float64) float64 {
	size := height * 0.8
	if size > 12 {
		size = 12
	}
	for size > 4 && estimateWidth(text, size) > width {
		size -= 0.5
	}
	return size
}

// textX positions text horizontally per the field's /Q quadding: 0 =
// left, 1 = center, 2 = right.
func textX(quad int, width float64, text string, size float64) float64 {
	tw := estimateWidth(text, size)
	switch quad {
	case 1:
		return (width - tw) / 2
	case 2:
		return width - tw - 2
	default:
		return 2
	}
}

// regenerateTextAppearance rebuilds the /AP /N form XObject for every
// widget of a Text, Dropdown or Listbox field: save state, clip to the
// field rectangle, select the font and size named by the effective /DA
// (auto-sizing when the size is 0), position the text per /Q, show it,
// restore.
func (f *Field) regenerateTextAppearance(af *AcroForm) error {
	text, _ := f.currentDisplayText()
	fontName, fontSize := parseDA(f.effectiveDA(af))
	quad := f.effectiveQ(af)

	for _, w := range f.Widgets {
		rect, ok := rectFromArray(f.reg.GetArray(w.Get("Rect")))
		if !ok {
			continue
		}
		width := rect.URx - rect.LLx
		height := rect.URy - rect.LLy
		if width <= 0 || height <= 0 {
			continue
		}

		size := fontSize
		if size == 0 {
			size = autoSize(text, width, height)
		}

		b := content.NewBuilder()
		b.Op("q")
		b.Op("re", pdf.Number(0), pdf.Number(0), pdf.Number(width), pdf.Number(height))
		b.Op("W")
		b.Op("n")
		b.Op("BT")
		b.Op("Tf", pdf.Name(fontName), pdf.Number(size))
		b.Op("Td", pdf.Number(textX(quad, width, text, size)), pdf.Number((height-size)/2))
		b.Op("Tj", pdf.String{Bytes: []byte(text), Form: pdf.StringLiteral})
		b.Op("ET")
		b.Op("Q")

		resources := pdf.NewDict()
		fontDict := pdf.NewDict()
		if af.DR != nil {
			if fonts := f.reg.GetDict(af.DR.Get("Font")); fonts != nil {
				if v := fonts.Get(pdf.Name(fontName)); v != nil {
					fontDict.Set(pdf.Name(fontName), v)
				}
			}
		}
		resources.Set("Font", fontDict)

		formDict := b.AsForm(pdf.Array{pdf.Number(0), pdf.Number(0), pdf.Number(width), pdf.Number(height)}, resources, nil)
		stream := pdf.NewStream(formDict, b.Bytes())
		ref := f.reg.Register(stream)

		ap := f.reg.GetDict(w.Get("AP"))
		if ap == nil {
			ap = pdf.NewDict()
			w.Set("AP", ap)
		}
		ap.Set("N", ref)
	}
	return nil
}
