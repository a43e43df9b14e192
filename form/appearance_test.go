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
	"testing"

	"seehuhn.de/go/pdfkit"
)

func TestParseDA(t *testing.T) {
	cases := []struct {
		da       string
		wantFont string
		wantSize float64
	}{
		{"/Helv 12 Tf 0 g", "Helv", 12},
		{"/Helv 0 Tf 0 g", "Helv", 0},
		{"", "Helv", 0},
	}
	for _, c := range cases {
		font, size := parseDA(c.da)
		if font != c.wantFont || size != c.wantSize {
			t.Errorf("parseDA(%q) = (%q, %v), want (%q, %v)", c.da, font, size, c.wantFont, c.wantSize)
		}
	}
}

func TestTextXQuadding(t *testing.T) {
	width := 100.0
	size := 10.0
	text := "ab" // estimateWidth = 2 * 10 * 0.5 = 10

	if x := textX(0, width, text, size); x != 2 {
		t.Errorf("left quad x = %v, want 2", x)
	}
	if x := textX(1, width, text, size); x != 45 {
		t.Errorf("center quad x = %v, want 45", x)
	}
	if x := textX(2, width, text, size); x != 88 {
		t.Errorf("right quad x = %v, want 88", x)
	}
}

func TestAutoSizeShrinksToFit(t *testing.T) {
	size := autoSize("a very long piece of text that will not fit", 50, 20)
	if size <= 0 || size >= 12 {
		t.Errorf("autoSize = %v, want a reduced size between 0 and 12", size)
	}
}

func TestUpdateAppearancesRegeneratesTextField(t *testing.T) {
	d := pdf.NewDict()
	d.Set("FT", pdf.Name("Tx"))
	d.Set("T", pdf.EncodeTextString("name"))
	d.Set("Rect", pdf.Array{pdf.Number(0), pdf.Number(0), pdf.Number(100), pdf.Number(20)})

	af := loadSingleFieldAF(t, d)

	f := af.Fields[0]
	if err := f.SetText("hello"); err != nil {
		t.Fatal(err)
	}
	af.UpdateAppearances()

	apObj := f.Dict.Get("AP")
	ap, ok := apObj.(*pdf.Dict)
	if !ok {
		t.Fatalf("AP = %T, want *pdf.Dict", apObj)
	}
	if ap.Get("N") == nil {
		t.Error("AP/N was not set after UpdateAppearances")
	}
}

// loadSingleFieldAF is like loadSingleField but returns the AcroForm
// itself, needed by tests that call UpdateAppearances (an
// AcroForm-level method).
func loadSingleFieldAF(t *testing.T, fieldDict *pdf.Dict) *AcroForm {
	t.Helper()
	reg := pdf.NewRegistry(nil, nil)
	ref := reg.Register(fieldDict)

	afDict := pdf.NewDict()
	afDict.Set("Fields", pdf.Array{ref})
	af, err := Load(reg, afDict)
	if err != nil {
		t.Fatal(err)
	}
	if len(af.Fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(af.Fields))
	}
	return af
}
