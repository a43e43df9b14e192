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

import "testing"

func TestExtractCatalogRequiresPages(t *testing.T) {
	reg := NewRegistry(nil, nil)
	dict := NewDict()
	dict.Set("Type", Name("Catalog"))
	ref := reg.Register(dict)

	if _, err := ExtractCatalog(reg, ref); err == nil {
		t.Error("ExtractCatalog without /Pages should fail")
	}
}

func TestExtractCatalogBasicFields(t *testing.T) {
	reg := NewRegistry(nil, nil)
	pagesRef := reg.Register(NewDict())

	dict := NewDict()
	dict.Set("Type", Name("Catalog"))
	dict.Set("Pages", pagesRef)
	dict.Set("PageLayout", Name("TwoColumnLeft"))
	dict.Set("Version", Name("1.6"))
	ref := reg.Register(dict)

	cat, err := ExtractCatalog(reg, ref)
	if err != nil {
		t.Fatal(err)
	}
	if cat.Pages != pagesRef {
		t.Errorf("Pages = %v, want %v", cat.Pages, pagesRef)
	}
	if cat.PageLayout != "TwoColumnLeft" {
		t.Errorf("PageLayout = %q, want TwoColumnLeft", cat.PageLayout)
	}
	if cat.Version != V1_6 {
		t.Errorf("Version = %v, want V1_6", cat.Version)
	}
}

func TestCatalogAsDictRoundTrip(t *testing.T) {
	reg := NewRegistry(nil, nil)
	pagesRef := reg.Register(NewDict())

	cat := &Catalog{Pages: pagesRef, PageLayout: "SinglePage"}
	d := cat.AsDict()

	if d.Get("Type") != Name("Catalog") {
		t.Errorf("AsDict()[Type] = %v, want /Catalog", d.Get("Type"))
	}
	if d.Get("Pages") != Object(pagesRef) {
		t.Errorf("AsDict()[Pages] = %v, want %v", d.Get("Pages"), pagesRef)
	}

	ref := reg.Register(d)
	cat2, err := ExtractCatalog(reg, ref)
	if err != nil {
		t.Fatal(err)
	}
	if cat2.Pages != pagesRef || cat2.PageLayout != "SinglePage" {
		t.Errorf("round-tripped catalog = %+v", cat2)
	}
}

func TestCatalogAsDictOmitsEmptyOptionalFields(t *testing.T) {
	cat := &Catalog{Pages: Ref{Num: 1}}
	d := cat.AsDict()
	if d.Get("PageLayout") != nil {
		t.Error("AsDict should omit an empty PageLayout")
	}
	if d.Get("Outlines") != nil {
		t.Error("AsDict should omit a zero Outlines ref")
	}
	if d.Get("NeedsRendering") != nil {
		t.Error("AsDict should omit NeedsRendering when false")
	}
}
