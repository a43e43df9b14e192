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

	"golang.org/x/text/language"
)

// Catalog represents a PDF document catalog (PDF 32000-1:2008, 7.7.2). The
// only field load/ExtractCatalog requires is Pages, the root of the page
// tree; the other entries listed here are kept, as raw Object values where
// this package has no typed model for them. A catalog key with no field in
// this struct is not kept: Document.Save rebuilds the catalog dictionary
// from these fields alone.
type Catalog struct {
	// Version (optional, PDF 1.4) overrides the file header's version for
	// this document, if later.
	Version Version

	// Extensions (optional, PDF 1.4) records developer extensions
	// information for extensions used in this document.
	Extensions Object

	// Pages is the root of the document's page tree.
	Pages Ref

	// PageLabels (optional, PDF 1.3) is a number tree mapping page indices
	// to page label dictionaries.
	PageLabels Object

	// Names (optional, PDF 1.2) is the document's name dictionary.
	Names Object

	// Dests (optional, PDF 1.1) maps names to destinations.
	Dests Object

	// ViewerPreferences (optional, PDF 1.2) controls how a viewer should
	// present the document on screen.
	ViewerPreferences Object

	// PageLayout (optional) is one of SinglePage, OneColumn, TwoColumnLeft,
	// TwoColumnRight, TwoPageLeft, TwoPageRight.
	PageLayout Name

	// PageMode (optional) is one of UseNone, UseOutlines, UseThumbs,
	// FullScreen, UseOC, UseAttachments.
	PageMode Name

	// Outlines (optional) is the root of the document's outline hierarchy.
	// Preserved as an opaque Ref: outline-tree editing is out of scope,
	// but the reference must survive a load/save round trip.
	Outlines Ref

	// Threads (optional, PDF 1.1) is the array of the document's article
	// threads.
	Threads Ref

	// OpenAction (optional, PDF 1.1) names a destination or action to
	// perform when the document is opened.
	OpenAction Object

	// AA (optional, PDF 1.2) is the document's additional-actions
	// dictionary.
	AA Object

	// URI (optional, PDF 1.1) holds document-level URI-action information.
	URI Object

	// AcroForm (optional, PDF 1.2) is the document's interactive form
	// dictionary.
	AcroForm Object

	// Metadata (optional, PDF 1.4) references the document's XMP metadata
	// stream.
	Metadata Ref

	// StructTreeRoot (optional, PDF 1.3) is the root of the document's
	// logical structure tree.
	StructTreeRoot Object

	// MarkInfo (optional, PDF 1.4) records the document's use of tagged-PDF
	// conventions.
	MarkInfo Object

	// Lang (optional, PDF 1.4) is the document's default natural language.
	Lang language.Tag

	// SpiderInfo (optional, PDF 1.3) holds Web Capture state.
	SpiderInfo Object

	// OutputIntents (optional, PDF 1.4) describes the color characteristics
	// of intended output devices.
	OutputIntents Object

	// PieceInfo (optional, PDF 1.4) is the document's page-piece
	// dictionary.
	PieceInfo Object

	// OCProperties (optional, PDF 1.5; required if the document has optional
	// content) configures the document's optional-content groups.
	OCProperties Object

	// Perms (optional, PDF 1.5) specifies user access permissions.
	Perms Object

	// Legal (optional, PDF 1.5) attests to the legality of any digital
	// signatures in the document.
	Legal Object

	// Requirements (optional, PDF 1.7) lists requirement dictionaries.
	Requirements Object

	// Collection (optional, PDF 1.7) configures the presentation of
	// attached files.
	Collection Object

	// NeedsRendering (optional, deprecated in PDF 2.0) marks XFA forms that
	// must be regenerated when first opened.
	NeedsRendering bool

	// DSS (optional, PDF 2.0) is the document security store.
	DSS Object

	// AF (optional, PDF 2.0) lists the file specifications of associated
	// files.
	AF Object

	// DPartRoot (optional, PDF 2.0) is the root of the document parts
	// hierarchy.
	DPartRoot Object
}

// ExtractCatalog reads the Catalog dictionary obj refers to.
func ExtractCatalog(reg *Registry, obj Object) (*Catalog, error) {
	dict := reg.GetDict(obj)
	if dict == nil {
		return nil, &MalformedFileError{Err: errors.New("catalog dictionary is missing")}
	}
	if t := dict.Get("Type"); t != nil {
		if name, ok := t.(Name); ok && name != "Catalog" {
			reg.addWarning(StageCatalog, errors.New("catalog dictionary has unexpected /Type "+string(name)))
		}
	}

	pagesObj := dict.Get("Pages")
	if pagesObj == nil {
		return nil, &MalformedFileError{Err: errors.New("required field Pages is missing"), Loc: []string{"catalog"}}
	}
	pages, _ := pagesObj.(Ref)

	var version Version
	if name, ok := dict.Get("Version").(Name); ok {
		if v, err := ParseVersion(string(name)); err == nil {
			version = v
		}
	}

	var lang language.Tag
	if s, ok := dict.Get("Lang").(String); ok {
		if tag, err := language.Parse(decodeTextString(s)); err == nil {
			lang = tag
		}
	}

	c := &Catalog{
		Version:           version,
		Extensions:        dict.Get("Extensions"),
		Pages:             pages,
		PageLabels:        dict.Get("PageLabels"),
		Names:             dict.Get("Names"),
		Dests:             dict.Get("Dests"),
		ViewerPreferences: dict.Get("ViewerPreferences"),
		PageLayout:        reg.GetName(dict.Get("PageLayout")),
		PageMode:          reg.GetName(dict.Get("PageMode")),
		Outlines:          refField(dict, "Outlines"),
		Threads:           refField(dict, "Threads"),
		OpenAction:        dict.Get("OpenAction"),
		AA:                dict.Get("AA"),
		URI:               dict.Get("URI"),
		AcroForm:          dict.Get("AcroForm"),
		Metadata:          refField(dict, "Metadata"),
		StructTreeRoot:    dict.Get("StructTreeRoot"),
		MarkInfo:          dict.Get("MarkInfo"),
		Lang:              lang,
		SpiderInfo:        dict.Get("SpiderInfo"),
		OutputIntents:     dict.Get("OutputIntents"),
		PieceInfo:         dict.Get("PieceInfo"),
		OCProperties:      dict.Get("OCProperties"),
		Perms:             dict.Get("Perms"),
		Legal:             dict.Get("Legal"),
		Requirements:      dict.Get("Requirements"),
		Collection:        dict.Get("Collection"),
		DSS:               dict.Get("DSS"),
		AF:                dict.Get("AF"),
		DPartRoot:         dict.Get("DPartRoot"),
	}
	if b, ok := reg.GetBool(dict.Get("NeedsRendering")); ok {
		c.NeedsRendering = bool(b)
	}
	return c, nil
}

// AsDict renders the catalog back into a dictionary suitable for writing.
func (c *Catalog) AsDict() *Dict {
	d := NewDict()
	d.Set("Type", Name("Catalog"))
	if c.Version != 0 {
		d.Set("Version", Name(c.Version.String()))
	}
	setIfNotNil(d, "Extensions", c.Extensions)
	d.Set("Pages", c.Pages)
	setIfNotNil(d, "PageLabels", c.PageLabels)
	setIfNotNil(d, "Names", c.Names)
	setIfNotNil(d, "Dests", c.Dests)
	setIfNotNil(d, "ViewerPreferences", c.ViewerPreferences)
	if c.PageLayout != "" {
		d.Set("PageLayout", c.PageLayout)
	}
	if c.PageMode != "" {
		d.Set("PageMode", c.PageMode)
	}
	if !c.Outlines.IsZero() {
		d.Set("Outlines", c.Outlines)
	}
	if !c.Threads.IsZero() {
		d.Set("Threads", c.Threads)
	}
	setIfNotNil(d, "OpenAction", c.OpenAction)
	setIfNotNil(d, "AA", c.AA)
	setIfNotNil(d, "URI", c.URI)
	setIfNotNil(d, "AcroForm", c.AcroForm)
	if !c.Metadata.IsZero() {
		d.Set("Metadata", c.Metadata)
	}
	setIfNotNil(d, "StructTreeRoot", c.StructTreeRoot)
	setIfNotNil(d, "MarkInfo", c.MarkInfo)
	if (c.Lang != language.Tag{}) {
		d.Set("Lang", encodeTextString(c.Lang.String()))
	}
	setIfNotNil(d, "SpiderInfo", c.SpiderInfo)
	setIfNotNil(d, "OutputIntents", c.OutputIntents)
	setIfNotNil(d, "PieceInfo", c.PieceInfo)
	setIfNotNil(d, "OCProperties", c.OCProperties)
	setIfNotNil(d, "Perms", c.Perms)
	setIfNotNil(d, "Legal", c.Legal)
	setIfNotNil(d, "Requirements", c.Requirements)
	setIfNotNil(d, "Collection", c.Collection)
	if c.NeedsRendering {
		d.Set("NeedsRendering", Bool(true))
	}
	setIfNotNil(d, "DSS", c.DSS)
	setIfNotNil(d, "AF", c.AF)
	setIfNotNil(d, "DPartRoot", c.DPartRoot)
	return d
}

func refField(d *Dict, key Name) Ref {
	r, _ := d.Get(key).(Ref)
	return r
}

func setIfNotNil(d *Dict, key Name, v Object) {
	if v != nil {
		d.Set(key, v)
	}
}
