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

// Package form implements PDF interactive forms (AcroForm): field-tree
// construction, typed field value access, appearance-stream regeneration
// and form flattening (spec.md §4.10).
package form

import (
	"fmt"

	"seehuhn.de/go/pdfkit"
)

// Field flag bits, spec.md §6 ("AcroForm field flags"). Bit numbering in
// the spec is 1-based (LSB = bit 1); these constants are already shifted
// to the corresponding Go bitmask.
const (
	FlagReadOnly = 1 << 0
	FlagRequired = 1 << 1
	FlagNoExport = 1 << 2

	FlagMultiline       = 1 << 12
	FlagPassword        = 1 << 13
	FlagFileSelect      = 1 << 20
	FlagDoNotSpellCheck = 1 << 22
	FlagDoNotScroll     = 1 << 23
	FlagComb            = 1 << 24
	FlagRichText        = 1 << 25

	FlagNoToggleToOff  = 1 << 14
	FlagRadio          = 1 << 15
	FlagPushbutton     = 1 << 16
	FlagRadiosInUnison = 1 << 25

	FlagCombo             = 1 << 17
	FlagEdit              = 1 << 18
	FlagSort              = 1 << 19
	FlagMultiSelect       = 1 << 21
	FlagCommitOnSelChange = 1 << 26
)

// Widget annotation flag bits, spec.md §6 ("Widget annotation flags").
const (
	WidgetInvisible = 1 << 0
	WidgetHidden    = 1 << 1
	WidgetNoView    = 1 << 5
)

// Type classifies a terminal field by its value contract (spec.md §4.10's
// value-contract table).
type Type int

const (
	Text Type = iota
	Checkbox
	Radio
	Dropdown
	Listbox
	Signature
	Unknown
)

// Field is one terminal field of the field tree: a node with no /Kids, or
// whose /Kids are widget annotations rather than further field nodes.
type Field struct {
	reg  *pdf.Registry
	Ref  pdf.Ref
	Dict *pdf.Dict

	// Name is the fully qualified field name: the parent's fully
	// qualified name, a ".", and this field's own /T.
	Name string

	Type  Type
	Flags uint32

	// Widgets are this field's widget annotation dictionaries: either
	// Dict itself (when field and widget are merged into one dictionary,
	// the common case for a field with a single widget) or the
	// dictionaries named by /Kids.
	Widgets    []*pdf.Dict
	WidgetRefs []pdf.Ref

	needsAppearance bool
}

// AcroForm is a document's interactive form dictionary.
type AcroForm struct {
	reg  *pdf.Registry
	Dict *pdf.Dict

	DR              *pdf.Dict
	DA              string
	Q               int
	NeedAppearances bool
	SigFlags        int

	// Fields lists every terminal field, in document order.
	Fields []*Field
}

// Open returns doc's interactive form, or nil if the document's catalog
// has no /AcroForm entry.
func Open(doc *pdf.Document) (*AcroForm, error) {
	reg := doc.Registry()
	dict := reg.GetDict(doc.Catalog.AcroForm)
	if dict == nil {
		return nil, nil
	}
	return Load(reg, dict)
}

// Load reads dict as a Catalog's /AcroForm dictionary, constructing the
// field tree (spec.md §4.10's "Field tree construction").
func Load(reg *pdf.Registry, dict *pdf.Dict) (*AcroForm, error) {
	af := &AcroForm{reg: reg, Dict: dict}

	af.DR = reg.GetDict(dict.Get("DR"))
	if s, ok := reg.GetString(dict.Get("DA")); ok {
		af.DA = string(s.Bytes)
	}
	if n, ok := reg.GetNumber(dict.Get("Q")); ok {
		af.Q = int(n)
	}
	if b, ok := reg.GetBool(dict.Get("NeedAppearances")); ok {
		af.NeedAppearances = bool(b)
	}
	if n, ok := reg.GetNumber(dict.Get("SigFlags")); ok {
		af.SigFlags = int(n)
	}

	visited := make(map[pdf.Ref]bool)
	af.Fields = walkFields(reg, reg.GetArray(dict.Get("Fields")), "", visited)
	return af, nil
}

// walkFields recurses into /Kids until it reaches a terminal field (a
// node with no Kids, or whose Kids have no /T — those Kids are widget
// annotations, not field nodes). Cycles are broken via a Ref-keyed
// visited set; a cycle warns and stops that branch.
func walkFields(reg *pdf.Registry, arr pdf.Array, parentName string, visited map[pdf.Ref]bool) []*Field {
	var out []*Field
	for _, obj := range arr {
		ref, isRef := obj.(pdf.Ref)
		if isRef {
			if visited[ref] {
				reg.Warn(pdf.StageForm, fmt.Errorf("cycle in field tree at object %d %d R", ref.Num, ref.Gen))
				continue
			}
			visited[ref] = true
		}

		dict := reg.GetDict(obj)
		if dict == nil {
			continue
		}
		name := fieldName(reg, dict, parentName)

		if terminal, kids := classifyNode(reg, dict); !terminal {
			out = append(out, walkFields(reg, kids, name, visited)...)
		} else {
			out = append(out, buildField(reg, ref, dict, name))
		}
	}
	return out
}

func fieldName(reg *pdf.Registry, dict *pdf.Dict, parent string) string {
	t := ""
	if s, ok := reg.GetString(dict.Get("T")); ok {
		t = pdf.DecodeTextString(s)
	}
	switch {
	case parent == "":
		return t
	case t == "":
		return parent
	default:
		return parent + "." + t
	}
}

// classifyNode reports whether dict is a terminal field, and if not,
// returns its Kids (which are further field nodes to recurse into).
func classifyNode(reg *pdf.Registry, dict *pdf.Dict) (terminal bool, kids pdf.Array) {
	kidsObj := dict.Get("Kids")
	if kidsObj == nil {
		return true, nil
	}
	arr := reg.GetArray(kidsObj)
	if len(arr) == 0 {
		return true, nil
	}
	for _, k := range arr {
		if kd := reg.GetDict(k); kd != nil && kd.Get("T") != nil {
			return false, arr
		}
	}
	return true, nil
}

func buildField(reg *pdf.Registry, ref pdf.Ref, dict *pdf.Dict, name string) *Field {
	ft, _ := fieldLookup(reg, dict, "FT").(pdf.Name)
	var flags uint32
	if n, ok := reg.GetNumber(fieldLookup(reg, dict, "Ff")); ok {
		flags = uint32(int64(n))
	}

	widgets, widgetRefs := collectWidgets(reg, ref, dict)

	return &Field{
		reg: reg, Ref: ref, Dict: dict, Name: name,
		Type: classifyType(ft, flags), Flags: flags,
		Widgets: widgets, WidgetRefs: widgetRefs,
	}
}

func classifyType(ft pdf.Name, flags uint32) Type {
	switch ft {
	case "Tx":
		return Text
	case "Btn":
		if flags&FlagPushbutton != 0 {
			return Unknown
		}
		if flags&FlagRadio != 0 {
			return Radio
		}
		return Checkbox
	case "Ch":
		if flags&FlagCombo != 0 {
			return Dropdown
		}
		return Listbox
	case "Sig":
		return Signature
	default:
		return Unknown
	}
}

// collectWidgets returns dict itself (the common case: field and widget
// merged into one dictionary) unless dict has Kids, in which case the
// Kids are the separate widget annotation dictionaries.
func collectWidgets(reg *pdf.Registry, ref pdf.Ref, dict *pdf.Dict) ([]*pdf.Dict, []pdf.Ref) {
	kidsObj := dict.Get("Kids")
	if kidsObj == nil {
		return []*pdf.Dict{dict}, []pdf.Ref{ref}
	}
	var dicts []*pdf.Dict
	var refs []pdf.Ref
	for _, k := range reg.GetArray(kidsObj) {
		kd := reg.GetDict(k)
		if kd == nil {
			continue
		}
		kref, _ := k.(pdf.Ref)
		dicts = append(dicts, kd)
		refs = append(refs, kref)
	}
	if len(dicts) == 0 {
		return []*pdf.Dict{dict}, []pdf.Ref{ref}
	}
	return dicts, refs
}

// fieldLookup resolves key on dict, walking /Parent upward if absent
// (FT, Ff, V, DA and Q are all inheritable per the AcroForm field-tree
// convention).
func fieldLookup(reg *pdf.Registry, dict *pdf.Dict, key pdf.Name) pdf.Object {
	cur := dict
	seen := make(map[*pdf.Dict]bool)
	for cur != nil && !seen[cur] {
		seen[cur] = true
		if v := cur.Get(key); v != nil {
			return v
		}
		parentRef, ok := cur.Get("Parent").(pdf.Ref)
		if !ok {
			break
		}
		cur = reg.GetDict(parentRef)
	}
	return nil
}

func rectFromArray(a pdf.Array) (pdf.Rectangle, bool) {
	if len(a) != 4 {
		return pdf.Rectangle{}, false
	}
	var v [4]float64
	for i, e := range a {
		n, ok := e.(pdf.Number)
		if !ok {
			return pdf.Rectangle{}, false
		}
		v[i] = float64(n)
	}
	return pdf.Rectangle{LLx: v[0], LLy: v[1], URx: v[2], URy: v[3]}, true
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

// GetText implements the Text value contract's Get.
func (f *Field) GetText() (string, bool) {
	if f.Type != Text {
		return "", false
	}
	s, ok := f.reg.GetString(fieldLookup(f.reg, f.Dict, "V"))
	if !ok {
		return "", false
	}
	return pdf.DecodeTextString(s), true
}

// SetText implements the Text value contract's Set: truncated to /MaxLen
// if set, rejected when the field is read-only.
func (f *Field) SetText(v string) error {
	if f.Type != Text {
		return &pdf.FieldError{Field: f.Name, Reason: "not a text field"}
	}
	if f.Flags&FlagReadOnly != 0 {
		return &pdf.FieldError{Field: f.Name, Reason: "field is read-only"}
	}
	if n, ok := f.reg.GetNumber(fieldLookup(f.reg, f.Dict, "MaxLen")); ok && n > 0 {
		runes := []rune(v)
		if len(runes) > int(n) {
			v = string(runes[:int(n)])
		}
	}
	f.Dict.Set("V", pdf.EncodeTextString(v))
	f.needsAppearance = true
	return nil
}

// onValues collects every non-"Off" key across the field's widgets'
// /AP /N appearance sub-dictionaries: the set of valid on-values.
func (f *Field) onValues() map[string]bool {
	out := make(map[string]bool)
	for _, w := range f.Widgets {
		ap := f.reg.GetDict(w.Get("AP"))
		if ap == nil {
			continue
		}
		n := f.reg.GetDict(ap.Get("N"))
		if n == nil {
			continue
		}
		for _, k := range n.Keys() {
			if k != "Off" {
				out[string(k)] = true
			}
		}
	}
	return out
}

// GetCheckbox implements the Checkbox value contract's Get.
func (f *Field) GetCheckbox() (string, bool) {
	if f.Type != Checkbox {
		return "", false
	}
	name, ok := f.reg.Resolve(fieldLookup(f.reg, f.Dict, "V")).(pdf.Name)
	if !ok {
		return "Off", true
	}
	return string(name), true
}

// SetCheckbox implements the Checkbox value contract's Set: the on-value
// must match one declared by a widget's /AP /N key.
func (f *Field) SetCheckbox(value string) error {
	if f.Type != Checkbox {
		return &pdf.FieldError{Field: f.Name, Reason: "not a checkbox field"}
	}
	if f.Flags&FlagReadOnly != 0 {
		return &pdf.FieldError{Field: f.Name, Reason: "field is read-only"}
	}
	if value != "Off" && !f.onValues()[value] {
		return &pdf.FieldError{Field: f.Name, Reason: fmt.Sprintf("value %q does not match any widget /AP /N key", value)}
	}
	f.Dict.Set("V", pdf.Name(value))
	for _, w := range f.Widgets {
		w.Set("AS", pdf.Name(value))
	}
	return nil
}

// GetRadio implements the Radio value contract's Get; ok is false when
// the field's value is null.
func (f *Field) GetRadio() (string, bool) {
	if f.Type != Radio {
		return "", false
	}
	name, ok := f.reg.Resolve(fieldLookup(f.reg, f.Dict, "V")).(pdf.Name)
	if !ok {
		return "", false
	}
	return string(name), true
}

// SetRadio implements the Radio value contract's Set. Passing isNull
// clears the selection, which is only allowed when NoToggleToOff is
// unset.
func (f *Field) SetRadio(value string, isNull bool) error {
	if f.Type != Radio {
		return &pdf.FieldError{Field: f.Name, Reason: "not a radio field"}
	}
	if f.Flags&FlagReadOnly != 0 {
		return &pdf.FieldError{Field: f.Name, Reason: "field is read-only"}
	}
	if isNull {
		if f.Flags&FlagNoToggleToOff != 0 {
			return &pdf.FieldError{Field: f.Name, Reason: "field does not allow toggling off"}
		}
		f.Dict.Delete("V")
		for _, w := range f.Widgets {
			w.Set("AS", pdf.Name("Off"))
		}
		return nil
	}
	if !f.onValues()[value] {
		return &pdf.FieldError{Field: f.Name, Reason: fmt.Sprintf("value %q does not match any widget /AP /N key", value)}
	}
	f.Dict.Set("V", pdf.Name(value))
	for _, w := range f.Widgets {
		state := pdf.Name("Off")
		if ap := f.reg.GetDict(w.Get("AP")); ap != nil {
			if n := f.reg.GetDict(ap.Get("N")); n != nil && n.Get(pdf.Name(value)) != nil {
				state = pdf.Name(value)
			}
		}
		w.Set("AS", state)
	}
	return nil
}

// opts returns the field's /Opt export values: for a plain string entry,
// that string; for a [exportValue, displayText] pair, the export value.
func (f *Field) opts() []string {
	arr := f.reg.GetArray(fieldLookup(f.reg, f.Dict, "Opt"))
	var out []string
	for _, o := range arr {
		switch v := f.reg.Resolve(o).(type) {
		case pdf.String:
			out = append(out, pdf.DecodeTextString(v))
		case pdf.Array:
			if len(v) > 0 {
				if s, ok := f.reg.Resolve(v[0]).(pdf.String); ok {
					out = append(out, pdf.DecodeTextString(s))
				}
			}
		}
	}
	return out
}

// GetDropdown implements the Dropdown value contract's Get.
func (f *Field) GetDropdown() (string, bool) {
	if f.Type != Dropdown {
		return "", false
	}
	s, ok := f.reg.GetString(fieldLookup(f.reg, f.Dict, "V"))
	if !ok {
		return "", false
	}
	return pdf.DecodeTextString(s), true
}

// SetDropdown implements the Dropdown value contract's Set: the value
// must be in /Opt unless the Edit flag is set.
func (f *Field) SetDropdown(value string) error {
	if f.Type != Dropdown {
		return &pdf.FieldError{Field: f.Name, Reason: "not a dropdown field"}
	}
	if f.Flags&FlagReadOnly != 0 {
		return &pdf.FieldError{Field: f.Name, Reason: "field is read-only"}
	}
	if f.Flags&FlagEdit == 0 && !containsStr(f.opts(), value) {
		return &pdf.FieldError{Field: f.Name, Reason: fmt.Sprintf("value %q not in /Opt", value)}
	}
	f.Dict.Set("V", pdf.EncodeTextString(value))
	f.needsAppearance = true
	return nil
}

// GetListbox implements the Listbox value contract's Get.
func (f *Field) GetListbox() ([]string, bool) {
	if f.Type != Listbox {
		return nil, false
	}
	switch v := f.reg.Resolve(fieldLookup(f.reg, f.Dict, "V")).(type) {
	case pdf.String:
		return []string{pdf.DecodeTextString(v)}, true
	case pdf.Array:
		var out []string
		for _, e := range v {
			if s, ok := f.reg.Resolve(e).(pdf.String); ok {
				out = append(out, pdf.DecodeTextString(s))
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// SetListbox implements the Listbox value contract's Set: multi-select
// only when the MultiSelect flag is set; every value must be in /Opt;
// maintains the parallel /I index array.
func (f *Field) SetListbox(values []string) error {
	if f.Type != Listbox {
		return &pdf.FieldError{Field: f.Name, Reason: "not a listbox field"}
	}
	if f.Flags&FlagReadOnly != 0 {
		return &pdf.FieldError{Field: f.Name, Reason: "field is read-only"}
	}
	if len(values) > 1 && f.Flags&FlagMultiSelect == 0 {
		return &pdf.FieldError{Field: f.Name, Reason: "multiple values require the MultiSelect flag"}
	}

	opts := f.opts()
	arr := make(pdf.Array, len(values))
	idx := make(pdf.Array, 0, len(values))
	for i, v := range values {
		if !containsStr(opts, v) {
			return &pdf.FieldError{Field: f.Name, Reason: fmt.Sprintf("value %q not in /Opt", v)}
		}
		arr[i] = pdf.EncodeTextString(v)
		idx = append(idx, pdf.Number(indexOf(opts, v)))
	}
	if len(values) == 1 {
		f.Dict.Set("V", arr[0])
	} else {
		f.Dict.Set("V", arr)
	}
	f.Dict.Set("I", idx)
	f.needsAppearance = true
	return nil
}

// GetSignature implements the Signature value contract's Get: null, or
// the signature dictionary. There is no Set: signature values are
// written only by the signing subsystem.
func (f *Field) GetSignature() (*pdf.Dict, bool) {
	if f.Type != Signature {
		return nil, false
	}
	d := f.reg.GetDict(fieldLookup(f.reg, f.Dict, "V"))
	return d, d != nil
}
