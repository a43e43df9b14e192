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

// maxRefDepth bounds the number of indirect references Resolve will follow
// before giving up, so that a malformed "N G R" chain that refers to
// itself cannot hang a caller.
const maxRefDepth = 16

// Registry owns the mapping from (obj, gen) to Object for one document: it
// is the single authority that loads objects from the byte image, decodes
// object streams, and mints fresh object numbers for newly registered
// objects (spec.md §4.4). Resolved objects are interned: repeated
// resolution of the same reference returns the identical value, so object
// identity can stand in for reference equality once a document is loaded.
type Registry struct {
	warningSink

	buf  []byte
	xref *xrefTable

	resolved  map[Ref]Object
	resolving map[Ref]bool
	objStms   map[uint32]*objStmData

	nextNum uint32
}

// NewRegistry returns a Registry backed by buf (the original file image,
// nil for a document created from scratch) and the unified xref table
// produced by ReadXRef. Freshly registered objects are numbered starting
// one past the highest object number the xref table names.
func NewRegistry(buf []byte, xref *xrefTable) *Registry {
	if xref == nil {
		xref = newXRefTable()
	}
	r := &Registry{
		buf:       buf,
		xref:      xref,
		resolved:  make(map[Ref]Object),
		resolving: make(map[Ref]bool),
		objStms:   make(map[uint32]*objStmData),
	}
	var maxNum uint32
	for num := range xref.entries {
		if num > maxNum {
			maxNum = num
		}
	}
	r.nextNum = maxNum + 1
	return r
}

// Register mints a fresh Ref with generation 0 and stores obj under it.
// Used by the writer and by any component materializing a new indirect
// object, e.g. registering an XObject.
func (r *Registry) Register(obj Object) Ref {
	ref := Ref{Num: r.nextNum, Gen: 0}
	r.nextNum++
	r.resolved[ref] = obj
	return ref
}

// Put overwrites the value stored for an already-registered reference,
// e.g. after a caller mutates a dictionary obtained from Resolve.
func (r *Registry) Put(ref Ref, obj Object) {
	r.resolved[ref] = obj
}

// Resolve returns obj unchanged if it is not a Ref, and otherwise the
// direct object the reference (transitively) points to, loading it from
// the byte image on first access. A reference that is absent from the
// xref table, that forms a cycle, or that chains through more than
// maxRefDepth indirections resolves to nil (PDF null) and records a
// warning rather than failing the caller (spec.md §7, "resolves
// unresolved refs to Null and warns").
func (r *Registry) Resolve(obj Object) Object {
	ref, ok := obj.(Ref)
	if !ok {
		return obj
	}
	return r.resolveRef(ref, 0)
}

func (r *Registry) resolveRef(ref Ref, depth int) Object {
	if ref.IsZero() {
		return nil
	}
	if cached, ok := r.resolved[ref]; ok {
		return cached
	}
	if depth > maxRefDepth {
		r.addWarning(StageXref, fmt.Errorf("too many levels of indirection resolving %d %d R", ref.Num, ref.Gen))
		return nil
	}
	if r.resolving[ref] {
		r.addWarning(StageXref, fmt.Errorf("cyclic reference to object %d %d R", ref.Num, ref.Gen))
		return nil
	}

	r.resolving[ref] = true
	obj, err := r.load(ref)
	delete(r.resolving, ref)
	if err != nil {
		r.addWarning(StageXref, err)
		obj = nil
	}

	if next, ok := obj.(Ref); ok {
		obj = r.resolveRef(next, depth+1)
	}
	r.resolved[ref] = obj
	return obj
}

// load fetches ref's direct object from the byte image, dispatching on
// the kind of xref entry that names it.
func (r *Registry) load(ref Ref) (Object, error) {
	entry, ok := r.xref.lookup(ref.Num)
	if !ok {
		return nil, fmt.Errorf("object %d %d R not found in the cross-reference table", ref.Num, ref.Gen)
	}
	if entry.Type == xrefFree {
		return nil, nil
	}
	switch entry.Type {
	case xrefInUse:
		return r.loadDirect(ref, entry.Offset)
	case xrefCompressed:
		return r.loadFromObjStm(ref.Num, uint32(entry.Offset), int(entry.Gen))
	default:
		return nil, nil
	}
}

func (r *Registry) loadDirect(ref Ref, offset int64) (Object, error) {
	s := NewScanner(r.buf)
	s.Seek(offset)
	p := NewParser(s)
	p.SetWarningSink(r.addWarning)

	gotRef, obj, err := p.ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	if gotRef.Num != ref.Num {
		r.addWarning(StageXref, fmt.Errorf("xref names object %d but file has object %d at offset %d", ref.Num, gotRef.Num, offset))
	}
	return obj, nil
}

// objStmData is the decoded index and payload of one /Type /ObjStm
// container: nums[i]/offs[i] give the object number and byte offset
// (into payload) of the i-th embedded object (spec.md §4.4).
type objStmData struct {
	nums    []uint32
	offs    []int64
	payload []byte
}

func (r *Registry) loadFromObjStm(num, stmNum uint32, index int) (Object, error) {
	stm, err := r.objStmFor(stmNum)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(stm.offs) {
		return nil, fmt.Errorf("object %d: index %d out of range in object stream %d", num, index, stmNum)
	}
	if stm.nums[index] != num {
		r.addWarning(StageXref, fmt.Errorf("object stream %d: slot %d holds object %d, expected %d", stmNum, index, stm.nums[index], num))
	}

	s := NewScanner(stm.payload)
	s.Seek(stm.offs[index])
	p := NewParser(s)
	p.SetWarningSink(r.addWarning)
	return p.ParseObject()
}

func (r *Registry) objStmFor(stmNum uint32) (*objStmData, error) {
	if d, ok := r.objStms[stmNum]; ok {
		return d, nil
	}

	obj := r.Resolve(Ref{Num: stmNum, Gen: 0})
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object %d is not an object stream", stmNum)
	}

	data, err := stream.DecodedWarn(r.addWarning)
	if err != nil && data == nil {
		return nil, err
	}

	n, _ := stream.Dict.Get("N").(Number)
	first, _ := stream.Dict.Get("First").(Number)

	s := NewScanner(data)
	tok := NewTokenizer(s)
	d := &objStmData{payload: data}
	for i := 0; i < int(n); i++ {
		numTok, err := tok.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream %d: truncated header: %w", stmNum, err)
		}
		offTok, err := tok.Next()
		if err != nil {
			return nil, fmt.Errorf("object stream %d: truncated header: %w", stmNum, err)
		}
		if numTok.Kind != TokNumber || offTok.Kind != TokNumber {
			return nil, fmt.Errorf("object stream %d: malformed header entry %d", stmNum, i)
		}
		d.nums = append(d.nums, uint32(numTok.Num))
		d.offs = append(d.offs, int64(first)+int64(offTok.Num))
	}

	r.objStms[stmNum] = d
	return d, nil
}

// The GetXXX family resolves obj and type-asserts the result, returning
// the zero value (and, where the PDF null/absent distinction matters, a
// false ok) rather than an error: callers that need a required field to
// be present check ok themselves, matching the registry's "resolve to
// Null and warn" policy of leaving error-returning validation to the
// layer that knows whether a field is optional.

// GetDict resolves obj and returns it as a *Dict, or nil if it is not one.
func (r *Registry) GetDict(obj Object) *Dict {
	d, _ := r.Resolve(obj).(*Dict)
	return d
}

// GetArray resolves obj and returns it as an Array, or nil if it is not one.
func (r *Registry) GetArray(obj Object) Array {
	a, _ := r.Resolve(obj).(Array)
	return a
}

// GetName resolves obj and returns it as a Name, or "" if it is not one.
func (r *Registry) GetName(obj Object) Name {
	n, _ := r.Resolve(obj).(Name)
	return n
}

// GetNumber resolves obj and returns it as a Number.
func (r *Registry) GetNumber(obj Object) (Number, bool) {
	n, ok := r.Resolve(obj).(Number)
	return n, ok
}

// GetBool resolves obj and returns it as a Bool.
func (r *Registry) GetBool(obj Object) (Bool, bool) {
	b, ok := r.Resolve(obj).(Bool)
	return b, ok
}

// GetString resolves obj and returns it as a String.
func (r *Registry) GetString(obj Object) (String, bool) {
	s, ok := r.Resolve(obj).(String)
	return s, ok
}

// GetStream resolves obj and returns it as a *Stream, or nil if it is not one.
func (r *Registry) GetStream(obj Object) *Stream {
	s, _ := r.Resolve(obj).(*Stream)
	return s
}
