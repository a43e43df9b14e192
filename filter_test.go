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
	"testing"
)

func TestFlateRoundTrip(t *testing.T) {
	want := bytes.Repeat([]byte("the quick brown fox "), 20)

	s := NewStream(NewDict(), nil)
	if err := s.EncodeWith(want, []Name{FilterFlateDecode}, []*Dict{nil}); err != nil {
		t.Fatal(err)
	}
	if s.Dict.Get("Filter") != Name(FilterFlateDecode) {
		t.Errorf("Filter = %v, want /FlateDecode", s.Dict.Get("Filter"))
	}
	if bytes.Equal(s.Raw, want) {
		t.Error("encoded bytes should differ from the input for non-trivial data")
	}

	got, err := s.Decoded()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Decoded() round-trip mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestASCIIHexRoundTrip(t *testing.T) {
	want := []byte("Hello, PDF!")

	s := NewStream(NewDict(), nil)
	if err := s.EncodeWith(want, []Name{FilterASCIIHexDecode}, []*Dict{nil}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Decoded()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Decoded() = %q, want %q", got, want)
	}
}

func TestDecodedUnknownFilterWarns(t *testing.T) {
	dict := NewDict()
	dict.Set("Filter", Name("BogusDecode"))
	s := NewStream(dict, []byte("raw"))

	var warned bool
	_, err := s.DecodedWarn(func(stage string, err error) { warned = true })
	if err == nil {
		t.Error("decoding an unknown filter should report an error")
	}
	if !warned {
		t.Error("decoding an unknown filter should invoke the warning sink")
	}
}

func TestResolveFilterNameAbbreviation(t *testing.T) {
	if got := ResolveFilterName("Fl"); got != FilterFlateDecode {
		t.Errorf("ResolveFilterName(Fl) = %v, want FlateDecode", got)
	}
	if got := ResolveFilterName(FilterLZWDecode); got != FilterLZWDecode {
		t.Errorf("ResolveFilterName on a full name should be a no-op, got %v", got)
	}
}
