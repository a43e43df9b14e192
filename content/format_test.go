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

package content

import (
	"testing"

	"seehuhn.de/go/pdfkit"
)

func TestBuilderRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Op("q")
	b.Op("cm", pdf.Number(1), pdf.Number(0), pdf.Number(0), pdf.Number(1), pdf.Number(0), pdf.Number(0))
	b.Op("Do", pdf.Name("X1"))
	b.Op("Q")

	ops := b.Operations()
	out := NewBuilderFromOperations(ops).Bytes()

	p := NewParser(out)
	got, err := p.ParseAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(ops) {
		t.Fatalf("got %d operations, want %d", len(got), len(ops))
	}
	for i := range ops {
		if got[i].Op != ops[i].Op {
			t.Errorf("op %d: got %q, want %q", i, got[i].Op, ops[i].Op)
		}
	}
}

func TestWriteOperationNumberFormat(t *testing.T) {
	buf := WriteOperation(nil, Operation{Op: "w", Operands: []pdf.Object{pdf.Number(0.5)}})
	if string(buf) != ".5 w\n" {
		t.Errorf("got %q", buf)
	}
}

func TestBracketed(t *testing.T) {
	ops := []Operation{{Op: "BT"}, {Op: "ET"}}
	b := Bracketed(ops)
	if len(b) != 4 || b[0].Op != "q" || b[len(b)-1].Op != "Q" {
		t.Errorf("unexpected bracketing: %+v", b)
	}
}

func TestNameEscaping(t *testing.T) {
	buf := WriteOperation(nil, Operation{Op: "gs", Operands: []pdf.Object{pdf.Name("a b")}})
	want := "/a#20b gs\n"
	if string(buf) != want {
		t.Errorf("got %q, want %q", buf, want)
	}
}
