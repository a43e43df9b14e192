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

func TestParseAllOperandsAndOperators(t *testing.T) {
	src := []byte("1 0 0 1 10 20 cm /F1 12 Tf (hello) Tj\n")
	ops, err := NewParser(src).ParseAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 3 {
		t.Fatalf("got %d ops, want 3: %+v", len(ops), ops)
	}
	if ops[0].Op != "cm" || len(ops[0].Operands) != 6 {
		t.Errorf("op 0 = %+v", ops[0])
	}
	if ops[1].Op != "Tf" || len(ops[1].Operands) != 2 {
		t.Errorf("op 1 = %+v", ops[1])
	}
	name, ok := ops[1].Operands[0].(pdf.Name)
	if !ok || name != "F1" {
		t.Errorf("op 1 operand 0 = %#v, want /F1", ops[1].Operands[0])
	}
	if ops[2].Op != "Tj" || len(ops[2].Operands) != 1 {
		t.Errorf("op 2 = %+v", ops[2])
	}
}

func TestParseAllRecoversFromStrayDelimiter(t *testing.T) {
	src := []byte("q ] Q\n")
	ops, err := NewParser(src).ParseAll()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, op := range ops {
		names = append(names, op.Op)
	}
	if len(names) != 2 || names[0] != "q" || names[1] != "Q" {
		t.Errorf("got ops %v, want [q Q]", names)
	}
}

func TestParseInlineImageUncompressed(t *testing.T) {
	// No /F entry, so the end of data is found heuristically: a
	// whitespace-preceded "EI" followed by a syntactically valid
	// operation (here "Q", arity 0).
	src := []byte("BI /W 2 /H 1 /BPC 8 /CS /G ID \x01\x02 EI Q Q Q Q Q Q Q Q\n")
	ops, err := NewParser(src).ParseAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 9 || ops[0].Op != "BI" || ops[0].Image == nil {
		t.Fatalf("got %+v", ops)
	}
	img := ops[0].Image
	if w := img.Params.Get("W"); w != pdf.Number(2) {
		t.Errorf("W = %v, want 2", w)
	}
	if string(img.Data) != "\x01\x02 " {
		t.Errorf("Data = %q, want %q", img.Data, "\x01\x02 ")
	}
}

func TestParseInlineImageASCIIHex(t *testing.T) {
	src := []byte("BI /F /AHx ID 4869>EI\n")
	ops, err := NewParser(src).ParseAll()
	if err != nil {
		t.Fatal(err)
	}
	img := ops[0].Image
	if string(img.Data) != "4869>" {
		t.Errorf("Data = %q, want %q", img.Data, "4869>")
	}
}

func TestFindDCTEnd(t *testing.T) {
	// 0xFFD9 is the JPEG EOI marker; the scan then looks forward for the
	// literal "EI" operator, trimming the whitespace that separates them.
	buf := []byte{0xFF, 0xD9, ' ', 'E', 'I'}
	end := findDCTEnd(buf, 0)
	if end != 2 {
		t.Errorf("findDCTEnd = %d, want 2", end)
	}
}

func TestValidOperatorFollows(t *testing.T) {
	if !validOperatorFollows([]byte("q\n"), 0) {
		t.Error("expected q (arity 0) to validate")
	}
	if !validOperatorFollows([]byte("1 0 0 1 0 0 cm\n"), 0) {
		t.Error("expected 6-operand cm to validate")
	}
	if validOperatorFollows([]byte("bogus\n"), 0) {
		t.Error("unknown operator should not validate")
	}
}
