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

// Package content implements the PDF content-stream grammar: the
// operand/operator language used inside page and Form-XObject streams.
// It is a distinct grammar from the object grammar (true/false/null are
// operand literals rather than object values, and any other bare word is
// an operator), but the two share identical lexical elements, so this
// package lexes with pdf.Tokenizer directly rather than duplicating it.
package content

import "seehuhn.de/go/pdfkit"

// classification says what role a token plays once the content grammar,
// rather than the object grammar, is applying semantics to it.
type classification int

const (
	clsOperand classification = iota
	clsOperator
	clsSkip
)

// classify turns one lexical token into a content-stream operand object,
// or signals that it is an operator keyword (the caller reads t.Str) or
// should be skipped (an unexpected closing delimiter, recovered per the
// grammar's lenient-recovery rule).
func (p *Parser) classify(t pdf.Token) (pdf.Object, classification, error) {
	switch t.Kind {
	case pdf.TokNumber:
		return pdf.Number(t.Num), clsOperand, nil

	case pdf.TokName:
		return pdf.Name(t.Str), clsOperand, nil

	case pdf.TokString:
		return pdf.String{Bytes: t.Bytes, Form: t.Form}, clsOperand, nil

	case pdf.TokDelim:
		switch t.Str {
		case "[":
			arr, err := p.parseArray()
			return arr, clsOperand, err
		case "<<":
			d, err := p.parseDict()
			return d, clsOperand, err
		default:
			p.warnf("unexpected delimiter %q, skipping", t.Str)
			return nil, clsSkip, nil
		}

	case pdf.TokKeyword:
		switch t.Str {
		case "true":
			return pdf.Bool(true), clsOperand, nil
		case "false":
			return pdf.Bool(false), clsOperand, nil
		case "null":
			return nil, clsOperand, nil
		default:
			return nil, clsOperator, nil
		}
	}
	return nil, clsSkip, nil
}

func isSpaceByte(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	default:
		return false
	}
}
