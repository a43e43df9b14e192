// seehuhn.de/go/pdfkit - a library for reading and writing PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
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

// Package numfmt formats float64 values the way PDF numbers must look:
// the shortest decimal string that round-trips to the same double, never
// using exponent notation, and with a leading "0" stripped ("0.5" -> ".5")
// since that form is valid in the PDF object grammar and shorter.
package numfmt

import "strconv"

// Format returns the shortest decimal representation of x that parses back
// to the same float64, without exponent notation and with integer values
// emitted without a decimal point.
func Format(x float64) string {
	if x == float64(int64(x)) && x > -1e15 && x < 1e15 {
		return strconv.FormatInt(int64(x), 10)
	}

	s := strconv.FormatFloat(x, 'f', -1, 64)
	return stripLeadingZero(s)
}

func stripLeadingZero(s string) string {
	switch {
	case len(s) >= 2 && s[0] == '0' && s[1] == '.':
		return s[1:]
	case len(s) >= 3 && s[0] == '-' && s[1] == '0' && s[2] == '.':
		return "-" + s[2:]
	default:
		return s
	}
}
