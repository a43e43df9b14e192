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

// Version identifies a PDF file format version, 1.0 through 2.0.
type Version int

// The PDF versions understood by this package.
const (
	V1_0 Version = iota
	V1_1
	V1_2
	V1_3
	V1_4
	V1_5
	V1_6
	V1_7
	V2_0
)

// String returns the version in "M.N" form.
func (v Version) String() string {
	if v == V2_0 {
		return "2.0"
	}
	return fmt.Sprintf("1.%d", int(v))
}

// ParseVersion parses a header string of the form "1.7" or "2.0".
func ParseVersion(s string) (Version, error) {
	switch s {
	case "1.0":
		return V1_0, nil
	case "1.1":
		return V1_1, nil
	case "1.2":
		return V1_2, nil
	case "1.3":
		return V1_3, nil
	case "1.4":
		return V1_4, nil
	case "1.5":
		return V1_5, nil
	case "1.6":
		return V1_6, nil
	case "1.7":
		return V1_7, nil
	case "2.0":
		return V2_0, nil
	default:
		return 0, errVersion
	}
}

// maxVersion returns the higher of two versions.
func maxVersion(a, b Version) Version {
	if a > b {
		return a
	}
	return b
}
