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

func TestVersionString(t *testing.T) {
	cases := []struct {
		v    Version
		want string
	}{
		{V1_0, "1.0"},
		{V1_4, "1.4"},
		{V1_7, "1.7"},
		{V2_0, "2.0"},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("Version(%d).String() = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestParseVersion(t *testing.T) {
	cases := []struct {
		s    string
		want Version
	}{
		{"1.0", V1_0},
		{"1.7", V1_7},
		{"2.0", V2_0},
	}
	for _, c := range cases {
		got, err := ParseVersion(c.s)
		if err != nil {
			t.Fatalf("ParseVersion(%q): %v", c.s, err)
		}
		if got != c.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestParseVersionRejectsUnknown(t *testing.T) {
	if _, err := ParseVersion("3.1"); err == nil {
		t.Error("ParseVersion(\"3.1\") should fail")
	}
}

func TestMaxVersion(t *testing.T) {
	if got := maxVersion(V1_4, V1_7); got != V1_7 {
		t.Errorf("maxVersion(1.4, 1.7) = %v, want 1.7", got)
	}
	if got := maxVersion(V2_0, V1_0); got != V2_0 {
		t.Errorf("maxVersion(2.0, 1.0) = %v, want 2.0", got)
	}
}
