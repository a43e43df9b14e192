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

package sign

import (
	"bytes"
	"crypto"
	"encoding/hex"
	"strings"
	"testing"

	"seehuhn.de/go/pdfkit"
)

// fakeSigner returns a fixed signature blob and records the digest and
// algorithm it was asked to sign, so tests can check both the digest
// computation and the substitution that follows it.
type fakeSigner struct {
	blob      []byte
	gotDigest []byte
	gotAlgo   crypto.Hash
}

func (s *fakeSigner) Sign(digest []byte, algo crypto.Hash) ([]byte, error) {
	s.gotDigest = append([]byte(nil), digest...)
	s.gotAlgo = algo
	return s.blob, nil
}

func TestSignSubstitutesContentsAndByteRange(t *testing.T) {
	doc := pdf.Create()
	doc.AddPage(pdf.A4)
	sigRef := doc.Registry().Register(pdf.NewDict())

	signer := &fakeSigner{blob: []byte{0xDE, 0xAD, 0xBE, 0xEF}}

	out, err := SignWithPlaceholder(doc, sigRef, signer, crypto.SHA256, 64, pdf.SaveOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Contains(out, []byte("/ByteRange [0 0 0 0]")) {
		t.Error("/ByteRange placeholder was not substituted")
	}
	if bytes.Contains(out, bytes.Repeat([]byte{'0'}, 64)) {
		t.Error("/Contents placeholder was not substituted")
	}
	if !bytes.Contains(out, []byte("DEADBEEF")) {
		t.Error("signature bytes were not hex-encoded into /Contents")
	}

	if signer.gotAlgo != crypto.SHA256 {
		t.Errorf("signer was invoked with algo %v, want SHA256", signer.gotAlgo)
	}

	// Recompute the digest independently to confirm it covers exactly the
	// bytes outside the /Contents placeholder. The placeholder's contents
	// changed (they now hold the hex-encoded signature), so its span is
	// located by marker and fixed width rather than by re-running
	// findContentsPlaceholder, which only recognizes the original all-zero
	// marker.
	marker := []byte("/Contents <")
	idx := bytes.Index(out, marker)
	if idx < 0 {
		t.Fatal("/Contents marker not found in signed output")
	}
	start := idx + len(marker)
	end := start + 64
	if out[end] != '>' {
		t.Fatalf("expected '>' at end of /Contents placeholder, found %q", out[end])
	}
	h := crypto.SHA256.New()
	h.Write(out[:start])
	h.Write(out[end:])
	want := h.Sum(nil)
	if !bytes.Equal(signer.gotDigest, want) {
		t.Error("digest handed to the signer does not match the bytes outside /Contents")
	}
}

func TestSignRejectsOversizedSignature(t *testing.T) {
	doc := pdf.Create()
	doc.AddPage(pdf.A4)
	sigRef := doc.Registry().Register(pdf.NewDict())

	signer := &fakeSigner{blob: bytes.Repeat([]byte{0xAA}, 100)}

	_, err := SignWithPlaceholder(doc, sigRef, signer, crypto.SHA256, 8, pdf.SaveOptions{})
	if err == nil {
		t.Error("a signature exceeding the placeholder size should fail")
	}
}

func TestFindContentsPlaceholderRoundTrip(t *testing.T) {
	hexDigits := strings.Repeat("0", 16)
	data := []byte("/Contents <" + hexDigits + ">\n")
	start, end, err := findContentsPlaceholder(data, 16)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[start:end]) != hexDigits {
		t.Errorf("got %q, want %q", data[start:end], hexDigits)
	}
}

func TestSignDefaultPlaceholderSize(t *testing.T) {
	doc := pdf.Create()
	doc.AddPage(pdf.A4)
	sigRef := doc.Registry().Register(pdf.NewDict())

	signer := &fakeSigner{blob: []byte{0x01, 0x02}}
	out, err := Sign(doc, sigRef, signer, crypto.SHA256, pdf.SaveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	want := strings.ToUpper(hex.EncodeToString(signer.blob))
	if !bytes.Contains(out, []byte(want)) {
		t.Error("Sign did not embed the signature using the default placeholder size")
	}
}
