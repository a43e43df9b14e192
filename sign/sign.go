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

// Package sign implements the digital-signature integration point: a
// writer produces a byte image with a reserved /Contents placeholder and
// a /ByteRange describing the bytes around it, the caller's Signer
// digests and signs those bytes, and the result is substituted into the
// placeholder in place (spec.md §4.12). The cryptographic engine itself
// (the CMS/PKCS#7 builder, the key store) is out of scope: Signer is the
// seam between this package and whatever does that work.
package sign

import (
	"bytes"
	"crypto"
	"encoding/hex"
	"fmt"
	"strings"

	"seehuhn.de/go/pdfkit"
)

// DefaultPlaceholderSize is the default byte length, in hex characters,
// reserved for the /Contents signature placeholder: 16 KiB of hex
// digits, room for an 8 KiB raw signature blob.
const DefaultPlaceholderSize = 16 * 1024

// Signer is the external digest-and-sign callback a caller injects: given
// the digest of the document's signed byte ranges and the hash algorithm
// it was computed with, it returns the signature bytes (typically a
// PKCS#7/CMS SignedData blob) to embed.
type Signer interface {
	Sign(digest []byte, algo crypto.Hash) ([]byte, error)
}

// Sign reserves a signature dictionary at sigRef (creating it if absent,
// overwriting any existing value), saves doc with DefaultPlaceholderSize
// reserved for /Contents, computes the digest over the bytes outside the
// placeholder, invokes signer, and substitutes the result into the
// placeholder as uppercase hex, right-padded with '0'. The returned bytes
// are the complete, signed file image.
func Sign(doc *pdf.Document, sigRef pdf.Ref, signer Signer, algo crypto.Hash, opts pdf.SaveOptions) ([]byte, error) {
	return SignWithPlaceholder(doc, sigRef, signer, algo, DefaultPlaceholderSize, opts)
}

// SignWithPlaceholder is Sign with an explicit placeholder size, for a
// signature algorithm whose blob would not fit in the default 8 KiB.
// placeholderSize is measured in hex digits (so it must be even); the
// raw /Contents string therefore holds placeholderSize/2 zero bytes,
// which render as placeholderSize literal '0' hex digits once
// writeStringSyntax hex-encodes them.
func SignWithPlaceholder(doc *pdf.Document, sigRef pdf.Ref, signer Signer, algo crypto.Hash, placeholderSize int, opts pdf.SaveOptions) ([]byte, error) {
	reg := doc.Registry()
	sigDict := reg.GetDict(sigRef)
	if sigDict == nil {
		sigDict = pdf.NewDict()
	}
	sigDict.Set("Type", pdf.Name("Sig"))
	sigDict.Set("Filter", pdf.Name("Adobe.PPKLite"))
	sigDict.Set("SubFilter", pdf.Name("adbe.pkcs7.detached"))
	sigDict.Set("Contents", pdf.String{Bytes: bytes.Repeat([]byte{0x00}, placeholderSize/2), Form: pdf.StringHex})
	sigDict.Set("ByteRange", pdf.Array{pdf.Number(0), pdf.Number(0), pdf.Number(0), pdf.Number(0)})
	reg.Put(sigRef, sigDict)
	linkSignatureField(doc, sigRef)

	data, err := doc.Save(opts)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	ctStart, ctEnd, err := findContentsPlaceholder(data, placeholderSize)
	if err != nil {
		return nil, err
	}
	brStart, brEnd, err := findByteRangePlaceholder(data)
	if err != nil {
		return nil, err
	}

	a := int64(ctStart)
	b := int64(ctEnd)
	c := int64(len(data)) - b

	h := algo.New()
	h.Write(data[:a])
	h.Write(data[b : b+c])
	digest := h.Sum(nil)

	sigBytes, err := signer.Sign(digest, algo)
	if err != nil {
		return nil, fmt.Errorf("sign: signer: %w", err)
	}
	hexStr := strings.ToUpper(hex.EncodeToString(sigBytes))
	if len(hexStr) > placeholderSize {
		return nil, fmt.Errorf("sign: signature (%d hex chars) exceeds the %d-byte placeholder", len(hexStr), placeholderSize)
	}
	hexStr += strings.Repeat("0", placeholderSize-len(hexStr))
	copy(data[ctStart:ctEnd], hexStr)

	rangeText := fmt.Sprintf("[%d %d %d %d]", 0, a, b, c)
	if len(rangeText) > brEnd-brStart {
		return nil, fmt.Errorf("sign: /ByteRange value %q does not fit the reserved placeholder", rangeText)
	}
	rangeText += strings.Repeat(" ", (brEnd-brStart)-len(rangeText))
	copy(data[brStart:brEnd], rangeText)

	return data, nil
}

// linkSignatureField makes sigRef reachable from /Root by adding it to the
// document's AcroForm field array (creating the AcroForm if the document
// has none), and sets the SigFlags bits that mark the document as
// containing signatures. Without this, Document.Save's reachability walk
// never visits sigRef and the signature dictionary (including its
// /Contents placeholder) is silently dropped from the saved file.
func linkSignatureField(doc *pdf.Document, sigRef pdf.Ref) {
	reg := doc.Registry()
	cat := doc.Catalog

	var afRef pdf.Ref
	var afDict *pdf.Dict
	switch v := cat.AcroForm.(type) {
	case pdf.Ref:
		afRef = v
		afDict = reg.GetDict(v)
	case *pdf.Dict:
		afDict = v
	}
	if afDict == nil {
		afDict = pdf.NewDict()
	}

	alreadyLinked := false
	for _, f := range reg.GetArray(afDict.Get("Fields")) {
		if f == pdf.Object(sigRef) {
			alreadyLinked = true
			break
		}
	}
	if !alreadyLinked {
		fields := append(pdf.Array{}, reg.GetArray(afDict.Get("Fields"))...)
		fields = append(fields, sigRef)
		afDict.Set("Fields", fields)
	}

	const sigFlagsSignaturesExist = 1
	const sigFlagsAppendOnly = 2
	sigFlags, _ := reg.GetNumber(afDict.Get("SigFlags"))
	afDict.Set("SigFlags", pdf.Number(int(sigFlags)|sigFlagsSignaturesExist|sigFlagsAppendOnly))

	if afRef.IsZero() {
		afRef = reg.Register(afDict)
	} else {
		reg.Put(afRef, afDict)
	}
	cat.AcroForm = afRef
}

// findContentsPlaceholder locates the span of hex-digit bytes reserved by
// "/Contents <000...0>", not including the angle brackets themselves: per
// spec.md §4.12, a (the end of the first signed range) is the offset of
// the first placeholder byte, and b (the start of the second) is the
// offset right after the last one, so the delimiters fall inside the
// signed ranges and only the placeholder digits are excluded.
func findContentsPlaceholder(data []byte, size int) (start, end int, err error) {
	marker := append([]byte("/Contents <"), bytes.Repeat([]byte{'0'}, size)...)
	idx := bytes.Index(data, marker)
	if idx < 0 {
		return 0, 0, fmt.Errorf("sign: /Contents placeholder not found in saved document")
	}
	start = idx + len("/Contents <")
	end = start + size
	if end >= len(data) || data[end] != '>' {
		return 0, 0, fmt.Errorf("sign: malformed /Contents placeholder")
	}
	return start, end, nil
}

// findByteRangePlaceholder locates the span of the literal four-zero
// placeholder array SignWithPlaceholder wrote, to be overwritten in
// place with the real offsets (padded with trailing spaces to preserve
// the file's total length, and therefore every other byte offset already
// computed).
func findByteRangePlaceholder(data []byte) (start, end int, err error) {
	marker := []byte("/ByteRange [0 0 0 0]")
	idx := bytes.Index(data, marker)
	if idx < 0 {
		return 0, 0, fmt.Errorf("sign: /ByteRange placeholder not found in saved document")
	}
	start = idx + len("/ByteRange ")
	end = start + len("[0 0 0 0]")
	return start, end, nil
}
