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
	"compress/zlib"
	"io"

	"seehuhn.de/go/pdfkit/ascii85"
	"seehuhn.de/go/pdfkit/internal/filter/asciihex"
	"seehuhn.de/go/pdfkit/internal/filter/predict"
	"seehuhn.de/go/pdfkit/internal/filter/runlength"
	"seehuhn.de/go/pdfkit/lzwcodec"
)

// The PDF standard filter names (PDF 32000-1:2008, table 6).
const (
	FilterFlateDecode     Name = "FlateDecode"
	FilterLZWDecode       Name = "LZWDecode"
	FilterASCIIHexDecode  Name = "ASCIIHexDecode"
	FilterASCII85Decode   Name = "ASCII85Decode"
	FilterRunLengthDecode Name = "RunLengthDecode"
	FilterCCITTFaxDecode  Name = "CCITTFaxDecode"
	FilterDCTDecode       Name = "DCTDecode"
	FilterJBIG2Decode     Name = "JBIG2Decode"
	FilterJPXDecode       Name = "JPXDecode"
)

// inlineImageFilterAliases maps the abbreviated filter names allowed in
// inline-image (BI ... EI) parameter dictionaries to their full names
// (spec.md §4.5).
var inlineImageFilterAliases = map[Name]Name{
	"AHx": FilterASCIIHexDecode,
	"A85": FilterASCII85Decode,
	"LZW": FilterLZWDecode,
	"Fl":  FilterFlateDecode,
	"RL":  FilterRunLengthDecode,
	"CCF": FilterCCITTFaxDecode,
	"DCT": FilterDCTDecode,
}

// ResolveFilterName expands an inline-image filter abbreviation to the
// full filter name it stands for. Names that are not abbreviations are
// returned unchanged.
func ResolveFilterName(n Name) Name {
	if full, ok := inlineImageFilterAliases[n]; ok {
		return full
	}
	return n
}

// isOpaqueFilter reports whether name is a filter this package never
// decodes to pixels (spec.md §4.5): such streams pass through unchanged.
func isOpaqueFilter(name Name) bool {
	switch name {
	case FilterCCITTFaxDecode, FilterDCTDecode, FilterJBIG2Decode, FilterJPXDecode:
		return true
	default:
		return false
	}
}

// filterChain reads the normalized, parallel /Filter and /DecodeParms
// entries of a stream dictionary: a single Name/Dict becomes a
// one-element list, a missing /DecodeParms entry is padded with nils.
func filterChain(d *Dict) ([]Name, []*Dict) {
	var names []Name
	switch f := d.Get("Filter").(type) {
	case Name:
		names = []Name{f}
	case Array:
		for _, o := range f {
			if n, ok := o.(Name); ok {
				names = append(names, n)
			}
		}
	}

	var parms []*Dict
	switch p := d.Get("DecodeParms").(type) {
	case *Dict:
		parms = []*Dict{p}
	case Array:
		for _, o := range p {
			dp, _ := o.(*Dict)
			parms = append(parms, dp)
		}
	}
	for len(parms) < len(names) {
		parms = append(parms, nil)
	}
	return names, parms
}

func predictParams(d *Dict) predict.Params {
	p := predict.Params{Colors: 1, BitsPerComponent: 8, Columns: 1, Predictor: 1}
	if n, ok := d.Get("Colors").(Number); ok {
		p.Colors = int(n)
	}
	if n, ok := d.Get("BitsPerComponent").(Number); ok {
		p.BitsPerComponent = int(n)
	}
	if n, ok := d.Get("Columns").(Number); ok {
		p.Columns = int(n)
	}
	if n, ok := d.Get("Predictor").(Number); ok {
		p.Predictor = int(n)
	}
	return p
}

func predictorActive(d *Dict) bool {
	n, ok := d.Get("Predictor").(Number)
	return ok && n > 1
}

func lzwEarlyChange(d *Dict) lzwcodec.EarlyChange {
	switch v := d.Get("EarlyChange").(type) {
	case Number:
		return lzwcodec.EarlyChange(v != 0)
	case Bool:
		return lzwcodec.EarlyChange(v)
	default:
		return true
	}
}

// decodeStep runs one filter's decoder (plus, for Flate and LZW, the
// predictor post-pass) over data.
func decodeStep(name Name, data []byte, params *Dict) ([]byte, error) {
	switch name {
	case FilterFlateDecode:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		out, err := io.ReadAll(zr)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			// Tolerate a truncated checksum: keep whatever was decoded.
			if len(out) == 0 {
				return nil, err
			}
		}
		return applyPredictor(out, params)

	case FilterLZWDecode:
		rc := lzwcodec.NewReader(bytes.NewReader(data), lzwEarlyChange(params))
		out, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		return applyPredictor(out, params)

	case FilterASCIIHexDecode:
		return io.ReadAll(asciihex.Decode(bytes.NewReader(data)))

	case FilterASCII85Decode:
		r, err := ascii85.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return io.ReadAll(r)

	case FilterRunLengthDecode:
		return io.ReadAll(runlength.Decode(bytes.NewReader(data)))

	default:
		if isOpaqueFilter(name) {
			return data, nil
		}
		return data, &FilterError{Filter: name, Err: errUnknownFilter}
	}
}

func applyPredictor(data []byte, params *Dict) ([]byte, error) {
	if !predictorActive(params) {
		return data, nil
	}
	pp := predictParams(params)
	rc, err := predict.NewReader(io.NopCloser(bytes.NewReader(data)), &pp)
	if err != nil {
		return data, err
	}
	return io.ReadAll(rc)
}

// Decoded returns the stream's payload with every filter in its /Filter
// chain reversed, left to right (spec.md §4.5). The result is cached
// until the next SetRaw.
func (s *Stream) Decoded() ([]byte, error) {
	return s.DecodedWarn(nil)
}

// DecodedWarn is like Decoded but also reports a per-filter failure to
// warn (if non-nil). Decoding stops at the failing filter: the bytes
// accumulated up to it are returned together with the error.
func (s *Stream) DecodedWarn(warn func(stage string, err error)) ([]byte, error) {
	if s.decodedValid {
		return s.decoded, nil
	}

	names, parms := filterChain(s.Dict)
	data := s.Raw
	var firstErr error
	for i, name := range names {
		full := ResolveFilterName(name)
		out, err := decodeStep(full, data, parms[i])
		if err != nil {
			if warn != nil {
				warn(StageFilter, &FilterError{Filter: full, Err: err})
			}
			firstErr = &FilterError{Filter: full, Err: err}
			break
		}
		data = out
	}

	s.decoded = data
	s.decodedValid = firstErr == nil
	return data, firstErr
}

// encodeStep runs one filter's encoder (plus, for Flate and LZW, the
// predictor pre-pass) over data.
func encodeStep(name Name, data []byte, params *Dict) ([]byte, error) {
	switch name {
	case FilterFlateDecode:
		data, err := applyPredictorEncode(data, params)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case FilterLZWDecode:
		data, err := applyPredictorEncode(data, params)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		w := lzwcodec.NewWriter(&buf, lzwEarlyChange(params))
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case FilterASCIIHexDecode:
		var buf bytes.Buffer
		enc := asciihex.Encode(nopWriteCloser{&buf}, 64)
		if _, err := enc.Write(data); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case FilterASCII85Decode:
		var buf bytes.Buffer
		enc, err := ascii85.Encode(nopWriteCloser{&buf}, 64)
		if err != nil {
			return nil, err
		}
		if _, err := enc.Write(data); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case FilterRunLengthDecode:
		var buf bytes.Buffer
		enc := runlength.Encode(nopWriteCloser{&buf})
		if _, err := enc.Write(data); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		if isOpaqueFilter(name) {
			return data, nil
		}
		return nil, &FilterError{Filter: name, Err: errUnknownFilter}
	}
}

func applyPredictorEncode(data []byte, params *Dict) ([]byte, error) {
	if !predictorActive(params) {
		return data, nil
	}
	pp := predictParams(params)
	var buf bytes.Buffer
	w, err := predict.NewWriter(nopWriteCloser{&buf}, &pp)
	if err != nil {
		return data, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeWith replaces the stream's raw payload with data passed through
// the filters named, right to left (spec.md §4.5's encode direction is
// the reverse of decode), and sets /Filter and /DecodeParms accordingly.
// An empty names list simply stores data unfiltered.
func (s *Stream) EncodeWith(data []byte, names []Name, parms []*Dict) error {
	for len(parms) < len(names) {
		parms = append(parms, nil)
	}
	for i := len(names) - 1; i >= 0; i-- {
		out, err := encodeStep(ResolveFilterName(names[i]), data, parms[i])
		if err != nil {
			return err
		}
		data = out
	}

	switch len(names) {
	case 0:
		s.Dict.Delete("Filter")
		s.Dict.Delete("DecodeParms")
	case 1:
		s.Dict.Set("Filter", names[0])
		if parms[0] != nil {
			s.Dict.Set("DecodeParms", parms[0])
		} else {
			s.Dict.Delete("DecodeParms")
		}
	default:
		farr := make(Array, len(names))
		parr := make(Array, len(parms))
		anyParms := false
		for i, n := range names {
			farr[i] = n
			if parms[i] != nil {
				parr[i] = parms[i]
				anyParms = true
			} else {
				parr[i] = nil
			}
		}
		s.Dict.Set("Filter", farr)
		if anyParms {
			s.Dict.Set("DecodeParms", parr)
		} else {
			s.Dict.Delete("DecodeParms")
		}
	}

	s.SetRaw(data)
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
