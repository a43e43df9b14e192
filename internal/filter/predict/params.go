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

// Package predict implements the PDF /DecodeParms predictor transforms
// (PDF 32000-1:2008, table 8): the TIFF predictor (2) and the five PNG
// predictors (10-15), applied before or after the main stream filter as a
// row-oriented pre/post-processing pass.
package predict

import (
	"fmt"
	"io"
)

// Params mirrors the filter parameter dictionary entries that govern a
// predictor: Colors, BitsPerComponent, Columns and Predictor itself.
type Params struct {
	Colors           int
	BitsPerComponent int
	Columns          int
	Predictor        int
}

const (
	tiffMaxColors = 60
	pngMaxColors  = 256
)

// Validate reports whether p describes a predictor this package can apply.
func (p Params) Validate() error {
	switch p.Predictor {
	case 1, 2, 10, 11, 12, 13, 14, 15:
	default:
		return fmt.Errorf("predict: invalid Predictor %d", p.Predictor)
	}
	switch p.BitsPerComponent {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("predict: invalid BitsPerComponent %d", p.BitsPerComponent)
	}
	if p.Columns < 1 {
		return fmt.Errorf("predict: Columns must be positive, got %d", p.Columns)
	}
	maxColors := pngMaxColors
	if p.Predictor == 2 {
		maxColors = tiffMaxColors
	}
	if p.Colors < 1 || p.Colors > maxColors {
		return fmt.Errorf("predict: Colors %d out of range", p.Colors)
	}
	return nil
}

func (p Params) bytesPerRow() int {
	bits := p.Colors * p.BitsPerComponent * p.Columns
	return (bits + 7) / 8
}

func (p Params) bytesPerPixel() int {
	bpp := (p.Colors*p.BitsPerComponent + 7) / 8
	if bpp < 1 {
		bpp = 1
	}
	return bpp
}

// NewReader wraps r to undo the predictor described by params, so that
// Read returns the bytes as they looked before the predictor was applied.
func NewReader(r io.ReadCloser, params *Params) (io.ReadCloser, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	switch params.Predictor {
	case 1:
		return r, nil
	case 2:
		return &tiffReader{r: r, params: *params, rowSize: params.bytesPerRow()}, nil
	default:
		return &pngReader{r: r, rowSize: params.bytesPerRow(), bpp: params.bytesPerPixel()}, nil
	}
}

// NewWriter wraps w to apply the predictor described by params before the
// data reaches w.
func NewWriter(w io.WriteCloser, params *Params) (io.WriteCloser, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	switch params.Predictor {
	case 1:
		return w, nil
	case 2:
		return &tiffWriter{w: w, params: *params, rowSize: params.bytesPerRow()}, nil
	default:
		return &pngWriter{w: w, rowSize: params.bytesPerRow(), bpp: params.bytesPerPixel(), tag: pngTagFor(params.Predictor)}, nil
	}
}

// pngTagFor returns the fixed filter-type tag for predictor values 10-14,
// or -1 for predictor 15 ("optimum"), where the tag is chosen per row.
func pngTagFor(predictor int) int {
	if predictor == 15 {
		return -1
	}
	return predictor - 10
}
