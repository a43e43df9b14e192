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

// Package lzwcodec adapts github.com/hhrutter/lzw, an LZW implementation
// with the PDF/TIFF variable early-change behavior that the standard
// library's compress/lzw package does not support, to the
// io.ReadCloser/io.WriteCloser shape the rest of the filter pipeline
// expects.
package lzwcodec

import (
	"io"

	"github.com/hhrutter/lzw"
)

// EarlyChange is the value of the LZWDecode filter's /EarlyChange
// parameter; PDF defaults to 1 (true) when the entry is absent.
type EarlyChange bool

// NewReader returns a Reader that decodes LZW-compressed data read from
// r, using the PDF convention of MSB-first codes and the given
// early-change setting.
func NewReader(r io.Reader, earlyChange EarlyChange) io.ReadCloser {
	return lzw.NewReader(r, bool(earlyChange))
}

// NewWriter returns a WriteCloser that LZW-compresses everything written
// to it and writes the result to w. Close must be called to flush the
// final codes.
func NewWriter(w io.Writer, earlyChange EarlyChange) io.WriteCloser {
	return lzw.NewWriter(w, bool(earlyChange))
}
