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
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errVersion       = errors.New("unsupported PDF version")
	errDuplicateRef  = errors.New("object already written")
	errShortID       = errors.New("PDF file identifier too short")
	errNoProgress    = errors.New("no progress possible, giving up")
	errUnknownFilter = errors.New("unknown filter")
)

// MalformedFileError indicates that a PDF file could not be parsed. Loc
// records a breadcrumb trail (outermost first) describing where in the
// object graph the error was discovered, e.g. []string{"catalog",
// "Pages", "Kids[3]"}.
type MalformedFileError struct {
	Err error
	Pos int64
	Loc []string
}

func (err *MalformedFileError) Error() string {
	var b strings.Builder
	b.WriteString("malformed PDF file")
	if len(err.Loc) > 0 {
		b.WriteString(" (" + strings.Join(err.Loc, "/") + ")")
	}
	if err.Err != nil {
		b.WriteString(": " + err.Err.Error())
	}
	if err.Pos > 0 {
		b.WriteString(" at byte " + strconv.FormatInt(err.Pos, 10))
	}
	return b.String()
}

func (err *MalformedFileError) Unwrap() error {
	return err.Err
}

// withLoc returns a copy of err with loc prepended to its Loc trail, if err
// is a *MalformedFileError; otherwise it wraps err in a new one.
func withLoc(err error, loc string) error {
	var mfe *MalformedFileError
	if errors.As(err, &mfe) {
		cp := *mfe
		cp.Loc = append([]string{loc}, cp.Loc...)
		return &cp
	}
	return &MalformedFileError{Err: err, Loc: []string{loc}}
}

// VersionError is returned when a caller tries to use a feature that
// requires a higher PDF version than the one currently targeted.
type VersionError struct {
	Operation string
	Earliest  Version
}

func (err *VersionError) Error() string {
	return fmt.Sprintf("%s requires PDF version %s or later", err.Operation, err.Earliest)
}

// FieldError is returned by AcroForm field mutations (§7 "Semantic"
// errors): wrong operand arity, a value outside /Opt, writing a read-only
// field, and similar caller mistakes that are not file corruption.
type FieldError struct {
	Field  string
	Reason string
}

func (err *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", err.Field, err.Reason)
}

// FilterError indicates that decoding or encoding stream data failed. It
// is fatal for the stream in question but not for the document as a
// whole (§7 "Filter" errors).
type FilterError struct {
	Filter Name
	Err    error
}

func (err *FilterError) Error() string {
	return fmt.Sprintf("filter %s: %s", err.Filter, err.Err)
}

func (err *FilterError) Unwrap() error {
	return err.Err
}
