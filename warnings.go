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

// Stage tags used in Warning.Stage, matching the taxonomy of spec.md §7.
const (
	StageLex     = "lex"
	StageXref    = "xref"
	StageCatalog = "catalog"
	StageFilter  = "filter"
	StageForm    = "form"
)

// Warning is a non-fatal issue accumulated while reading or mutating a
// document. The parser and registry never abort on a Warning; they record
// it and continue (spec.md §7, "Propagation policy").
type Warning struct {
	Stage string
	Err   error
}

func (w Warning) Error() string {
	return w.Stage + ": " + w.Err.Error()
}

// warningSink collects Warnings. It is embedded in Registry and Document.
type warningSink struct {
	warnings []Warning
}

func (s *warningSink) addWarning(stage string, err error) {
	if err == nil {
		return
	}
	s.warnings = append(s.warnings, Warning{Stage: stage, Err: err})
}

// Warn records a warning from a caller outside this package (e.g. the
// content or form packages), using the same stage taxonomy as the
// parser and registry.
func (s *warningSink) Warn(stage string, err error) {
	s.addWarning(stage, err)
}

// Warnings returns the warnings accumulated so far.
func (s *warningSink) Warnings() []Warning {
	return s.warnings
}
