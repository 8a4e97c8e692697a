package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Line is one addressable line of the source document
type Line struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// IndexedDocument is the immutable, one-based line index of a study text.
// Ids are assigned by the constructor and are always 1..Len().
type IndexedDocument struct {
	lines []Line
}

// NewIndexedDocument numbers texts in order starting at 1.
// The slice is copied so later changes by the caller are not observed.
func NewIndexedDocument(texts []string) *IndexedDocument {
	lines := make([]Line, len(texts))
	for i, t := range texts {
		lines[i] = Line{ID: i + 1, Text: t}
	}
	return &IndexedDocument{lines: lines}
}

// Len returns the number of indexed lines
func (d *IndexedDocument) Len() int {
	if d == nil {
		return 0
	}
	return len(d.lines)
}

// Line looks up a line by id
func (d *IndexedDocument) Line(id int) (Line, bool) {
	if id < 1 || id > d.Len() {
		return Line{}, false
	}
	return d.lines[id-1], true
}

// Lines returns a copy of all lines in document order
func (d *IndexedDocument) Lines() []Line {
	out := make([]Line, d.Len())
	if d != nil {
		copy(out, d.lines)
	}
	return out
}

// EvidenceReference is an untrusted claim from the backend that a line
// supports a signalling question. LineID is 0 when the backend did not
// return an integer; Raw keeps the identifier as it was returned.
type EvidenceReference struct {
	Question string `json:"question"`
	LineID   int    `json:"line_id"`
	Raw      string `json:"raw,omitempty"`
}

// VerifiedQuote is evidence resolved against the IndexedDocument.
// Only the verify package constructs these.
type VerifiedQuote struct {
	Question string `json:"question"`
	LineID   int    `json:"line_id"`
	Quote    string `json:"quote"`
	Location string `json:"location"`
}

const locationPrefix = "Line "

// LocationLabel renders the human-readable location for a line id
func LocationLabel(id int) string {
	return locationPrefix + strconv.Itoa(id)
}

// ParseLocation recovers the line id from a label produced by LocationLabel
func ParseLocation(label string) (int, error) {
	rest, ok := strings.CutPrefix(label, locationPrefix)
	if !ok {
		return 0, fmt.Errorf("location %q: missing %q prefix", label, locationPrefix)
	}
	id, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("location %q: %w", label, err)
	}
	if id < 1 {
		return 0, fmt.Errorf("location %q: line id must be positive", label)
	}
	return id, nil
}
