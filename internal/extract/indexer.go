package extract

import (
	"strconv"
	"strings"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
)

// Index splits raw study text into one-based addressable lines.
//
// Every physical line gets an id, including empty ones, so ids match the
// line numbers a reader sees in the source file. Each line's text is the
// physical line with surrounding whitespace trimmed and nothing else changed.
// A terminating newline does not add a line; empty input yields zero lines.
func Index(raw string) *model.IndexedDocument {
	if raw == "" {
		return model.NewIndexedDocument(nil)
	}

	parts := strings.Split(raw, "\n")
	if strings.HasSuffix(raw, "\n") {
		parts = parts[:len(parts)-1]
	}

	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	return model.NewIndexedDocument(parts)
}

// Render serializes doc for the backend as "[LINE_<id>] <text>", one per
// non-empty line. Empty lines are omitted so they cannot be cited.
func Render(doc *model.IndexedDocument) string {
	var b strings.Builder
	for _, line := range doc.Lines() {
		if line.Text == "" {
			continue
		}
		b.WriteString("[LINE_")
		b.WriteString(strconv.Itoa(line.ID))
		b.WriteString("] ")
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// CountNonEmpty returns how many lines carry text
func CountNonEmpty(doc *model.IndexedDocument) int {
	n := 0
	for _, line := range doc.Lines() {
		if line.Text != "" {
			n++
		}
	}
	return n
}
