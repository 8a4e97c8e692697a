package extract

import (
	"strings"
	"testing"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
)

func TestIndex(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		lines []string
	}{
		{"empty", "", nil},
		{"single line no newline", "abc", []string{"abc"}},
		{"trailing newline ignored", "a\nb\n", []string{"a", "b"}},
		{"blank lines kept", "a\n\nb", []string{"a", "", "b"}},
		{"whitespace trimmed", "  a \t\n\tb", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"only newline", "\n", []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Index(tt.raw)
			if doc.Len() != len(tt.lines) {
				t.Fatalf("Len() = %d, want %d", doc.Len(), len(tt.lines))
			}
			for i, want := range tt.lines {
				line, ok := doc.Line(i + 1)
				if !ok {
					t.Fatalf("Line(%d) missing", i+1)
				}
				if line.ID != i+1 {
					t.Errorf("Line(%d).ID = %d", i+1, line.ID)
				}
				if line.Text != want {
					t.Errorf("Line(%d).Text = %q, want %q", i+1, line.Text, want)
				}
			}
		})
	}
}

func TestIndex_IdsAreContiguous(t *testing.T) {
	raw := "first\n\n  third  \nfourth\n\n"
	doc := Index(raw)

	for i, line := range doc.Lines() {
		if line.ID != i+1 {
			t.Fatalf("line %d has id %d", i, line.ID)
		}
		if line.Text != strings.TrimSpace(line.Text) {
			t.Errorf("line %d not trimmed: %q", line.ID, line.Text)
		}
	}

	if _, ok := doc.Line(0); ok {
		t.Error("Line(0) should not exist")
	}
	if _, ok := doc.Line(doc.Len() + 1); ok {
		t.Error("Line(Len+1) should not exist")
	}
}

func TestIndex_Deterministic(t *testing.T) {
	raw := "Methods\nThe threshold was pre-specified.\n\nResults"
	a := Index(raw).Lines()
	b := Index(raw).Lines()
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("line %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRender(t *testing.T) {
	doc := Index("alpha\n\ngamma\n")
	got := Render(doc)
	want := "[LINE_1] alpha\n[LINE_3] gamma\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}

	if Render(model.NewIndexedDocument(nil)) != "" {
		t.Error("Render of empty document should be empty")
	}
}

func TestCountNonEmpty(t *testing.T) {
	if n := CountNonEmpty(Index("a\n\n\nb")); n != 2 {
		t.Errorf("CountNonEmpty = %d, want 2", n)
	}
	if n := CountNonEmpty(Index("\n\n")); n != 0 {
		t.Errorf("CountNonEmpty = %d, want 0", n)
	}
}
