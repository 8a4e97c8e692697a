// Package verify resolves backend line references against the indexed
// document. It is the only place a model.VerifiedQuote is created.
package verify

import (
	"fmt"
	"strconv"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
)

// Verify looks up every reference in doc.
//
// A reference to an existing non-empty line becomes a VerifiedQuote whose
// Quote is the line text unchanged. Any other reference is dropped and adds
// exactly one note to the returned missing-evidence list. Output order
// follows refs.
func Verify(doc *model.IndexedDocument, refs []model.EvidenceReference) ([]model.VerifiedQuote, []string) {
	quotes := make([]model.VerifiedQuote, 0, len(refs))
	missing := []string{}

	for _, ref := range refs {
		line, ok := doc.Line(ref.LineID)
		switch {
		case !ok:
			missing = append(missing, fmt.Sprintf("no evidence found for question %s: line reference %s does not exist in the source", ref.Question, rawID(ref)))
		case line.Text == "":
			missing = append(missing, fmt.Sprintf("no evidence found for question %s: line reference %s refers to an empty line", ref.Question, rawID(ref)))
		default:
			quotes = append(quotes, model.VerifiedQuote{
				Question: ref.Question,
				LineID:   line.ID,
				Quote:    line.Text,
				Location: model.LocationLabel(line.ID),
			})
		}
	}

	return quotes, missing
}

// Unreferenced returns one note per question that refs never mention.
// Questions whose references were all dropped are already covered by Verify.
func Unreferenced(questions []model.QuestionSpec, refs []model.EvidenceReference) []string {
	referenced := make(map[string]bool, len(refs))
	for _, ref := range refs {
		referenced[ref.Question] = true
	}

	notes := []string{}
	for _, q := range questions {
		if !referenced[q.ID] {
			notes = append(notes, "no evidence found for question "+q.ID)
		}
	}
	return notes
}

func rawID(ref model.EvidenceReference) string {
	if ref.Raw != "" {
		return ref.Raw
	}
	return strconv.Itoa(ref.LineID)
}
