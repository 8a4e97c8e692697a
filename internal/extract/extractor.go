package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JohnsonLy78/quadas-agent/internal/llm"
	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"go.uber.org/zap"
)

// outputContract is appended to every checklist's extraction instructions.
// It fixes the response shape so the backend can only answer with line ids.
const outputContract = `OUTPUT FORMAT (mandatory):
Return a single JSON object of the form
{"evidence": [{"question": "<question id>", "line_id": <integer>}]}
- "question" must be one of the question ids listed in the request.
- "line_id" must be the integer N of a [LINE_N] marker in the study text.
- Never copy, quote or paraphrase study text. Line ids only.
- If no line supports a question, return no entry for that question. Do not guess.
- Return {"evidence": []} when nothing qualifies.`

type extractionItem struct {
	Question string          `json:"question" validate:"required"`
	LineID   json.RawMessage `json:"line_id" validate:"required"`
}

type extractionResponse struct {
	Evidence []extractionItem `json:"evidence" validate:"required,dive"`
}

// EvidenceExtractor asks the backend which lines support each signalling
// question. It receives line ids only, never quoted text.
type EvidenceExtractor struct {
	provider     llm.Provider
	instructions string
	maxTokens    int
	logger       *zap.Logger
}

// NewEvidenceExtractor creates a new evidence extractor. instructions is the
// checklist's natural-language extraction guidance.
func NewEvidenceExtractor(provider llm.Provider, instructions string, maxTokens int, logger *zap.Logger) *EvidenceExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceExtractor{
		provider:     provider,
		instructions: instructions,
		maxTokens:    maxTokens,
		logger:       logger,
	}
}

// Extract returns the backend's line references for questions. A backend
// failure or a response without the expected structure is returned as a
// *model.StageError; the references themselves are not trusted here.
func (e *EvidenceExtractor) Extract(ctx context.Context, studyID string, doc *model.IndexedDocument, questions []model.QuestionSpec) ([]model.EvidenceReference, error) {
	if CountNonEmpty(doc) == 0 {
		e.logger.Warn("skipping extraction", zap.String("study_id", studyID), zap.Error(model.ErrEmptyDocument))
		return []model.EvidenceReference{}, nil
	}

	req := llm.CompletionRequest{
		System:    e.instructions + "\n\n" + outputContract,
		Prompt:    BuildExtractionPayload(studyID, doc, questions),
		MaxTokens: e.maxTokens,
		JSON:      true,
		Accept: func(text string) error {
			return llm.DecodeResponse(text, &extractionResponse{})
		},
	}

	resp, err := e.provider.Complete(ctx, req)
	if err != nil {
		return nil, &model.StageError{Stage: model.StageExtracted, Err: fmt.Errorf("backend %s: %w", e.provider.Name(), err)}
	}

	refs, err := ParseExtraction(resp.Text, questions, e.logger)
	if err != nil {
		return nil, &model.StageError{Stage: model.StageExtracted, Raw: resp.Text, Err: err}
	}

	e.logger.Debug("extraction complete",
		zap.String("study_id", studyID),
		zap.Int("references", len(refs)),
		zap.Bool("cached", resp.Cached))

	return refs, nil
}

// BuildExtractionPayload renders the user message for the extraction call
func BuildExtractionPayload(studyID string, doc *model.IndexedDocument, questions []model.QuestionSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "study_id: %s\n\n", studyID)
	b.WriteString("SIGNALLING QUESTIONS:\n")
	for _, q := range questions {
		fmt.Fprintf(&b, "- %s: %s\n", q.ID, q.Text)
	}
	b.WriteString("\nNUMBERED STUDY TEXT:\n")
	b.WriteString(Render(doc))
	b.WriteString("\nReturn JSON with line IDs only.")
	return b.String()
}

// ParseExtraction decodes an extraction response into references.
//
// Structural problems are fatal and wrap model.ErrExtractionParse. A line_id
// that is present but not an integer is kept with LineID 0 so the verifier
// records it as missing evidence. References to unknown questions are
// dropped and duplicate (question, line) pairs are collapsed.
func ParseExtraction(text string, questions []model.QuestionSpec, logger *zap.Logger) ([]model.EvidenceReference, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var resp extractionResponse
	if err := llm.DecodeResponse(text, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExtractionParse, err)
	}

	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}

	type pair struct {
		question string
		raw      string
	}
	seen := make(map[pair]bool)
	refs := make([]model.EvidenceReference, 0, len(resp.Evidence))

	for _, item := range resp.Evidence {
		if !known[item.Question] {
			logger.Warn("dropping reference to unknown question", zap.String("question", item.Question))
			continue
		}

		raw := strings.TrimSpace(string(item.LineID))
		ref := model.EvidenceReference{Question: item.Question, Raw: raw}
		key := pair{item.Question, raw}
		if id, ok := lineNumber(item.LineID); ok {
			ref.LineID = id
			key.raw = strconv.Itoa(id)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, ref)
	}

	return refs, nil
}

// lineNumber accepts any JSON number with no fractional part, so 2 and 2.0
// name the same line
func lineNumber(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
