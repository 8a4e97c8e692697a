// Package judge turns verified evidence into signalling-question answers and
// the two overall domain ratings.
package judge

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JohnsonLy78/quadas-agent/internal/llm"
	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"go.uber.org/zap"
)

const (
	// RationaleNoEvidence is used for every question without a verified quote
	RationaleNoEvidence = "No supporting evidence was found in the study text for this question."

	// RationaleNoAnswer is used when the backend skipped a question that had evidence
	RationaleNoAnswer = "The model returned no judgement for this question."
)

const outputContract = `OUTPUT FORMAT (mandatory):
Return a single JSON object of the form
{"signalling_answers": [{"question": "<question id>", "judgement": "Low|High|Unclear", "rationale": "<text>"}],
 "risk_of_bias": "Low|High|Unclear",
 "applicability_concern": "Low|High|Unclear"}
- Answer every question id listed in the request exactly once.
- Base each rationale only on the VERIFIED EVIDENCE block and cite it by its location label (for example "Line 12").
- A question without verified evidence must be judged "Unclear".`

// citationPattern finds line citations in a rationale, in either the label
// form or the backend rendering form
var citationPattern = regexp.MustCompile(`\b(?:Line |LINE_)(\d+)\b`)

// Judgement is the synthesizer's output before assembly into a result
type Judgement struct {
	Answers       []model.SignallingJudgement
	RiskOfBias    model.Rating
	Applicability model.Rating
}

type answerItem struct {
	Question  string `json:"question" validate:"required"`
	Judgement string `json:"judgement" validate:"required"`
	Rationale string `json:"rationale"`
}

type judgementResponse struct {
	SignallingAnswers    []answerItem `json:"signalling_answers" validate:"required,dive"`
	RiskOfBias           string       `json:"risk_of_bias" validate:"required"`
	ApplicabilityConcern string       `json:"applicability_concern" validate:"required"`
}

// Synthesizer asks the backend for a judgement grounded in verified quotes
type Synthesizer struct {
	provider       llm.Provider
	instructions   string
	maxTokens      int
	strictEvidence bool
	logger         *zap.Logger
}

// NewSynthesizer creates a judgement synthesizer. With strictEvidence set, an
// answer whose rationale cites a line outside that question's verified quotes
// is downgraded to Unclear.
func NewSynthesizer(provider llm.Provider, instructions string, maxTokens int, strictEvidence bool, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		provider:       provider,
		instructions:   instructions,
		maxTokens:      maxTokens,
		strictEvidence: strictEvidence,
		logger:         logger,
	}
}

// Judge answers every question in questions, in order.
//
// Only verified quotes and the missing-evidence notes are sent to the
// backend. When there are no verified quotes at all the backend is not
// called and everything is Unclear.
func (s *Synthesizer) Judge(ctx context.Context, studyID string, questions []model.QuestionSpec, verified []model.VerifiedQuote, missing []string) (*Judgement, error) {
	if len(verified) == 0 {
		s.logger.Info("no verified evidence, skipping judgement call", zap.String("study_id", studyID))
		return allUnclear(questions), nil
	}

	req := llm.CompletionRequest{
		System:    s.instructions + "\n\n" + outputContract,
		Prompt:    BuildJudgementPayload(studyID, questions, verified, missing),
		MaxTokens: s.maxTokens,
		JSON:      true,
		Accept: func(text string) error {
			return llm.DecodeResponse(text, &judgementResponse{})
		},
	}

	resp, err := s.provider.Complete(ctx, req)
	if err != nil {
		return nil, &model.StageError{Stage: model.StageJudged, Err: fmt.Errorf("backend %s: %w", s.provider.Name(), err)}
	}

	var parsed judgementResponse
	if err := llm.DecodeResponse(resp.Text, &parsed); err != nil {
		return nil, &model.StageError{
			Stage: model.StageJudged,
			Raw:   resp.Text,
			Err:   fmt.Errorf("%w: %w", model.ErrJudgementParse, err),
		}
	}

	return s.apply(questions, verified, &parsed), nil
}

// apply enforces the evidence rules on a parsed backend response
func (s *Synthesizer) apply(questions []model.QuestionSpec, verified []model.VerifiedQuote, parsed *judgementResponse) *Judgement {
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}

	answers := make(map[string]answerItem, len(parsed.SignallingAnswers))
	for _, a := range parsed.SignallingAnswers {
		if !known[a.Question] {
			s.logger.Warn("ignoring judgement for unknown question", zap.String("question", a.Question))
			continue
		}
		if _, dup := answers[a.Question]; dup {
			continue
		}
		answers[a.Question] = a
	}

	cited := make(map[string]map[int]bool, len(questions))
	for _, vq := range verified {
		if cited[vq.Question] == nil {
			cited[vq.Question] = make(map[int]bool)
		}
		cited[vq.Question][vq.LineID] = true
	}

	out := &Judgement{
		Answers:       make([]model.SignallingJudgement, 0, len(questions)),
		RiskOfBias:    model.Rating(parsed.RiskOfBias),
		Applicability: model.Rating(parsed.ApplicabilityConcern),
	}

	for _, q := range questions {
		lines := cited[q.ID]
		a, answered := answers[q.ID]

		switch {
		case len(lines) == 0:
			out.Answers = append(out.Answers, unclear(q.ID, RationaleNoEvidence))
		case !answered:
			out.Answers = append(out.Answers, unclear(q.ID, RationaleNoAnswer))
		default:
			if s.strictEvidence {
				if bad, ok := unverifiedCitation(a.Rationale, lines); ok {
					s.logger.Warn("rationale cites unverified line",
						zap.String("question", q.ID),
						zap.Int("line_id", bad))
					out.Answers = append(out.Answers, unclear(q.ID, fmt.Sprintf(
						"The rationale cited %s, which is not verified evidence for this question.",
						model.LocationLabel(bad))))
					continue
				}
			}
			out.Answers = append(out.Answers, model.SignallingJudgement{
				Question:  q.ID,
				Judgement: model.Rating(a.Judgement),
				Rationale: a.Rationale,
			})
		}
	}

	s.warnInvalidRatings(out)
	return out
}

// warnInvalidRatings logs ratings outside Low/High/Unclear. They are kept so
// the result validator rejects the run with the offending field named.
func (s *Synthesizer) warnInvalidRatings(j *Judgement) {
	if !j.RiskOfBias.Valid() {
		s.logger.Warn("backend returned invalid rating", zap.String("field", "risk_of_bias"), zap.String("rating", string(j.RiskOfBias)))
	}
	if !j.Applicability.Valid() {
		s.logger.Warn("backend returned invalid rating", zap.String("field", "applicability_concern"), zap.String("rating", string(j.Applicability)))
	}
	for _, a := range j.Answers {
		if !a.Judgement.Valid() {
			s.logger.Warn("backend returned invalid rating", zap.String("field", "signalling_answers."+a.Question), zap.String("rating", string(a.Judgement)))
		}
	}
}

// BuildJudgementPayload renders the user message for the judgement call
func BuildJudgementPayload(studyID string, questions []model.QuestionSpec, verified []model.VerifiedQuote, missing []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "study_id: %s\n\n", studyID)

	b.WriteString("SIGNALLING QUESTIONS:\n")
	for _, q := range questions {
		fmt.Fprintf(&b, "- %s: %s\n", q.ID, q.Text)
	}

	b.WriteString("\nVERIFIED EVIDENCE:\n")
	for _, vq := range verified {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", vq.Question, vq.Location, vq.Quote)
	}

	b.WriteString("\nMISSING EVIDENCE:\n")
	if len(missing) == 0 {
		b.WriteString("- none\n")
	}
	for _, m := range missing {
		fmt.Fprintf(&b, "- %s\n", m)
	}

	b.WriteString("\nReturn JSON only.")
	return b.String()
}

func allUnclear(questions []model.QuestionSpec) *Judgement {
	j := &Judgement{
		Answers:       make([]model.SignallingJudgement, 0, len(questions)),
		RiskOfBias:    model.RatingUnclear,
		Applicability: model.RatingUnclear,
	}
	for _, q := range questions {
		j.Answers = append(j.Answers, unclear(q.ID, RationaleNoEvidence))
	}
	return j
}

func unclear(question, rationale string) model.SignallingJudgement {
	return model.SignallingJudgement{
		Question:  question,
		Judgement: model.RatingUnclear,
		Rationale: rationale,
	}
}

// unverifiedCitation returns the first cited line id not in allowed
func unverifiedCitation(rationale string, allowed map[int]bool) (int, bool) {
	for _, m := range citationPattern.FindAllStringSubmatch(rationale, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if !allowed[id] {
			return id, true
		}
	}
	return 0, false
}
