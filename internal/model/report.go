package model

// Rating is the three-valued judgement scale shared by signalling questions
// and the two overall domain ratings
type Rating string

const (
	RatingLow     Rating = "Low"
	RatingHigh    Rating = "High"
	RatingUnclear Rating = "Unclear"
)

// Valid reports whether r is one of Low, High, Unclear
func (r Rating) Valid() bool {
	switch r {
	case RatingLow, RatingHigh, RatingUnclear:
		return true
	}
	return false
}

// SignallingJudgement is the answer to one signalling question
type SignallingJudgement struct {
	Question  string `json:"question"`
	Judgement Rating `json:"judgement"`
	Rationale string `json:"rationale"`
}

// AssessmentResult is the terminal artifact of one pipeline run.
// It is persisted exactly as serialized here, so field order and names are
// part of the output format.
type AssessmentResult struct {
	StudyID              string                         `json:"study_id"`
	Domain               string                         `json:"domain"`
	RiskOfBias           Rating                         `json:"risk_of_bias"`
	ApplicabilityConcern Rating                         `json:"applicability_concern"`
	SignallingAnswers    map[string]SignallingJudgement `json:"signalling_answers"`
	EvidenceQuotes       []VerifiedQuote                `json:"evidence_quotes"`
	MissingEvidence      []string                       `json:"missing_evidence"`
}

// NewAssessmentResult builds a result with non-nil collections so empty
// fields serialize as [] and {} rather than null
func NewAssessmentResult(studyID, domain string) *AssessmentResult {
	return &AssessmentResult{
		StudyID:           studyID,
		Domain:            domain,
		SignallingAnswers: make(map[string]SignallingJudgement),
		EvidenceQuotes:    []VerifiedQuote{},
		MissingEvidence:   []string{},
	}
}

// QuotesFor returns the verified quotes attached to a signalling question
func (r *AssessmentResult) QuotesFor(question string) []VerifiedQuote {
	var quotes []VerifiedQuote
	for _, q := range r.EvidenceQuotes {
		if q.Question == question {
			quotes = append(quotes, q)
		}
	}
	return quotes
}
