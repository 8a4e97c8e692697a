package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/JohnsonLy78/quadas-agent/internal/llm/llmtest"
	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var questions = []model.QuestionSpec{
	{ID: "index_test_blinding", Text: "Were the index test results interpreted without knowledge of the reference standard?"},
	{ID: "threshold_pre_specified", Text: "If a threshold was used, was it pre-specified?"},
}

var thresholdQuote = model.VerifiedQuote{
	Question: "threshold_pre_specified",
	LineID:   2,
	Quote:    "The positivity threshold specified by the manufacturer was applied.",
	Location: "Line 2",
}

func TestJudge_NoEvidenceSkipsBackend(t *testing.T) {
	fake := llmtest.New()
	s := NewSynthesizer(fake, "judge", 100, true, nil)

	j, err := s.Judge(context.Background(), "s1", questions, nil, []string{"no evidence found for question threshold_pre_specified"})
	require.NoError(t, err)

	assert.Equal(t, 0, fake.Calls())
	assert.Equal(t, model.RatingUnclear, j.RiskOfBias)
	assert.Equal(t, model.RatingUnclear, j.Applicability)
	require.Len(t, j.Answers, 2)
	for _, a := range j.Answers {
		assert.Equal(t, model.RatingUnclear, a.Judgement)
		assert.Equal(t, RationaleNoEvidence, a.Rationale)
	}
}

func TestJudge_QuestionWithoutQuoteIsUnclear(t *testing.T) {
	// The backend claims a strong answer for blinding with no evidence behind it
	fake := llmtest.New(`{
		"signalling_answers": [
			{"question": "index_test_blinding", "judgement": "Low", "rationale": "Assessors were surely blinded."},
			{"question": "threshold_pre_specified", "judgement": "Low", "rationale": "Line 2 states the manufacturer threshold."}
		],
		"risk_of_bias": "Low",
		"applicability_concern": "Low"
	}`)
	s := NewSynthesizer(fake, "judge", 100, true, nil)

	j, err := s.Judge(context.Background(), "s1", questions, []model.VerifiedQuote{thresholdQuote}, nil)
	require.NoError(t, err)

	assert.Equal(t, []model.SignallingJudgement{
		{Question: "index_test_blinding", Judgement: model.RatingUnclear, Rationale: RationaleNoEvidence},
		{Question: "threshold_pre_specified", Judgement: model.RatingLow, Rationale: "Line 2 states the manufacturer threshold."},
	}, j.Answers)
	assert.Equal(t, model.RatingLow, j.RiskOfBias)
	assert.Equal(t, model.RatingLow, j.Applicability)
}

func TestJudge_PayloadCarriesOnlyVerifiedEvidence(t *testing.T) {
	fake := llmtest.New(`{"signalling_answers": [], "risk_of_bias": "Unclear", "applicability_concern": "Unclear"}`)
	s := NewSynthesizer(fake, "Apply QUADAS-2 rules.", 321, true, nil)

	missing := []string{"no evidence found for question index_test_blinding"}
	_, err := s.Judge(context.Background(), "s1", questions, []model.VerifiedQuote{thresholdQuote}, missing)
	require.NoError(t, err)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 321, reqs[0].MaxTokens)
	assert.True(t, reqs[0].JSON)
	assert.Contains(t, reqs[0].System, "Apply QUADAS-2 rules.")
	assert.Contains(t, reqs[0].System, `"risk_of_bias"`)
	assert.Contains(t, reqs[0].Prompt, "- [threshold_pre_specified] Line 2: The positivity threshold specified by the manufacturer was applied.")
	assert.Contains(t, reqs[0].Prompt, "- no evidence found for question index_test_blinding")
}

func TestJudge_MissingAnswerIsUnclear(t *testing.T) {
	fake := llmtest.New(`{"signalling_answers": [], "risk_of_bias": "High", "applicability_concern": "Low"}`)
	s := NewSynthesizer(fake, "judge", 100, true, nil)

	j, err := s.Judge(context.Background(), "s1", questions, []model.VerifiedQuote{thresholdQuote}, nil)
	require.NoError(t, err)

	require.Len(t, j.Answers, 2)
	assert.Equal(t, RationaleNoEvidence, j.Answers[0].Rationale)
	assert.Equal(t, model.RatingUnclear, j.Answers[1].Judgement)
	assert.Equal(t, RationaleNoAnswer, j.Answers[1].Rationale)
	assert.Equal(t, model.RatingHigh, j.RiskOfBias)
}

func TestJudge_StrictEvidenceCitations(t *testing.T) {
	response := `{
		"signalling_answers": [
			{"question": "threshold_pre_specified", "judgement": "Low", "rationale": "See Line 2 and Line 7."}
		],
		"risk_of_bias": "Low",
		"applicability_concern": "Low"
	}`

	t.Run("strict", func(t *testing.T) {
		s := NewSynthesizer(llmtest.New(response), "judge", 100, true, nil)
		j, err := s.Judge(context.Background(), "s1", questions, []model.VerifiedQuote{thresholdQuote}, nil)
		require.NoError(t, err)
		assert.Equal(t, model.RatingUnclear, j.Answers[1].Judgement)
		assert.Contains(t, j.Answers[1].Rationale, "Line 7")
	})

	t.Run("lenient", func(t *testing.T) {
		s := NewSynthesizer(llmtest.New(response), "judge", 100, false, nil)
		j, err := s.Judge(context.Background(), "s1", questions, []model.VerifiedQuote{thresholdQuote}, nil)
		require.NoError(t, err)
		assert.Equal(t, model.RatingLow, j.Answers[1].Judgement)
		assert.Equal(t, "See Line 2 and Line 7.", j.Answers[1].Rationale)
	})
}

func TestJudge_RatingsPassedThrough(t *testing.T) {
	fake := llmtest.New(`{
		"signalling_answers": [
			{"question": "threshold_pre_specified", "judgement": "Probably", "rationale": "Line 2."},
			{"question": "made_up", "judgement": "Low", "rationale": "x"}
		],
		"risk_of_bias": "Maybe",
		"applicability_concern": "Low"
	}`)
	core, logs := observer.New(zap.WarnLevel)
	s := NewSynthesizer(fake, "judge", 100, true, zap.New(core))

	j, err := s.Judge(context.Background(), "s1", questions, []model.VerifiedQuote{thresholdQuote}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.Rating("Maybe"), j.RiskOfBias)
	assert.Equal(t, model.Rating("Probably"), j.Answers[1].Judgement)
	assert.Len(t, j.Answers, 2)

	invalid := logs.FilterMessage("backend returned invalid rating").All()
	require.Len(t, invalid, 2)
	assert.Equal(t, "risk_of_bias", invalid[0].ContextMap()["field"])
	assert.Equal(t, "signalling_answers.threshold_pre_specified", invalid[1].ContextMap()["field"])
}

func TestJudge_ParseFailures(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"prose", "The study looks fine to me."},
		{"missing answers", `{"risk_of_bias": "Low", "applicability_concern": "Low"}`},
		{"missing risk", `{"signalling_answers": [], "applicability_concern": "Low"}`},
		{"missing applicability", `{"signalling_answers": [], "risk_of_bias": "Low"}`},
		{"answer without judgement", `{"signalling_answers": [{"question": "threshold_pre_specified"}], "risk_of_bias": "Low", "applicability_concern": "Low"}`},
		{"wrong types", `{"signalling_answers": {}, "risk_of_bias": 1, "applicability_concern": "Low"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(llmtest.New(tt.text), "judge", 100, true, nil)
			_, err := s.Judge(context.Background(), "s1", questions, []model.VerifiedQuote{thresholdQuote}, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrJudgementParse)

			var stageErr *model.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, model.StageJudged, stageErr.Stage)
			assert.Equal(t, tt.text, stageErr.Raw)
		})
	}
}

func TestJudge_BackendFailure(t *testing.T) {
	boom := errors.New("timeout")
	s := NewSynthesizer(llmtest.NewWithReplies(llmtest.Reply{Err: boom}), "judge", 100, true, nil)

	_, err := s.Judge(context.Background(), "s1", questions, []model.VerifiedQuote{thresholdQuote}, nil)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, model.ErrJudgementParse)
}

func TestUnverifiedCitation(t *testing.T) {
	allowed := map[int]bool{2: true, 14: true}

	tests := []struct {
		rationale string
		want      int
		found     bool
	}{
		{"no citations at all", 0, false},
		{"Line 2 and Line 14 agree", 0, false},
		{"Line 2 but also Line 3", 3, true},
		{"quoted from [LINE_40]", 40, true},
		{"Line 140 is unrelated", 140, true},
		{"Timeline 3 is not a citation", 0, false},
	}

	for _, tt := range tests {
		got, found := unverifiedCitation(tt.rationale, allowed)
		if found != tt.found || got != tt.want {
			t.Errorf("unverifiedCitation(%q) = (%d, %v), want (%d, %v)", tt.rationale, got, found, tt.want, tt.found)
		}
	}
}
