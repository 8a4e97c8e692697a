package validate

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JohnsonLy78/quadas-agent/internal/checklist"
	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	schema, err := LoadSchema(bytes.NewReader(checklist.DefaultSchema()))
	require.NoError(t, err)
	return schema
}

func validResult() *model.AssessmentResult {
	r := model.NewAssessmentResult("smith_2022", "Index Test")
	r.RiskOfBias = model.RatingLow
	r.ApplicabilityConcern = model.RatingUnclear
	r.SignallingAnswers["threshold_pre_specified"] = model.SignallingJudgement{
		Question:  "threshold_pre_specified",
		Judgement: model.RatingLow,
		Rationale: "Line 2 reports the manufacturer threshold.",
	}
	r.EvidenceQuotes = append(r.EvidenceQuotes, model.VerifiedQuote{
		Question: "threshold_pre_specified",
		LineID:   2,
		Quote:    "The positivity threshold specified by the manufacturer was applied.",
		Location: "Line 2",
	})
	return r
}

func TestValidate_Valid(t *testing.T) {
	r := validResult()
	got, err := Validate(r, defaultSchema(t))
	require.NoError(t, err)
	assert.Same(t, r, got)
}

func TestValidate_EmptyCollectionsAreValid(t *testing.T) {
	r := model.NewAssessmentResult("s1", "Index Test")
	r.RiskOfBias = model.RatingUnclear
	r.ApplicabilityConcern = model.RatingUnclear

	_, err := Validate(r, defaultSchema(t))
	assert.NoError(t, err)
}

func TestValidate_RejectsOutOfEnumRating(t *testing.T) {
	r := validResult()
	r.RiskOfBias = "Maybe"

	got, err := Validate(r, defaultSchema(t))
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSchemaValidation)

	var verr *SchemaValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "risk_of_bias", verr.Violations[0].Field)
	assert.Equal(t, "Maybe", verr.Violations[0].Value)
	assert.Contains(t, err.Error(), "risk_of_bias")
	assert.Contains(t, err.Error(), `"Maybe"`)
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	r := validResult()
	r.RiskOfBias = "Maybe"
	r.ApplicabilityConcern = ""
	r.SignallingAnswers["index_test_blinding"] = model.SignallingJudgement{
		Question:  "index_test_blinding",
		Judgement: "Probably",
	}
	r.EvidenceQuotes[0].Location = "line two"

	_, err := Validate(r, defaultSchema(t))
	var verr *SchemaValidationError
	require.ErrorAs(t, err, &verr)

	fields := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{
		"risk_of_bias",
		"applicability_concern",
		"signalling_answers.index_test_blinding.judgement",
		"evidence_quotes[0].location",
	}, fields)
}

func TestValidateFile(t *testing.T) {
	schema := defaultSchema(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	data, err := json.MarshalIndent(validResult(), "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(good, data, 0644))

	r, err := ValidateFile(good, schema)
	require.NoError(t, err)
	assert.Equal(t, validResult(), r)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"study_id": "s1", "risk_of_bias": "Low", "extra": true}`), 0644))

	_, err = ValidateFile(bad, schema)
	var verr *SchemaValidationError
	require.ErrorAs(t, err, &verr)

	var missing []string
	for _, v := range verr.Violations {
		if v.Message == "required property is missing" {
			missing = append(missing, v.Field)
		}
	}
	assert.ElementsMatch(t, []string{"domain", "applicability_concern", "signalling_answers", "evidence_quotes", "missing_evidence"}, missing)
	assert.True(t, strings.Contains(err.Error(), "extra") || len(verr.Violations) > len(missing))

	_, err = ValidateFile(filepath.Join(dir, "absent.json"), schema)
	assert.Error(t, err)
}

func TestLoadSchema_Invalid(t *testing.T) {
	_, err := LoadSchema(strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestFieldName(t *testing.T) {
	instance := map[string]any{
		"evidence_quotes": []any{map[string]any{"quote": "x"}},
		"a/b":             "slash",
	}

	assert.Equal(t, "", fieldName(pointerTokens(""), instance))
	assert.Equal(t, "evidence_quotes[0].quote", fieldName(pointerTokens("/evidence_quotes/0/quote"), instance))
	assert.Equal(t, "a/b", fieldName(pointerTokens("/a~1b"), instance))

	v, ok := resolve(instance, pointerTokens("/a~1b"))
	assert.True(t, ok)
	assert.Equal(t, "slash", v)
}
