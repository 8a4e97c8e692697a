package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderFixture() *model.AssessmentResult {
	r := model.NewAssessmentResult("smith_2022", "Index Test")
	r.RiskOfBias = model.RatingLow
	r.ApplicabilityConcern = model.RatingUnclear
	r.SignallingAnswers["threshold_pre_specified"] = model.SignallingJudgement{
		Question:  "threshold_pre_specified",
		Judgement: model.RatingLow,
		Rationale: "Line 2 | manufacturer cut-off",
	}
	r.SignallingAnswers["index_test_blinding"] = model.SignallingJudgement{
		Question:  "index_test_blinding",
		Judgement: model.RatingUnclear,
		Rationale: "No supporting evidence was found in the study text for this question.",
	}
	r.EvidenceQuotes = append(r.EvidenceQuotes, model.VerifiedQuote{
		Question: "threshold_pre_specified",
		LineID:   2,
		Quote:    "Values >0.5 were considered <positive>.",
		Location: "Line 2",
	})
	r.MissingEvidence = append(r.MissingEvidence, "no evidence found for question index_test_blinding")
	return r
}

func TestRenderMarkdown(t *testing.T) {
	out := string(NewRenderer().RenderMarkdown(renderFixture()))

	assert.True(t, strings.HasPrefix(out, "# QUADAS-2 assessment: smith\\_2022\n"))
	assert.Contains(t, out, "- **Risk of bias:** Low\n")
	assert.Contains(t, out, "| threshold\\_pre\\_specified | Low | Line 2 \\| manufacturer cut-off |\n")
	assert.Contains(t, out, "### threshold\\_pre\\_specified\n\n- Line 2: Values \\>0.5 were considered \\<positive\\>.\n")
	assert.NotContains(t, out, "### index\\_test\\_blinding", "questions without quotes get no evidence heading")
	assert.Contains(t, out, "- no evidence found for question index\\_test\\_blinding\n")

	// questions are listed in sorted order
	assert.Less(t, strings.Index(out, "index\\_test\\_blinding |"), strings.Index(out, "threshold\\_pre\\_specified |"))
}

func TestRenderMarkdown_Empty(t *testing.T) {
	r := model.NewAssessmentResult("s1", "Index Test")
	out := string(NewRenderer().RenderMarkdown(r))
	assert.Contains(t, out, "No verified evidence.")
	assert.Contains(t, out, "## Missing evidence\n\nNone.\n")
}

func TestRenderHTML(t *testing.T) {
	out, err := NewRenderer().RenderHTML(renderFixture())
	require.NoError(t, err)

	page := string(out)
	assert.Contains(t, page, "<title>QUADAS-2 assessment: smith_2022</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<td>threshold_pre_specified</td>")
	assert.Contains(t, page, "&lt;positive&gt;")
	assert.NotContains(t, page, "<positive>")
}

func TestRenderSummary(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	NewRenderer().RenderSummary(&buf, renderFixture(), "outputs/smith_2022_index_test.json")

	out := buf.String()
	assert.Contains(t, out, "smith_2022 (Index Test)")
	assert.Contains(t, out, "Risk of bias:          Low")
	assert.Contains(t, out, "Applicability concern: Unclear")
	assert.Contains(t, out, "    index_test_blinding      Unclear\n")
	assert.Contains(t, out, "    threshold_pre_specified  Low\n")
	assert.Contains(t, out, "Evidence: 1 verified quote(s), 1 missing")
	assert.Contains(t, out, "Saved: outputs/smith_2022_index_test.json")
}
