package checklist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "Index Test", c.Domain)
	assert.Equal(t, []string{"index_test_blinding", "threshold_pre_specified"}, model.QuestionIDs(c.Questions))
	assert.NotEmpty(t, c.ExtractPrompt)
	assert.NotEmpty(t, c.JudgePrompt)
	assert.Equal(t, "index_test", c.OutputSuffix())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "domain: [unterminated"},
		{"unknown key", "domain: X\nquestions: [{id: a, text: b}]\nextract_prompt: e\njudge_prompt: j\nextra: 1\n"},
		{"no questions", "domain: X\nquestions: []\nextract_prompt: e\njudge_prompt: j\n"},
		{"question without text", "domain: X\nquestions: [{id: a}]\nextract_prompt: e\njudge_prompt: j\n"},
		{"missing prompt", "domain: X\nquestions: [{id: a, text: b}]\nextract_prompt: e\n"},
		{"duplicate ids", "domain: X\nquestions: [{id: a, text: b}, {id: a, text: c}]\nextract_prompt: e\njudge_prompt: j\n"},
		{"id with space", "domain: X\nquestions: [{id: a b, text: b}]\nextract_prompt: e\njudge_prompt: j\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference_standard.yaml")
	content := "domain: Reference Standard\nquestions:\n  - id: rs_blinding\n    text: Were reference standard results interpreted blind?\nextract_prompt: find lines\njudge_prompt: judge lines\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Reference Standard", c.Domain)
	assert.Equal(t, "reference_standard", c.OutputSuffix())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "checklist not found")

	def, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Index Test", def.Domain)
}

func TestSchemaBytes(t *testing.T) {
	data, err := SchemaBytes("")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"risk_of_bias"`)

	data[0] = 'X'
	assert.NotEqual(t, byte('X'), DefaultSchema()[0])

	_, err = SchemaBytes(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
