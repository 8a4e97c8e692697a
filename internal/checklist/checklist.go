// Package checklist loads the assessment checklist: the domain name, its
// signalling questions and the backend instructions for each stage.
package checklist

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed assets/quadas2_index_test.yaml
var defaultChecklist []byte

//go:embed assets/index_test_result.schema.json
var defaultSchema []byte

var validate = validator.New()

// Checklist is one risk-of-bias domain definition
type Checklist struct {
	Domain        string               `yaml:"domain" validate:"required"`
	Questions     []model.QuestionSpec `yaml:"questions" validate:"required,min=1,dive"`
	ExtractPrompt string               `yaml:"extract_prompt" validate:"required"`
	JudgePrompt   string               `yaml:"judge_prompt" validate:"required"`
}

// Parse decodes and validates a YAML checklist. Unknown keys are rejected.
func Parse(data []byte) (*Checklist, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Checklist
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse checklist: %w", err)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid checklist: %w", err)
	}

	seen := make(map[string]bool, len(c.Questions))
	for _, q := range c.Questions {
		if seen[q.ID] {
			return nil, fmt.Errorf("invalid checklist: duplicate question id %q", q.ID)
		}
		if strings.ContainsAny(q.ID, " \t\n") {
			return nil, fmt.Errorf("invalid checklist: question id %q contains whitespace", q.ID)
		}
		seen[q.ID] = true
	}

	return &c, nil
}

// Load reads the checklist at path, or the embedded QUADAS-2 Index Test
// checklist when path is empty
func Load(path string) (*Checklist, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checklist not found: %s", path)
		}
		return nil, fmt.Errorf("read checklist: %w", err)
	}

	return Parse(data)
}

// Default returns the embedded QUADAS-2 Index Test checklist
func Default() (*Checklist, error) {
	return Parse(defaultChecklist)
}

// SchemaBytes returns the result schema at path, or the embedded schema when
// path is empty
func SchemaBytes(path string) ([]byte, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return data, nil
}

// DefaultSchema returns a copy of the embedded result schema
func DefaultSchema() []byte {
	return bytes.Clone(defaultSchema)
}

// OutputSuffix is the file name suffix for results of this domain,
// e.g. "index_test" for "Index Test"
func (c *Checklist) OutputSuffix() string {
	return strings.Join(strings.Fields(strings.ToLower(c.Domain)), "_")
}
