// Package validate checks assessment results against the result JSON Schema
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaResource = "index_test_result.schema.json"

var missingPropertyPattern = regexp.MustCompile(`'([^']+)'`)

// Violation is one failed schema constraint
type Violation struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	field := v.Field
	if field == "" {
		field = "(root)"
	}
	if v.Value == nil {
		return fmt.Sprintf("%s: %s", field, v.Message)
	}
	return fmt.Sprintf("%s: %s (got %s)", field, v.Message, renderValue(v.Value))
}

// SchemaValidationError lists every violation found in one validation pass
type SchemaValidationError struct {
	Violations []Violation
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%v: %d violation(s): %s", model.ErrSchemaValidation, len(e.Violations), strings.Join(parts, "; "))
}

func (e *SchemaValidationError) Unwrap() error {
	return model.ErrSchemaValidation
}

// LoadSchema compiles a JSON Schema document
func LoadSchema(r io.Reader) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, r); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	schema, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// Validate checks result against schema. It returns result unchanged on
// success and a *SchemaValidationError listing every violation otherwise.
func Validate(result *model.AssessmentResult, schema *jsonschema.Schema) (*model.AssessmentResult, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: no result", model.ErrSchemaValidation)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	if err := validateJSON(data, schema); err != nil {
		return nil, err
	}
	return result, nil
}

// ValidateFile checks a persisted result file against schema and decodes it
func ValidateFile(path string, schema *jsonschema.Schema) (*model.AssessmentResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	if err := validateJSON(data, schema); err != nil {
		return nil, err
	}

	var result model.AssessmentResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}

func validateJSON(data []byte, schema *jsonschema.Schema) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}

	err := schema.Validate(instance)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("validate: %w", err)
	}

	out := &SchemaValidationError{}
	collect(verr, instance, out)
	return out
}

// collect flattens the error tree into its leaves
func collect(verr *jsonschema.ValidationError, instance any, out *SchemaValidationError) {
	if len(verr.Causes) > 0 {
		for _, c := range verr.Causes {
			collect(c, instance, out)
		}
		return
	}

	tokens := pointerTokens(verr.InstanceLocation)

	if strings.HasSuffix(verr.KeywordLocation, "/required") {
		if names := missingPropertyPattern.FindAllStringSubmatch(verr.Message, -1); len(names) > 0 {
			for _, n := range names {
				out.Violations = append(out.Violations, Violation{
					Field:   fieldName(append(tokens[:len(tokens):len(tokens)], n[1]), instance),
					Message: "required property is missing",
				})
			}
			return
		}
	}

	value, _ := resolve(instance, tokens)
	out.Violations = append(out.Violations, Violation{
		Field:   fieldName(tokens, instance),
		Value:   value,
		Message: verr.Message,
	})
}

// pointerTokens splits a JSON pointer into unescaped reference tokens
func pointerTokens(ptr string) []string {
	ptr = strings.TrimPrefix(ptr, "#")
	if ptr == "" || ptr == "/" {
		return nil
	}
	raw := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	tokens := make([]string, len(raw))
	for i, t := range raw {
		t = strings.ReplaceAll(t, "~1", "/")
		tokens[i] = strings.ReplaceAll(t, "~0", "~")
	}
	return tokens
}

// fieldName renders tokens as a dotted path with [i] for array elements,
// for example evidence_quotes[0].quote
func fieldName(tokens []string, instance any) string {
	var b strings.Builder
	cur := instance
	for _, t := range tokens {
		if arr, ok := cur.([]any); ok {
			b.WriteString("[" + t + "]")
			if i, err := strconv.Atoi(t); err == nil && i >= 0 && i < len(arr) {
				cur = arr[i]
			} else {
				cur = nil
			}
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(t)
		if obj, ok := cur.(map[string]any); ok {
			cur = obj[t]
		} else {
			cur = nil
		}
	}
	return b.String()
}

func resolve(instance any, tokens []string) (any, bool) {
	cur := instance
	for _, t := range tokens {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[t]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(t)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

func renderValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	if len(data) > 80 {
		return string(data[:77]) + "..."
	}
	return string(data)
}
