package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var responseValidator = validator.New()

// ExtractJSON isolates the JSON object in a model response. Markdown code
// fences and any prose before or after the outermost object are removed;
// nothing inside the object is altered.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		lines = lines[1:]
		if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
			lines = lines[:n-1]
		}
		text = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", errors.New("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", errors.New("unterminated JSON object in response")
}

// DecodeResponse extracts the JSON object from text, decodes it into v and
// checks v's `validate` struct tags. Any failure means the response did not
// have the expected structure.
func DecodeResponse(text string, v any) error {
	obj, err := ExtractJSON(text)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}

	if err := responseValidator.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("response structure invalid: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("response structure invalid: %w", err)
	}

	return nil
}
