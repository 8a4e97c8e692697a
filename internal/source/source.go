// Package source loads study documents from disk as plain text
package source

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
)

// ErrUnsupported is returned for documents no adapter can turn into text
var ErrUnsupported = errors.New("unsupported document type")

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Adapter turns one kind of document into plain text, one logical line per
// addressable unit
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter can handle the given path/content type
	CanHandle(path string, contentType string) bool

	// Text converts the document to plain text
	Text(data []byte) (string, error)
}

// Registry picks an adapter per document
type Registry struct {
	adapters []Adapter
	fallback Adapter
}

// NewRegistry creates a registry with the HTML adapter and the plain-text
// fallback
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(NewHTMLAdapter())
	r.fallback = NewTextAdapter()
	return r
}

// Register registers a new adapter. Adapters are tried in registration order.
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the adapter for the given path and content type
func (r *Registry) FindAdapter(path string, contentType string) Adapter {
	for _, a := range r.adapters {
		if a.CanHandle(path, contentType) {
			return a
		}
	}
	return r.fallback
}

// Load reads the document at path into a Study. When studyID is empty it is
// derived from the file name.
func (r *Registry) Load(path, studyID string) (model.Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Study{}, fmt.Errorf("read document: %w", err)
	}

	contentType := http.DetectContentType(data)
	if strings.HasPrefix(contentType, "application/pdf") {
		return model.Study{}, fmt.Errorf("%w: %s (%s)", ErrUnsupported, path, contentType)
	}

	adapter := r.FindAdapter(path, contentType)
	text, err := adapter.Text(data)
	if err != nil {
		return model.Study{}, fmt.Errorf("%s adapter: %w", adapter.Name(), err)
	}

	if studyID == "" {
		studyID = StudyIDFromPath(path)
	}

	return model.Study{ID: studyID, Text: text}, nil
}

// StudyIDFromPath derives a study id from a file name,
// e.g. "papers/Smith 2022.txt" becomes "Smith_2022"
func StudyIDFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	id := strings.Trim(unsafeIDChars.ReplaceAllString(base, "_"), "_")
	if id == "" {
		return "study"
	}
	return id
}

// TextAdapter reads plain text verbatim
type TextAdapter struct{}

// NewTextAdapter creates a plain-text adapter
func NewTextAdapter() *TextAdapter {
	return &TextAdapter{}
}

// Name returns the adapter name
func (a *TextAdapter) Name() string {
	return "text"
}

// CanHandle always returns true (fallback adapter)
func (a *TextAdapter) CanHandle(path string, contentType string) bool {
	return true
}

// Text returns data unchanged apart from a leading byte order mark
func (a *TextAdapter) Text(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not UTF-8 text", ErrUnsupported)
	}
	return string(data), nil
}
