// Package store persists validated assessment results, one JSON file per
// study, safely across concurrent runs.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/gofrs/flock"
)

// Store writes results under a single output directory
type Store struct {
	dir    string
	suffix string
}

// New creates a store writing <dir>/<study_id>_<suffix>.json files
func New(dir, suffix string) *Store {
	return &Store{dir: dir, suffix: suffix}
}

// Path returns the result file path for a study
func (s *Store) Path(studyID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", studyID, s.suffix))
}

// Persist writes result and returns the file path. The output is indented
// JSON with a trailing newline, so identical results give identical bytes.
func (s *Store) Persist(result *model.AssessmentResult) (string, error) {
	data, err := Encode(result)
	if err != nil {
		return "", err
	}

	path := s.Path(result.StudyID)
	if err := LockAndWrite(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteReport stores a rendered report next to the study's result file,
// with ext (".md", ".html") in place of ".json"
func (s *Store) WriteReport(studyID, ext string, data []byte) (string, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s%s", studyID, s.suffix, ext))
	if err := LockAndWrite(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Encode renders result exactly as it is persisted
func Encode(result *model.AssessmentResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return buf.Bytes(), nil
}

// LockAndWrite holds path+".lock" while atomically replacing path with data
func LockAndWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock on %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	return AtomicWrite(path, data)
}

// AtomicWrite writes data to a temp file in the target directory and renames
// it over path. Readers see either the old or the new content.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}

	committed = true
	return nil
}
