package model

import (
	"errors"
	"fmt"
)

// Stage names one state of a pipeline run
type Stage string

const (
	StageIndexed   Stage = "indexed"
	StageExtracted Stage = "extracted"
	StageVerified  Stage = "verified"
	StageJudged    Stage = "judged"
	StageValidated Stage = "validated"
	StagePersisted Stage = "persisted"
	StageFailed    Stage = "failed"
)

var (
	// ErrEmptyDocument marks input that indexed to zero lines. It is reported
	// as a warning and never aborts a run.
	ErrEmptyDocument = errors.New("document has no lines")

	// ErrExtractionParse means the extraction response did not have the
	// expected structure
	ErrExtractionParse = errors.New("extraction response not parseable")

	// ErrJudgementParse means the judgement response did not have the
	// expected structure
	ErrJudgementParse = errors.New("judgement response not parseable")

	// ErrSchemaValidation means the assembled result violated the schema
	ErrSchemaValidation = errors.New("result failed schema validation")

	// ErrBackendUnavailable means the inference backend failed its preflight check
	ErrBackendUnavailable = errors.New("inference backend unavailable")
)

// StageError is a fatal failure of one pipeline stage. Raw holds the backend
// response that caused it, when there was one.
type StageError struct {
	Stage Stage
	Raw   string
	Err   error
}

func (e *StageError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s stage: %v\nraw response:\n%s", e.Stage, e.Err, e.Raw)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
