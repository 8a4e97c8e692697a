package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/JohnsonLy78/quadas-agent/internal/checklist"
	"github.com/JohnsonLy78/quadas-agent/internal/extract"
	"github.com/JohnsonLy78/quadas-agent/internal/judge"
	"github.com/JohnsonLy78/quadas-agent/internal/llm"
	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/JohnsonLy78/quadas-agent/internal/validate"
	"github.com/JohnsonLy78/quadas-agent/internal/verify"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

// Persister stores a validated result and reports where it went
type Persister interface {
	Persist(result *model.AssessmentResult) (string, error)
}

// Options tunes a pipeline built with New
type Options struct {
	MaxTokens      int
	StrictEvidence bool
	Logger         *zap.Logger
}

// Pipeline runs one checklist domain over study documents.
// A Pipeline holds no per-run state and may be shared by concurrent runs.
type Pipeline struct {
	provider    llm.Provider
	checklist   *checklist.Checklist
	schema      *jsonschema.Schema
	extractor   *extract.EvidenceExtractor
	synthesizer *judge.Synthesizer
	logger      *zap.Logger
	newRunID    func() string
}

// New creates a pipeline around an already configured backend
func New(provider llm.Provider, cl *checklist.Checklist, schema *jsonschema.Schema, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		provider:    provider,
		checklist:   cl,
		schema:      schema,
		extractor:   extract.NewEvidenceExtractor(provider, cl.ExtractPrompt, opts.MaxTokens, logger.Named("extract")),
		synthesizer: judge.NewSynthesizer(provider, cl.JudgePrompt, opts.MaxTokens, opts.StrictEvidence, logger.Named("judge")),
		logger:      logger,
		newRunID:    uuid.NewString,
	}
}

// NewFromConfig builds the provider stack, checklist and schema described by
// cfg and returns a ready pipeline
func NewFromConfig(cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cl, err := checklist.Load(cfg.Checklist.Path)
	if err != nil {
		return nil, err
	}

	schemaData, err := checklist.SchemaBytes(cfg.Checklist.SchemaPath)
	if err != nil {
		return nil, err
	}
	schema, err := validate.LoadSchema(bytes.NewReader(schemaData))
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewStack(cfg, nil, logger.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}

	return New(provider, cl, schema, Options{
		MaxTokens:      cfg.LLM.MaxTokens,
		StrictEvidence: cfg.LLM.StrictEvidence,
		Logger:         logger,
	}), nil
}

// Checklist returns the checklist this pipeline assesses against
func (p *Pipeline) Checklist() *checklist.Checklist {
	return p.checklist
}

// CheckBackend verifies the backend is configured and reachable before any
// document is sent to it
func (p *Pipeline) CheckBackend(ctx context.Context) error {
	if !p.provider.IsAvailable(ctx) {
		return fmt.Errorf("%w: %s", model.ErrBackendUnavailable, p.provider.Name())
	}
	return nil
}

// RunResult is the outcome of a persisted run
type RunResult struct {
	RunID  string
	Result *model.AssessmentResult
	Path   string
}

// Assess runs a study through indexing, extraction, verification, judgement
// and validation. Any failure is a *model.StageError and no result is
// returned with it.
func (p *Pipeline) Assess(ctx context.Context, study model.Study) (*model.AssessmentResult, error) {
	_, result, err := p.assess(ctx, study)
	return result, err
}

// Run assesses study and hands the validated result to persister. Nothing
// is persisted when any earlier stage fails.
func (p *Pipeline) Run(ctx context.Context, study model.Study, persister Persister) (*RunResult, error) {
	runID, result, err := p.assess(ctx, study)
	if err != nil {
		return nil, err
	}

	log := p.runLogger(runID, study.ID)
	path, err := persister.Persist(result)
	if err != nil {
		return nil, p.fail(log, model.StagePersisted, err)
	}
	log.Info("stage complete", zap.String("stage", string(model.StagePersisted)), zap.String("path", path))

	return &RunResult{RunID: runID, Result: result, Path: path}, nil
}

func (p *Pipeline) assess(ctx context.Context, study model.Study) (string, *model.AssessmentResult, error) {
	runID := p.newRunID()
	log := p.runLogger(runID, study.ID)
	questions := p.checklist.Questions

	doc := extract.Index(study.Text)
	if doc.Len() == 0 {
		log.Warn("empty study text", zap.Error(model.ErrEmptyDocument))
	}
	log.Info("stage complete",
		zap.String("stage", string(model.StageIndexed)),
		zap.Int("lines", doc.Len()),
		zap.Int("non_empty", extract.CountNonEmpty(doc)))

	refs, err := p.extractor.Extract(ctx, study.ID, doc, questions)
	if err != nil {
		return runID, nil, p.fail(log, model.StageExtracted, err)
	}
	log.Info("stage complete", zap.String("stage", string(model.StageExtracted)), zap.Int("references", len(refs)))

	quotes, missing := verify.Verify(doc, refs)
	missing = append(missing, verify.Unreferenced(questions, refs)...)
	log.Info("stage complete",
		zap.String("stage", string(model.StageVerified)),
		zap.Int("verified", len(quotes)),
		zap.Int("missing", len(missing)))

	j, err := p.synthesizer.Judge(ctx, study.ID, questions, quotes, missing)
	if err != nil {
		return runID, nil, p.fail(log, model.StageJudged, err)
	}
	log.Info("stage complete",
		zap.String("stage", string(model.StageJudged)),
		zap.String("risk_of_bias", string(j.RiskOfBias)),
		zap.String("applicability_concern", string(j.Applicability)))

	draft := assemble(study.ID, p.checklist.Domain, j, quotes, missing)

	result, err := validate.Validate(draft, p.schema)
	if err != nil {
		return runID, nil, p.fail(log, model.StageValidated, err)
	}
	log.Info("stage complete", zap.String("stage", string(model.StageValidated)))

	return runID, result, nil
}

func assemble(studyID, domain string, j *judge.Judgement, quotes []model.VerifiedQuote, missing []string) *model.AssessmentResult {
	result := model.NewAssessmentResult(studyID, domain)
	result.RiskOfBias = j.RiskOfBias
	result.ApplicabilityConcern = j.Applicability
	for _, a := range j.Answers {
		result.SignallingAnswers[a.Question] = a
	}
	result.EvidenceQuotes = append(result.EvidenceQuotes, quotes...)
	result.MissingEvidence = append(result.MissingEvidence, missing...)
	return result
}

func (p *Pipeline) runLogger(runID, studyID string) *zap.Logger {
	return p.logger.With(zap.String("run_id", runID), zap.String("study_id", studyID))
}

// fail logs the transition to the failed state and makes sure err carries
// the stage it happened in
func (p *Pipeline) fail(log *zap.Logger, stage model.Stage, err error) error {
	var stageErr *model.StageError
	if !errors.As(err, &stageErr) {
		stageErr = &model.StageError{Stage: stage, Err: err}
		err = stageErr
	}
	log.Error("run failed",
		zap.String("stage", string(model.StageFailed)),
		zap.String("failed_stage", string(stageErr.Stage)),
		zap.Error(stageErr.Err))
	return err
}
