package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/JohnsonLy78/quadas-agent/internal/pipeline"
	"github.com/JohnsonLy78/quadas-agent/internal/source"
	"github.com/JohnsonLy78/quadas-agent/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	studyID       string
	assessTimeout time.Duration
	noCache       bool
	skipCheck     bool
)

// assessCmd represents the assess command
var assessCmd = &cobra.Command{
	Use:   "assess <document>",
	Short: "Assess one study document for QUADAS-2 Index Test risk of bias",
	Long: `Assess runs one study through the evidence-anchored pipeline:
- number every line of the document
- ask the model which line ids answer each signalling question
- look the ids up in the document and keep only lines that exist
- ask the model for judgements using the verified quotes only
- validate the result against the schema and save it

Plain text and HTML documents are supported. The result is written to
<output-dir>/<study_id>_index_test.json.

Example:
  quadas-agent assess sample_input/smith_2022.txt
  quadas-agent assess paper.html --study-id smith_2022 --markdown
  quadas-agent assess paper.txt --provider openai --model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runAssess,
}

func init() {
	rootCmd.AddCommand(assessCmd)

	f := assessCmd.Flags()
	f.StringVar(&studyID, "study-id", "", "study identifier (default: document file name)")
	f.DurationVar(&assessTimeout, "timeout", 10*time.Minute, "overall timeout for the run")
	f.BoolVar(&noCache, "no-cache", false, "disable the completion cache")
	f.BoolVar(&skipCheck, "skip-backend-check", false, "do not check the LLM backend before the run")

	f.String("provider", "", "LLM provider (ollama, openai, anthropic, gemini)")
	f.String("model", "", "LLM model name")
	f.String("base-url", "", "LLM API base URL")
	f.Int("max-tokens", 0, "max tokens per completion")
	f.Bool("strict-evidence", true, "downgrade answers whose rationale cites unverified lines")
	f.String("output-dir", "", "directory for result files")
	f.Bool("markdown", false, "also write a Markdown report")
	f.Bool("html", false, "also write an HTML report")
	f.String("checklist", "", "checklist YAML file (default: embedded QUADAS-2 Index Test)")
	f.String("schema", "", "result JSON Schema file (default: embedded)")
	f.String("http-proxy", "", "HTTP proxy URL for the LLM backend")
	f.String("https-proxy", "", "HTTPS proxy URL for the LLM backend")

	bindFlags(assessCmd, map[string]string{
		"provider":        "llm.provider",
		"model":           "llm.model",
		"base-url":        "llm.base_url",
		"max-tokens":      "llm.max_tokens",
		"strict-evidence": "llm.strict_evidence",
		"output-dir":      "output.dir",
		"markdown":        "output.markdown",
		"html":            "output.html",
		"checklist":       "checklist.path",
		"schema":          "checklist.schema_path",
		"http-proxy":      "llm.http_proxy",
		"https-proxy":     "llm.https_proxy",
	})
}

// bindFlags binds flags to config keys. Bound flags only override the
// config when they are set on the command line.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(flag))
	}
}

func runAssess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if cfg.LLM.APIKey == "" {
		if err := missingKeyError(cfg); err != nil {
			return err
		}
	}

	study, err := source.NewRegistry().Load(args[0], studyID)
	if err != nil {
		return err
	}

	p, err := pipeline.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Assessing: %s (study %s)\n", args[0], study.ID)
		fmt.Fprintf(os.Stderr, "Backend: %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintf(os.Stderr, "Cache: %v\n\n", cfg.Cache.Enabled)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, assessTimeout)
	defer cancel()

	if !skipCheck {
		if err := p.CheckBackend(ctx); err != nil {
			return fmt.Errorf("%w (use --skip-backend-check to run anyway)", err)
		}
	}

	st := store.New(cfg.Output.Dir, p.Checklist().OutputSuffix())
	run, err := p.Run(ctx, study, st)
	if err != nil {
		var stageErr *model.StageError
		if errors.As(err, &stageErr) {
			return fmt.Errorf("assessment failed at %s: %w", stageErr.Stage, err)
		}
		return fmt.Errorf("assessment failed: %w", err)
	}

	renderer := pipeline.NewRenderer()
	if cfg.Output.Markdown {
		path, err := st.WriteReport(study.ID, ".md", renderer.RenderMarkdown(run.Result))
		if err != nil {
			return fmt.Errorf("write Markdown report: %w", err)
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", path)
		}
	}
	if cfg.Output.HTML {
		page, err := renderer.RenderHTML(run.Result)
		if err != nil {
			return err
		}
		path, err := st.WriteReport(study.ID, ".html", page)
		if err != nil {
			return fmt.Errorf("write HTML report: %w", err)
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote HTML: %s\n", path)
		}
	}

	renderer.RenderSummary(cmd.OutOrStdout(), run.Result, run.Path)
	return nil
}
