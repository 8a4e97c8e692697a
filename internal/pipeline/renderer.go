package pipeline

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"

	"github.com/JohnsonLy78/quadas-agent/internal/model"
	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "|", `\|`, "#", `\#`, "\n", " ",
)

// Renderer produces human-readable views of a result
type Renderer struct {
	markdown goldmark.Markdown
}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{
		markdown: goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// RenderMarkdown renders result as a Markdown report
func (r *Renderer) RenderMarkdown(result *model.AssessmentResult) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# QUADAS-2 assessment: %s\n\n", md(result.StudyID))
	fmt.Fprintf(&b, "- **Domain:** %s\n", md(result.Domain))
	fmt.Fprintf(&b, "- **Risk of bias:** %s\n", md(string(result.RiskOfBias)))
	fmt.Fprintf(&b, "- **Applicability concern:** %s\n\n", md(string(result.ApplicabilityConcern)))

	b.WriteString("## Signalling questions\n\n")
	b.WriteString("| Question | Judgement | Rationale |\n")
	b.WriteString("|---|---|---|\n")
	for _, q := range sortedQuestions(result) {
		a := result.SignallingAnswers[q]
		fmt.Fprintf(&b, "| %s | %s | %s |\n", md(q), md(string(a.Judgement)), md(a.Rationale))
	}

	b.WriteString("\n## Evidence\n\n")
	if len(result.EvidenceQuotes) == 0 {
		b.WriteString("No verified evidence.\n")
	}
	for _, question := range sortedQuestions(result) {
		quotes := result.QuotesFor(question)
		if len(quotes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n", md(question))
		for _, q := range quotes {
			fmt.Fprintf(&b, "- %s: %s\n", md(q.Location), md(q.Quote))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Missing evidence\n\n")
	if len(result.MissingEvidence) == 0 {
		b.WriteString("None.\n")
	}
	for _, m := range result.MissingEvidence {
		fmt.Fprintf(&b, "- %s\n", md(m))
	}

	return b.Bytes()
}

// RenderHTML renders the Markdown report as a standalone HTML page
func (r *Renderer) RenderHTML(result *model.AssessmentResult) ([]byte, error) {
	var body bytes.Buffer
	if err := r.markdown.Convert(r.RenderMarkdown(result), &body); err != nil {
		return nil, fmt.Errorf("render HTML: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>QUADAS-2 assessment: %s</title>\n", html.EscapeString(result.StudyID))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// RenderSummary prints a short colored summary for the terminal
func (r *Renderer) RenderSummary(w io.Writer, result *model.AssessmentResult, path string) {
	bold := color.New(color.Bold)

	bold.Fprintf(w, "\n%s (%s)\n", result.StudyID, result.Domain)
	fmt.Fprintf(w, "  Risk of bias:          %s\n", colorRating(result.RiskOfBias))
	fmt.Fprintf(w, "  Applicability concern: %s\n", colorRating(result.ApplicabilityConcern))

	questions := sortedQuestions(result)
	width := 0
	for _, q := range questions {
		width = max(width, len(q))
	}
	fmt.Fprintln(w, "  Signalling questions:")
	for _, q := range questions {
		fmt.Fprintf(w, "    %-*s  %s\n", width, q, colorRating(result.SignallingAnswers[q].Judgement))
	}

	fmt.Fprintf(w, "  Evidence: %d verified quote(s), %d missing\n", len(result.EvidenceQuotes), len(result.MissingEvidence))
	if path != "" {
		fmt.Fprintf(w, "  Saved: %s\n", path)
	}
}

func colorRating(r model.Rating) string {
	switch r {
	case model.RatingLow:
		return color.GreenString(string(r))
	case model.RatingHigh:
		return color.RedString(string(r))
	default:
		return color.YellowString(string(r))
	}
}

func sortedQuestions(result *model.AssessmentResult) []string {
	qs := make([]string, 0, len(result.SignallingAnswers))
	for q := range result.SignallingAnswers {
		qs = append(qs, q)
	}
	sort.Strings(qs)
	return qs
}

func md(s string) string {
	return markdownEscaper.Replace(s)
}
