// Package report renders a submitted record as a printable result document.
package report

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/screening-server/internal/domain"
)

// Renderer turns records into Markdown and HTML.
type Renderer struct {
	markdown goldmark.Markdown
	loc      *time.Location
}

// NewRenderer creates a renderer that prints timestamps in loc.
// A nil loc means UTC.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{
		markdown: goldmark.New(goldmark.WithExtensions(extension.Table)),
		loc:      loc,
	}
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func cell(s string) string {
	return cellEscaper.Replace(strings.TrimSpace(s))
}

func (r *Renderer) stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(r.loc).Format("2006-01-02 15:04 MST")
}

// Markdown writes the report source.
func (r *Renderer) Markdown(rec *domain.ExportRecord) string {
	var b strings.Builder

	title := rec.Instrument.Title
	if title == "" {
		title = rec.Instrument.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Submission: `%s`\n", rec.SubmissionID)
	fmt.Fprintf(&b, "- Submitted: %s\n", r.stamp(rec.Session.SubmittedAt))
	if rec.Examinee != nil {
		fmt.Fprintf(&b, "- Examinee: %s\n", cell(rec.Examinee.Name))
	}
	if rec.Instrument.Reference != "" {
		fmt.Fprintf(&b, "- Reference: %s\n", cell(rec.Instrument.Reference))
	}

	b.WriteString("\n## Result\n\n")
	fmt.Fprintf(&b, "**%s** (%d / %d)\n\n", cell(rec.Result.Severity), rec.Result.Total, rec.Result.MaxTotal)
	if rec.Result.Interpretation != "" {
		fmt.Fprintf(&b, "%s\n\n", rec.Result.Interpretation)
	}

	if len(rec.Result.DomainScores) > 0 {
		b.WriteString("| Domain | Score |\n|---|---:|\n")
		for _, name := range sortedKeys(rec.Result.DomainScores) {
			fmt.Fprintf(&b, "| %s | %d |\n", cell(name), rec.Result.DomainScores[name])
		}
		b.WriteString("\n")
	}

	raised := make([]string, 0)
	for _, flag := range sortedKeys(rec.Result.Flags) {
		if rec.Result.Flags[flag] {
			raised = append(raised, flag)
		}
	}
	if len(raised) > 0 {
		b.WriteString("### Flags\n\n")
		for _, f := range raised {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	if rec.Result.Narrative != "" {
		fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(strings.TrimSpace(rec.Result.Narrative), "\n", "\n> "))
	}

	b.WriteString("## Answers\n\n| # | Score | Answer |\n|---:|---:|---|\n")
	for _, it := range rec.Items {
		fmt.Fprintf(&b, "| %d | %d | %s |\n", it.Ordinal, it.Score, cell(it.Label))
	}

	if len(rec.Supplementary) > 0 {
		b.WriteString("\n## Additional questions\n\n")
		for _, k := range sortedKeys(rec.Supplementary) {
			fmt.Fprintf(&b, "- %s: %s\n", k, cell(rec.Supplementary[k]))
		}
	}

	return b.String()
}

// HTML renders the report as a standalone HTML page. Raw HTML in
// respondent text is dropped by the Markdown renderer.
func (r *Renderer) HTML(rec *domain.ExportRecord) ([]byte, error) {
	var body bytes.Buffer
	if err := r.markdown.Convert([]byte(r.Markdown(rec)), &body); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&page, "<title>%s</title>", html.EscapeString(rec.Instrument.ID+" "+rec.SubmissionID))
	page.WriteString("</head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
