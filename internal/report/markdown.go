package report

import (
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/capilint/internal/model"
)

// maxChartSlices caps the symbols shown in the pie chart; the rest are
// folded into "other".
const maxChartSlices = 8

// MarkdownWriter outputs reports in GitHub-flavored Markdown, for CI job
// summaries and pull request comments.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFindings(md, report)
	w.writeProblems(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("capilint Report")
	md.PlainText("")

	rows := [][]string{
		{"Run ID", "`" + report.RunID + "`"},
		{"Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Files Scanned", strconv.Itoa(report.ScannedFiles()) + " of " + strconv.Itoa(len(report.Files))},
		{"Bytes Scanned", humanize.IBytes(uint64(max(report.ScannedBytes, 0)))},
		{"Active Rules", strconv.Itoa(report.RuleCount)},
		{"Elapsed", report.Elapsed.Round(time.Millisecond).String()},
	}
	if report.Label != "" {
		rows = slices.Insert(rows, 1, []string{"Label", "`" + report.Label + "`"})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes the per-context summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.Report) {
	md.H2("Summary")
	md.PlainText("")

	counts := make(map[string]int)
	for _, c := range report.ContextCounts() {
		counts[c.Name] = c.Count
	}

	rows := make([][]string, 0, 4)
	for _, ctx := range []model.Context{model.Assignment, model.AddressOf, model.Increment} {
		rows = append(rows, []string{model.GetContextInfo(ctx).Title, strconv.Itoa(counts[ctx.String()])})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(report.TotalFindings()) + "**"})

	md.Table(markdown.TableSet{
		Header: []string{"Usage", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.HasFindings() {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of findings per symbol.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.Report) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Findings by Symbol"),
		piechart.WithShowData(true),
	)

	var other int
	for i, c := range report.SymbolCounts() {
		if i >= maxChartSlices {
			other += c.Count
			continue
		}
		chart.LabelAndIntValue(c.Name, uint64(c.Count)) //nolint:gosec // Counts are never negative
	}
	if other > 0 {
		chart.LabelAndIntValue("other", uint64(other)) //nolint:gosec // Counts are never negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the outcome of the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.Report) {
	switch {
	case report.HasFindings():
		md.Cautionf(
			"%d l-value use(s) of C API macros in %d file(s). These stop compiling once the macros become functions.",
			report.TotalFindings(), report.FilesWithFindings(),
		)
	case report.FailedFiles() > 0 || len(report.Errors) > 0:
		md.Warningf(
			"No findings, but %d file(s) or input(s) could not be checked.",
			report.FailedFiles()+len(report.Errors),
		)
	default:
		md.Tip("No l-value use of C API macros found.")
	}
	md.PlainText("")
}

// writeFindings writes one table per file with findings.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.Report) {
	md.H2("Findings")
	md.PlainText("")

	if !report.HasFindings() {
		md.PlainText("No findings.")
		md.PlainText("")
		return
	}

	seen := make(map[model.Context]bool)
	for _, fr := range report.Files {
		if len(fr.Findings) == 0 {
			continue
		}

		md.H3("`" + fr.Display + "`")
		md.PlainText("")

		rows := make([][]string, len(fr.Findings))
		for i, f := range fr.Findings {
			seen[f.Context] = true
			rows[i] = []string{
				strconv.Itoa(f.Line),
				strconv.Itoa(f.Col),
				"`" + f.Symbol + "`",
				model.GetContextInfo(f.Context).Title,
				orDash(codeSpan(f.Suggestion)),
				orDash(codeSpan(truncateString(f.Snippet, 60))),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Line", "Column", "Symbol", "Usage", "Replacement", "Source"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	for _, ctx := range []model.Context{model.Assignment, model.AddressOf, model.Increment} {
		if !seen[ctx] {
			continue
		}
		info := model.GetContextInfo(ctx)
		md.Details(info.Title, info.Impact+" "+info.Recommendation)
	}
	md.PlainText("")
}

// writeProblems lists inputs that could not be checked and lex warnings.
func (w *MarkdownWriter) writeProblems(md *markdown.Markdown, report *model.Report) {
	var items []string
	items = append(items, report.Errors...)
	for _, fr := range report.Files {
		if fr.Failed() {
			items = append(items, "`"+fr.Display+"`: "+fr.ErrorMessage)
		}
		for _, warn := range fr.Warnings {
			items = append(items, "`"+fr.Display+":"+strconv.Itoa(warn.Line)+":"+strconv.Itoa(warn.Col)+"`: "+warn.Message)
		}
	}
	if len(items) == 0 {
		return
	}

	md.H2("Problems")
	md.PlainText("")
	md.BulletList(items...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [capilint](https://github.com/nao1215/capilint)*")
}

// codeSpan wraps s in backticks, escaping table pipes.
func codeSpan(s string) string {
	if s == "" {
		return ""
	}
	return "`" + strings.ReplaceAll(s, "|", `\|`) + "`"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
