package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/capilint/internal/config"
	"github.com/nao1215/capilint/internal/database"
	"github.com/nao1215/capilint/internal/model"
)

// errNoHistory is returned when a label has no stored runs.
var errNoHistory = errors.New("no run history found")

// Trend directions.
const (
	trendWorsened  = "worsened"
	trendImproved  = "improved"
	trendUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
// This command compares check results with earlier runs stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [label-or-path]",
		Short: "Compare the latest run with an earlier one",
		Long: `Compare displays differences between the latest and an earlier check run.

Runs are grouped by label. A run's label defaults to its absolute input
paths, so "capilint compare src" compares the last two runs of
"capilint check src". Without an argument the current directory is used.

The comparison shows:
- New findings that appeared since the earlier run
- Resolved findings that are no longer present
- Files whose content changed between the runs

Examples:
  # Compare the latest two runs over the current directory
  capilint compare

  # List the run history for a label
  capilint compare --list src

  # Compare with a specific run by ID
  capilint compare --with-run-id 5 src

  # Compare with the first run since a date
  capilint compare --since 2026-01-01 src

  # List all labels in the database
  capilint compare --list-labels`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List run history for the label")
	cmd.Flags().BoolP("list-labels", "L", false,
		"List all labels in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run on or after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	listLabels, err := flags.GetBool("list-labels")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if listLabels {
		return listRunLabels(ctx, out, db)
	}

	label := resolveLabel(args)

	listHistory, err := flags.GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRunHistory(ctx, out, db, label)
	}

	withRunID, err := flags.GetInt64("with-run-id")
	if err != nil {
		return err
	}
	sinceDate, err := flags.GetString("since")
	if err != nil {
		return err
	}

	result, err := runComparison(ctx, db, label, withRunID, sinceDate)
	if err != nil {
		return err
	}

	switch {
	case jsonOutput:
		return outputComparisonJSON(out, result)
	case markdownOutput:
		return outputComparisonMarkdown(out, result)
	default:
		return outputComparisonText(out, result)
	}
}

// resolveLabel turns the optional argument into a history label. Existing
// paths are converted the same way check derives its default label.
func resolveLabel(args []string) string {
	if len(args) == 0 {
		return defaultLabel([]string{"."})
	}
	if _, err := os.Stat(args[0]); err == nil {
		return defaultLabel(args[:1])
	}
	return args[0]
}

// listRunLabels lists all labels that have runs in the database.
func listRunLabels(ctx context.Context, w io.Writer, db *database.HistoryDB) error {
	labels, err := db.ListLabels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list labels: %w", err)
	}

	if len(labels) == 0 {
		fmt.Fprintln(w, "No runs found in the database.")
		fmt.Fprintln(w, "\nUse 'capilint check <path>' to record a run.")
		return nil
	}

	fmt.Fprintf(w, "Labels (%d):\n\n", len(labels))
	for _, label := range labels {
		fmt.Fprintf(w, "  • %s\n", label)
	}
	fmt.Fprintln(w, "\nUse 'capilint compare --list <label>' to see the runs for a label.")
	return nil
}

// listRunHistory lists all runs stored under label.
func listRunHistory(ctx context.Context, w io.Writer, db *database.HistoryDB, label string) error {
	runs, err := db.GetRunHistoryWithMetadata(ctx, label)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(w, "No run history found for %s\n", label)
		return nil
	}

	fmt.Fprintf(w, "Run history for %s (%d runs):\n\n", label, len(runs))
	fmt.Fprintf(w, "  %-6s  %-20s  %-6s  %s\n", "ID", "Date", "Files", "Findings")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 60))

	for _, meta := range runs {
		fmt.Fprintf(w, "  %-6d  %-20s  %-6d  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			meta.Files,
			formatContextSummary(meta.ContextSummary),
		)
	}

	fmt.Fprintln(w, "\nUse 'capilint compare --with-run-id <id>' to compare with a specific run.")
	return nil
}

// formatContextSummary formats findings per context as "A:3 &:1 ++:0".
func formatContextSummary(summary map[string]int) string {
	var parts []string
	for _, c := range []struct {
		ctx    model.Context
		letter string
	}{
		{model.Assignment, "A"},
		{model.AddressOf, "&"},
		{model.Increment, "++"},
	} {
		if v := summary[c.ctx.String()]; v > 0 {
			parts = append(parts, c.letter+":"+strconv.Itoa(v))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// historyReader is the part of HistoryDB a comparison needs.
type historyReader interface {
	GetRunHistory(ctx context.Context, label string) ([]*model.Report, error)
	GetRunByID(ctx context.Context, id int64) (*model.Report, error)
	FileHashes(ctx context.Context, runID string) (map[string]string, error)
}

// runComparison picks the two runs to compare and diffs them. The latest
// run under label is always the current one.
func runComparison(ctx context.Context, db historyReader, label string, withRunID int64, sinceDate string) (*ComparisonResult, error) {
	reports, err := db.GetRunHistory(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("%w for %s", errNoHistory, label)
	}
	if len(reports) < 2 && withRunID == 0 && sinceDate == "" {
		return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(reports))
	}

	current := reports[0]
	var previous *model.Report

	switch {
	case withRunID > 0:
		previous, err = db.GetRunByID(ctx, withRunID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run with ID %d: %w", withRunID, err)
		}
		if previous == nil {
			return nil, fmt.Errorf("run with ID %d not found", withRunID)
		}
		if previous.Label != label {
			return nil, fmt.Errorf("run ID %d belongs to %s, not %s", withRunID, previous.Label, label)
		}
	case sinceDate != "":
		parsedDate, err := time.ParseInLocation("2006-01-02", sinceDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		// Reports are newest first; the oldest match is the last one.
		for _, r := range slices.Backward(reports) {
			if !r.StartedAt.Before(parsedDate) {
				previous = r
				break
			}
		}
		if previous == nil {
			return nil, fmt.Errorf("no runs found since %s", sinceDate)
		}
		if previous.RunID == current.RunID {
			return nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", sinceDate)
		}
	default:
		previous = reports[1]
	}

	result := compareReports(previous, current)

	prevHashes, err := db.FileHashes(ctx, previous.RunID)
	if err != nil {
		return nil, err
	}
	curHashes, err := db.FileHashes(ctx, current.RunID)
	if err != nil {
		return nil, err
	}
	result.ChangedFiles = changedFiles(prevHashes, curHashes)

	return result, nil
}

// ComparisonResult holds the result of comparing two runs.
type ComparisonResult struct {
	// Label is the history label both runs share.
	Label string `json:"label"`

	// PreviousRun summarizes the earlier run.
	PreviousRun RunSummary `json:"previous_run"`

	// CurrentRun summarizes the latest run.
	CurrentRun RunSummary `json:"current_run"`

	// NewFindings are in the current run but not in the previous one.
	NewFindings []model.Finding `json:"new_findings,omitempty"`

	// ResolvedFindings were in the previous run but not in the current one.
	ResolvedFindings []model.Finding `json:"resolved_findings,omitempty"`

	// UnchangedCount is the number of findings present in both runs.
	UnchangedCount int `json:"unchanged_count"`

	// ChangedFiles lists files added, removed or modified between the runs.
	ChangedFiles []string `json:"changed_files,omitempty"`

	// Trend describes the overall change.
	Trend Trend `json:"trend"`
}

// RunSummary contains the numbers of one run shown in a comparison.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Files     int       `json:"files"`
	Findings  int       `json:"findings"`

	// ByContext counts findings per context name.
	ByContext map[string]int `json:"by_context"`
}

// Trend describes the change in findings between runs.
type Trend struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction string `json:"direction"`

	// TotalDelta is the change in the number of findings.
	TotalDelta int `json:"total_delta"`

	// ContextDeltas is the change per context name.
	ContextDeltas map[string]int `json:"context_deltas"`
}

func summarizeRun(r *model.Report) RunSummary {
	s := RunSummary{
		RunID:     r.RunID,
		StartedAt: r.StartedAt,
		Files:     len(r.Files),
		Findings:  r.TotalFindings(),
		ByContext: make(map[string]int),
	}
	for _, c := range r.ContextCounts() {
		s.ByContext[c.Name] = c.Count
	}
	return s
}

// compareReports diffs the findings of two runs by Finding.Key. Repeated
// keys are matched one for one, so a second identical assignment in the
// same file still counts as new.
func compareReports(previous, current *model.Report) *ComparisonResult {
	result := &ComparisonResult{
		Label:       current.Label,
		PreviousRun: summarizeRun(previous),
		CurrentRun:  summarizeRun(current),
	}

	remaining := make(map[string]int)
	for _, f := range previous.Findings() {
		remaining[f.Key()]++
	}
	for _, f := range current.Findings() {
		if remaining[f.Key()] > 0 {
			remaining[f.Key()]--
			result.UnchangedCount++
			continue
		}
		result.NewFindings = append(result.NewFindings, f)
	}

	unmatched := make(map[string]int)
	for _, f := range current.Findings() {
		unmatched[f.Key()]++
	}
	for _, f := range previous.Findings() {
		if unmatched[f.Key()] > 0 {
			unmatched[f.Key()]--
			continue
		}
		result.ResolvedFindings = append(result.ResolvedFindings, f)
	}

	result.Trend = calculateTrend(result.PreviousRun, result.CurrentRun)
	return result
}

// calculateTrend calculates the change in findings between two runs.
func calculateTrend(previous, current RunSummary) Trend {
	trend := Trend{
		TotalDelta:    current.Findings - previous.Findings,
		ContextDeltas: make(map[string]int),
	}
	for _, c := range []model.Context{model.Assignment, model.AddressOf, model.Increment} {
		name := c.String()
		trend.ContextDeltas[name] = current.ByContext[name] - previous.ByContext[name]
	}

	switch {
	case trend.TotalDelta < 0:
		trend.Direction = trendImproved
	case trend.TotalDelta > 0:
		trend.Direction = trendWorsened
	default:
		trend.Direction = trendUnchanged
	}
	return trend
}

// changedFiles returns the sorted paths whose hash differs between runs,
// including files present in only one of them.
func changedFiles(previous, current map[string]string) []string {
	var changed []string
	for path, hash := range current {
		if previous[path] != hash {
			changed = append(changed, path)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			changed = append(changed, path)
		}
	}
	slices.Sort(changed)
	return changed
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(w io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(w io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(w)

	md.H1f("Run Comparison: %s", result.Label)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("%s %s", markdown.Bold("Trend:"), formatTrend(result.Trend.Direction))
	md.PlainText("")

	rows := [][]string{
		{
			"Date",
			result.PreviousRun.StartedAt.Format("2006-01-02 15:04"),
			result.CurrentRun.StartedAt.Format("2006-01-02 15:04"),
			"-",
		},
		{
			"Files",
			strconv.Itoa(result.PreviousRun.Files),
			strconv.Itoa(result.CurrentRun.Files),
			formatDelta(result.CurrentRun.Files - result.PreviousRun.Files),
		},
	}
	for _, c := range []model.Context{model.Assignment, model.AddressOf, model.Increment} {
		name := c.String()
		rows = append(rows, []string{
			model.GetContextInfo(c).Title,
			strconv.Itoa(result.PreviousRun.ByContext[name]),
			strconv.Itoa(result.CurrentRun.ByContext[name]),
			formatDelta(result.Trend.ContextDeltas[name]),
		})
	}
	rows = append(rows, []string{
		markdown.Bold("Total"),
		markdown.Bold(strconv.Itoa(result.PreviousRun.Findings)),
		markdown.Bold(strconv.Itoa(result.CurrentRun.Findings)),
		markdown.Bold(formatDelta(result.Trend.TotalDelta)),
	})

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(result.NewFindings) > 0 {
		md.H2f("New Findings (%d)", len(result.NewFindings))
		md.PlainText("")
		items := make([]string, 0, len(result.NewFindings))
		for _, f := range result.NewFindings {
			items = append(items, markdown.Code(f.Location())+" "+f.Message())
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.ResolvedFindings) > 0 {
		md.H2f("Resolved Findings (%d)", len(result.ResolvedFindings))
		md.PlainText("")
		items := make([]string, 0, len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			items = append(items, markdown.Strikethrough(f.Location()+" "+f.Message()))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.ChangedFiles) > 0 {
		md.Details(fmt.Sprintf("Changed files (%d)", len(result.ChangedFiles)),
			strings.Join(result.ChangedFiles, "\n"))
		md.PlainText("")
	}

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText(markdown.Italic(strconv.Itoa(result.UnchangedCount) + " findings unchanged"))
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(w io.Writer, result *ComparisonResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Run Comparison: %s\n", result.Label)
	b.WriteString(strings.Repeat("=", 60) + "\n")

	fmt.Fprintf(&b, "\nTrend: %s\n", formatTrend(result.Trend.Direction))

	fmt.Fprintf(&b, "\nPrevious run: %s\n", result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Current run:  %s\n", result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04:05"))

	b.WriteString("\nFindings Summary:\n")
	fmt.Fprintf(&b, "  %-12s  %-10s  %-10s  %-10s\n", "Context", "Previous", "Current", "Change")
	b.WriteString("  " + strings.Repeat("-", 47) + "\n")
	for _, c := range []model.Context{model.Assignment, model.AddressOf, model.Increment} {
		name := c.String()
		fmt.Fprintf(&b, "  %-12s  %-10d  %-10d  %-10s\n", name,
			result.PreviousRun.ByContext[name], result.CurrentRun.ByContext[name],
			formatDelta(result.Trend.ContextDeltas[name]))
	}
	b.WriteString("  " + strings.Repeat("-", 47) + "\n")
	fmt.Fprintf(&b, "  %-12s  %-10d  %-10d  %-10s\n", "total",
		result.PreviousRun.Findings, result.CurrentRun.Findings,
		formatDelta(result.Trend.TotalDelta))

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(&b, "\nNew Findings (%d):\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(&b, "  [+] %s\n", f)
		}
	}

	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(&b, "\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(&b, "  [-] %s\n", f)
		}
	}

	if len(result.ChangedFiles) > 0 {
		fmt.Fprintf(&b, "\nChanged files: %d\n", len(result.ChangedFiles))
	}
	if result.UnchangedCount > 0 {
		fmt.Fprintf(&b, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// formatTrend formats the trend direction for display.
func formatTrend(direction string) string {
	switch direction {
	case trendImproved:
		return "IMPROVED (fewer findings)"
	case trendWorsened:
		return "WORSENED (more findings)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
