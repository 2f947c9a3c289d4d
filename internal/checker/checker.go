package checker

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/capilint/internal/lexer"
	"github.com/nao1215/capilint/internal/model"
	"github.com/nao1215/capilint/internal/rules"
)

// maxSnippetRunes caps the source excerpt stored with a finding.
const maxSnippetRunes = 160

// Checker turns call sites into findings. It holds only the read-only
// rule set and may be shared by any number of goroutines.
type Checker struct {
	rules *rules.RuleSet
}

// New returns a Checker for rs.
func New(rs *rules.RuleSet) *Checker {
	return &Checker{rules: rs}
}

// Rules returns the active rule set.
func (c *Checker) Rules() *rules.RuleSet {
	return c.rules
}

// Check scans the tokens of lx, which must have been built over src, and
// returns the findings in source order. file is copied into each finding.
//
// When ctx is done the findings gathered so far are returned together with
// the context error; findings are only ever appended, so they stay valid.
func (c *Checker) Check(ctx context.Context, file string, lx *lexer.Lexer, src []byte) ([]model.Finding, error) {
	sc := NewScanner(ctx, c.rules, lx)

	var findings []model.Finding
	for {
		site, ok := sc.Next()
		if !ok {
			break
		}
		kind, flagged := classify(site)
		if !flagged {
			continue
		}
		findings = append(findings, model.Finding{
			File:       file,
			Line:       site.Symbol.Line,
			Col:        site.Symbol.Col,
			Symbol:     site.Rule.Name,
			Context:    kind,
			Suggestion: site.Rule.Replacement,
			Category:   site.Rule.Category,
			Snippet:    snippet(src, site.Symbol.Offset),
		})
	}
	return findings, sc.Err()
}

// CheckSource lexes src in the mode matching file's extension and checks
// it. Lex errors are returned alongside
// the findings; they never stop the scan.
func (c *Checker) CheckSource(ctx context.Context, file string, src []byte) ([]model.Finding, []*lexer.LexError, error) {
	lx := lexer.New(src, lexer.WithMode(lexer.ModeFor(file)))
	findings, err := c.Check(ctx, file, lx, src)
	return findings, lx.Errors(), err
}

// snippet returns the trimmed source line containing offset.
func snippet(src []byte, offset int) string {
	if offset < 0 || offset > len(src) {
		return ""
	}
	start := bytes.LastIndexByte(src[:offset], '\n') + 1
	end := len(src)
	if idx := bytes.IndexByte(src[offset:], '\n'); idx >= 0 {
		end = offset + idx
	}

	line := strings.TrimSpace(string(src[start:end]))
	if utf8.RuneCountInString(line) <= maxSnippetRunes {
		return line
	}
	runes := []rune(line)
	return string(runes[:maxSnippetRunes]) + "..."
}
