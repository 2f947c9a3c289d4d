package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/nao1215/capilint/internal/checker"
	"github.com/nao1215/capilint/internal/config"
	"github.com/nao1215/capilint/internal/lexer"
	"github.com/nao1215/capilint/internal/model"
	"github.com/nao1215/capilint/internal/source"
	"golang.org/x/crypto/sha3"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Unit carries per-file state between steps that is not part of the
// serialized FileResult.
type Unit struct {
	// Input is the file being scanned.
	Input source.Input

	// Lexer is built by TokenizeStep and consumed by CheckStep.
	Lexer *lexer.Lexer
}

// ReadStep loads the file content, hashes it and decodes it to UTF-8.
// A UTF-8 byte order mark is stripped; UTF-16 input with a BOM is
// transcoded. Invalid UTF-8 is replaced so that columns stay countable.
type ReadStep struct {
	unit        *Unit
	maxFileSize int64
}

// NewReadStep creates a read step. A non-positive maxFileSize disables the
// size limit.
func NewReadStep(unit *Unit, maxFileSize int64) *ReadStep {
	return &ReadStep{unit: unit, maxFileSize: maxFileSize}
}

// Name returns the step name.
func (s *ReadStep) Name() string {
	return "read"
}

// Do executes the read step.
func (s *ReadStep) Do(_ context.Context, result *model.FileResult) error {
	if s.maxFileSize > 0 && s.unit.Input.Size > s.maxFileSize {
		result.Size = s.unit.Input.Size
		result.Skip(fmt.Sprintf("larger than %d bytes", s.maxFileSize))
		return ErrSkipped
	}

	raw, err := s.unit.Input.ReadAll()
	if err != nil {
		return &model.ScanError{Path: result.Display, Err: err}
	}
	result.Size = int64(len(raw))
	if s.maxFileSize > 0 && result.Size > s.maxFileSize {
		result.Skip(fmt.Sprintf("larger than %d bytes", s.maxFileSize))
		return ErrSkipped
	}

	sum := sha3.Sum256(raw)
	result.Hash = hex.EncodeToString(sum[:])

	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return &model.ScanError{Path: result.Display, Err: fmt.Errorf("decoding: %w", err)}
	}
	result.Source = decoded
	return nil
}

// FilterStep skips content that is not hand-written C source.
type FilterStep struct {
	// text scans files even when they look binary.
	text bool

	// generated scans Cython output instead of skipping it.
	generated bool
}

// FilterStepOption configures a FilterStep.
type FilterStepOption func(*FilterStep)

// WithTextMode treats every file as text.
func WithTextMode(text bool) FilterStepOption {
	return func(s *FilterStep) {
		s.text = text
	}
}

// WithGenerated scans files produced by Cython.
func WithGenerated(generated bool) FilterStepOption {
	return func(s *FilterStep) {
		s.generated = generated
	}
}

// NewFilterStep creates a filter step.
func NewFilterStep(opts ...FilterStepOption) *FilterStep {
	s := &FilterStep{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *FilterStep) Name() string {
	return "filter"
}

// Do executes the filter step.
func (s *FilterStep) Do(_ context.Context, result *model.FileResult) error {
	if !s.text && source.IsBinary(result.Source) {
		result.Skip("binary file")
		return ErrSkipped
	}
	if !s.generated && source.IsCythonGenerated(result.Source) {
		result.Skip("generated by Cython")
		return ErrSkipped
	}
	return nil
}

// TokenizeStep builds the lexer over the decoded source, in Cython mode
// for .pyx, .pxd and .pxi inputs.
type TokenizeStep struct {
	unit *Unit
}

// NewTokenizeStep creates a tokenize step.
func NewTokenizeStep(unit *Unit) *TokenizeStep {
	return &TokenizeStep{unit: unit}
}

// Name returns the step name.
func (s *TokenizeStep) Name() string {
	return "tokenize"
}

// Do executes the tokenize step.
func (s *TokenizeStep) Do(_ context.Context, result *model.FileResult) error {
	result.State = model.StateTokenizing
	s.unit.Lexer = lexer.New(result.Source, lexer.WithMode(lexer.ModeFor(s.unit.Input.Name())))
	return nil
}

// CheckStep runs the checker over the token stream. Lex errors become
// warnings and never abort the file.
type CheckStep struct {
	unit    *Unit
	checker *checker.Checker
}

// NewCheckStep creates a check step.
func NewCheckStep(unit *Unit, c *checker.Checker) *CheckStep {
	return &CheckStep{unit: unit, checker: c}
}

// Name returns the step name.
func (s *CheckStep) Name() string {
	return "check"
}

// Do executes the check step.
func (s *CheckStep) Do(ctx context.Context, result *model.FileResult) error {
	result.State = model.StateScanning

	lx := s.unit.Lexer
	if lx == nil {
		lx = lexer.New(result.Source, lexer.WithMode(lexer.ModeFor(s.unit.Input.Name())))
	}

	findings, err := s.checker.Check(ctx, result.Display, lx, result.Source)
	for _, le := range lx.Errors() {
		result.Warnings = append(result.Warnings, model.Warning{
			Line:    le.Line,
			Col:     le.Col,
			Message: le.Msg,
		})
	}
	if err != nil {
		return err
	}

	if s.unit.Input.InArchive() {
		for i := range findings {
			findings[i].Archive = s.unit.Input.Path
		}
	}
	result.Findings = findings
	return nil
}

// ReportStep finalizes the result.
type ReportStep struct {
	logger *slog.Logger
}

// NewReportStep creates a report step.
func NewReportStep(logger *slog.Logger) *ReportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportStep{logger: logger}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do executes the report step.
func (s *ReportStep) Do(_ context.Context, result *model.FileResult) error {
	result.State = model.StateReporting
	s.logger.Debug("file checked",
		"file", result.Display,
		"findings", len(result.Findings),
		"warnings", len(result.Warnings),
	)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// MaxFileSize is the largest file read, in bytes. Larger files are
	// skipped.
	MaxFileSize int64

	// Text scans files that look binary.
	Text bool

	// Generated scans Cython output.
	Generated bool

	// Logger is used by the report step.
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineMaxFileSize sets the file size limit.
func WithPipelineMaxFileSize(size int64) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.MaxFileSize = size
	}
}

// WithPipelineText disables binary detection.
func WithPipelineText(text bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Text = text
	}
}

// WithPipelineGenerated disables the Cython output filter.
func WithPipelineGenerated(generated bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Generated = generated
	}
}

// WithPipelineLogger sets the logger used by the steps.
func WithPipelineLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline creates the standard read, filter, tokenize, check and
// report pipeline for one input.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineText, etc).
func DefaultPipeline(input source.Input, c *checker.Checker, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		MaxFileSize: config.DefaultMaxFileSize,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	unit := &Unit{Input: input}
	p.AddSteps(
		NewReadStep(unit, cfg.MaxFileSize),
		NewFilterStep(WithTextMode(cfg.Text), WithGenerated(cfg.Generated)),
		NewTokenizeStep(unit),
		NewCheckStep(unit, c),
		NewReportStep(cfg.Logger),
	)

	return p
}
