package csvimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"tenant-console/internal/logging"
)

// ErrNoRows is returned when submitting before a file with rows was loaded
var ErrNoRows = errors.New("no rows to import")

// Row outcomes
const (
	StatusCreated = "created"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Options are passed through to the import callback
type Options struct {
	SkipExisting bool   `json:"skipExisting"`
	SendInvites  bool   `json:"sendInvites"`
	DefaultRole  string `json:"defaultRole,omitempty"`
}

// RowResult is the outcome of one submitted row
type RowResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	ID     string `json:"id,omitempty"`
}

// Result is what an import callback reports back
type Result struct {
	Created int         `json:"created"`
	Skipped int         `json:"skipped"`
	Errors  int         `json:"errors"`
	Results []RowResult `json:"results"`
}

// ImportFunc submits parsed rows somewhere; the panel does no I/O itself
type ImportFunc func(ctx context.Context, rows []Row, opts Options) (*Result, error)

// Panel holds one upload through parse, preview, submit and results
type Panel struct {
	Schema   Schema
	Mode     ParseMode
	OnImport ImportFunc

	mu     sync.Mutex
	rows   []Row
	result *Result
	log    *zap.Logger
}

// NewPanel creates a panel for schema that delegates to onImport
func NewPanel(schema Schema, mode ParseMode, onImport ImportFunc) *Panel {
	return &Panel{
		Schema:   schema,
		Mode:     mode,
		OnImport: onImport,
		log:      logging.Named("csvimport"),
	}
}

// Load parses an upload and keeps the rows for preview. A failed parse
// clears any earlier preview.
func (p *Panel) Load(r io.Reader) ([]Row, error) {
	rows, err := Parse(r, p.Schema, p.Mode)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = nil
	if err != nil {
		p.rows = nil
		return nil, err
	}
	p.rows = rows
	return cloneRows(rows), nil
}

// Rows returns the current preview
func (p *Panel) Rows() []Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneRows(p.rows)
}

// Submit hands the previewed rows to the import callback
func (p *Panel) Submit(ctx context.Context, opts Options) (*Result, error) {
	p.mu.Lock()
	rows := cloneRows(p.rows)
	p.mu.Unlock()

	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	if p.OnImport == nil {
		return nil, errors.New("no import handler configured")
	}

	result, err := p.OnImport(ctx, rows, opts)
	if err != nil {
		p.logger().Warn("CSV import failed", zap.Int("rows", len(rows)), zap.Error(err))
		return nil, fmt.Errorf("import failed: %w", err)
	}

	p.mu.Lock()
	p.result = result
	p.mu.Unlock()

	p.logger().Info("CSV import finished",
		zap.Int("rows", len(rows)),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors))
	return result, nil
}

// Result returns the last submit outcome
func (p *Panel) Result() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Reset clears preview and results
func (p *Panel) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = nil
	p.result = nil
}

func (p *Panel) logger() *zap.Logger {
	if p.log == nil {
		return logging.Named("csvimport")
	}
	return p.log
}

func cloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := make(Row, len(r))
		for k, v := range r {
			c[k] = v
		}
		out[i] = c
	}
	return out
}
