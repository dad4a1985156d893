package asana

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tenant-console/internal/logging"
)

// Pipeline runs validate, execute and poll without a wizard session.
// Scheduled imports and the CLI use it.
type Pipeline struct {
	conn   Connector
	poller *Poller
	sink   RunSink
	log    *zap.Logger
}

// NewPipeline creates a pipeline; sink may be nil
func NewPipeline(conn Connector, poller *Poller, sink RunSink) *Pipeline {
	return &Pipeline{conn: conn, poller: poller, sink: sink, log: logging.Named("pipeline")}
}

// PipelineResult carries both halves of a headless import
type PipelineResult struct {
	Validation *ValidationResult `json:"validation"`
	Run        *ImportRun        `json:"run"`
}

// Run imports req and blocks until the run is terminal. onUpdate, when
// set, receives each polled snapshot.
func (p *Pipeline) Run(ctx context.Context, req ImportRequest, origin string, onUpdate func(*ImportRun)) (*PipelineResult, error) {
	if err := ValidateRequest(&req); err != nil {
		return nil, err
	}

	validation, err := p.conn.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	totals := validation.Counts.Totals()
	p.log.Info("Dry run complete",
		zap.String("workspace", req.AsanaWorkspaceName),
		zap.Int("projects", len(req.ProjectGIDs)),
		zap.Int("create", totals.Create),
		zap.Int("update", totals.Update),
		zap.Int("errors", len(validation.Errors)))

	runID, err := p.conn.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	p.log.Info("Import executing", zap.String("run_id", runID), zap.String("origin", origin))

	run, err := p.poller.Poll(ctx, p.conn, runID, onUpdate)
	if err != nil {
		return &PipelineResult{Validation: validation}, fmt.Errorf("run %s: %w", runID, err)
	}

	if p.sink != nil {
		record := func() error { return p.sink.Record(ctx, run, origin, "") }
		if err := retryWithBackoff(ctx, record, 3, p.log); err != nil {
			p.log.Error("Failed to record run", zap.String("run_id", runID), zap.Error(err))
		}
	}
	return &PipelineResult{Validation: validation, Run: run}, nil
}
