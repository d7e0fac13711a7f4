// Package pipeline runs product identifiers through fetch, parse, validate,
// sanitize and load, one at a time.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/monitor"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// Job carries one identifier through the stages. Stages fill in the fields
// in order.
type Job struct {
	RunID      string
	Identifier string
	Page       *types.RawPage
	Record     *types.ProductRecord
	Validation types.ValidationResult
	Sanitized  *types.SanitizedRecord
	Previous   *types.Snapshot
	Changes    []monitor.Change
	Anomaly    monitor.Anomaly

	export     storage.Exporter
	quarantine storage.Exporter
}

// Stage processes a job and returns it, possibly modified. Returning nil
// drops the job from the pipeline.
type Stage interface {
	// Name returns the stage's identifier.
	Name() string

	// Process transforms a job. Return nil to drop it.
	Process(ctx context.Context, job *Job) (*Job, error)
}

// Pipeline chains stages together.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New creates an empty Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a stage to the end of the chain.
func (p *Pipeline) Use(s Stage) *Pipeline {
	p.stages = append(p.stages, s)
	p.logger.Debug("stage added", "name", s.Name(), "position", len(p.stages))
	return p
}

// Process runs the job through all stages in order. A stage error is
// returned as a *types.PipelineError naming the stage.
func (p *Pipeline) Process(ctx context.Context, job *Job) (*Job, error) {
	current := job

	for _, s := range p.stages {
		result, err := s.Process(ctx, current)
		if err != nil {
			return current, &types.PipelineError{
				Stage:      s.Name(),
				Identifier: job.Identifier,
				Err:        err,
			}
		}
		if result == nil {
			p.logger.Debug("job dropped", "stage", s.Name(), "identifier", job.Identifier)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Stages returns the stage names in order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}
