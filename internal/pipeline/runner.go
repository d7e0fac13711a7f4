package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/monitor"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/parser"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/validate"
)

// PageSource fetches product pages sequentially and reports each outcome.
// fetcher.Scraper implements it.
type PageSource interface {
	FetchEach(ctx context.Context, identifiers []string, fn func(identifier string, page *types.RawPage, err error)) error
}

// Status is the outcome of one identifier in a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusInvalid   Status = "invalid"
)

// Result is the outcome for one identifier.
type Result struct {
	Identifier string           `json:"identifier"`
	Status     Status           `json:"status"`
	Stage      string           `json:"stage,omitempty"`
	Error      string           `json:"error,omitempty"`
	Violations []string         `json:"violations,omitempty"`
	Changes    []monitor.Change `json:"changes,omitempty"`
	Anomalous  bool             `json:"anomalous,omitempty"`
}

// Summary describes a finished run.
type Summary struct {
	RunID          string        `json:"run_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	Invalid        int           `json:"invalid"`
	Results        []Result      `json:"results"`
	Quality        QualityReport `json:"quality"`
	ExportPath     string        `json:"export_path,omitempty"`
	QuarantinePath string        `json:"quarantine_path,omitempty"`
}

// Total returns the number of identifiers accounted for.
func (s *Summary) Total() int { return s.Succeeded + s.Failed + s.Invalid }

func (s *Summary) add(r Result) {
	switch r.Status {
	case StatusSucceeded:
		s.Succeeded++
	case StatusFailed:
		s.Failed++
	case StatusInvalid:
		s.Invalid++
	}
	s.Results = append(s.Results, r)
}

// Runner drives a batch of identifiers through the pipeline.
type Runner struct {
	source   PageSource
	pipeline *Pipeline
	policy   config.IdentifierPolicy
	export   config.ExportConfig
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Deps are the collaborators a Runner needs. Store is required; the rest
// fall back to no-op or default implementations.
type Deps struct {
	Source   PageSource
	Store    storage.Store
	Sink     storage.PageSink
	Notifier *monitor.Notifier
	Metrics  *observability.Metrics
	Now      func() time.Time
}

// NewRunner wires the standard stage chain:
// raw_page, parse, validate, sanitize, detect_changes, store, export.
func NewRunner(cfg *config.Config, deps Deps, logger *slog.Logger) *Runner {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	sink := deps.Sink
	if sink == nil {
		sink = storage.NopSink{}
	}
	base := logger
	logger = logger.With("component", "runner")

	sanitizer := validate.NewSanitizer(cfg.Validation)
	p := New(base).
		Use(&RawPageStage{Sink: sink, Logger: logger}).
		Use(&ParseStage{Parser: parser.New(base).WithClock(now)}).
		Use(&ValidateStage{
			Validator: validate.New(cfg.Validation, base, validate.WithClock(now), validate.WithMetrics(deps.Metrics)),
			Sanitizer: sanitizer,
			Logger:    logger,
		}).
		Use(&SanitizeStage{Sanitizer: sanitizer}).
		Use(&ChangeStage{
			Store:        deps.Store,
			Detector:     monitor.NewChangeDetector(base).WithClock(now),
			Notifier:     deps.Notifier,
			Metrics:      deps.Metrics,
			AnomalyRatio: cfg.Monitor.AnomalyRatio,
			Window:       cfg.Monitor.AlertWindow,
			Logger:       logger,
		}).
		Use(&StoreStage{Store: deps.Store}).
		Use(&ExportStage{Logger: logger})

	return &Runner{
		source:   deps.Source,
		pipeline: p,
		policy:   cfg.Validation.Identifier,
		export:   cfg.Storage.Export,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      now,
	}
}

// Pipeline returns the runner's stage chain.
func (r *Runner) Pipeline() *Pipeline { return r.pipeline }

// Run processes ids in order. Malformed identifiers are counted invalid
// without a request; duplicates are processed once. One identifier's
// failure never stops the batch. Run returns an error only when the
// context is cancelled or the export files cannot be created, along with
// the partial summary.
func (r *Runner) Run(ctx context.Context, ids []string) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: r.now().UTC(),
	}
	logger := r.logger.With("run_id", summary.RunID)
	logger.Info("run started", "identifiers", len(ids))

	export, quarantine, err := r.openExports(summary)
	if err != nil {
		summary.FinishedAt = r.now().UTC()
		return summary, err
	}
	defer closeExporter(export, logger)
	defer closeExporter(quarantine, logger)

	var (
		fetchIDs []string
		seen     = make(map[string]bool, len(ids))
	)
	for _, raw := range ids {
		id := validate.NormalizeIdentifier(raw)
		if err := validate.CheckIdentifier(id, r.policy); err != nil {
			logger.Warn("identifier rejected", "identifier", raw, "error", err)
			r.record(summary, Result{
				Identifier: id,
				Status:     StatusInvalid,
				Stage:      "identifier",
				Violations: validate.IdentifierViolations(id, r.policy),
			})
			continue
		}
		if seen[id] {
			logger.Warn("duplicate identifier skipped", "identifier", id)
			continue
		}
		seen[id] = true
		fetchIDs = append(fetchIDs, id)
	}

	var stored []*types.SanitizedRecord
	err = r.source.FetchEach(ctx, fetchIDs, func(id string, page *types.RawPage, fetchErr error) {
		if fetchErr != nil {
			r.record(summary, Result{Identifier: id, Status: StatusFailed, Stage: "fetch", Error: fetchErr.Error()})
			return
		}

		job := &Job{
			RunID:      summary.RunID,
			Identifier: id,
			Page:       page,
			export:     export,
			quarantine: quarantine,
		}
		out, err := r.pipeline.Process(ctx, job)
		res := Result{Identifier: id}
		switch {
		case err != nil:
			var perr *types.PipelineError
			if errors.As(err, &perr) {
				res.Stage = perr.Stage
			}
			res.Status, res.Error = StatusFailed, err.Error()
			logger.Error("identifier failed", "identifier", id, "stage", res.Stage, "error", err)
		case out == nil:
			res.Status, res.Stage = StatusInvalid, "validate"
			res.Violations = job.Validation.Violations
		default:
			res.Status = StatusSucceeded
			res.Changes = out.Changes
			res.Anomalous = out.Anomaly.Anomalous
			stored = append(stored, out.Sanitized)
		}
		r.record(summary, res)
	})

	summary.Quality = CheckQuality(stored)
	if len(stored) > 0 && !summary.Quality.Passed {
		logger.Warn("quality checks failed", "checks", summary.Quality.FailedChecks)
	}
	summary.FinishedAt = r.now().UTC()
	r.metrics.MarkRun(summary.FinishedAt)

	logger.Info("run finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"invalid", summary.Invalid,
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	if err != nil {
		return summary, fmt.Errorf("run interrupted: %w", err)
	}
	return summary, nil
}

func (r *Runner) record(s *Summary, res Result) {
	s.add(res)
	r.metrics.IncRecord(string(res.Status))
}

func (r *Runner) openExports(s *Summary) (storage.Exporter, storage.Exporter, error) {
	if !r.export.Enabled {
		return nil, nil, nil
	}
	stamp := s.StartedAt.Format("20060102T150405Z")
	export, err := storage.NewExporter(r.export.Format, r.export.OutputPath, "products_"+stamp, r.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open export: %w", err)
	}
	quarantine, err := storage.NewExporter(r.export.Format, r.export.QuarantinePath, "rejected_"+stamp, r.logger)
	if err != nil {
		export.Close()
		return nil, nil, fmt.Errorf("open quarantine: %w", err)
	}
	s.ExportPath, s.QuarantinePath = export.Path(), quarantine.Path()
	return export, quarantine, nil
}

func closeExporter(e storage.Exporter, logger *slog.Logger) {
	if e == nil {
		return
	}
	if err := e.Close(); err != nil {
		logger.Error("export close failed", "path", e.Path(), "error", err)
	}
}
