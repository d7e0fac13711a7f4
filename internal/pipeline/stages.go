package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/monitor"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/parser"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/validate"
)

// ErrEmptyPage is returned when a fetched page has no HTML to parse.
var ErrEmptyPage = errors.New("page has no HTML")

// RawPageStage persists the fetched HTML. Sink failures are logged only.
type RawPageStage struct {
	Sink   storage.PageSink
	Logger *slog.Logger
}

func (s *RawPageStage) Name() string { return "raw_page" }

func (s *RawPageStage) Process(ctx context.Context, job *Job) (*Job, error) {
	if job.Page == nil {
		return job, nil
	}
	if err := s.Sink.Save(ctx, job.Page); err != nil {
		s.Logger.Warn("raw page not saved", "identifier", job.Identifier, "sink", s.Sink.Name(), "error", err)
	}
	return job, nil
}

// ParseStage turns the fetched page into a ProductRecord.
type ParseStage struct {
	Parser *parser.Parser
}

func (s *ParseStage) Name() string { return "parse" }

func (s *ParseStage) Process(_ context.Context, job *Job) (*Job, error) {
	if job.Page == nil {
		return nil, ErrEmptyPage
	}
	rec := s.Parser.ParsePage(job.Page)
	if rec == nil {
		return nil, ErrEmptyPage
	}
	job.Record = rec
	return job, nil
}

// ValidateStage runs the validator on the raw record. Invalid records are
// sanitized, written to the quarantine exporter with the violations found on
// the raw record, and dropped.
type ValidateStage struct {
	Validator *validate.Validator
	Sanitizer *validate.Sanitizer
	Logger    *slog.Logger
}

func (s *ValidateStage) Name() string { return "validate" }

func (s *ValidateStage) Process(_ context.Context, job *Job) (*Job, error) {
	job.Validation = s.Validator.Validate(job.Record)
	if job.Validation.Valid {
		return job, nil
	}

	s.Logger.Warn("record rejected",
		"identifier", job.Identifier,
		"violations", job.Validation.Violations,
	)
	if job.quarantine != nil {
		rec := job.Record
		if s.Sanitizer != nil {
			rec = &s.Sanitizer.Sanitize(job.Record).ProductRecord
		}
		entry := storage.ExportEntry{RunID: job.RunID, Record: rec, Violations: job.Validation.Violations}
		if err := job.quarantine.Write(entry); err != nil {
			s.Logger.Error("quarantine write failed", "identifier", job.Identifier, "error", err)
		}
	}
	return nil, nil
}

// SanitizeStage normalizes the validated record.
type SanitizeStage struct {
	Sanitizer *validate.Sanitizer
}

func (s *SanitizeStage) Name() string { return "sanitize" }

func (s *SanitizeStage) Process(_ context.Context, job *Job) (*Job, error) {
	job.Sanitized = s.Sanitizer.Sanitize(job.Record)
	return job, nil
}

// ChangeStage compares the record with the stored snapshot, checks the new
// price against recent history and notifies about changes. Lookup failures
// are logged and treated as a first sighting.
type ChangeStage struct {
	Store        storage.Store
	Detector     *monitor.ChangeDetector
	Notifier     *monitor.Notifier
	Metrics      *observability.Metrics
	AnomalyRatio float64
	Window       time.Duration
	Logger       *slog.Logger
}

func (s *ChangeStage) Name() string { return "detect_changes" }

func (s *ChangeStage) Process(ctx context.Context, job *Job) (*Job, error) {
	prev, err := s.Store.GetCurrentSnapshot(ctx, job.Sanitized.Identifier)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		s.Logger.Warn("previous snapshot unavailable", "identifier", job.Identifier, "error", err)
	}
	job.Previous = prev

	job.Changes = s.Detector.Detect(prev, job.Sanitized)
	for _, c := range job.Changes {
		if c.Field != "" {
			s.Metrics.IncChange(c.Field)
		}
	}

	if price := job.Sanitized.CurrentPrice; price != nil && s.AnomalyRatio > 0 {
		since := job.Sanitized.CapturedAt.Add(-s.Window)
		history, err := s.Store.GetHistory(ctx, job.Sanitized.Identifier, since)
		if err != nil {
			s.Logger.Warn("price history unavailable", "identifier", job.Identifier, "error", err)
		} else if a := monitor.CheckPriceAnomaly(*price, history, s.AnomalyRatio); a.Anomalous {
			job.Anomaly = a
			s.Logger.Warn("price anomaly",
				"identifier", job.Identifier,
				"price", *price,
				"historical_mean", a.Mean,
				"spike", a.Spike,
			)
		}
	}

	s.Notifier.Notify(ctx, job.Changes)
	return job, nil
}

// StoreStage upserts the sanitized record.
type StoreStage struct {
	Store storage.Store
}

func (s *StoreStage) Name() string { return "store" }

func (s *StoreStage) Process(ctx context.Context, job *Job) (*Job, error) {
	if err := s.Store.UpsertProduct(ctx, job.Sanitized); err != nil {
		return nil, err
	}
	return job, nil
}

// ExportStage appends the stored record to the run's export file. Export
// failures are logged only; the record is already stored.
type ExportStage struct {
	Logger *slog.Logger
}

func (s *ExportStage) Name() string { return "export" }

func (s *ExportStage) Process(_ context.Context, job *Job) (*Job, error) {
	if job.export == nil {
		return job, nil
	}
	entry := storage.ExportEntry{RunID: job.RunID, Record: &job.Sanitized.ProductRecord}
	if err := job.export.Write(entry); err != nil {
		s.Logger.Error("export write failed", "identifier", job.Identifier, "error", err)
	}
	return job, nil
}
