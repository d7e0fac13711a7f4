package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// ExportEntry is one exported record. Violations is set for quarantined
// records only.
type ExportEntry struct {
	RunID      string               `json:"run_id,omitempty"`
	Record     *types.ProductRecord `json:"record"`
	Violations []string             `json:"violations,omitempty"`
}

// Exporter writes records to a file.
type Exporter interface {
	// Write appends one entry.
	Write(entry ExportEntry) error

	// Close flushes pending writes.
	Close() error

	// Path returns the output file.
	Path() string
}

// --- JSON Export ---

// JSONExporter buffers entries and writes them as one JSON array on Close.
type JSONExporter struct {
	path    string
	entries []ExportEntry
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewJSONExporter creates a JSON array exporter.
func NewJSONExporter(outputPath string, logger *slog.Logger) (*JSONExporter, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &JSONExporter{
		path:    outputPath,
		entries: make([]ExportEntry, 0),
		logger:  logger.With("component", "json_export"),
	}, nil
}

func (e *JSONExporter) Path() string { return e.path }

func (e *JSONExporter) Write(entry ExportEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

func (e *JSONExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e.entries); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	e.logger.Info("JSON written", "path", e.path, "records", len(e.entries))
	return nil
}

// --- JSONL Export ---

// JSONLExporter streams one JSON object per line.
type JSONLExporter struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLExporter creates a streaming JSONL exporter.
func NewJSONLExporter(outputPath string, logger *slog.Logger) (*JSONLExporter, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &JSONLExporter{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_export"),
	}, nil
}

func (e *JSONLExporter) Path() string { return e.path }

func (e *JSONLExporter) Write(entry ExportEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(entry); err != nil {
		return fmt.Errorf("encode JSONL: %w", err)
	}
	e.count++
	return nil
}

func (e *JSONLExporter) Close() error {
	e.logger.Info("JSONL written", "path", e.path, "records", e.count)
	return e.file.Close()
}

// --- CSV Export ---

var csvHeader = []string{
	"run_id", "identifier", "title", "current_price", "original_price", "discount_percent",
	"currency", "availability", "rating", "review_count", "seller", "source_url",
	"captured_at", "violations",
}

// CSVExporter writes one row per record with a fixed header.
type CSVExporter struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVExporter creates a CSV exporter and writes the header row.
func NewCSVExporter(outputPath string, logger *slog.Logger) (*CSVExporter, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	return &CSVExporter{
		path:   outputPath,
		file:   f,
		writer: w,
		logger: logger.With("component", "csv_export"),
	}, nil
}

func (e *CSVExporter) Path() string { return e.path }

func (e *CSVExporter) Write(entry ExportEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.writer.Write(csvRow(entry)); err != nil {
		return fmt.Errorf("write CSV row: %w", err)
	}
	e.count++
	e.writer.Flush()
	return e.writer.Error()
}

func csvRow(entry ExportEntry) []string {
	r := entry.Record
	if r == nil {
		r = &types.ProductRecord{}
	}
	captured := ""
	if !r.CapturedAt.IsZero() {
		captured = r.CapturedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		entry.RunID,
		r.Identifier,
		optString(r.Title),
		optFloat(r.CurrentPrice, 2),
		optFloat(r.OriginalPrice, 2),
		optFloat(r.DiscountPercent, 2),
		r.Currency,
		string(r.Availability),
		optFloat(r.Rating, 1),
		optInt(r.ReviewCount),
		optString(r.Seller),
		r.SourceURL,
		captured,
		strings.Join(entry.Violations, "; "),
	}
}

func optString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func optFloat(p *float64, prec int) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', prec, 64)
}

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func (e *CSVExporter) Close() error {
	e.logger.Info("CSV written", "path", e.path, "records", e.count)
	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		e.file.Close()
		return err
	}
	return e.file.Close()
}

// NewExporter creates the exporter for format, writing to dir/name.<ext>.
func NewExporter(format, dir, name string, logger *slog.Logger) (Exporter, error) {
	switch format {
	case "json":
		return NewJSONExporter(filepath.Join(dir, name+".json"), logger)
	case "jsonl":
		return NewJSONLExporter(filepath.Join(dir, name+".jsonl"), logger)
	case "csv":
		return NewCSVExporter(filepath.Join(dir, name+".csv"), logger)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}
