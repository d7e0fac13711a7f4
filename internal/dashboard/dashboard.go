// Package dashboard serves the single-page price dashboard.
package dashboard

import (
	"html/template"
	"log/slog"
	"net/http"
)

// Options customise the rendered page.
type Options struct {
	Title string
	// RefreshSeconds is how often the page polls the API.
	RefreshSeconds int
}

// Dashboard renders the HTML page that polls the read API.
type Dashboard struct {
	opts   Options
	tmpl   *template.Template
	logger *slog.Logger
}

// New creates a dashboard with default options.
func New(logger *slog.Logger) *Dashboard {
	return NewWithOptions(Options{}, logger)
}

// NewWithOptions creates a dashboard with the given options.
func NewWithOptions(opts Options, logger *slog.Logger) *Dashboard {
	if opts.Title == "" {
		opts.Title = "Price Tracker"
	}
	if opts.RefreshSeconds <= 0 {
		opts.RefreshSeconds = 30
	}
	return &Dashboard{
		opts:   opts,
		tmpl:   template.Must(template.New("dashboard").Parse(dashboardHTML)),
		logger: logger.With("component", "dashboard"),
	}
}

// ServeHTTP renders the page.
func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := d.tmpl.Execute(w, d.opts); err != nil {
		d.logger.Error("render dashboard", "error", err)
	}
}
