// Package monitor detects product changes between runs and flags price
// movements worth attention.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// ChangeType identifies what kind of change occurred.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is one field that differs between the stored snapshot and a new
// record.
type Change struct {
	Identifier string     `json:"identifier"`
	Type       ChangeType `json:"type"`
	Field      string     `json:"field,omitempty"`
	OldValue   string     `json:"old_value,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
	DeltaPct   *float64   `json:"delta_pct,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ChangeDetector compares new records against the previous snapshot.
type ChangeDetector struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewChangeDetector creates a new change detector.
func NewChangeDetector(logger *slog.Logger) *ChangeDetector {
	return &ChangeDetector{
		logger: logger.With("component", "change_detector"),
		now:    time.Now,
	}
}

// WithClock sets the clock used for change timestamps.
func (cd *ChangeDetector) WithClock(now func() time.Time) *ChangeDetector {
	cd.now = now
	return cd
}

// Detect returns the price, availability, title and seller changes between
// previous and next. A nil previous yields a single "added" change.
func (cd *ChangeDetector) Detect(previous *types.Snapshot, next *types.SanitizedRecord) []Change {
	if next == nil {
		return nil
	}
	ts := cd.now().UTC()
	if previous == nil {
		return []Change{{Identifier: next.Identifier, Type: ChangeAdded, Timestamp: ts}}
	}

	var changes []Change
	add := func(field string, oldV, newV *string) {
		c := Change{Identifier: next.Identifier, Field: field, Timestamp: ts}
		switch {
		case oldV == nil && newV == nil:
			return
		case oldV == nil:
			c.Type, c.NewValue = ChangeAdded, *newV
		case newV == nil:
			c.Type, c.OldValue = ChangeRemoved, *oldV
		case *oldV == *newV:
			return
		default:
			c.Type, c.OldValue, c.NewValue = ChangeModified, *oldV, *newV
		}
		if field == "price" && previous.CurrentPrice != nil && next.CurrentPrice != nil && *previous.CurrentPrice != 0 {
			pct := (*next.CurrentPrice - *previous.CurrentPrice) / *previous.CurrentPrice * 100
			c.DeltaPct = &pct
		}
		changes = append(changes, c)
	}

	add("price", priceString(previous.CurrentPrice), priceString(next.CurrentPrice))
	prevAvail, nextAvail := string(previous.Availability), string(next.Availability)
	add("availability", &prevAvail, &nextAvail)
	add("title", previous.Title, next.Title)
	add("seller", previous.Seller, next.Seller)

	if len(changes) > 0 {
		cd.logger.Info("product changed", "identifier", next.Identifier, "changes", len(changes))
	}
	return changes
}

func priceString(p *float64) *string {
	if p == nil {
		return nil
	}
	s := strconv.FormatFloat(*p, 'f', 2, 64)
	return &s
}

// --- Notification System ---

// NotificationChannel delivers detected changes.
type NotificationChannel interface {
	Send(ctx context.Context, changes []Change) error
	Type() string
}

// Notifier fans changes out to every registered channel.
type Notifier struct {
	channels []NotificationChannel
	logger   *slog.Logger
}

// NewNotifier creates a notifier with no channels.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger.With("component", "notifier")}
}

// AddChannel registers a notification channel.
func (n *Notifier) AddChannel(ch NotificationChannel) {
	n.channels = append(n.channels, ch)
}

// Notify sends changes to all registered channels. Channel failures are
// logged and do not stop delivery to the others.
func (n *Notifier) Notify(ctx context.Context, changes []Change) {
	if n == nil || len(changes) == 0 {
		return
	}
	for _, ch := range n.channels {
		if err := ch.Send(ctx, changes); err != nil {
			n.logger.Error("notification failed", "channel", ch.Type(), "error", err)
		}
	}
}

// LogChannel writes each change to the logger.
type LogChannel struct {
	Logger *slog.Logger
}

func (l *LogChannel) Type() string { return "log" }

func (l *LogChannel) Send(_ context.Context, changes []Change) error {
	for _, c := range changes {
		l.Logger.Info("change detected",
			"identifier", c.Identifier,
			"type", c.Type,
			"field", c.Field,
			"old", c.OldValue,
			"new", c.NewValue,
		)
	}
	return nil
}

// WebhookChannel posts changes as JSON to a URL.
type WebhookChannel struct {
	URL    string
	Client *http.Client
}

func (w *WebhookChannel) Type() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, changes []Change) error {
	body, err := json.Marshal(map[string]any{
		"changes":   changes,
		"count":     len(changes),
		"timestamp": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
