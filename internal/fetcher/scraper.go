package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Scraper fetches product pages one at a time with jittered delays,
// block detection, header rotation and exponential backoff.
type Scraper struct {
	fetcher Fetcher
	headers *HeaderManager
	blocks  *BlockDetector
	cfg     config.ScraperConfig
	metrics *observability.Metrics
	logger  *slog.Logger
	sleep   SleepFunc

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithSleep replaces the delay function. Tests use it to record delays.
func WithSleep(fn SleepFunc) Option {
	return func(s *Scraper) { s.sleep = fn }
}

// WithRand sets the jitter source.
func WithRand(r *rand.Rand) Option {
	return func(s *Scraper) { s.rng = r }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// NewScraper creates a Scraper over a single-attempt Fetcher.
func NewScraper(f Fetcher, headers *HeaderManager, cfg config.ScraperConfig, logger *slog.Logger, opts ...Option) *Scraper {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	s := &Scraper{
		fetcher: f,
		headers: headers,
		blocks:  NewBlockDetector(cfg.BotMarkers),
		cfg:     cfg,
		logger:  logger.With("component", "scraper"),
		sleep:   contextSleep,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URLFor returns the product page URL for an identifier.
func (s *Scraper) URLFor(identifier string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/dp/" + url.PathEscape(identifier)
}

// FetchPage fetches the product page for identifier.
//
// Every attempt is preceded by a jittered delay. Blocked responses force a
// header rotation. Retryable failures, including every non-2xx status not
// listed in GiveUpStatuses, back off exponentially up to MaxAttempts;
// permanent failures return at once.
// Exhausting attempts returns an error wrapping types.ErrMaxRetries and the
// last failure.
func (s *Scraper) FetchPage(ctx context.Context, identifier string) (*types.RawPage, error) {
	target := s.URLFor(identifier)
	logger := s.logger.With("identifier", identifier)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := s.sleep(ctx, s.jitter()); err != nil {
			return nil, err
		}

		resp, err := s.fetcher.Fetch(ctx, target, s.headers.NextHeaders())
		if err == nil {
			s.metrics.ObserveFetch(resp.Duration)
			body := string(resp.Body)
			if marker := s.blocks.Match(body); marker != "" {
				kind, _ := DetectCAPTCHA(body)
				s.headers.ForceRotate()
				s.metrics.IncAttempt("blocked")
				logger.Warn("blocked by anti-bot page",
					"attempt", attempt,
					"marker", marker,
					"captcha", kind,
				)
				err = &types.FetchError{
					URL:        target,
					StatusCode: resp.StatusCode,
					Err:        fmt.Errorf("%w: matched %q", types.ErrBlocked, marker),
					Retryable:  true,
					Blocked:    true,
				}
			} else {
				s.metrics.IncAttempt("ok")
				page := types.NewRawPage(identifier, resp)
				logger.Info("page fetched",
					"attempt", attempt,
					"status", resp.StatusCode,
					"size", len(resp.Body),
					"duration", resp.Duration,
				)
				return page, nil
			}
		} else {
			s.metrics.IncAttempt(outcomeOf(err))
			logger.Warn("fetch attempt failed", "attempt", attempt, "error", err)
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var fe *types.FetchError
		isFetchErr := errors.As(err, &fe)
		if isFetchErr && !fe.Retryable {
			return nil, fmt.Errorf("fetch %s: %w", identifier, err)
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}

		wait := s.backoff(attempt)
		if isFetchErr && fe.RetryAfter > wait {
			wait = fe.RetryAfter
		}
		s.metrics.IncRetries()
		logger.Info("retrying", "next_attempt", attempt+1, "backoff", wait)
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch %s after %d attempts: %w: %w", identifier, s.cfg.MaxAttempts, types.ErrMaxRetries, lastErr)
}

// FetchEach fetches identifiers sequentially in the given order and hands
// each outcome to fn. A failure for one identifier never stops the batch;
// only context cancellation does, in which case ctx.Err() is returned.
func (s *Scraper) FetchEach(ctx context.Context, identifiers []string, fn func(identifier string, page *types.RawPage, err error)) error {
	for i, id := range identifiers {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.ItemDelay); err != nil {
				return err
			}
		}
		page, err := s.FetchPage(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Error("giving up on identifier", "identifier", id, "error", err)
		}
		fn(id, page, err)
	}
	return nil
}

// FetchAll fetches every identifier and returns a map whose value is nil
// for identifiers that could not be fetched.
func (s *Scraper) FetchAll(ctx context.Context, identifiers []string) map[string]*types.RawPage {
	out := make(map[string]*types.RawPage, len(identifiers))
	_ = s.FetchEach(ctx, identifiers, func(id string, page *types.RawPage, err error) {
		out[id] = page
	})
	for _, id := range identifiers {
		if _, ok := out[id]; !ok {
			out[id] = nil
		}
	}
	return out
}

// Close closes the underlying fetcher.
func (s *Scraper) Close() error {
	return s.fetcher.Close()
}

// jitter draws the pre-request delay uniformly from [DelayMin, DelayMax].
func (s *Scraper) jitter() time.Duration {
	lo, hi := s.cfg.DelayMin, s.cfg.DelayMax
	if hi <= lo {
		return lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + time.Duration(s.rng.Int63n(int64(hi-lo)+1))
}

// backoff returns BackoffBase * 2^(attempt-1), capped at BackoffMax.
func (s *Scraper) backoff(attempt int) time.Duration {
	d := s.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if s.cfg.BackoffMax > 0 && d >= s.cfg.BackoffMax {
			return s.cfg.BackoffMax
		}
	}
	if s.cfg.BackoffMax > 0 && d > s.cfg.BackoffMax {
		return s.cfg.BackoffMax
	}
	return d
}

func outcomeOf(err error) string {
	var fe *types.FetchError
	if errors.As(err, &fe) && fe.StatusCode > 0 {
		return "http_error"
	}
	return "network_error"
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
