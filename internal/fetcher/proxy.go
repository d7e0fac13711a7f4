package fetcher

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
)

// ProxyPool hands out outbound proxies in rotation. A proxy that fails is
// benched for the cooldown and rejoins the rotation afterwards.
type ProxyPool struct {
	mu       sync.Mutex
	proxies  []*proxyState
	rotation string
	cooldown time.Duration
	cursor   int
	last     *proxyState
	rnd      *rand.Rand
	now      func() time.Time
	logger   *slog.Logger
}

type proxyState struct {
	url          *url.URL
	failures     int
	benchedUntil time.Time
	lastErr      error
}

// NewProxyPool builds a pool from cfg. Unparseable URLs are logged and skipped.
func NewProxyPool(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyPool {
	p := &ProxyPool{
		rotation: cfg.Rotation,
		cooldown: cfg.Cooldown,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		logger:   logger.With("component", "proxy_pool"),
	}
	for _, raw := range cfg.URLs {
		if err := p.Add(raw); err != nil {
			p.logger.Warn("skipping proxy", "url", raw, "error", err)
		}
	}
	p.logger.Info("proxy pool ready", "count", len(p.proxies), "rotation", p.rotation, "cooldown", p.cooldown)
	return p
}

// WithClock replaces the clock used for cooldowns.
func (p *ProxyPool) WithClock(now func() time.Time) *ProxyPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
	return p
}

// Add appends a proxy to the rotation.
func (p *ProxyPool) Add(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse proxy URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("proxy URL %q has no host", raw)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.proxies = append(p.proxies, &proxyState{url: u})
	return nil
}

// ProxyFunc adapts the pool to http.Transport.Proxy. With every proxy
// benched the request goes out directly.
func (p *ProxyPool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		return p.Next(), nil
	}
}

// Next picks the next available proxy, or nil when none is available.
func (p *ProxyPool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	avail := p.availableLocked()
	if len(avail) == 0 {
		p.last = nil
		return nil
	}

	var pick *proxyState
	if p.rotation == "random" {
		pick = avail[p.rnd.Intn(len(avail))]
	} else {
		pick = avail[p.cursor%len(avail)]
		p.cursor++
	}
	p.last = pick
	return pick.url
}

// Failed benches the proxy handed out most recently.
func (p *ProxyPool) Failed(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return
	}
	p.last.failures++
	p.last.lastErr = err
	p.last.benchedUntil = p.now().Add(p.cooldown)
	p.logger.Warn("proxy benched",
		"proxy", p.last.url.Host,
		"failures", p.last.failures,
		"until", p.last.benchedUntil,
		"error", err,
	)
}

// Succeeded clears the failure count of the proxy handed out most recently.
func (p *ProxyPool) Succeeded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != nil {
		p.last.failures = 0
		p.last.lastErr = nil
	}
}

// Len returns the number of proxies in the pool.
func (p *ProxyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Available returns the number of proxies not currently benched.
func (p *ProxyPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.availableLocked())
}

func (p *ProxyPool) availableLocked() []*proxyState {
	now := p.now()
	out := make([]*proxyState, 0, len(p.proxies))
	for _, s := range p.proxies {
		if !now.Before(s.benchedUntil) {
			out = append(out, s)
		}
	}
	return out
}
