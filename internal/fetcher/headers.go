package fetcher

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
)

// HeaderManager rotates browser identities across requests.
//
// Each NextHeaders call returns the profile at the cursor and advances it,
// so consecutive requests never carry identical headers. After a block the
// fetcher calls ForceRotate to jump off the regular schedule.
type HeaderManager struct {
	mu       sync.Mutex
	profiles []config.HeaderProfile
	referer  string
	pos      uint64
	used     int
	rng      *rand.Rand
}

// NewHeaderManager creates a HeaderManager. Referer is sent with every request
// when non-empty. An empty profile list falls back to the default set.
func NewHeaderManager(profiles []config.HeaderProfile, referer string) *HeaderManager {
	if len(profiles) == 0 {
		profiles = config.DefaultProfiles()
	}
	p := make([]config.HeaderProfile, len(profiles))
	copy(p, profiles)
	return &HeaderManager{
		profiles: p,
		referer:  referer,
		used:     -1,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithSeed makes ForceRotate deterministic. Intended for tests.
func (h *HeaderManager) WithSeed(seed int64) *HeaderManager {
	h.mu.Lock()
	h.rng = rand.New(rand.NewSource(seed))
	h.mu.Unlock()
	return h
}

// NextHeaders returns the headers for the profile at the cursor and advances it.
func (h *HeaderManager) NextHeaders() http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := int(h.pos % uint64(len(h.profiles)))
	h.used = idx
	h.pos++
	return h.build(h.profiles[idx])
}

// ForceRotate moves the cursor to a profile chosen uniformly among all
// profiles except the one just used.
func (h *HeaderManager) ForceRotate() {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := uint64(len(h.profiles))
	if n < 2 {
		h.pos++
		return
	}
	candidates := make([]uint64, 0, n)
	for i := uint64(0); i < n; i++ {
		if int(i) != h.used {
			candidates = append(candidates, i)
		}
	}
	target := candidates[h.rng.Intn(len(candidates))]
	// Always move forward so the cursor never revisits its value.
	natural := h.pos % n
	step := (target + n - natural) % n
	if step == 0 {
		step = n
	}
	h.pos += step
}

// Cursor is the rotation position. It only ever grows; the active profile
// is Cursor() % Len().
func (h *HeaderManager) Cursor() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos
}

// Current returns the index of the profile the next request will use.
func (h *HeaderManager) Current() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int(h.pos % uint64(len(h.profiles)))
}

// Len returns the number of profiles.
func (h *HeaderManager) Len() int {
	return len(h.profiles)
}

func (h *HeaderManager) build(p config.HeaderProfile) http.Header {
	hdr := make(http.Header)
	hdr.Set("User-Agent", p.UserAgent)
	hdr.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	if p.AcceptLanguage != "" {
		hdr.Set("Accept-Language", p.AcceptLanguage)
	}
	if p.AcceptEncoding != "" {
		hdr.Set("Accept-Encoding", p.AcceptEncoding)
	}
	if p.Platform != "" {
		hdr.Set("Sec-Ch-Ua-Platform", `"`+p.Platform+`"`)
	}
	hdr.Set("Connection", "keep-alive")
	hdr.Set("Upgrade-Insecure-Requests", "1")
	hdr.Set("Sec-Fetch-Dest", "document")
	hdr.Set("Sec-Fetch-Mode", "navigate")
	hdr.Set("Sec-Fetch-Site", "none")
	hdr.Set("Sec-Fetch-User", "?1")
	hdr.Set("Cache-Control", "max-age=0")
	if h.referer != "" {
		hdr.Set("Referer", h.referer)
	}
	return hdr
}
