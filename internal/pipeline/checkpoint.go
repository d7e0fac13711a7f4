package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LastRun is the persisted record of the most recent completed run.
type LastRun struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Invalid    int       `json:"invalid"`
}

// Checkpoint records when the last run finished so scheduled invocations
// can skip runs that are too recent.
type Checkpoint struct {
	path string
	now  func() time.Time
}

// NewCheckpoint creates a checkpoint stored at path.
func NewCheckpoint(path string) *Checkpoint {
	return &Checkpoint{path: path, now: time.Now}
}

// WithClock sets the clock used by Due.
func (c *Checkpoint) WithClock(now func() time.Time) *Checkpoint {
	c.now = now
	return c
}

// Last returns the last recorded run, or nil when none exists.
func (c *Checkpoint) Last() (*LastRun, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var last LastRun
	if err := json.NewDecoder(f).Decode(&last); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &last, nil
}

// Due reports whether at least interval has passed since the last run.
// It is always due when there is no checkpoint or interval <= 0.
func (c *Checkpoint) Due(interval time.Duration) (bool, error) {
	if interval <= 0 {
		return true, nil
	}
	last, err := c.Last()
	if err != nil || last == nil {
		return true, err
	}
	return c.now().Sub(last.FinishedAt) >= interval, nil
}

// Mark records a finished run.
func (c *Checkpoint) Mark(s *Summary) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data := LastRun{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		Invalid:    s.Invalid,
	}

	// Write to temp file, then rename (atomic write)
	tmpPath := c.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}
