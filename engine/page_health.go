package engine

import (
	"math"
	"sync"
	"time"
)

// Retirement thresholds for the engine's page.
const (
	maxErrScore = 3.0
	maxPageUses = 50
	maxPageAge  = 50 * time.Minute
)

// PageHandle tracks the health of the page an engine drives.
//
// Scoring rules:
//   - Success: errScore -= 0.5 (min 0)
//   - Failure: errScore += 1.0
//
// The page is recycled when errScore reaches 3, after 50 uses, or once it
// is 50 minutes old, whichever comes first.
type PageHandle struct {
	ID       int64
	errScore float64
	useCount int
	created  time.Time
	mu       sync.Mutex
}

// NewPageHandle creates a new PageHandle with the given ID.
func NewPageHandle(id int64) *PageHandle {
	return &PageHandle{
		ID:      id,
		created: time.Now(),
	}
}

// RecordSuccess decreases the error score (min 0).
func (h *PageHandle) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore = math.Max(0, h.errScore-0.5)
}

// RecordFailure increases the error score.
func (h *PageHandle) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useCount++
	h.errScore += 1.0
}

// ShouldRetire reports whether the page should be closed and replaced.
func (h *PageHandle) ShouldRetire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errScore >= maxErrScore ||
		h.useCount >= maxPageUses ||
		time.Since(h.created) >= maxPageAge
}
