package scheduler

import (
	"sync"

	"github.com/use-agent/gazette/models"
)

// tracker counts, per resource, the registrations whose outcome has not been
// reported yet. Unlike the pending map it is read from any goroutine.
type tracker struct {
	mu sync.Mutex
	n  map[*models.Resource]int
}

func (t *tracker) add(res *models.Resource, delta int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == nil {
		t.n = make(map[*models.Resource]int)
	}
	if n := t.n[res] + delta; n > 0 {
		t.n[res] = n
	} else {
		delete(t.n, res)
	}
}

func (t *tracker) busy(res *models.Resource) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n[res] > 0
}
