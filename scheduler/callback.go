package scheduler

import "github.com/use-agent/gazette/models"

// Callback receives the outcome of a scheduled download. Exactly one of its
// methods is called, once, on the scheduler's loop goroutine; it must not
// block.
type Callback interface {
	OnSuccess(res *models.Resource)
	OnError(res *models.Resource, message string)
}

// CallbackFuncs adapts two functions to a Callback. Nil fields are skipped.
type CallbackFuncs struct {
	Success func(res *models.Resource)
	Error   func(res *models.Resource, message string)
}

func (f CallbackFuncs) OnSuccess(res *models.Resource) {
	if f.Success != nil {
		f.Success(res)
	}
}

func (f CallbackFuncs) OnError(res *models.Resource, message string) {
	if f.Error != nil {
		f.Error(res, message)
	}
}

// waiter is the callback behind Fetch. It keeps the typed error instead of
// only its message.
type waiter struct {
	done chan error
}

func newWaiter() *waiter { return &waiter{done: make(chan error, 1)} }

func (w *waiter) OnSuccess(*models.Resource) { w.done <- nil }

func (w *waiter) OnError(_ *models.Resource, message string) {
	w.done <- models.NewScrapeError(models.ErrCodeInternal, message, nil)
}

func (w *waiter) fail(err error) { w.done <- err }
