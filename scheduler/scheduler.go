// Package scheduler serializes downloads against a single rendering engine.
//
// All queue state is owned by one loop goroutine. Schedule and Remove post
// tasks to it and return immediately; fetch outcomes are posted back the
// same way, so the pending map and the active marker are never shared.
package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/use-agent/gazette/models"
)

// Fetcher downloads one resource. Implementations need not be safe for
// concurrent use; the scheduler never overlaps calls.
type Fetcher interface {
	Scrape(ctx context.Context, res *models.Resource, script string) error
}

// Scheduler deduplicates download requests per *models.Resource, fetches
// them one at a time in FIFO order of first request, and fans each outcome
// out to every callback registered before the fetch started.
type Scheduler struct {
	name    string
	fetcher Fetcher
	script  string

	box    *mailbox
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
	fetches   sync.WaitGroup

	// Owned by the loop goroutine.
	pending *orderedmap.OrderedMap[*models.Resource, []Callback]
	active  *models.Resource
	closing bool

	tracked tracker

	// Snapshots for Stats.
	pendingLen atomic.Int64
	activeURL  atomic.Value // string
	fetched    atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithName labels the scheduler in logs.
func WithName(name string) Option {
	return func(s *Scheduler) { s.name = name }
}

// New starts a scheduler that runs script through f for every resource.
func New(f Fetcher, script string, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		name:    "downloads",
		fetcher: f,
		script:  script,
		box:     newMailbox(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		pending: orderedmap.New[*models.Resource, []Callback](),
	}
	s.activeURL.Store("")
	for _, o := range opts {
		o(s)
	}
	go s.loop()
	return s
}

// errCanceled is the outcome of registrations the scheduler could not
// serve because it was closed.
var errCanceled = models.NewScrapeError(models.ErrCodeTimeout, models.MsgCanceled, context.Canceled)

// Schedule requests a download of res. A resource that already has content
// is reported successful without a fetch. Schedule never blocks; cb is
// invoked on the loop goroutine, or right away with "Download canceled" when
// the scheduler is closed.
func (s *Scheduler) Schedule(res *models.Resource, cb Callback) {
	s.tracked.add(res, 1)
	if !s.box.post(func() { s.schedule(res, cb) }) {
		s.fanOut(res, []Callback{cb}, errCanceled)
	}
}

// Busy reports whether res has registrations still waiting for an outcome,
// queued or riding on the running fetch. It turns true as soon as Schedule
// returns.
func (s *Scheduler) Busy(res *models.Resource) bool {
	return s.tracked.busy(res)
}

// Remove drops res and its callbacks if it is still queued. A fetch already
// running for res is unaffected and its callbacks still fire.
func (s *Scheduler) Remove(res *models.Resource) {
	s.box.post(func() {
		if cbs, ok := s.pending.Delete(res); ok {
			s.tracked.add(res, -len(cbs))
			slog.Debug("download removed", "scheduler", s.name, "url", res.URL())
		}
		s.pendingLen.Store(int64(s.pending.Len()))
	})
}

// Ticket is one registration made by Enqueue.
type Ticket struct {
	w *waiter
}

// Enqueue schedules res and returns a ticket to wait on its outcome.
func (s *Scheduler) Enqueue(res *models.Resource) *Ticket {
	w := newWaiter()
	s.Schedule(res, w)
	return &Ticket{w: w}
}

// Wait blocks for the outcome of the download. ctx bounds the wait only:
// the download keeps going and still satisfies the resource when it
// finishes.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case err := <-t.w.done:
		return err
	case <-ctx.Done():
		return models.NewScrapeError(models.ErrCodeTimeout, models.MsgDownloadFailed, ctx.Err())
	}
}

// Fetch schedules res and waits for its outcome; see Ticket.Wait.
func (s *Scheduler) Fetch(ctx context.Context, res *models.Resource) error {
	return s.Enqueue(res).Wait(ctx)
}

// Stats returns a snapshot of the scheduler's state.
func (s *Scheduler) Stats() models.SchedulerStats {
	return models.SchedulerStats{
		Pending:   int(s.pendingLen.Load()),
		Active:    s.activeURL.Load().(string),
		Fetched:   s.fetched.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
	}
}

// Close stops the loop and closes the fetcher when it is an io.Closer.
// A running fetch sees its context canceled and reports its outcome to its
// callbacks as usual; every queued callback, and every later Schedule, gets
// "Download canceled". Close returns once all of them were called.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		if c, ok := s.fetcher.(io.Closer); ok {
			s.closeErr = c.Close()
		}
		slog.Info("scheduler stopped", "scheduler", s.name)
	})
	return s.closeErr
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return
		case <-s.box.notify:
			for _, task := range s.box.take() {
				task()
			}
		}
	}
}

// shutdown answers every outstanding registration: the running fetch with
// its own outcome, everything queued with errCanceled.
func (s *Scheduler) shutdown() {
	s.closing = true
	s.fetches.Wait()

	for _, task := range s.box.close() {
		task()
	}
	for p := s.pending.Oldest(); p != nil; p = p.Next() {
		s.fanOut(p.Key, p.Value, errCanceled)
	}
	s.pending = orderedmap.New[*models.Resource, []Callback]()
	s.pendingLen.Store(0)
}

func (s *Scheduler) schedule(res *models.Resource, cb Callback) {
	if res.HasContent() {
		s.fanOut(res, []Callback{cb}, nil)
		return
	}
	if s.closing {
		s.fanOut(res, []Callback{cb}, errCanceled)
		return
	}

	cbs, _ := s.pending.Get(res)
	s.pending.Set(res, append(cbs, cb))
	s.pendingLen.Store(int64(s.pending.Len()))

	if s.active == nil {
		s.startFetch()
	}
}

// startFetch detaches the oldest pending entry and fetches it. Entries
// satisfied by an earlier attempt while they waited are resolved in place.
func (s *Scheduler) startFetch() {
	for s.active == nil && !s.closing {
		oldest := s.pending.Oldest()
		if oldest == nil {
			return
		}
		res, cbs := oldest.Key, oldest.Value
		s.pending.Delete(res)
		s.pendingLen.Store(int64(s.pending.Len()))

		if res.HasContent() {
			s.fanOut(res, cbs, nil)
			continue
		}

		s.active = res
		s.activeURL.Store(res.URL())
		s.fetched.Add(1)
		s.fetches.Add(1)
		go s.fetch(res, cbs)
	}
}

func (s *Scheduler) fetch(res *models.Resource, cbs []Callback) {
	defer s.fetches.Done()
	start := time.Now()
	slog.Debug("download started", "scheduler", s.name, "url", res.URL())

	err := s.fetcher.Scrape(s.ctx, res, s.script)

	s.box.post(func() { s.finish(res, cbs, err, time.Since(start)) })
}

func (s *Scheduler) finish(res *models.Resource, cbs []Callback, err error, took time.Duration) {
	s.active = nil
	s.activeURL.Store("")

	if err != nil {
		s.failed.Add(1)
		slog.Warn("download failed",
			"scheduler", s.name,
			"url", res.URL(),
			"duration", took,
			"error", err,
		)
	} else {
		s.succeeded.Add(1)
		slog.Info("download finished",
			"scheduler", s.name,
			"url", res.URL(),
			"entries", res.Len(),
			"duration", took,
		)
	}

	s.startFetch()
	s.fanOut(res, cbs, err)
}

// fanOut reports one outcome to cbs. It touches no loop state.
func (s *Scheduler) fanOut(res *models.Resource, cbs []Callback, err error) {
	s.tracked.add(res, -len(cbs))
	for _, cb := range cbs {
		if err == nil {
			cb.OnSuccess(res)
			continue
		}
		if w, ok := cb.(*waiter); ok {
			w.fail(err)
			continue
		}
		cb.OnError(res, models.MessageOf(err))
	}
}
