package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/use-agent/gazette/models"
)

// fakeFetcher records calls and, when gated, holds every fetch until the
// test sends on release.
type fakeFetcher struct {
	gated   bool
	release chan struct{}
	started chan string
	errs    map[string]error
	delay   time.Duration

	mu          sync.Mutex
	calls       []string
	inFlight    int
	maxInFlight int
	closed      bool
}

func newFakeFetcher(gated bool) *fakeFetcher {
	return &fakeFetcher{
		gated:   gated,
		release: make(chan struct{}),
		started: make(chan string, 256),
		errs:    map[string]error{},
	}
}

func (f *fakeFetcher) Scrape(ctx context.Context, res *models.Resource, script string) error {
	f.mu.Lock()
	f.calls = append(f.calls, res.URL())
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	err := f.errs[res.URL()]
	f.mu.Unlock()

	f.started <- res.URL()
	if f.gated {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err != nil {
		return err
	}
	c := models.NewContent()
	c.Set("text of "+res.URL()+" via "+script, "")
	res.SetContent(c)
	return nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFetcher) waitStarted(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-f.started:
		if got != want {
			t.Fatalf("started %s, want %s", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch of %s never started", want)
	}
}

type outcome struct {
	id  string
	url string
	ok  bool
	msg string
}

type recorder struct{ ch chan outcome }

func newRecorder() *recorder { return &recorder{ch: make(chan outcome, 1024)} }

func (r *recorder) cb(id string) Callback {
	return CallbackFuncs{
		Success: func(res *models.Resource) { r.ch <- outcome{id: id, url: res.URL(), ok: true} },
		Error:   func(res *models.Resource, msg string) { r.ch <- outcome{id: id, url: res.URL(), msg: msg} },
	}
}

func (r *recorder) next(t *testing.T) outcome {
	t.Helper()
	select {
	case o := <-r.ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a callback")
		return outcome{}
	}
}

func (r *recorder) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case o := <-r.ch:
		t.Errorf("unexpected callback %+v", o)
	case <-time.After(d):
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedule_AlreadySatisfiedSkipsFetch(t *testing.T) {
	f := newFakeFetcher(false)
	s := New(f, "script")
	defer s.Close()

	res := models.NewResource("https://news.example/a")
	c := models.NewContent()
	c.Set("cached", "")
	res.SetContent(c)

	rec := newRecorder()
	s.Schedule(res, rec.cb("a"))

	if o := rec.next(t); !o.ok {
		t.Errorf("outcome = %+v, want success", o)
	}
	if calls := f.Calls(); len(calls) != 0 {
		t.Errorf("fetcher called for a satisfied resource: %v", calls)
	}
}

func TestSchedule_QueuedDuplicatesShareOneFetch(t *testing.T) {
	f := newFakeFetcher(true)
	s := New(f, "script")
	defer s.Close()

	blocker := models.NewResource("https://news.example/blocker")
	res := models.NewResource("https://news.example/a")
	rec := newRecorder()

	s.Schedule(blocker, rec.cb("blocker"))
	f.waitStarted(t, blocker.URL())

	s.Schedule(res, rec.cb("first"))
	s.Schedule(res, rec.cb("second"))
	s.Schedule(res, rec.cb("third"))

	f.release <- struct{}{}
	if o := rec.next(t); o.id != "blocker" {
		t.Fatalf("first outcome = %+v, want blocker", o)
	}

	f.waitStarted(t, res.URL())
	f.release <- struct{}{}

	var ids []string
	for range 3 {
		o := rec.next(t)
		if !o.ok {
			t.Errorf("outcome %+v, want success", o)
		}
		ids = append(ids, o.id)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, ids); diff != "" {
		t.Errorf("fan-out order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{blocker.URL(), res.URL()}, f.Calls()); diff != "" {
		t.Errorf("fetches (-want +got):\n%s", diff)
	}
}

func TestSchedule_RescheduledWhileActiveDoesNotRefetch(t *testing.T) {
	f := newFakeFetcher(true)
	s := New(f, "script")
	defer s.Close()

	res := models.NewResource("https://news.example/a")
	rec := newRecorder()

	s.Schedule(res, rec.cb("before"))
	f.waitStarted(t, res.URL())
	s.Schedule(res, rec.cb("during"))
	f.release <- struct{}{}

	got := map[string]bool{}
	for range 2 {
		o := rec.next(t)
		got[o.id] = o.ok
	}
	if !got["before"] || !got["during"] {
		t.Errorf("outcomes = %v, want both successful", got)
	}
	if calls := f.Calls(); len(calls) != 1 {
		t.Errorf("fetches = %v, want exactly one", calls)
	}
}

func TestSchedule_FIFOAndSingleFlight(t *testing.T) {
	f := newFakeFetcher(true)
	s := New(f, "script")
	defer s.Close()

	r1 := models.NewResource("https://news.example/1")
	r2 := models.NewResource("https://news.example/2")
	r3 := models.NewResource("https://news.example/3")
	rec := newRecorder()

	s.Schedule(r1, rec.cb("r1"))
	s.Schedule(r2, rec.cb("r2"))
	s.Schedule(r3, rec.cb("r3"))

	for _, r := range []*models.Resource{r1, r2, r3} {
		f.waitStarted(t, r.URL())
		f.release <- struct{}{}
		if o := rec.next(t); o.url != r.URL() {
			t.Fatalf("outcome for %s, want %s", o.url, r.URL())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.maxInFlight != 1 {
		t.Errorf("max concurrent fetches = %d, want 1", f.maxInFlight)
	}
}

func TestSchedule_ErrorDoesNotStopQueue(t *testing.T) {
	f := newFakeFetcher(false)
	r1 := models.NewResource("https://news.example/1")
	r2 := models.NewResource("https://news.example/2")
	f.errs[r1.URL()] = models.NewScrapeError(models.ErrCodeNavigation, "No internet connection", errors.New("dns"))

	s := New(f, "script")
	defer s.Close()

	rec := newRecorder()
	s.Schedule(r1, rec.cb("r1"))
	s.Schedule(r2, rec.cb("r2"))

	o1, o2 := rec.next(t), rec.next(t)
	if o1.id != "r1" || o1.ok || o1.msg != "No internet connection" {
		t.Errorf("r1 outcome = %+v", o1)
	}
	if o2.id != "r2" || !o2.ok {
		t.Errorf("r2 outcome = %+v", o2)
	}
	if r1.HasContent() {
		t.Error("failed resource gained content")
	}
}

func TestRemove_QueuedNeverFetched(t *testing.T) {
	f := newFakeFetcher(true)
	s := New(f, "script")
	defer s.Close()

	blocker := models.NewResource("https://news.example/blocker")
	removed := models.NewResource("https://news.example/removed")
	last := models.NewResource("https://news.example/last")
	rec := newRecorder()

	s.Schedule(blocker, rec.cb("blocker"))
	f.waitStarted(t, blocker.URL())
	s.Schedule(removed, rec.cb("removed"))
	s.Schedule(last, rec.cb("last"))
	s.Remove(removed)

	f.release <- struct{}{}
	f.waitStarted(t, last.URL())
	f.release <- struct{}{}

	got := []string{rec.next(t).id, rec.next(t).id}
	if diff := cmp.Diff([]string{"blocker", "last"}, got); diff != "" {
		t.Errorf("outcomes (-want +got):\n%s", diff)
	}
	rec.none(t, 50*time.Millisecond)
	if diff := cmp.Diff([]string{blocker.URL(), last.URL()}, f.Calls()); diff != "" {
		t.Errorf("fetches (-want +got):\n%s", diff)
	}
}

func TestRemove_ActiveStillFires(t *testing.T) {
	f := newFakeFetcher(true)
	s := New(f, "script")
	defer s.Close()

	res := models.NewResource("https://news.example/a")
	rec := newRecorder()

	s.Schedule(res, rec.cb("a"))
	f.waitStarted(t, res.URL())
	s.Remove(res)
	f.release <- struct{}{}

	if o := rec.next(t); o.id != "a" || !o.ok {
		t.Errorf("outcome = %+v, want success for a", o)
	}
}

func TestSchedule_ConcurrentBurst(t *testing.T) {
	f := newFakeFetcher(false)
	f.delay = time.Millisecond
	s := New(f, "script")
	defer s.Close()

	resources := make([]*models.Resource, 10)
	for i := range resources {
		resources[i] = models.NewResource(fmt.Sprintf("https://news.example/%d", i))
	}

	rec := newRecorder()
	var wg sync.WaitGroup
	for g := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, r := range resources {
				s.Schedule(r, rec.cb(fmt.Sprintf("g%d", g)))
			}
		}()
	}
	wg.Wait()

	perURL := map[string]int{}
	for range 20 * len(resources) {
		o := rec.next(t)
		if !o.ok {
			t.Errorf("outcome %+v, want success", o)
		}
		perURL[o.url]++
	}
	for _, r := range resources {
		if perURL[r.URL()] != 20 {
			t.Errorf("%s got %d callbacks, want 20", r.URL(), perURL[r.URL()])
		}
	}
	rec.none(t, 20*time.Millisecond)

	if calls := f.Calls(); len(calls) != len(resources) {
		t.Errorf("fetches = %d, want %d", len(calls), len(resources))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.maxInFlight != 1 {
		t.Errorf("max concurrent fetches = %d, want 1", f.maxInFlight)
	}
}

func TestFetch(t *testing.T) {
	f := newFakeFetcher(false)
	bad := models.NewResource("https://news.example/bad")
	f.errs[bad.URL()] = models.NewScrapeError(models.ErrCodeNavigation, "No internet connection", nil)

	s := New(f, "toc-script")
	defer s.Close()

	good := models.NewResource("https://news.example/good")
	if err := s.Fetch(context.Background(), good); err != nil {
		t.Fatalf("Fetch(good): %v", err)
	}
	if got := good.Entries()[0].Text; got != "text of https://news.example/good via toc-script" {
		t.Errorf("content = %q", got)
	}

	err := s.Fetch(context.Background(), bad)
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeNavigation {
		t.Errorf("Fetch(bad) = %v, want NAVIGATION_FAILED", err)
	}

	eventually(t, func() bool { return s.Stats().Fetched == 2 })
	stats := s.Stats()
	if stats.Succeeded != 1 || stats.Failed != 1 || stats.Pending != 0 || stats.Active != "" {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestFetch_WaitTimeout(t *testing.T) {
	f := newFakeFetcher(true)
	s := New(f, "script")
	defer s.Close()

	res := models.NewResource("https://news.example/slow")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Fetch(ctx, res)
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeTimeout {
		t.Fatalf("Fetch = %v, want SCRAPE_TIMEOUT", err)
	}

	if got := s.Stats().Active; got != res.URL() {
		t.Errorf("Stats().Active = %q, want %q", got, res.URL())
	}

	f.release <- struct{}{}
	eventually(t, res.HasContent)
}

func TestClose(t *testing.T) {
	f := newFakeFetcher(false)
	s := New(f, "script")

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if !closed {
		t.Error("fetcher not closed")
	}

	if err := s.Fetch(context.Background(), models.NewResource("https://news.example/a")); err == nil {
		t.Error("Fetch after Close should fail")
	}
}

func TestClose_AnswersOutstandingCallbacks(t *testing.T) {
	f := newFakeFetcher(true)
	s := New(f, "script")
	r := newRecorder()

	active := models.NewResource("https://news.example/active")
	queued := models.NewResource("https://news.example/queued")
	s.Schedule(active, r.cb("active"))
	f.waitStarted(t, active.URL())
	s.Schedule(queued, r.cb("queued"))
	s.Schedule(queued, r.cb("queued-again"))
	eventually(t, func() bool { return s.Stats().Pending == 1 })

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Every callback has fired by the time Close returns.
	got := map[string]outcome{}
	for range 3 {
		select {
		case o := <-r.ch:
			got[o.id] = o
		default:
			t.Fatalf("Close returned before all callbacks fired, got %v", got)
		}
	}
	if _, ok := got["active"]; !ok {
		t.Error("running fetch did not report its outcome")
	}
	for _, id := range []string{"queued", "queued-again"} {
		if o := got[id]; o.ok || o.msg != models.MsgCanceled {
			t.Errorf("%s = %+v, want error %q", id, o, models.MsgCanceled)
		}
	}
	if calls := f.Calls(); len(calls) != 1 {
		t.Errorf("fetches = %v, want only the active one", calls)
	}

	late := models.NewResource("https://news.example/late")
	s.Schedule(late, r.cb("late"))
	if o := r.next(t); o.id != "late" || o.ok || o.msg != models.MsgCanceled {
		t.Errorf("Schedule after Close = %+v, want error %q", o, models.MsgCanceled)
	}

	for _, res := range []*models.Resource{active, queued, late} {
		if s.Busy(res) {
			t.Errorf("Busy(%s) after Close", res.URL())
		}
	}
}

func TestBusy(t *testing.T) {
	f := newFakeFetcher(true)
	s := New(f, "script")
	defer s.Close()
	r := newRecorder()

	a := models.NewResource("https://news.example/a")
	b := models.NewResource("https://news.example/b")
	if s.Busy(a) {
		t.Fatal("Busy before Schedule")
	}

	s.Schedule(a, r.cb("a"))
	if !s.Busy(a) {
		t.Error("Busy should be true as soon as Schedule returns")
	}
	f.waitStarted(t, a.URL())
	s.Schedule(b, r.cb("b"))
	if !s.Busy(a) || !s.Busy(b) {
		t.Error("active and queued resources should both be busy")
	}

	s.Remove(b)
	eventually(t, func() bool { return !s.Busy(b) })

	f.release <- struct{}{}
	if o := r.next(t); o.id != "a" || !o.ok {
		t.Fatalf("outcome = %+v", o)
	}
	if s.Busy(a) {
		t.Error("Busy after the outcome was reported")
	}

	// Already satisfied: busy only until the loop answers.
	s.Schedule(a, r.cb("again"))
	if o := r.next(t); o.id != "again" || !o.ok {
		t.Fatalf("outcome = %+v", o)
	}
	eventually(t, func() bool { return !s.Busy(a) })
}
