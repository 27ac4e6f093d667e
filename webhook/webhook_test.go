package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/gazette/models"
)

type received struct {
	event     Event
	signature string
}

func newServer(t *testing.T, failures int32) (*httptest.Server, chan received) {
	t.Helper()
	got := make(chan received, 8)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= failures {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("decode event: %v", err)
		}
		if sig := r.Header.Get(SignatureHeader); sig != "" && sig != Sign("s3cret", body) {
			t.Errorf("bad signature %q", sig)
		}
		got <- received{event: ev, signature: r.Header.Get(SignatureHeader)}
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func withFastRetries(t *testing.T) {
	t.Helper()
	saved := retryDelays
	retryDelays = []time.Duration{0, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { retryDelays = saved })
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("delivery did not finish")
		return nil
	}
}

func TestCallback_OnSuccess(t *testing.T) {
	withFastRetries(t)
	srv, got := newServer(t, 0)
	done := make(chan error, 1)

	res := models.NewResource("https://news.example/a")
	c := models.NewContent()
	c.Set("Headline", "")
	c.Set("Body text.", "")
	res.SetContent(c)

	cb := &Callback{URL: srv.URL, Secret: "s3cret", Done: done}
	cb.OnSuccess(res)

	if err := wait(t, done); err != nil {
		t.Fatalf("delivery: %v", err)
	}
	r := <-got
	if r.event.Type != EventArticleCompleted {
		t.Errorf("type = %q", r.event.Type)
	}
	if _, err := uuid.Parse(r.event.ID); err != nil {
		t.Errorf("event id %q is not a uuid", r.event.ID)
	}
	if r.signature == "" {
		t.Error("signed delivery missing signature header")
	}
	data := r.event.Data.(map[string]interface{})
	if data["title"] != "Headline" || len(data["paragraphs"].([]interface{})) != 2 {
		t.Errorf("data = %v", data)
	}
}

func TestCallback_OnErrorRetries(t *testing.T) {
	withFastRetries(t)
	srv, got := newServer(t, 2)
	done := make(chan error, 1)

	cb := &Callback{URL: srv.URL, Done: done}
	cb.OnError(models.NewResource("https://news.example/a"), "No internet connection")

	if err := wait(t, done); err != nil {
		t.Fatalf("delivery: %v", err)
	}
	r := <-got
	if r.event.Type != EventArticleFailed {
		t.Errorf("type = %q", r.event.Type)
	}
	if r.signature != "" {
		t.Error("unsigned delivery carries a signature")
	}
	errDetail := r.event.Data.(map[string]interface{})["error"].(map[string]interface{})
	if errDetail["message"] != "No internet connection" || errDetail["code"] != models.ErrCodeDownload {
		t.Errorf("error = %v", errDetail)
	}
}

func TestDeliverAsync_ExhaustsRetries(t *testing.T) {
	withFastRetries(t)
	srv, _ := newServer(t, 100)
	done := make(chan error, 1)

	DeliverAsync(srv.URL, "", NewEvent(EventArticleFailed, nil), done)
	if err := wait(t, done); err == nil {
		t.Error("expected an error after every attempt failed")
	}
}
