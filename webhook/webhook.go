package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/gazette/models"
)

// Event types.
const (
	EventArticleCompleted = "article.completed"
	EventArticleFailed    = "article.failed"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Gazette-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent stamps a new event with a random id and the current time.
func NewEvent(typ string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}

// retryDelays are the waits before each delivery attempt.
var retryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Gazette-Webhook/1.0")

	if secret != "" {
		req.Header.Set(SignatureHeader, Sign(secret, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends a webhook event asynchronously with up to 3 retries.
// Retry intervals: 1s, 5s, 30s. done, when non-nil, receives the final
// outcome.
func DeliverAsync(url, secret string, event *Event, done chan<- error) {
	go func() {
		var err error
		for attempt, delay := range retryDelays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = Deliver(ctx, url, secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", url,
					"event", event.Type,
					"event_id", event.ID,
					"attempt", attempt+1,
				)
				break
			}
			slog.Warn("webhook delivery failed",
				"url", url,
				"event", event.Type,
				"event_id", event.ID,
				"attempt", attempt+1,
				"error", err,
			)
		}
		if err != nil {
			slog.Error("webhook delivery exhausted all retries",
				"url", url,
				"event", event.Type,
				"event_id", event.ID,
			)
		}
		if done != nil {
			done <- err
		}
	}()
}

// Callback reports a scheduled article download to a webhook endpoint.
// It satisfies scheduler.Callback; delivery happens off the scheduler loop.
type Callback struct {
	URL    string
	Secret string

	// Done, when set, receives the outcome of every delivery.
	Done chan<- error
}

func (c *Callback) OnSuccess(res *models.Resource) {
	article := &models.Article{Resource: res}
	DeliverAsync(c.URL, c.Secret, NewEvent(EventArticleCompleted, models.ArticleResponse{
		Success:    true,
		Status:     "completed",
		URL:        res.URL(),
		Title:      article.Title(),
		Paragraphs: article.Text(),
	}), c.Done)
}

func (c *Callback) OnError(res *models.Resource, message string) {
	DeliverAsync(c.URL, c.Secret, NewEvent(EventArticleFailed, models.ArticleResponse{
		Success: false,
		Status:  "failed",
		URL:     res.URL(),
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeDownload,
			Message: message,
		},
	}), c.Done)
}
