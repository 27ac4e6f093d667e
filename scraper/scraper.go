package scraper

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/use-agent/gazette/bridge"
	"github.com/use-agent/gazette/cleaner"
	"github.com/use-agent/gazette/engine"
	"github.com/use-agent/gazette/models"
)

// Scraper drives one rendering engine through navigate, inject and collect
// for a single resource at a time. It is NOT safe for concurrent use: the
// scheduler guarantees at most one Scrape is running.
type Scraper struct {
	engine        engine.Engine
	locale        language.Tag
	scriptTimeout time.Duration
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLocale sets the language of the error messages handed to callbacks.
func WithLocale(tag language.Tag) Option {
	return func(s *Scraper) { s.locale = tag }
}

// WithScriptTimeout bounds the wait for the script's finished() call.
// Zero (the default) waits until ctx is done.
func WithScriptTimeout(d time.Duration) Option {
	return func(s *Scraper) { s.scriptTimeout = d }
}

// New returns a Scraper that exclusively owns eng.
func New(eng engine.Engine, opts ...Option) *Scraper {
	s := &Scraper{engine: eng, locale: language.English}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scrape loads res, runs script on it and commits everything the script
// reported once it calls finished(). On any error the content of res is
// left as it was.
func (s *Scraper) Scrape(ctx context.Context, res *models.Resource, script string) error {
	start := time.Now()

	if err := s.engine.Navigate(ctx, res.URL()); err != nil {
		slog.Warn("page load failed",
			"url", res.URL(),
			"engine", s.engine.Name(),
			"error", err,
		)
		if ctx.Err() != nil {
			return s.canceled(ctx.Err())
		}
		return models.NewScrapeError(
			models.ErrCodeNavigation,
			models.Localize(s.locale, models.MsgNoConnection),
			err,
		)
	}

	b := bridge.New()
	defer b.Close()

	if err := s.engine.Inject(ctx, script, b); err != nil {
		if ctx.Err() != nil {
			return s.canceled(ctx.Err())
		}
		return models.NewScrapeError(
			models.ErrCodeScript,
			models.Localize(s.locale, models.MsgDownloadFailed),
			err,
		)
	}

	var timeout <-chan time.Time
	if s.scriptTimeout > 0 {
		t := time.NewTimer(s.scriptTimeout)
		defer t.Stop()
		timeout = t.C
	}

	acc := models.NewContent()
	for {
		select {
		case m := <-b.Messages():
			if m.Attempt != b.Attempt() {
				continue
			}
			if m.Kind == bridge.Item {
				acc.Set(cleaner.PlainText(m.Text), m.Link)
				continue
			}
			res.SetContent(acc)
			slog.Debug("scrape finished",
				"url", res.URL(),
				"entries", acc.Len(),
				"duration", time.Since(start),
			)
			return nil

		case <-timeout:
			slog.Warn("extraction script did not finish",
				"url", res.URL(),
				"timeout", s.scriptTimeout,
			)
			return models.NewScrapeError(
				models.ErrCodeTimeout,
				models.Localize(s.locale, models.MsgScriptTimeout),
				context.DeadlineExceeded,
			)

		case <-ctx.Done():
			return s.canceled(ctx.Err())
		}
	}
}

// Close releases the engine.
func (s *Scraper) Close() error {
	return s.engine.Close()
}

func (s *Scraper) canceled(err error) *models.ScrapeError {
	return models.NewScrapeError(
		models.ErrCodeTimeout,
		models.Localize(s.locale, models.MsgCanceled),
		err,
	)
}
