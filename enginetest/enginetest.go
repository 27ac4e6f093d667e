// Package enginetest provides an in-memory rendering engine for tests. Pages
// are static HTML documents and extraction scripts are Go functions run
// against the parsed document.
package enginetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/gazette/bridge"
	"github.com/use-agent/gazette/models"
)

// ScriptFunc plays the part of an injected extraction script.
type ScriptFunc func(doc *goquery.Document, b *bridge.Bridge)

// Hang never calls Finished.
func Hang(*goquery.Document, *bridge.Bridge) {}

// Items reports every element matching selector: its inner HTML as text and
// its href attribute (or that of its first descendant link) as link.
func Items(selector string) ScriptFunc {
	sel := cascadia.MustCompile(selector)
	return func(doc *goquery.Document, b *bridge.Bridge) {
		doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
			html, _ := s.Html()
			link, ok := s.Attr("href")
			if !ok {
				link, _ = s.Find("a[href]").First().Attr("href")
			}
			b.Content(html, link)
		})
		b.Finished()
	}
}

// Engine is a fake engine.Engine.
type Engine struct {
	// Pages maps a URL to the HTML served for it.
	Pages map[string]string

	// LoadErrors maps a URL to the error its navigation fails with.
	LoadErrors map[string]error

	// Scripts maps script source to the function run when it is injected.
	Scripts map[string]ScriptFunc

	// Delay is added to every navigation.
	Delay time.Duration

	mu          sync.Mutex
	doc         *goquery.Document
	navigations []string
	injections  int
	closed      bool
}

// New returns an engine serving pages and running scripts.
func New(pages map[string]string, scripts map[string]ScriptFunc) *Engine {
	return &Engine{
		Pages:      pages,
		LoadErrors: map[string]error{},
		Scripts:    scripts,
	}
}

func (e *Engine) Name() string { return "fake" }

func (e *Engine) Navigate(ctx context.Context, url string) error {
	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", ctx.Err())
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "engine is closed", nil)
	}
	e.navigations = append(e.navigations, url)
	e.doc = nil

	if err, ok := e.LoadErrors[url]; ok {
		return models.NewScrapeError(models.ErrCodeNavigation, "navigation to target URL failed", err)
	}
	html, ok := e.Pages[url]
	if !ok {
		return models.NewScrapeError(models.ErrCodeNavigation, "navigation to target URL failed",
			fmt.Errorf("net::ERR_NAME_NOT_RESOLVED %s", url))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "failed to parse page", err)
	}
	e.doc = doc
	return nil
}

// Inject runs the script registered for source on its own goroutine, like a
// page delivering binding calls asynchronously.
func (e *Engine) Inject(_ context.Context, source string, b *bridge.Bridge) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.doc == nil {
		return models.NewScrapeError(models.ErrCodeScript, "no page loaded", nil)
	}
	fn, ok := e.Scripts[source]
	if !ok {
		return models.NewScrapeError(models.ErrCodeScript, "unknown script", nil)
	}
	e.injections++
	go fn(e.doc, b)
	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// Navigations returns the URLs navigated to, in order.
func (e *Engine) Navigations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.navigations...)
}

// Injections returns how many scripts were started.
func (e *Engine) Injections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.injections
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
