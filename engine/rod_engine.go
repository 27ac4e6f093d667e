package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
	"golang.org/x/text/language"

	"github.com/use-agent/gazette/bridge"
	"github.com/use-agent/gazette/config"
	"github.com/use-agent/gazette/models"
)

// bindingName is the page global the bridge shim forwards calls to.
const bindingName = "__gazetteBridge"

// RodEngine is a headless-Chromium engine driving exactly one page.
type RodEngine struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
	headers map[string]string
	blocker *blocker

	mu      sync.Mutex
	page    *rod.Page
	handle  *PageHandle
	router  *rod.HijackRouter
	unbind  func() error
	pageSeq int64
}

// NewRodEngine launches a browser and opens the page the engine will drive.
// locale sets the Accept-Language the site sees.
func NewRodEngine(cfg config.BrowserConfig, locale language.Tag) (*RodEngine, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("mute-audio"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	e := &RodEngine{
		browser: browser,
		cfg:     cfg,
		headers: map[string]string{"Accept-Language": acceptLanguage(locale)},
		blocker: newBlocker(cfg.BlockedResourceTypes, cfg.BlockAds, cfg.BlockedHosts),
	}
	if err := e.openPage(); err != nil {
		_ = browser.Close()
		return nil, err
	}
	return e, nil
}

func (e *RodEngine) Name() string { return "rod" }

// Navigate loads url on the engine's page, recycling the page first when
// its health says so.
func (e *RodEngine) Navigate(ctx context.Context, url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.page == nil {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "engine is closed", nil)
	}
	if e.handle.ShouldRetire() {
		slog.Debug("rod engine: retiring page", "id", e.handle.ID)
		e.closePage()
		if err := e.openPage(); err != nil {
			return err
		}
	}
	e.removeBridge()
	e.blocker.take()

	p := e.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		e.handle.RecordFailure()
		return categorizeError(err, "navigation to target URL failed")
	}
	if err := p.WaitLoad(); err != nil {
		e.handle.RecordFailure()
		return categorizeError(err, "page did not finish loading")
	}

	byType, byHost := e.blocker.take()
	slog.Debug("rod engine: page loaded",
		"url", url,
		"page", e.handle.ID,
		"blocked_resources", byType,
		"blocked_hosts", byHost,
	)
	return nil
}

// Inject binds b to a fresh page binding and runs the bridge shim followed
// by script. A script that throws is logged only: it simply never reports
// finished().
func (e *RodEngine) Inject(ctx context.Context, script string, b *bridge.Bridge) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.page == nil {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "engine is closed", nil)
	}
	e.removeBridge()

	p := e.page.Context(ctx)
	stop, err := p.Expose(bindingName, func(payload gson.JSON) (interface{}, error) {
		msg := bridge.Payload{
			Attempt: uint64(payload.Get("a").Int()),
			Kind:    payload.Get("k").Str(),
		}
		if msg.Kind == bridge.Item.String() {
			msg.Text = payload.Get("t").Str()
			msg.Link = payload.Get("l").Str()
		}
		if !b.Deliver(msg) {
			slog.Debug("rod engine: dropped payload of a previous attempt", "attempt", msg.Attempt)
		}
		return nil, nil
	})
	if err != nil {
		e.handle.RecordFailure()
		return categorizeScriptError(err, "failed to install content bridge")
	}
	e.unbind = stop

	res, err := proto.RuntimeEvaluate{
		Expression: bridge.Shim(bindingName, b.Attempt()) + script,
	}.Call(p)
	if err != nil {
		e.handle.RecordFailure()
		return categorizeScriptError(err, "failed to run extraction script")
	}
	if res.ExceptionDetails != nil {
		e.handle.RecordFailure()
		slog.Warn("extraction script raised an exception",
			"attempt", b.Attempt(),
			"error", res.ExceptionDetails.Text,
			"line", res.ExceptionDetails.LineNumber,
		)
		return nil
	}
	e.handle.RecordSuccess()
	return nil
}

// Close closes the page and kills the browser process.
func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closePage()
	slog.Info("rod engine: closing browser")
	return e.browser.Close()
}

// openPage creates the engine's page with stealth, headers and request
// blocking applied. Caller must hold e.mu (or own e exclusively).
func (e *RodEngine) openPage() error {
	page, err := e.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to open page",
			err,
		)
	}

	if e.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}
	if len(e.headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(e.headers),
		}.Call(page)
	}

	e.router = e.blocker.mount(page)
	e.pageSeq++
	e.page = page
	e.handle = NewPageHandle(e.pageSeq)
	return nil
}

// closePage tears down the bridge, the hijack router and the page.
func (e *RodEngine) closePage() {
	if e.page == nil {
		return
	}
	e.removeBridge()
	if e.router != nil {
		_ = e.router.Stop()
		e.router = nil
	}
	if err := e.page.Close(); err != nil {
		slog.Warn("rod engine: failed to close page", "error", err)
	}
	e.page = nil
}

func (e *RodEngine) removeBridge() {
	if e.unbind == nil {
		return
	}
	if err := e.unbind(); err != nil {
		slog.Debug("rod engine: failed to remove bridge binding", "error", err)
	}
	e.unbind = nil
}

// acceptLanguage renders tag as an Accept-Language value, e.g.
// "nl-BE,nl;q=0.9".
func acceptLanguage(tag language.Tag) string {
	base, _ := tag.Base()
	if tag.String() == base.String() {
		return tag.String()
	}
	return fmt.Sprintf("%s,%s;q=0.9", tag, base)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw navigation errors into typed ScrapeErrors.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

func categorizeScriptError(err error, msg string) *models.ScrapeError {
	se := categorizeError(err, msg)
	if se.Code == models.ErrCodeNavigation {
		se.Code = models.ErrCodeScript
	}
	return se
}
