// Package news serves a news site's table of contents and articles. It runs
// one scheduler per page kind, each over its own rendering engine.
package news

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/gazette/cache"
	"github.com/use-agent/gazette/config"
	"github.com/use-agent/gazette/engine"
	"github.com/use-agent/gazette/models"
	"github.com/use-agent/gazette/scheduler"
	"github.com/use-agent/gazette/scraper"
	"github.com/use-agent/gazette/site"
)

// EngineFactory opens a rendering engine. The service calls it once per
// scheduler and owns the engines it returns.
type EngineFactory func() (engine.Engine, error)

// Service is safe for concurrent use.
type Service struct {
	site site.Configuration
	cfg  config.DownloadConfig

	toc      *scheduler.Scheduler
	articles *scheduler.Scheduler

	tocs         *cache.Cache[*models.TableOfContents]
	articleCache *cache.Cache[*models.Article]
}

// New builds the service for s. Engines are closed by Close.
func New(cfg *config.Config, s site.Configuration, newEngine EngineFactory) (*Service, error) {
	tocEngine, err := newEngine()
	if err != nil {
		return nil, err
	}
	articleEngine, err := newEngine()
	if err != nil {
		_ = tocEngine.Close()
		return nil, err
	}

	opts := []scraper.Option{
		scraper.WithLocale(s.Locale()),
		scraper.WithScriptTimeout(cfg.Download.ScriptTimeout),
	}

	slog.Info("news service ready",
		"site", s.Name(),
		"toc_url", s.TableOfContentsURL(),
		"engine", tocEngine.Name(),
	)

	toc := scheduler.New(scraper.New(tocEngine, opts...), s.TOCScript(), scheduler.WithName("toc"))
	articles := scheduler.New(scraper.New(articleEngine, opts...), s.ArticleScript(), scheduler.WithName("articles"))

	// Instances a download still refers to are never swapped out.
	tocs := cache.New(cfg.Cache.TTL, 1, cache.WithInUse(func(t *models.TableOfContents) bool {
		return toc.Busy(t.Resource)
	}))
	articleCache := cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries, cache.WithInUse(func(a *models.Article) bool {
		return articles.Busy(a.Resource)
	}))

	return &Service{
		site:         s,
		cfg:          cfg.Download,
		toc:          toc,
		articles:     articles,
		tocs:         tocs,
		articleCache: articleCache,
	}, nil
}

// Site returns the configuration the service extracts.
func (s *Service) Site() site.Configuration { return s.site }

// TableOfContents downloads the table of contents, or returns the cached
// one while it is fresh.
func (s *Service) TableOfContents(ctx context.Context) (*models.TableOfContents, error) {
	var ticket *scheduler.Ticket
	toc := s.tocs.Use(s.site.TableOfContentsURL(), models.NewTableOfContents, func(t *models.TableOfContents) {
		ticket = s.toc.Enqueue(t.Resource)
	})
	if err := s.wait(ctx, ticket); err != nil {
		return nil, err
	}
	return toc, nil
}

// Article downloads the article at rawURL.
func (s *Service) Article(ctx context.Context, rawURL string) (*models.Article, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	var ticket *scheduler.Ticket
	a := s.articleCache.Use(rawURL, models.NewArticle, func(v *models.Article) {
		ticket = s.articles.Enqueue(v.Resource)
	})
	if err := s.wait(ctx, ticket); err != nil {
		return nil, err
	}
	return a, nil
}

// ScheduleArticle queues the article at rawURL and reports to cb.
func (s *Service) ScheduleArticle(rawURL string, cb scheduler.Callback) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}
	s.articleCache.Use(rawURL, models.NewArticle, func(a *models.Article) {
		s.articles.Schedule(a.Resource, cb)
	})
	return nil
}

// Tracks turns the table of contents into playable items, one per article.
func (s *Service) Tracks(ctx context.Context) ([]models.Track, error) {
	toc, err := s.TableOfContents(ctx)
	if err != nil {
		return nil, err
	}

	entries := toc.TitlesAndURLs()
	position := make(map[string]int, len(entries))
	for i, e := range entries {
		if _, seen := position[e.Link]; !seen {
			position[e.Link] = i
		}
	}

	base, _ := s.site.Locale().Base()
	region, _ := s.site.Locale().Region()

	tracks := make([]models.Track, 0, len(entries))
	for _, e := range entries {
		tracks = append(tracks, models.Track{
			ID:       e.Link,
			Title:    e.Text,
			URL:      e.Link,
			Site:     s.site.Name(),
			Language: base.String(),
			Country:  region.String(),
			Position: position[e.Link],
			Total:    len(entries),
		})
	}
	return tracks, nil
}

// Stats reports both schedulers.
func (s *Service) Stats() (toc, articles models.SchedulerStats) {
	return s.toc.Stats(), s.articles.Stats()
}

// Run refreshes the table of contents every RefreshInterval until ctx is
// done, prefetching the first PrefetchArticles articles after each refresh.
func (s *Service) Run(ctx context.Context) {
	if s.cfg.RefreshInterval <= 0 {
		<-ctx.Done()
		return
	}

	s.refresh(ctx)
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// Close stops both schedulers and their engines.
func (s *Service) Close() error {
	s.tocs.Stop()
	s.articleCache.Stop()
	return errors.Join(s.toc.Close(), s.articles.Close())
}

func (s *Service) refresh(ctx context.Context) {
	toc, err := s.TableOfContents(ctx)
	if err != nil {
		slog.Warn("table of contents refresh failed", "site", s.site.Name(), "error", err)
		return
	}
	slog.Info("table of contents refreshed", "site", s.site.Name(), "entries", toc.Len())

	for i, e := range toc.TitlesAndURLs() {
		if i >= s.cfg.PrefetchArticles {
			break
		}
		err := s.ScheduleArticle(e.Link, scheduler.CallbackFuncs{
			Error: func(res *models.Resource, message string) {
				slog.Debug("article prefetch failed", "url", res.URL(), "error", message)
			},
		})
		if err != nil {
			slog.Debug("skipping article prefetch", "url", e.Link, "error", err)
		}
	}
}

// wait waits for ticket, bounded by WaitTimeout.
func (s *Service) wait(ctx context.Context, ticket *scheduler.Ticket) error {
	if s.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.WaitTimeout)
		defer cancel()
	}

	err := ticket.Wait(ctx)
	var se *models.ScrapeError
	if errors.As(err, &se) && (se.Message == models.MsgDownloadFailed || se.Message == models.MsgCanceled) {
		return models.NewScrapeError(se.Code, models.Localize(s.site.Locale(), se.Message), se.Err)
	}
	return err
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "url must be an absolute http(s) URL", err)
	}
	return nil
}
