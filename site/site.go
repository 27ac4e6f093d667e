// Package site describes the news sites gazette can extract: where the table
// of contents lives and which scripts pull content out of its pages.
package site

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"github.com/use-agent/gazette/config"
)

// Configuration is everything needed to extract one news site. Scripts are
// opaque JavaScript; they report through window.ContentScraper.
type Configuration interface {
	// Name is the human-readable site name.
	Name() string
	// Locale is the language and country the site is written for.
	Locale() language.Tag
	TableOfContentsURL() string
	TOCScript() string
	ArticleScript() string
}

// Static is a Configuration held in memory.
type Static struct {
	SiteName      string
	SiteLocale    language.Tag
	TOCURL        string
	TOCSource     string
	ArticleSource string
}

func (s *Static) Name() string               { return s.SiteName }
func (s *Static) Locale() language.Tag       { return s.SiteLocale }
func (s *Static) TableOfContentsURL() string { return s.TOCURL }
func (s *Static) TOCScript() string          { return s.TOCSource }
func (s *Static) ArticleScript() string      { return s.ArticleSource }

var (
	//go:embed scripts/vrt_toc.js
	vrtTOC string
	//go:embed scripts/vrt_article.js
	vrtArticle string
)

// VRT returns the configuration for VRT NWS.
func VRT() Configuration {
	return &Static{
		SiteName:      "VRT News",
		SiteLocale:    language.MustParse("nl-BE"),
		TOCURL:        "https://www.vrt.be/vrtnws/nl",
		TOCSource:     vrtTOC,
		ArticleSource: vrtArticle,
	}
}

var builtins = map[string]func() Configuration{
	"vrt": VRT,
}

// Lookup returns the built-in configuration registered under name.
func Lookup(name string) (Configuration, bool) {
	fn, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// Names lists the built-in configurations.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// FromFiles loads a custom site whose scripts live on disk.
func FromFiles(name, locale, tocURL, tocScriptPath, articleScriptPath string) (Configuration, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("site: invalid locale %q: %w", locale, err)
	}
	if tocURL == "" {
		return nil, fmt.Errorf("site: table of contents URL is required")
	}
	toc, err := os.ReadFile(tocScriptPath)
	if err != nil {
		return nil, fmt.Errorf("site: read toc script: %w", err)
	}
	article, err := os.ReadFile(articleScriptPath)
	if err != nil {
		return nil, fmt.Errorf("site: read article script: %w", err)
	}
	return &Static{
		SiteName:      name,
		SiteLocale:    tag,
		TOCURL:        tocURL,
		TOCSource:     string(toc),
		ArticleSource: string(article),
	}, nil
}

// FromConfig resolves the site selected by cfg. A custom table-of-contents
// URL takes precedence over the built-in name.
func FromConfig(cfg config.SiteConfig) (Configuration, error) {
	if cfg.TOCURL != "" {
		return FromFiles(cfg.DisplayName, cfg.Locale, cfg.TOCURL, cfg.TOCScript, cfg.ArticleScript)
	}
	c, ok := Lookup(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("site: unknown site %q (built-in: %s)", cfg.Name, strings.Join(Names(), ", "))
	}
	return c, nil
}
