package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/gazette/config"
	"github.com/use-agent/gazette/engine"
	"github.com/use-agent/gazette/news"
	"github.com/use-agent/gazette/site"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(rodEngines).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// engineOpener builds the engine factory for a resolved configuration.
type engineOpener func(cfg *config.Config, s site.Configuration) news.EngineFactory

func rodEngines(cfg *config.Config, s site.Configuration) news.EngineFactory {
	return func() (engine.Engine, error) {
		return engine.NewRodEngine(cfg.Browser, s.Locale())
	}
}

type options struct {
	Site     string
	Timeout  time.Duration
	Headless bool
	Verbose  bool
}

func newRootCmd(open engineOpener) *cobra.Command {
	cfg := config.Load()
	opts := &options{
		Site:     cfg.Site.Name,
		Timeout:  cfg.Download.WaitTimeout,
		Headless: cfg.Browser.Headless,
	}

	cmd := &cobra.Command{
		Use:   "gazette-cli",
		Short: "Read a news site from the terminal",
		Long:  "Extracts a news site's table of contents and articles with a headless browser and prints them as plain text.",
		Example: `  # List today's articles
  gazette-cli toc

  # Print one article
  gazette-cli article https://www.vrt.be/vrtnws/nl/2024/01/01/example/`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Site, "site", opts.Site, "Built-in site to read")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", opts.Timeout, "How long to wait for a download")
	cmd.PersistentFlags().BoolVar(&opts.Headless, "headless", opts.Headless, "Run the browser headless")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log download progress to stderr")

	withService := func(c *cobra.Command, fn func(ctx context.Context, svc *news.Service, out io.Writer) error) error {
		level := slog.LevelWarn
		if opts.Verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(c.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

		cfg.Site.Name = opts.Site
		cfg.Download.WaitTimeout = opts.Timeout
		cfg.Download.RefreshInterval = 0
		cfg.Browser.Headless = opts.Headless

		s, err := site.FromConfig(cfg.Site)
		if err != nil {
			return err
		}
		svc, err := news.New(cfg, s, open(cfg, s))
		if err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer svc.Close()

		return fn(c.Context(), svc, c.OutOrStdout())
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "toc",
		Short: "List the articles in the table of contents",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withService(c, printTOC)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "article <url>",
		Short: "Print the paragraphs of one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withService(c, func(ctx context.Context, svc *news.Service, out io.Writer) error {
				return printArticle(ctx, svc, out, args[0])
			})
		},
	})

	return cmd
}

func printTOC(ctx context.Context, svc *news.Service, out io.Writer) error {
	toc, err := svc.TableOfContents(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d articles\n\n", svc.Site().Name(), toc.Len())
	for i, e := range toc.TitlesAndURLs() {
		fmt.Fprintf(out, "%3d. %s\n     %s\n", i+1, e.Text, e.Link)
	}
	return nil
}

func printArticle(ctx context.Context, svc *news.Service, out io.Writer, url string) error {
	a, err := svc.Article(ctx, url)
	if err != nil {
		return err
	}
	for i, p := range a.Text() {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, p)
	}
	return nil
}
