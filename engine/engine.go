package engine

import (
	"context"

	"github.com/use-agent/gazette/bridge"
)

// Engine is the narrow capability a scraper needs from a page-rendering
// engine. An Engine drives a single page and is not safe for concurrent use.
type Engine interface {
	// Name returns the engine identifier (e.g. "rod").
	Name() string

	// Navigate loads url and returns once the page finished loading. A
	// non-nil error means the page could not be loaded.
	Navigate(ctx context.Context, url string) error

	// Inject removes any previously installed bridge, installs b on the
	// loaded page and executes script there. The script reports back
	// through b; Inject does not wait for it to finish.
	Inject(ctx context.Context, script string, b *bridge.Bridge) error

	// Close releases the page and the browser behind it.
	Close() error
}
