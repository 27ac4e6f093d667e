package engine

import (
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps the names accepted in BrowserConfig.BlockedResourceTypes
// to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// adHosts are ad, tracking and consent-banner hosts that news pages pull in.
// Extraction scripts read the DOM only and never need them.
var adHosts = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"google-analytics.com",
	"googletagmanager.com",
	"googletagservices.com",
	"facebook.net",
	"adnxs.com",
	"adsrvr.org",
	"amazon-adsystem.com",
	"criteo.com",
	"criteo.net",
	"outbrain.com",
	"taboola.com",
	"pubmatic.com",
	"rubiconproject.com",
	"scorecardresearch.com",
	"chartbeat.com",
	"chartbeat.net",
	"hotjar.com",
	"demdex.net",
	"krxd.net",
	"smartadserver.com",
	"consensu.org",
	"cookielaw.org",
	"onetrust.com",
}

// blocker decides which page requests never leave the browser. It counts
// what it dropped until the next take, so every page load can report how
// much of the site was cut away.
type blocker struct {
	types map[proto.NetworkResourceType]struct{}
	hosts map[string]struct{}

	byType atomic.Int64
	byHost atomic.Int64
}

// newBlocker builds a blocker for the named resource types and hosts. With
// blockAds the well-known ad hosts are added to extraHosts.
func newBlocker(types []string, blockAds bool, extraHosts []string) *blocker {
	b := &blocker{
		types: make(map[proto.NetworkResourceType]struct{}, len(types)),
		hosts: make(map[string]struct{}),
	}
	for _, name := range types {
		if rt, ok := resourceTypes[name]; ok {
			b.types[rt] = struct{}{}
		}
	}
	if blockAds {
		for _, h := range adHosts {
			b.hosts[h] = struct{}{}
		}
	}
	for _, h := range extraHosts {
		if h = normalizeHost(h); h != "" {
			b.hosts[h] = struct{}{}
		}
	}
	return b
}

func (b *blocker) empty() bool {
	return len(b.types) == 0 && len(b.hosts) == 0
}

// drop reports whether a request of type rt for rawURL is refused, and
// counts it when it is.
func (b *blocker) drop(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := b.types[rt]; ok {
		b.byType.Add(1)
		return true
	}
	if len(b.hosts) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if b.blockedHost(u.Hostname()) {
		b.byHost.Add(1)
		return true
	}
	return false
}

// blockedHost matches host and each of its parent domains, so
// "pagead2.googlesyndication.com" matches "googlesyndication.com".
func (b *blocker) blockedHost(host string) bool {
	for host = normalizeHost(host); host != ""; {
		if _, ok := b.hosts[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return false
		}
		host = host[i+1:]
	}
	return false
}

// take returns the number of requests dropped by type and by host since
// the previous take, and resets both.
func (b *blocker) take() (byType, byHost int64) {
	return b.byType.Swap(0), b.byHost.Swap(0)
}

// mount intercepts every request of page and fails the dropped ones. It
// returns nil, leaving the page untouched, when there is nothing to block.
// The caller stops the returned router.
func (b *blocker) mount(page *rod.Page) *rod.HijackRouter {
	if b.empty() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if b.drop(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}

func normalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}
