package models

import (
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Content is the ordered mapping produced by one scrape attempt:
// extracted plain text -> associated link ("" when the script gave none).
type Content = orderedmap.OrderedMap[string, string]

// NewContent returns an empty Content.
func NewContent() *Content {
	return orderedmap.New[string, string]()
}

// Entry is one (text, link) pair of a Resource's content, in insertion order.
type Entry struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Resource is a page identified by its URL whose content is filled in
// asynchronously by a download.
//
// The scheduler deduplicates by *Resource, not by URL: two resources created
// from the same URL are unrelated. Share one instance to share its download.
type Resource struct {
	url string

	mu        sync.RWMutex
	content   *Content
	fetchedAt time.Time
}

// NewResource creates a Resource with no content.
func NewResource(url string) *Resource {
	return &Resource{url: url, content: NewContent()}
}

// URL returns the resource's identity URL.
func (r *Resource) URL() string { return r.url }

func (r *Resource) String() string { return r.url }

// Content returns the committed content. Callers must not modify it.
func (r *Resource) Content() *Content {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.content
}

// SetContent replaces the content wholesale. A nil c clears it.
func (r *Resource) SetContent(c *Content) {
	if c == nil {
		c = NewContent()
	}
	r.mu.Lock()
	r.content = c
	if c.Len() > 0 {
		r.fetchedAt = time.Now()
	} else {
		r.fetchedAt = time.Time{}
	}
	r.mu.Unlock()
}

// FetchedAt returns when the current content was committed, or the zero
// time while the resource has none.
func (r *Resource) FetchedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fetchedAt
}

// HasContent reports whether a download already satisfied this resource.
func (r *Resource) HasContent() bool {
	return r.Len() > 0
}

// Len returns the number of content entries.
func (r *Resource) Len() int {
	return r.Content().Len()
}

// Entries returns the content as ordered pairs.
func (r *Resource) Entries() []Entry {
	c := r.Content()
	entries := make([]Entry, 0, c.Len())
	for p := c.Oldest(); p != nil; p = p.Next() {
		entries = append(entries, Entry{Text: p.Key, Link: p.Value})
	}
	return entries
}
