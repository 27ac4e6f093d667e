package models

// TOCResponse is the response for GET /api/v1/toc.
type TOCResponse struct {
	Success   bool         `json:"success"`
	Site      string       `json:"site,omitempty"`
	SourceURL string       `json:"source_url,omitempty"`
	Count     int          `json:"count"`
	Entries   []TOCEntry   `json:"entries,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// TOCEntry is one article listed in the table of contents.
type TOCEntry struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ArticleResponse is the response for POST /api/v1/article.
type ArticleResponse struct {
	Success bool `json:"success"`

	// Status is "completed" for synchronous answers and "scheduled" when
	// delivery happens through a webhook.
	Status string `json:"status"`

	URL        string       `json:"url"`
	Title      string       `json:"title,omitempty"`
	Paragraphs []string     `json:"paragraphs,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// TracksResponse is the response for GET /api/v1/tracks.
type TracksResponse struct {
	Success bool         `json:"success"`
	Tracks  []Track      `json:"tracks,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// Track is a playable item built from a table-of-contents entry.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Site     string `json:"site"`
	Language string `json:"language,omitempty"`
	Country  string `json:"country,omitempty"`
	Position int    `json:"position"`
	Total    int    `json:"total"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string         `json:"status"` // "healthy" or "degraded"
	Uptime   string         `json:"uptime"`
	TOC      SchedulerStats `json:"toc"`
	Articles SchedulerStats `json:"articles"`
	Version  string         `json:"version"`
}

// SchedulerStats reports the state of one download scheduler.
type SchedulerStats struct {
	Pending   int    `json:"pending"`
	Active    string `json:"active,omitempty"`
	Fetched   int64  `json:"fetched"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`
}

// ErrorResponse is the body of every failed request that has no richer
// response type.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
