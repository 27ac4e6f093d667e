package models

// ArticleRequest is the payload for POST /api/v1/article.
type ArticleRequest struct {
	// URL is the article page to download. Required.
	URL string `json:"url" binding:"required,url"`

	// WebhookURL switches the request to asynchronous mode: the handler
	// replies 202 immediately and the outcome is POSTed here.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs webhook payloads with HMAC-SHA256 when set.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}
