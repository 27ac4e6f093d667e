package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gazette/models"
	"github.com/use-agent/gazette/webhook"
)

// Article returns a handler for POST /api/v1/article.
//
// Without a webhook_url the handler waits for the download. With one it
// replies 202 at once and the outcome is POSTed to the webhook.
func Article(news News) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ArticleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		if req.WebhookURL != "" {
			cb := &webhook.Callback{URL: req.WebhookURL, Secret: req.WebhookSecret}
			if err := news.ScheduleArticle(req.URL, cb); err != nil {
				se := asScrapeError(err)
				c.JSON(mapErrorToStatus(se), models.ArticleResponse{
					Success: false,
					Status:  "failed",
					URL:     req.URL,
					Error:   se.ToDetail(),
				})
				return
			}
			slog.Info("article scheduled", "url", req.URL, "webhook", req.WebhookURL)
			c.JSON(http.StatusAccepted, models.ArticleResponse{
				Success: true,
				Status:  "scheduled",
				URL:     req.URL,
			})
			return
		}

		a, err := news.Article(c.Request.Context(), req.URL)
		if err != nil {
			se := asScrapeError(err)
			c.JSON(mapErrorToStatus(se), models.ArticleResponse{
				Success: false,
				Status:  "failed",
				URL:     req.URL,
				Error:   se.ToDetail(),
			})
			return
		}

		c.JSON(http.StatusOK, models.ArticleResponse{
			Success:    true,
			Status:     "completed",
			URL:        a.URL(),
			Title:      a.Title(),
			Paragraphs: a.Text(),
		})
	}
}
