package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gazette/models"
)

// TableOfContents returns a handler for GET /api/v1/toc.
func TableOfContents(news News) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := news.Site()
		toc, err := news.TableOfContents(c.Request.Context())
		if err != nil {
			se := asScrapeError(err)
			c.JSON(mapErrorToStatus(se), models.TOCResponse{
				Success:   false,
				Site:      s.Name(),
				SourceURL: s.TableOfContentsURL(),
				Error:     se.ToDetail(),
			})
			return
		}

		entries := toc.TitlesAndURLs()
		out := make([]models.TOCEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, models.TOCEntry{Title: e.Text, URL: e.Link})
		}

		c.JSON(http.StatusOK, models.TOCResponse{
			Success:   true,
			Site:      s.Name(),
			SourceURL: toc.URL(),
			Count:     len(out),
			Entries:   out,
		})
	}
}

// Tracks returns a handler for GET /api/v1/tracks.
func Tracks(news News) gin.HandlerFunc {
	return func(c *gin.Context) {
		tracks, err := news.Tracks(c.Request.Context())
		if err != nil {
			se := asScrapeError(err)
			c.JSON(mapErrorToStatus(se), models.TracksResponse{
				Success: false,
				Error:   se.ToDetail(),
			})
			return
		}
		c.JSON(http.StatusOK, models.TracksResponse{Success: true, Tracks: tracks})
	}
}
