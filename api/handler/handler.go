package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gazette/models"
	"github.com/use-agent/gazette/scheduler"
	"github.com/use-agent/gazette/site"
)

// News is what the handlers need from the news service.
type News interface {
	Site() site.Configuration
	TableOfContents(ctx context.Context) (*models.TableOfContents, error)
	Article(ctx context.Context, url string) (*models.Article, error)
	ScheduleArticle(url string, cb scheduler.Callback) error
	Tracks(ctx context.Context) ([]models.Track, error)
	Stats() (toc, articles models.SchedulerStats)
}

// asScrapeError returns err as a ScrapeError, wrapping unknown errors as
// internal.
func asScrapeError(err error) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeScript:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeInvalidInput,
			Message: err.Error(),
		},
	})
}
