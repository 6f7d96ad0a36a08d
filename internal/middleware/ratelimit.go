package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/checkin-core/internal/ratelimit"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c echo.Context) string

// RateLimit counts every request against key(c) and answers 429 with
// Retry-After once the limit is reached.  Whether a limiter backend
// failure blocks is the limiter's own FailurePolicy.
func RateLimit(l ratelimit.Limiter, key KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			k := key(c)
			if l.IsLimited(ctx, k) {
				wait, _ := l.RetryAfter(ctx, k)
				secs := int(math.Ceil(wait.Seconds()))
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			l.RecordAttempt(ctx, k)
			return next(c)
		}
	}
}
