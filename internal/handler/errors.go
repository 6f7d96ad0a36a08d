package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/checkin-core/internal/checkin"
	"github.com/iliyamo/checkin-core/internal/pickup"
)

const internalMessage = "an unexpected error occurred"

// writeError maps service errors onto HTTP responses.  Authorization
// failures get one generic body so callers cannot probe which people or
// locations exist.  Anything unrecognized is logged and hidden.
func writeError(c echo.Context, log zerolog.Logger, err error) error {
	var (
		ve  *checkin.ValidationError
		fe  validator.ValidationErrors
		rle *pickup.RateLimitedError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "field": ve.Field, "message": ve.Message})
	case errors.As(err, &fe):
		fields := make([]string, 0, len(fe))
		for _, f := range fe {
			fields = append(fields, f.Field())
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "fields": fields})
	case errors.Is(err, checkin.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, checkin.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case errors.As(err, &rle):
		secs := int(math.Ceil(rle.RetryAfter.Seconds()))
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too_many_requests", "retry_after": secs})
	}
	log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": internalMessage})
}

// rejectionStatus picks the status for a business rejection: conflicts
// with existing state are 409, everything else 422.
func rejectionStatus(r checkin.Reason) int {
	switch r {
	case checkin.ReasonAlreadyCheckedIn, checkin.ReasonAtCapacity, checkin.ReasonAlreadyCheckedOut:
		return http.StatusConflict
	}
	return http.StatusUnprocessableEntity
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}

// isHidden reports errors that must not reveal whether a row exists.
func isHidden(err error) bool {
	return errors.Is(err, checkin.ErrNotFound) || errors.Is(err, checkin.ErrUnauthorized)
}
