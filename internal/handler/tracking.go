package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/ratelimit"
	"github.com/iliyamo/checkin-core/internal/repository"
)

// pixel is a transparent 1x1 GIF.
var pixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// InteractionStore records opens and clicks and resolves tracked links.
type InteractionStore interface {
	Record(ctx context.Context, token, kind, ip, userAgent string) error
	LinkURL(ctx context.Context, token string) (string, error)
}

// TrackingHandler serves the open pixel and click redirects embedded in
// follow-up messages.  Recording is throttled per client and token; a
// throttled or failed recording never changes what the client receives.
type TrackingHandler struct {
	Store   InteractionStore
	Limiter ratelimit.Limiter
	Log     zerolog.Logger
}

func NewTrackingHandler(s InteractionStore, l ratelimit.Limiter, log zerolog.Logger) *TrackingHandler {
	return &TrackingHandler{Store: s, Limiter: l, Log: log.With().Str("component", "tracking").Logger()}
}

func (h *TrackingHandler) record(c echo.Context, token, kind string) {
	ctx := c.Request().Context()
	key := c.RealIP() + ":" + token
	if h.Limiter.IsLimited(ctx, key) {
		return
	}
	h.Limiter.RecordAttempt(ctx, key)
	if err := h.Store.Record(ctx, token, kind, c.RealIP(), c.Request().UserAgent()); err != nil {
		h.Log.Warn().Err(err).Str("kind", kind).Msg("interaction not recorded")
	}
}

// Open handles GET /t/o/:token.
func (h *TrackingHandler) Open(c echo.Context) error {
	h.record(c, c.Param("token"), model.InteractionOpened)
	c.Response().Header().Set("Cache-Control", "no-store, max-age=0")
	return c.Blob(http.StatusOK, "image/gif", pixel)
}

// Click handles GET /t/c/:token.
func (h *TrackingHandler) Click(c echo.Context) error {
	token := c.Param("token")
	url, err := h.Store.LinkURL(c.Request().Context(), token)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "link not found"})
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.record(c, token, model.InteractionClick)
	return c.Redirect(http.StatusFound, url)
}
