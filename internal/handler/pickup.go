package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/checkin-core/internal/middleware"
	"github.com/iliyamo/checkin-core/internal/pickup"
)

// PickupHandler verifies security codes at the pickup desk.
type PickupHandler struct {
	Svc  *pickup.Service
	Keys KeyEncoder
	Log  zerolog.Logger
}

func NewPickupHandler(svc *pickup.Service, keys KeyEncoder, log zerolog.Logger) *PickupHandler {
	return &PickupHandler{Svc: svc, Keys: keys, Log: log.With().Str("component", "pickup_handler").Logger()}
}

type pickupReq struct {
	Code string `json:"code" validate:"required,max=16"`
}

// Verify handles POST /v1/pickup/verify.
func (h *PickupHandler) Verify(c echo.Context) error {
	var req pickupReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.Log, err)
	}
	views, err := h.Svc.Verify(c.Request().Context(), middleware.ClientKey(c), req.Code)
	if errors.Is(err, pickup.ErrCodeNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "code not found"})
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	items := make([]attendanceItem, 0, len(views))
	for _, v := range views {
		items = append(items, attendanceItem{AttendanceView: v, AttendanceKey: h.Keys.Encode(v.AttendanceID)})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
