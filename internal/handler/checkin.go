package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/checkin-core/internal/checkin"
	"github.com/iliyamo/checkin-core/internal/model"
)

// KeyEncoder turns numeric keys into the opaque identifiers clients hold.
type KeyEncoder interface {
	Encode(id int64) string
}

// CheckinHandler serves check-in, check-out and attendance queries.
type CheckinHandler struct {
	Svc  *checkin.Service
	Keys KeyEncoder
	Log  zerolog.Logger
}

func NewCheckinHandler(svc *checkin.Service, keys KeyEncoder, log zerolog.Logger) *CheckinHandler {
	return &CheckinHandler{Svc: svc, Keys: keys, Log: log.With().Str("component", "checkin_handler").Logger()}
}

type checkinResponse struct {
	checkin.Result
	AttendanceKey string `json:"attendance_key,omitempty"`
}

func (h *CheckinHandler) respond(r checkin.Result) checkinResponse {
	out := checkinResponse{Result: r}
	if r.Success {
		out.AttendanceKey = h.Keys.Encode(r.AttendanceID)
	}
	return out
}

// Create handles POST /v1/checkins.
func (h *CheckinHandler) Create(c echo.Context) error {
	var req checkin.Request
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Svc.CheckIn(c.Request().Context(), req)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !res.Success {
		return c.JSON(rejectionStatus(res.Reason), h.respond(res))
	}
	return c.JSON(http.StatusCreated, h.respond(res))
}

type batchResponse struct {
	Items     []batchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	ElapsedMs int64       `json:"elapsed_ms"`
}

type batchItem struct {
	Index  int             `json:"index"`
	Result checkinResponse `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// Batch handles POST /v1/checkins/batch.  Entries succeed or fail
// independently, so the response is always 200 with per-entry outcomes.
func (h *CheckinHandler) Batch(c echo.Context) error {
	var req checkin.BatchRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Svc.CheckInBatch(c.Request().Context(), req)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := batchResponse{Succeeded: res.Succeeded, Failed: res.Failed, ElapsedMs: res.ElapsedMs}
	for _, it := range res.Items {
		out.Items = append(out.Items, batchItem{Index: it.Index, Result: h.respond(it.Result), Error: it.Error})
	}
	return c.JSON(http.StatusOK, out)
}

type validateReq struct {
	PersonKey   string `json:"person_id" validate:"required"`
	LocationKey string `json:"location_id" validate:"required"`
	Date        string `json:"date"`
}

// Validate handles POST /v1/checkins/validate, a dry run of the
// admission rules.
func (h *CheckinHandler) Validate(c echo.Context) error {
	var req validateReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.Log, err)
	}
	e, err := h.Svc.ValidateEligibility(c.Request().Context(), req.PersonKey, req.LocationKey, req.Date)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, e)
}

// CheckOut handles POST /v1/attendances/:id/checkout.  An unknown
// attendance and one the caller may not touch answer identically.
func (h *CheckinHandler) CheckOut(c echo.Context) error {
	res, err := h.Svc.CheckOut(c.Request().Context(), c.Param("id"))
	switch {
	case err == nil:
	case checkin.IsValidation(err):
		return writeError(c, h.Log, err)
	case isHidden(err):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "attendance not found"})
	default:
		return writeError(c, h.Log, err)
	}
	if !res.Success {
		return c.JSON(rejectionStatus(res.Reason), res)
	}
	return c.JSON(http.StatusOK, res)
}

type attendanceItem struct {
	model.AttendanceView
	AttendanceKey string `json:"attendance_key"`
}

func (h *CheckinHandler) items(views []model.AttendanceView) []attendanceItem {
	out := make([]attendanceItem, 0, len(views))
	for _, v := range views {
		out = append(out, attendanceItem{AttendanceView: v, AttendanceKey: h.Keys.Encode(v.AttendanceID)})
	}
	return out
}

// Current handles GET /v1/locations/:id/attendance?date=YYYY-MM-DD.
func (h *CheckinHandler) Current(c echo.Context) error {
	views, err := h.Svc.CurrentAttendance(c.Request().Context(), c.Param("id"), c.QueryParam("date"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": h.items(views), "count": len(views)})
}

// Window handles GET /v1/locations/:id/window.
func (h *CheckinHandler) Window(c echo.Context) error {
	w, err := h.Svc.AdmissionWindow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, w)
}

// History handles GET /v1/people/:id/attendance?limit=N.
func (h *CheckinHandler) History(c echo.Context) error {
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_failed", "field": "limit", "message": "must be an integer"})
		}
		limit = n
	}
	views, err := h.Svc.PersonHistory(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": h.items(views), "count": len(views)})
}
