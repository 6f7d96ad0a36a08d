package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/checkin-core/internal/access"
)

// ClientKey identifies the caller for throttling: the authenticated staff
// user when there is one, otherwise the client IP.
func ClientKey(c echo.Context) string {
	if p, ok := access.FromContext(c.Request().Context()); ok {
		return "staff:" + strconv.FormatInt(p.StaffID, 10)
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
