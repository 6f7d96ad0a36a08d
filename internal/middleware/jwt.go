package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/checkin-core/internal/access"
	"github.com/iliyamo/checkin-core/internal/utils"
)

// JWTAuth validates the Bearer access token and places the caller's
// access.Principal into the request context.  Handlers and the services
// they call read it back with access.FromContext.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			p := access.Principal{StaffID: claims.StaffID, Role: claims.Role, CampusID: claims.CampusID}
			req := c.Request()
			c.SetRequest(req.WithContext(access.WithPrincipal(req.Context(), p)))
			c.Set("staff_id", claims.StaffID)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}
