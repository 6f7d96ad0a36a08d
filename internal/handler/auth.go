package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/checkin-core/internal/model"
	"github.com/iliyamo/checkin-core/internal/repository"
	"github.com/iliyamo/checkin-core/internal/utils"
)

// StaffReader loads staff users for login.
type StaffReader interface {
	GetByUsername(ctx context.Context, username string) (model.Staff, error)
}

// AuthHandler issues access tokens to staff users and kiosks.
type AuthHandler struct {
	Staff     StaffReader
	JWTSecret string
	TTLMin    int
	Log       zerolog.Logger
}

func NewAuthHandler(s StaffReader, secret string, ttlMin int, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Staff: s, JWTSecret: secret, TTLMin: ttlMin, Log: log.With().Str("component", "auth").Logger()}
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type staffPart struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	CampusID *int64 `json:"campus_id,omitempty"`
}

type loginResp struct {
	Staff  staffPart `json:"staff"`
	Access tokenPart `json:"access"`
}

// Login handles POST /v1/auth/login.  Unknown users, wrong passwords and
// disabled accounts all answer with the same 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := c.Validate(&req); err != nil {
		return writeError(c, h.Log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Staff.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return writeError(c, h.Log, err)
	}
	if !s.IsActive || !utils.VerifyPassword(s.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	tok, err := utils.NewAccessToken(h.JWTSecret, s.ID, s.Role, s.CampusID, h.TTLMin)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, loginResp{
		Staff:  staffPart{ID: s.ID, Username: s.Username, Role: s.Role, CampusID: s.CampusID},
		Access: tokenPart{Token: tok.Token, Expires: tok.Exp},
	})
}
