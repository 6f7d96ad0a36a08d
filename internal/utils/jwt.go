package utils // package utils provides helpers for tokens, hashing, identity keys and grade math

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its expiry.
// Staff and kiosk devices present it in the Authorization header.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// StaffClaims is the decoded form of an access token.
type StaffClaims struct {
	StaffID  int64
	Role     string
	CampusID *int64
}

// ErrInvalidToken is returned by ParseAccessToken for any token that fails
// signature, algorithm, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken builds and signs an HS256 JWT for a staff user.  The
// subject is the staff ID as a decimal string, "role" is the staff role and
// "campus_id" is present only for campus-scoped staff.
func NewAccessToken(secret string, staffID int64, role string, campusID *int64, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(staffID, 10),
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	if campusID != nil {
		claims["campus_id"] = *campusID
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw with secret and extracts the staff claims.
func ParseAccessToken(secret, raw string) (StaffClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return StaffClaims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return StaffClaims{}, ErrInvalidToken
	}
	sub, _ := mc["sub"].(string)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return StaffClaims{}, ErrInvalidToken
	}
	role, _ := mc["role"].(string)
	if role == "" {
		return StaffClaims{}, ErrInvalidToken
	}
	c := StaffClaims{StaffID: id, Role: role}
	// JSON numbers decode as float64
	if v, ok := mc["campus_id"].(float64); ok {
		cid := int64(v)
		c.CampusID = &cid
	}
	return c, nil
}
