package utils

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }

func TestCurrentGrade(t *testing.T) {
	t.Parallel()
	cases := []struct {
		grad int
		now  time.Time
		want int
	}{
		{2030, date(2026, 10, 1), 9},
		{2030, date(2026, 8, 31), 8},
		{2030, date(2026, 9, 1), 9},
		{2039, date(2026, 10, 1), 0},
		{2041, date(2026, 10, 1), -2},
		{2026, date(2026, 10, 1), 13},
	}
	for _, tc := range cases {
		if got := CurrentGrade(tc.grad, tc.now); got != tc.want {
			t.Errorf("CurrentGrade(%d, %s) = %d, want %d", tc.grad, tc.now.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestAgeInMonths(t *testing.T) {
	t.Parallel()
	cases := []struct {
		birth, now time.Time
		want       int
	}{
		{date(2024, 4, 18), date(2026, 10, 18), 30},
		{date(2024, 4, 19), date(2026, 10, 18), 29},
		{date(2026, 10, 1), date(2026, 10, 18), 0},
		{date(2027, 1, 1), date(2026, 10, 18), 0},
	}
	for _, tc := range cases {
		if got := AgeInMonths(tc.birth, tc.now); got != tc.want {
			t.Errorf("AgeInMonths(%s, %s) = %d, want %d", tc.birth.Format("2006-01-02"), tc.now.Format("2006-01-02"), got, tc.want)
		}
	}
}

func TestIDKeys(t *testing.T) {
	t.Parallel()
	k, err := NewIDKeys("test-salt")
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []int64{1, 42, 987654321} {
		s := k.Encode(n)
		if len(s) < 8 {
			t.Fatalf("key %q shorter than 8", s)
		}
		if got, ok := k.Decode(s); !ok || got != n {
			t.Fatalf("Decode(Encode(%d)) = %d, %v", n, got, ok)
		}
	}
	if got, ok := k.Decode(" 42 "); !ok || got != 42 {
		t.Fatalf("numeric key = %d, %v", got, ok)
	}
	for _, bad := range []string{"", "0", "-7", "not a key!"} {
		if _, ok := k.Decode(bad); ok {
			t.Errorf("Decode(%q) accepted", bad)
		}
	}
	other, _ := NewIDKeys("other-salt")
	if other.Encode(42) == k.Encode(42) {
		t.Fatal("salt does not change keys")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Parallel()
	campus := int64(3)
	tok, err := NewAccessToken("s3cret", 17, "STAFF", &campus, 15)
	if err != nil {
		t.Fatal(err)
	}
	if d := time.Until(tok.Exp); d < 14*time.Minute || d > 15*time.Minute {
		t.Fatalf("expiry in %v", d)
	}
	c, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatal(err)
	}
	if c.StaffID != 17 || c.Role != "STAFF" || c.CampusID == nil || *c.CampusID != 3 {
		t.Fatalf("claims = %+v", c)
	}

	admin, _ := NewAccessToken("s3cret", 1, "ADMIN", nil, 15)
	if c, err := ParseAccessToken("s3cret", admin.Token); err != nil || c.CampusID != nil {
		t.Fatalf("admin claims = %+v, %v", c, err)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	t.Parallel()
	good, _ := NewAccessToken("s3cret", 17, "STAFF", nil, 15)
	expired, _ := NewAccessToken("s3cret", 17, "STAFF", nil, -1)
	noRole, _ := NewAccessToken("s3cret", 17, "", nil, 15)
	for name, raw := range map[string]string{
		"wrong secret": good.Token,
		"expired":      expired.Token,
		"no role":      noRole.Token,
		"garbage":      "a.b.c",
		"tampered":     good.Token[:len(good.Token)-2] + strings.Repeat("x", 2),
	} {
		secret := "s3cret"
		if name == "wrong secret" {
			secret = "other"
		}
		if _, err := ParseAccessToken(secret, raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestPassword(t *testing.T) {
	t.Parallel()
	h, err := HashPassword("correct horse", 4)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(h, "correct horse") || VerifyPassword(h, "wrong horse") {
		t.Fatal("password verification is wrong")
	}
}
