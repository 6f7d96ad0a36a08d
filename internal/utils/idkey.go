package utils

import (
	"strconv"
	"strings"

	"github.com/speps/go-hashids/v2"
)

// IDKeys converts internal numeric keys to the opaque identifiers handed to
// kiosks and back.  Plain positive integers are accepted on decode so that
// staff tools can address rows by ID.
type IDKeys struct {
	h *hashids.HashID
}

// NewIDKeys builds an encoder for salt.  Keys are at least eight characters.
func NewIDKeys(salt string) (*IDKeys, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 8
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, err
	}
	return &IDKeys{h: h}, nil
}

// Encode returns the opaque key for id.
func (k *IDKeys) Encode(id int64) string {
	s, err := k.h.EncodeInt64([]int64{id})
	if err != nil {
		return strconv.FormatInt(id, 10)
	}
	return s
}

// Decode returns the numeric key behind s.  Malformed or non-positive input
// reports false.
func (k *IDKeys) Decode(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if nums, err := k.h.DecodeInt64WithError(s); err == nil && len(nums) == 1 && nums[0] > 0 {
		return nums[0], true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, n > 0
}
