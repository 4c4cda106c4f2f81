package services

import (
	"crypto/rand"
	"io"
	mrand "math/rand/v2"
)

const (
	AccessCodeLength = 12
	accessCodeChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// largest multiple of 62 that fits in a byte; bytes at or above it are rejected
	accessCodeCutoff = 248
)

// GenerateAccessCode returns a 12-character alphanumeric capability token.
// Codes are not checked for collisions; the space is 62^12.
func GenerateAccessCode() string {
	return accessCodeFrom(rand.Reader)
}

// accessCodeFrom draws from src and falls back to math/rand when src fails.
func accessCodeFrom(src io.Reader) string {
	out := make([]byte, 0, AccessCodeLength)
	buf := make([]byte, AccessCodeLength*2)
	for len(out) < AccessCodeLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return fallbackAccessCode(out)
		}
		for _, b := range buf {
			if b >= accessCodeCutoff {
				continue
			}
			out = append(out, accessCodeChars[int(b)%len(accessCodeChars)])
			if len(out) == AccessCodeLength {
				break
			}
		}
	}
	return string(out)
}

func fallbackAccessCode(prefix []byte) string {
	out := prefix
	for len(out) < AccessCodeLength {
		out = append(out, accessCodeChars[mrand.IntN(len(accessCodeChars))])
	}
	return string(out)
}

// IsAccessCode reports whether s has the shape of a generated access code.
func IsAccessCode(s string) bool {
	if len(s) != AccessCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
