package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strings"
)

// NewOTPCode returns a uniformly random numeric code of n digits.
func NewOTPCode(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// EqualCode compares two codes in constant time.
func EqualCode(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// OTPChannel reports whether username is an email or a mobile number.
func OTPChannel(username string) string {
	if strings.Contains(username, "@") {
		return "email"
	}
	return "sms"
}
