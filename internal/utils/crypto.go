package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateVoucherCode returns a URL-safe random voucher code.
func GenerateVoucherCode() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return "V-" + base64.RawURLEncoding.EncodeToString(b), nil
}
