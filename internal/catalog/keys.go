package catalog

import (
	"crypto/rand"
	"math/big"
)

const (
	keyAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	appKeyLength      = 16
	downloadKeyLength = 8
	maxKeyAttempts    = 5
)

// randomKey returns n characters drawn uniformly from keyAlphabet.
func randomKey(n int) (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = keyAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// validDownloadKey accepts 4-32 URL-safe characters.
func validDownloadKey(key string) bool {
	if len(key) < 4 || len(key) > 32 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
