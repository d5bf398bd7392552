package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	charset    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	digits     = "0123456789"
	upperAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateRandomID generates a random string of length n
func GenerateRandomID(n int) string {
	return randomFrom(charset, n)
}

// GenerateDigits returns n random decimal digits.
func GenerateDigits(n int) string {
	return randomFrom(digits, n)
}

// GenerateReferralCode builds codes shaped like REF123456AB.
func GenerateReferralCode() string {
	return "REF" + randomFrom(digits, 6) + randomFrom(upperAlnum[:26], 2)
}

func randomFrom(alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return ""
		}
		b[i] = alphabet[num.Int64()]
	}
	return string(b)
}
