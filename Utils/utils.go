package Utils

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"strings"
	"unicode"
)

const slugCharacters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomSlug returns a random [A-Za-z0-9] string of the given length.
func RandomSlug(length int) string {
	slug := make([]byte, length)
	max := big.NewInt(int64(len(slugCharacters)))
	for i := range slug {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		slug[i] = slugCharacters[n.Int64()]
	}
	return string(slug)
}

// SecureToken returns n random bytes encoded as unpadded url-safe base64.
func SecureToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// FormatPhoneNumber keeps the digits of phone and prefixes them with '+'.
func FormatPhoneNumber(phone string) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 {
		return ""
	}
	return b.String()
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
