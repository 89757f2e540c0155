package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

// TokenBytes is the entropy of a bearer token; base64url encodes it to 64 characters.
const TokenBytes = 48

const otpSpace = 1_000_000

// otpCeiling is the largest multiple of otpSpace that fits in a uint32.
const otpCeiling = (1 << 32) / otpSpace * otpSpace

// NewToken reads TokenBytes from r and encodes them as an unpadded base64url string.
func NewToken(r io.Reader) (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 of a token. This is what gets persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewOTP draws a uniform code in [0, 999999] from r and zero-pads it to six digits.
func NewOTP(r io.Reader) (string, error) {
	var buf [4]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", err
		}
		n := binary.BigEndian.Uint32(buf[:])
		if n < otpCeiling {
			return fmt.Sprintf("%06d", n%otpSpace), nil
		}
	}
}
