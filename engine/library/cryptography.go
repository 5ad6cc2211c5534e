package library

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

func Sha256Sum(data interface{}) Sha256 {
	var b []byte
	switch d := data.(type) {
	case string:
		b = []byte(d)
	case []byte:
		b = d
	default:
		LogCLI("attempted to hash non-string or non-[]byte", 1)
	}
	h := sha256.New()
	h.Write(b)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// IsValid32ByteHex reports whether s is exactly 64 lowercase or uppercase hex characters.
func IsValid32ByteHex(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// PreimageMatches reports whether the hex preimage hashes to the hex payment hash.
func PreimageMatches(preimage, paymentHash string) bool {
	b, err := hex.DecodeString(preimage)
	if err != nil || len(b) == 0 {
		return false
	}
	return Sha256Sum(b) == strings.ToLower(paymentHash)
}
