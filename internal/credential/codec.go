// Package credential obfuscates stored passwords.
//
// The transform is a repeating-key XOR followed by standard base64. It keeps
// passwords out of casual view in settings files and is NOT encryption: anyone
// holding this binary can reverse it. Never log encoded values either.
package credential

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// appKey is fixed: settings written by earlier releases must keep decoding.
const appKey = "IPCameraPlayer_SecureKey_v1.0"

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/="

var key = func() []byte {
	sum := sha256.Sum256([]byte(appKey))
	return sum[:]
}()

func xor(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// Encode obfuscates plaintext. The empty string encodes to the empty string.
func Encode(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString(xor([]byte(plaintext)))
}

// Decode reverses Encode. Empty or undecodable input yields "".
func Decode(token string) string {
	if token == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return ""
	}
	plain := xor(raw)
	if !utf8.Valid(plain) {
		return ""
	}
	return string(plain)
}

// LooksEncoded reports whether text could have come out of Encode.
// It only separates legacy plaintext from encoded values at load time; a
// plaintext password made of base64 characters with a valid length passes too.
func LooksEncoded(text string) bool {
	if text == "" {
		return false
	}
	if _, err := base64.StdEncoding.DecodeString(text); err != nil {
		return false
	}
	for _, r := range text {
		if !strings.ContainsRune(base64Alphabet, r) {
			return false
		}
	}
	return true
}
