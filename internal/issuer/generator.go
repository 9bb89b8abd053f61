package issuer

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// codeAlphabet omits 0/O and 1/I so printed codes survive manual entry.
// Its length of 32 lets one random byte map to one character without bias.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeGroups     = 2
	codeGroupWidth = 4
	tokenBytes     = 32
)

// Generator produces credential codes and access tokens.
type Generator interface {
	Code(prefix string) (string, error)
	Token() (string, error)
}

// CryptoGenerator is the production Generator backed by crypto/rand.
type CryptoGenerator struct{}

// Code returns PREFIX-XXXX-XXXX.
func (CryptoGenerator) Code(prefix string) (string, error) {
	b := make([]byte, codeGroups*codeGroupWidth)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate credential code: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	for i, v := range b {
		if i%codeGroupWidth == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(codeAlphabet[int(v)%len(codeAlphabet)])
	}
	return sb.String(), nil
}

// Token returns 32 random bytes as unpadded URL-safe base64 (43 chars).
func (CryptoGenerator) Token() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
