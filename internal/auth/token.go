// Package auth verifies the bearer token shared with calling services.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier compares presented tokens against the configured one by digest.
// An empty configured token rejects every request.
type Verifier struct {
	digest [sha256.Size]byte
	set    bool
}

func NewVerifier(token string) *Verifier {
	token = strings.TrimSpace(token)
	if token == "" {
		return &Verifier{}
	}
	return &Verifier{digest: sha256.Sum256([]byte(token)), set: true}
}

func (v *Verifier) Verify(token string) error {
	if token == "" {
		return ErrMissingToken
	}
	sum := sha256.Sum256([]byte(token))
	if !v.set || subtle.ConstantTimeCompare(sum[:], v.digest[:]) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// VerifyRequest checks the request's Authorization bearer token.
func (v *Verifier) VerifyRequest(r *http.Request) error {
	return v.Verify(BearerToken(r))
}

func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// HashToken returns the hex digest logged in place of a token.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
