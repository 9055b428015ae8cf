package auth

import (
	"net/http"
	"strings"

	"github.com/Lllllllleong/knowledgeflow/internal/apperr"
)

// Authenticate resolves and rate-limits the caller behind a request's bearer
// header. Every HTTP function goes through this path so the same caller
// population shares one credential and rate-limit policy.
func Authenticate(r *http.Request, verifier Verifier, limiter Limiter) (string, error) {
	token := BearerToken(r)
	if token == "" {
		return "", apperr.ErrUnauthorized
	}
	callerID, err := verifier.Verify(r.Context(), token)
	if err != nil {
		return "", err
	}
	if limiter != nil && !limiter.Allow(callerID) {
		return "", apperr.ErrRateLimited
	}
	return callerID, nil
}

// BearerToken extracts the credential from the Authorization header.
func BearerToken(r *http.Request) string {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}
