// Package auth verifies bearer credentials and bounds request rates. It is
// owned by the request-handling layer; the extraction services only ever see
// the resolved caller identity.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"google.golang.org/api/idtoken"

	"github.com/Lllllllleong/knowledgeflow/internal/apperr"
)

// Verifier validates a bearer credential and resolves the caller identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// IDTokenVerifier validates Google-signed ID tokens issued for a fixed
// audience and returns the token subject as the caller id.
type IDTokenVerifier struct {
	audience string
}

func NewIDTokenVerifier(audience string) *IDTokenVerifier {
	return &IDTokenVerifier{audience: audience}
}

func (v *IDTokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	payload, err := idtoken.Validate(ctx, token, v.audience)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	if payload.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", apperr.ErrUnauthorized)
	}
	return payload.Subject, nil
}

// StaticVerifier accepts a single shared secret. Intended for local and
// development deployments only.
type StaticVerifier struct {
	secret   string
	callerID string
}

func NewStaticVerifier(secret, callerID string) *StaticVerifier {
	if callerID == "" {
		callerID = "local-dev"
	}
	return &StaticVerifier{secret: secret, callerID: callerID}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	if v.secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(v.secret)) != 1 {
		return "", apperr.ErrUnauthorized
	}
	return v.callerID, nil
}
