package providers

import (
	"context"
	"crypto/subtle"
	"fmt"
)

var _ AuthProvider = &StaticAuthProvider{}

// StaticAuthProvider accepts a single shared token. It is meant for local
// deployments where no identity provider is configured.
type StaticAuthProvider struct {
	token string
	uid   string
}

func NewStaticAuthProvider(token string, uid string) *StaticAuthProvider {
	return &StaticAuthProvider{
		token: token,
		uid:   uid,
	}
}

func (p *StaticAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	if p.token == "" || subtle.ConstantTimeCompare([]byte(idToken), []byte(p.token)) != 1 {
		return nil, fmt.Errorf("error verifying token: %w", ErrInvalidToken)
	}
	return &TokenClaims{
		UID: p.uid,
	}, nil
}
