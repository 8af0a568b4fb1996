// Package authn binds the JWT verifier to the hub's Authenticator contract.
package authn

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/jwtverify"
)

// RevocationList reports tokens revoked before their expiry.
type RevocationList interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const revocationLookupTimeout = 3 * time.Second

type JWTAuthenticator struct {
	verifier      *jwtverify.Verifier
	revoked       RevocationList
	lookups       singleflight.Group
	lookupTimeout time.Duration
}

// NewJWTAuthenticator builds an Authenticator. revoked may be nil.
func NewJWTAuthenticator(verifier *jwtverify.Verifier, revoked RevocationList) *JWTAuthenticator {
	return &JWTAuthenticator{verifier: verifier, revoked: revoked, lookupTimeout: revocationLookupTimeout}
}

func (a *JWTAuthenticator) Validate(ctx context.Context, credential string) (domain.UserIdentity, error) {
	if err := ctx.Err(); err != nil {
		return domain.UserIdentity{}, err
	}

	claims, err := a.verifier.ParseToken(credential)
	if err != nil {
		return domain.UserIdentity{}, err
	}

	if a.revoked != nil && claims.JTI != "" {
		revoked, err := a.isRevoked(ctx, claims.JTI)
		if err != nil {
			return domain.UserIdentity{}, err
		}
		if revoked {
			return domain.UserIdentity{}, commonerrors.ErrTokenRevoked
		}
	}

	return domain.UserIdentity{
		ID:    claims.UserID,
		Name:  claims.Name,
		Email: claims.Email,
	}, nil
}

// isRevoked shares one lookup between concurrent connects presenting the same token.
// The lookup is detached from any single caller; each caller still honours its own ctx.
func (a *JWTAuthenticator) isRevoked(ctx context.Context, jti string) (bool, error) {
	ch := a.lookups.DoChan(jti, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.lookupTimeout)
		defer cancel()
		return a.revoked.IsRevoked(lookupCtx, jti)
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, commonerrors.ErrInvalidToken.WithCause(res.Err)
		}
		return res.Val.(bool), nil
	}
}
