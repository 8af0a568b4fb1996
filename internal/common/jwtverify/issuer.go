package jwtverify

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/AlibekovAA/chat-presence-hub/internal/common/clock"
)

// Issuer signs HS256 access tokens that Verifier accepts.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewIssuer(secret string, ttl time.Duration, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clk,
	}
}

// IssueAccessToken signs claims. A fresh jti is generated when claims.JTI is empty.
func (i *Issuer) IssueAccessToken(claims Claims) (string, error) {
	jti := claims.JTI
	if jti == "" {
		jti = uuid.NewString()
	}

	now := i.clock.Now()
	mapClaims := jwt.MapClaims{
		"id":    claims.UserID.String(),
		"sub":   claims.UserID.String(),
		"name":  claims.Name,
		"email": claims.Email,
		"jti":   jti,
		"iat":   now.Unix(),
	}
	if i.ttl > 0 {
		mapClaims["exp"] = now.Add(i.ttl).Unix()
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(i.secret)
}
