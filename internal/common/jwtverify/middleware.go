package jwtverify

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	commonhttp "github.com/AlibekovAA/chat-presence-hub/internal/common/http"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/logger"
)

const (
	bearerPrefix    = "Bearer "
	tokenQueryParam = "token"
)

type Claims struct {
	UserID uuid.UUID
	Name   string
	Email  string
	JTI    string
}

type contextKey struct{}

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(),
	}
}

func (v *Verifier) ParseToken(tokenString string) (Claims, error) {
	if tokenString == "" {
		return Claims{}, commonerrors.ErrMissingCredential
	}

	mapClaims := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(tokenString, mapClaims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errUnexpectedSigningMethod
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, errUnexpectedSigningMethod) {
			return Claims{}, commonerrors.ErrInvalidTokenSigningMethod.WithCause(err)
		}
		return Claims{}, commonerrors.ErrInvalidToken.WithCause(err)
	}
	if !parsed.Valid {
		return Claims{}, commonerrors.ErrInvalidToken
	}

	rawID, _ := mapClaims["id"].(string)
	if rawID == "" {
		rawID, _ = mapClaims["sub"].(string)
	}
	if rawID == "" {
		return Claims{}, commonerrors.ErrMissingTokenClaims.WithCause(errors.New("missing id claim"))
	}

	userID, err := uuid.Parse(rawID)
	if err != nil {
		return Claims{}, commonerrors.ErrInvalidTokenClaims.WithCause(err)
	}

	name, _ := mapClaims["name"].(string)
	email, _ := mapClaims["email"].(string)
	jti, _ := mapClaims["jti"].(string)

	return Claims{
		UserID: userID,
		Name:   name,
		Email:  email,
		JTI:    jti,
	}, nil
}

// CredentialFromRequest reads the bearer token, falling back to the token query parameter
// for browser WebSocket clients that cannot set headers.
func CredentialFromRequest(r *http.Request) string {
	raw := r.Header.Get("Authorization")
	if strings.HasPrefix(raw, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	}
	return r.URL.Query().Get(tokenQueryParam)
}

func Middleware(verifier *Verifier, log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if !strings.HasPrefix(raw, bearerPrefix) {
				log.WithFields(r.Context(), logger.Fields{
					"path":   r.URL.Path,
					"action": "jwt_auth_failed",
				}).Warn("missing or invalid authorization header")
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "missing or invalid authorization", nil, logger.TraceIDFromContext(r.Context()))
				return
			}

			claims, err := verifier.ParseToken(strings.TrimPrefix(raw, bearerPrefix))
			if err != nil {
				log.WithFields(r.Context(), logger.Fields{
					"path":   r.URL.Path,
					"error":  err.Error(),
					"action": "jwt_auth_failed",
				}).Warn("invalid token")
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeInvalidToken, "invalid token", nil, logger.TraceIDFromContext(r.Context()))
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(Claims)
	return claims, ok
}
