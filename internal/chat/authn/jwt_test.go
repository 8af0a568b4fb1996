package authn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/chat-presence-hub/internal/chat/domain"
	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
	"github.com/AlibekovAA/chat-presence-hub/internal/common/jwtverify"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestValidateMapsClaims(t *testing.T) {
	userID := uuid.New()
	token, err := jwtverify.NewIssuer(secret, time.Hour, nil).IssueAccessToken(jwtverify.Claims{
		UserID: userID,
		Name:   "Alice",
		Email:  "alice@example.com",
	})
	require.NoError(t, err)

	auth := NewJWTAuthenticator(jwtverify.NewVerifier(secret), nil)
	identity, err := auth.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.ID)
	assert.Equal(t, "Alice", identity.Name)
	assert.Equal(t, "alice@example.com", identity.Email)
}

func TestValidateRejectsBadCredentials(t *testing.T) {
	auth := NewJWTAuthenticator(jwtverify.NewVerifier(secret), nil)

	_, err := auth.Validate(context.Background(), "")
	assert.True(t, errors.Is(err, commonerrors.ErrMissingCredential))

	token, err := jwtverify.NewIssuer("ffffffffffffffffffffffffffffffff", time.Hour, nil).IssueAccessToken(jwtverify.Claims{UserID: uuid.New()})
	require.NoError(t, err)
	_, err = auth.Validate(context.Background(), token)
	assert.True(t, commonerrors.IsAuthError(err))
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

func TestValidateConsultsRevocationList(t *testing.T) {
	issuer := jwtverify.NewIssuer(secret, time.Hour, nil)
	user := uuid.New()

	revokedToken, err := issuer.IssueAccessToken(jwtverify.Claims{UserID: user, JTI: "revoked-jti"})
	require.NoError(t, err)
	liveToken, err := issuer.IssueAccessToken(jwtverify.Claims{UserID: user, JTI: "live-jti"})
	require.NoError(t, err)

	list := &fakeRevocations{revoked: map[string]bool{"revoked-jti": true}}
	auth := NewJWTAuthenticator(jwtverify.NewVerifier(secret), list)

	_, err = auth.Validate(context.Background(), revokedToken)
	assert.True(t, errors.Is(err, commonerrors.ErrTokenRevoked))

	identity, err := auth.Validate(context.Background(), liveToken)
	require.NoError(t, err)
	assert.Equal(t, user, identity.ID)

	list.err = errors.New("db down")
	_, err = auth.Validate(context.Background(), liveToken)
	assert.True(t, commonerrors.IsAuthError(err))
}

type blockingRevocations struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	b.ctxErr <- ctx.Err()
	return false, nil
}

func TestRevocationLookupOutlivesCancelledCaller(t *testing.T) {
	issuer := jwtverify.NewIssuer(secret, time.Hour, nil)
	user := uuid.New()
	token, err := issuer.IssueAccessToken(jwtverify.Claims{UserID: user, JTI: "shared-jti"})
	require.NoError(t, err)

	list := &blockingRevocations{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 2),
	}
	auth := NewJWTAuthenticator(jwtverify.NewVerifier(secret), list)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := auth.Validate(firstCtx, token)
		firstErr <- err
	}()
	<-list.started

	type result struct {
		identity domain.UserIdentity
		err      error
	}
	second := make(chan result, 1)
	go func() {
		identity, err := auth.Validate(context.Background(), token)
		second <- result{identity: identity, err: err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared lookup")
	}

	close(list.release)
	assert.NoError(t, <-list.ctxErr)

	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, user, res.identity.ID)
	case <-time.After(time.Second):
		t.Fatal("second caller never returned")
	}
}
