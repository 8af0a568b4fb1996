package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/chat-presence-hub/internal/common/db"
)

const revokedTokensTable = "revoked_tokens"

type querier interface {
	execer
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// RevokedTokens is the deny list of access tokens that were revoked before expiry.
type RevokedTokens struct {
	conn querier
}

func NewRevokedTokens(conn querier) *RevokedTokens {
	return &RevokedTokens{conn: conn}
}

func (r *RevokedTokens) Revoke(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	start := time.Now()
	_, err := r.conn.Exec(
		ctx,
		`INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (jti) DO NOTHING`,
		jti,
		userID,
		expiresAt,
	)
	return db.HandleExecError(err, "revoke token", revokedTokensTable, start)
}

func (r *RevokedTokens) IsRevoked(ctx context.Context, jti string) (bool, error) {
	start := time.Now()
	row := r.conn.QueryRow(
		ctx,
		`SELECT EXISTS(
			SELECT 1 FROM revoked_tokens
			WHERE jti = $1 AND expires_at > NOW()
		)`,
		jti,
	)

	var exists bool
	err := row.Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
	}
	if err := db.HandleExecError(err, "check revoked token", revokedTokensTable, start); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *RevokedTokens) DeleteExpired(ctx context.Context) (int64, error) {
	start := time.Now()
	tag, err := r.conn.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < NOW()`)
	if err := db.HandleExecError(err, "delete expired revoked tokens", revokedTokensTable, start); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
