package domain

import (
	"context"

	"github.com/google/uuid"
)

type UserID = uuid.UUID

// UserIdentity is the verified identity behind a connection.
type UserIdentity struct {
	ID    UserID
	Name  string
	Email string
}

// Authenticator turns an opaque credential into a UserIdentity.
// Failures must be auth-category domain errors.
type Authenticator interface {
	Validate(ctx context.Context, credential string) (UserIdentity, error)
}
