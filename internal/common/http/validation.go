package http

import (
	"github.com/google/uuid"

	commonerrors "github.com/AlibekovAA/chat-presence-hub/internal/common/errors"
)

func ParseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, commonerrors.ErrEmptyUUID
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, commonerrors.ErrInvalidUUID.WithCause(err)
	}
	return id, nil
}
