package websocket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegistryAddAndRemove(t *testing.T) {
	r := NewConnectionRegistry()
	user := uuid.New()
	c1, c2 := newFakeConn(), newFakeConn()

	assert.True(t, r.Add(user, c1))
	assert.False(t, r.Add(user, c2))
	assert.False(t, r.Add(user, c2), "duplicate handle is ignored")
	assert.Equal(t, 2, r.Connections())
	assert.Equal(t, []Connection{c1, c2}, r.ConnectionsOf(user))

	assert.False(t, r.Remove(user, c1))
	assert.True(t, r.IsOnline(user))
	assert.True(t, r.Remove(user, c2))
	assert.False(t, r.IsOnline(user))
	assert.Empty(t, r.Users())
	assert.Equal(t, 0, r.Connections())
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	r := NewConnectionRegistry()
	user := uuid.New()
	c1 := newFakeConn()

	assert.False(t, r.Remove(user, c1))

	r.Add(user, c1)
	assert.False(t, r.Remove(user, newFakeConn()))
	assert.True(t, r.Contains(user, c1))
	assert.Equal(t, 1, r.Connections())
}

func TestRegistryConnectionsOfReturnsCopy(t *testing.T) {
	r := NewConnectionRegistry()
	user := uuid.New()
	r.Add(user, newFakeConn())

	snapshot := r.ConnectionsOf(user)
	snapshot[0] = nil

	assert.NotNil(t, r.ConnectionsOf(user)[0])
	assert.Empty(t, r.ConnectionsOf(uuid.New()))
}
