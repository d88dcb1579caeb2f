package resource

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_CommitMovesIntoHandle(t *testing.T) {
	rec := &recorder{}
	h := NewHandle()
	require.NoError(t, h.RegisterFunc("base", rec.fn("base", nil)))

	s := h.Begin("local")
	require.NoError(t, s.RegisterFunc("client", rec.fn("local/client", nil)))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, h.Len(), "scope entries are not visible before commit")

	require.NoError(t, s.Commit())
	assert.Equal(t, []string{"base", "local/client"}, h.Names())

	require.NoError(t, h.Close())
	assert.Equal(t, []string{"local/client", "base"}, rec.closed)
}

func TestScope_RollbackClosesOnlyScope(t *testing.T) {
	rec := &recorder{}
	h := NewHandle()
	require.NoError(t, h.RegisterFunc("kept", rec.fn("kept", nil)))

	s := h.Begin("remote")
	require.NoError(t, s.RegisterFunc("stream", rec.fn("remote/stream", nil)))
	require.NoError(t, s.RegisterFunc("session", rec.fn("remote/session", nil)))

	require.NoError(t, s.Rollback())
	assert.Equal(t, []string{"remote/session", "remote/stream"}, rec.closed)
	assert.Equal(t, 1, h.Len())
	assert.False(t, h.Closed())
}

func TestScope_FinishedScope(t *testing.T) {
	rec := &recorder{}
	h := NewHandle()
	s := h.Begin("x")
	require.NoError(t, s.Commit())

	assert.ErrorIs(t, s.Commit(), ErrScopeDone)
	assert.NoError(t, s.Rollback())

	err := s.RegisterFunc("late", rec.fn("late", nil))
	assert.ErrorIs(t, err, ErrScopeDone)
	assert.Equal(t, []string{"late"}, rec.closed)
}

func TestScope_CommitIntoClosedHandle(t *testing.T) {
	rec := &recorder{}
	h := NewHandle()
	s := h.Begin("x")
	require.NoError(t, s.RegisterFunc("c", rec.fn("x/c", errors.New("ignored"))))
	require.NoError(t, h.Close())

	err := s.Commit()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, []string{"x/c"}, rec.closed)
}
