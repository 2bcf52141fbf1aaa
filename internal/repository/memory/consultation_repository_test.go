package memory

import (
	"testing"

	"ai-consult-copilot/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsultationRepository(t *testing.T) {
	repo := NewConsultationRepository()
	first := store.NewConsultation("p1", "doc", uuid.New(), nil)
	second := store.NewConsultation("p1", "doc", uuid.New(), nil)

	require.NoError(t, repo.Add(first))
	assert.ErrorIs(t, repo.Add(second), ErrAlreadyRegistered)

	got, ok := repo.Get("p1")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Len(t, repo.List(), 1)

	repo.Remove(second)
	_, ok = repo.Get("p1")
	assert.True(t, ok, "removing a different consultation is a no-op")

	repo.Remove(first)
	_, ok = repo.Get("p1")
	assert.False(t, ok)
	require.NoError(t, repo.Add(second))
}
