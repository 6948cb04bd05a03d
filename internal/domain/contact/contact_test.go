package contact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/rescueme/internal/storage"
	"github.com/danghamo/rescueme/pkg/logger"
)

func TestNew(t *testing.T) {
	c, err := New(" Ayşe ", "+90 555-111 22 33", "Sister")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Ayşe", c.Name)
	assert.Equal(t, "+905551112233", c.PhoneNumber)

	other, err := New("Ayşe", "+905551112233", "Sister")
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, other.ID)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New("", "123", "")
	assert.Error(t, err)

	_, err = New("Ali", "call me", "")
	assert.Error(t, err)

	_, err = New("Ali", "+", "")
	assert.Error(t, err)

	_, err = New("Ali", "12+3", "")
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s := NewStore(ctx, backend, logger.NewNop())

	contacts := []EmergencyContact{
		{ID: "c1", Name: "Ayşe", PhoneNumber: "+905551112233", Relationship: "Sister"},
		{ID: "c2", Name: "Mehmet", PhoneNumber: "+905554445566", Relationship: "Friend"},
	}
	for _, c := range contacts {
		require.True(t, s.Add(ctx, c))
	}

	assert.Equal(t, contacts, NewStore(ctx, backend, logger.NewNop()).List())
}

func TestStore_CorruptBlob(t *testing.T) {
	backend := storage.NewMemoryBackend()
	backend.Corrupt(storage.KeyContacts, "not-json")

	s := NewStore(context.Background(), backend, logger.NewNop())
	assert.Empty(t, s.List())
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, storage.NewMemoryBackend(), logger.NewNop())
	require.True(t, s.Add(ctx, EmergencyContact{ID: "a"}))
	require.True(t, s.Add(ctx, EmergencyContact{ID: "b"}))

	require.True(t, s.Remove(ctx, "a"))
	require.Len(t, s.List(), 1)
	assert.Equal(t, "b", s.List()[0].ID)
}
