package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	defer m.Close()

	_, err := m.Get(ctx, "doctor:1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "doctor:1", []byte(`{"id":1}`), time.Minute))
	got, err := m.Get(ctx, "doctor:1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(got))

	require.NoError(t, m.Delete(ctx, "doctor:1", "doctor:2"))
	_, err = m.Get(ctx, "doctor:1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	defer m.Close()

	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("v"), 0))

	now = now.Add(2 * time.Minute)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	_, err = m.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemory_EvictExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	defer m.Close()

	now := time.Now()
	m.now = func() time.Time { return now }
	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Hour))

	now = now.Add(time.Minute)
	m.evictExpired()
	assert.Equal(t, 1, m.Len())
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	defer m.Close()

	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemory_CloseIdempotent(t *testing.T) {
	m := NewMemory(time.Millisecond)
	m.Close()
	assert.NotPanics(t, m.Close)
}
