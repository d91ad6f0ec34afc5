package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevocationStore_RevokeAndCheck(t *testing.T) {
	store := NewMemoryRevocationStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked(ctx, "jti-unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRevocationStore_ExpiredEntriesIgnoredAndCleaned(t *testing.T) {
	store := NewMemoryRevocationStore()
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Revoke(ctx, "old", now.Add(-time.Second)))
	require.NoError(t, store.Revoke(ctx, "fresh", now.Add(time.Minute)))

	revoked, _ := store.IsRevoked(ctx, "old")
	assert.False(t, revoked)

	store.cleanup()
	assert.Equal(t, 1, store.Len())
}

func TestMemoryRevocationStore_CloseTwice(t *testing.T) {
	store := NewMemoryRevocationStore()
	store.Close()
	store.Close()
}

func TestMemoryRevocationStore_Concurrent(t *testing.T) {
	store := NewMemoryRevocationStore()
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jti := string(rune('a' + i%26))
			_ = store.Revoke(ctx, jti, time.Now().Add(time.Hour))
			_, _ = store.IsRevoked(ctx, jti)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, store.Len())
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	ok, err := CheckPassword(hash, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong horse")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = HashPassword("short")
	assert.Error(t, err)
}
