package tokenstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevoke(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	ok, err := m.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Revoke(ctx, "abc", now.Add(time.Hour)))
	ok, err = m.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	ok, err = m.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok, "revocation should lapse once the token has expired")
}

func TestMemoryIgnoresEmptyID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Revoke(ctx, "", time.Time{}))
	ok, err := m.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryPrunesExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Revoke(ctx, "old", now.Add(time.Minute)))
	now = now.Add(time.Hour)
	require.NoError(t, m.Revoke(ctx, "new", now.Add(time.Minute)))

	m.mu.RLock()
	defer m.mu.RUnlock()
	assert.Len(t, m.revoked, 1)
}

func TestOpenWithoutURLIsMemory(t *testing.T) {
	s, err := Open(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
}

func TestRedisRevoke(t *testing.T) {
	url := os.Getenv("AAROGYA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("AAROGYA_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, url)
	require.NoError(t, err)
	defer r.Close()

	jti := uuid.NewString()
	ok, err := r.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Revoke(ctx, jti, time.Now().Add(time.Minute)))
	ok, err = r.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, ok)

	// already expired tokens need no entry
	stale := uuid.NewString()
	require.NoError(t, r.Revoke(ctx, stale, time.Now().Add(-time.Minute)))
	ok, err = r.IsRevoked(ctx, stale)
	require.NoError(t, err)
	assert.False(t, ok)
}
