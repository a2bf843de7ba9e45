package dedupstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagerou7/dedupq/cache"
	"github.com/kagerou7/dedupq/logger"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	log, err := logger.NewLogger(logger.DefaultConfig())
	require.NoError(t, err)
	c, err := cache.NewMemoryCache(cache.NewMemoryConfig(), log)
	require.NoError(t, err)
	return New(c, "orders")
}

func TestSetGet(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "m1", SubStatus)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "m1", SubStatus, StatusIncomplete))
	v, err := c.Get(ctx, "m1", SubStatus)
	require.NoError(t, err)
	assert.Equal(t, StatusIncomplete, v)
}

func TestSetNX(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "m1", SubMutex, "worker-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "m1", SubMutex, "worker-b")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := c.Get(ctx, "m1", SubMutex)
	require.NoError(t, err)
	assert.Equal(t, "worker-a", v)
}

func TestMSetNX_FirstSighting(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	subs := map[string]string{
		SubStatus:  StatusIncomplete,
		SubExpires: "1000",
		SubTimeout: "2000",
	}

	ok, err := c.MSetNX(ctx, "m1", subs)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second worker racing to claim the same message must lose.
	ok, err = c.MSetNX(ctx, "m1", map[string]string{SubStatus: StatusIncomplete})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncr(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	n, err := c.Incr(ctx, "m1", SubAttempts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Incr(ctx, "m1", SubAttempts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDelAndExists(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "m1", SubStatus, StatusIncomplete))
	ok, err := c.Exists(ctx, "m1", SubStatus)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Del(ctx, "m1", SubStatus))
	ok, err = c.Exists(ctx, "m1", SubStatus)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeysAndDelKeys(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "m1", SubStatus, StatusIncomplete))
	require.NoError(t, c.Set(ctx, "m1", SubExpires, "1000"))
	require.NoError(t, c.Set(ctx, "m2", SubStatus, StatusIncomplete))

	subs, err := c.Keys(ctx, "m1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{SubStatus, SubExpires}, subs)

	require.NoError(t, c.DelKeys(ctx, "m1"))
	subs, err = c.Keys(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, subs)

	// m2's keys must survive m1's cleanup.
	subs, err = c.Keys(ctx, "m2")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestMsgIDFromKey(t *testing.T) {
	queue, msgID, ok := MsgIDFromKey("msgid:orders:abc-123:expires")
	require.True(t, ok)
	assert.Equal(t, "orders", queue)
	assert.Equal(t, "abc-123", msgID)

	_, _, ok = MsgIDFromKey("not-a-msgid-key")
	assert.False(t, ok)
}

func TestGarbageCollect_PurgesExpiredMessages(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	require.NoError(t, c.Set(ctx, "old", SubExpires, FormatUnixSeconds(past)))
	require.NoError(t, c.Set(ctx, "old", SubStatus, StatusCompleted))
	require.NoError(t, c.Set(ctx, "fresh", SubExpires, FormatUnixSeconds(future)))

	purged, err := c.GarbageCollect(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	subs, err := c.Keys(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, subs)

	subs, err = c.Keys(ctx, "fresh")
	require.NoError(t, err)
	assert.NotEmpty(t, subs)
}

func TestWithSampleRate_ZeroIsIgnored(t *testing.T) {
	c := newTestClient(t)
	WithSampleRate(0.0)(c) // invalid rate, option is a no-op and leaves 1.0
	assert.Equal(t, 1.0, c.sampleRate)
}

func TestQueue(t *testing.T) {
	c := newTestClient(t)
	assert.Equal(t, "orders", c.Queue())
}
