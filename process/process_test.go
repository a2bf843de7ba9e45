package process

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagerou7/dedupq/cache"
	"github.com/kagerou7/dedupq/dedupstore"
	"github.com/kagerou7/dedupq/envelope"
	"github.com/kagerou7/dedupq/handler"
	"github.com/kagerou7/dedupq/logger"
	"github.com/kagerou7/dedupq/message"
	"github.com/kagerou7/dedupq/resultcode"
)

// fakeDelivery 是一个最小的 broker.Delivery 假实现，记录 Ack/Reject
// 各被调用了几次.
type fakeDelivery struct {
	mu       sync.Mutex
	queue    string
	msgID    string
	acked    int
	rejected int
	requeued bool
}

func (d *fakeDelivery) Queue() string             { return d.queue }
func (d *fakeDelivery) MessageID() string         { return d.msgID }
func (d *fakeDelivery) Body() []byte              { return nil }
func (d *fakeDelivery) Headers() map[string]any   { return nil }

func (d *fakeDelivery) Ack() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acked++
	return nil
}

func (d *fakeDelivery) Reject(requeue bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rejected++
	d.requeued = requeue
	return nil
}

func (d *fakeDelivery) ackCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acked
}

// fakeHandler 是一个可配置的 handler.Handler：Calls 记录调用次数，
// failUntil 之前的调用返回 wantErr，之后返回 nil.
type fakeHandler struct {
	handler.Base

	mu          sync.Mutex
	calls       int
	failUntil   int
	wantErr     error
	sleep       time.Duration
	exceptions  int
	failures    int
	lastFailure error
}

func (h *fakeHandler) Call(ctx context.Context, payload []byte) error {
	h.mu.Lock()
	h.calls++
	n := h.calls
	h.mu.Unlock()

	if h.sleep > 0 {
		select {
		case <-time.After(h.sleep):
		case <-ctx.Done():
		}
	}

	if n <= h.failUntil {
		return h.wantErr
	}
	return nil
}

func (h *fakeHandler) OnException(ctx context.Context, payload []byte, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exceptions++
}

func (h *fakeHandler) OnFailure(ctx context.Context, payload []byte, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures++
	h.lastFailure = err
}

func newTestContext(t *testing.T, now time.Time) (*Context, *dedupstore.Client) {
	t.Helper()
	log, err := logger.NewLogger(logger.DefaultConfig())
	require.NoError(t, err)
	c, err := cache.NewMemoryCache(cache.NewMemoryConfig(), log)
	require.NoError(t, err)

	store := dedupstore.New(c, "orders")
	pctx := &Context{
		Store:  store,
		Clock:  func() time.Time { return now },
		Logger: log,
	}
	return pctx, store
}

func newState(msgID string, redundant bool, policy message.Policy, delivery *fakeDelivery, expiresAt time.Time) *message.State {
	policy.Normalize()
	return &message.State{
		Envelope: envelope.Envelope{
			MessageID:     msgID,
			FormatVersion: envelope.FormatVersion,
			Redundant:     redundant,
			ExpiresAt:     expiresAt,
		},
		Policy:   policy,
		Payload:  []byte("payload"),
		Delivery: delivery,
	}
}

func TestProcess_DecodingError(t *testing.T) {
	now := time.Now()
	pctx, _ := newTestContext(t, now)
	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	state := newState("m1", false, message.Policy{AttemptsLimit: 2, ExceptionsLimit: 1}, d, now.Add(time.Hour))
	state.DecodeErr = errors.New("boom")

	h := &fakeHandler{}
	code := Process(context.Background(), pctx, state, h)

	assert.Equal(t, resultcode.DecodingError, code)
	assert.Equal(t, 1, d.ackCount())
	assert.Equal(t, 0, h.calls)
}

func TestProcess_Ancient(t *testing.T) {
	now := time.Now()
	pctx, _ := newTestContext(t, now)
	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	state := newState("m1", false, message.Policy{AttemptsLimit: 2, ExceptionsLimit: 1}, d, now.Add(-time.Hour))

	h := &fakeHandler{}
	code := Process(context.Background(), pctx, state, h)

	assert.Equal(t, resultcode.Ancient, code)
	assert.Equal(t, 1, d.ackCount())
	assert.Equal(t, 0, h.calls)
}

// Scenario 1 (spec-style): fresh non-redundant message, AttemptsLimit=1,
// handler succeeds on the simple fast path — store stays untouched.
func TestProcess_Scenario1_SimpleFastPathSuccess(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	state := newState("m1", false, message.Policy{AttemptsLimit: 1}, d, now.Add(time.Hour))

	h := &fakeHandler{}
	code := Process(context.Background(), pctx, state, h)

	assert.Equal(t, resultcode.OK, code)
	assert.Equal(t, 1, d.ackCount())
	assert.Equal(t, 1, h.calls)

	keys, err := store.Keys(context.Background(), "m1")
	require.NoError(t, err)
	assert.Empty(t, keys, "simple fast path must never touch the dedup store")
}

// Scenario 2: redundant double delivery, success on the first processing —
// first delivery completes and acks (ack_count=1), second delivery sees
// status=completed, acks again (ack_count=2), which purges the store.
func TestProcess_Scenario2_RedundantDoubleDeliverySuccess(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	d1 := &fakeDelivery{queue: "orders", msgID: "m1"}
	state1 := newState("m1", true, message.Policy{AttemptsLimit: 2, ExceptionsLimit: 1}, d1, now.Add(time.Hour))
	h := &fakeHandler{}

	code1 := Process(ctx, pctx, state1, h)
	assert.Equal(t, resultcode.OK, code1)
	assert.Equal(t, 1, d1.ackCount())

	status, err := store.Get(ctx, "m1", dedupstore.SubStatus)
	require.NoError(t, err)
	assert.Equal(t, dedupstore.StatusCompleted, status)

	ackCount, err := store.Get(ctx, "m1", dedupstore.SubAckCount)
	require.NoError(t, err)
	assert.Equal(t, "1", ackCount)

	d2 := &fakeDelivery{queue: "orders", msgID: "m1"}
	state2 := newState("m1", true, message.Policy{AttemptsLimit: 2, ExceptionsLimit: 1}, d2, now.Add(time.Hour))

	code2 := Process(ctx, pctx, state2, h)
	assert.Equal(t, resultcode.OK, code2)
	assert.Equal(t, 1, d2.ackCount())
	assert.Equal(t, 1, h.calls, "handler must run exactly once across both deliveries")

	keys, err := store.Keys(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, keys, "second ack must purge the dedup store")
}

// Scenario 3: handler crash while still under budget — not acked,
// attempts=1, exceptions=1, delay set, mutex absent, timeout cleared.
func TestProcess_Scenario3_HandlerCrashUnderBudget(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	policy := message.Policy{
		Timeout:         10 * time.Second,
		Delay:           10 * time.Second,
		AttemptsLimit:   3,
		ExceptionsLimit: 2,
	}
	state := newState("m1", true, policy, d, now.Add(time.Hour))

	h := &fakeHandler{failUntil: 1, wantErr: errors.New("boom")}
	code := Process(ctx, pctx, state, h)

	assert.Equal(t, resultcode.HandlerCrash, code)
	assert.Equal(t, 0, d.ackCount())
	assert.Equal(t, 1, h.exceptions)
	assert.Equal(t, 0, h.failures)

	attempts, err := store.Get(ctx, "m1", dedupstore.SubAttempts)
	require.NoError(t, err)
	assert.Equal(t, "1", attempts)

	exceptions, err := store.Get(ctx, "m1", dedupstore.SubExceptions)
	require.NoError(t, err)
	assert.Equal(t, "1", exceptions)

	_, err = store.Get(ctx, "m1", dedupstore.SubMutex)
	assert.ErrorIs(t, err, dedupstore.ErrNotFound)

	timeoutVal, err := store.Get(ctx, "m1", dedupstore.SubTimeout)
	require.NoError(t, err)
	assert.Equal(t, "0", timeoutVal)

	delayVal, err := store.Get(ctx, "m1", dedupstore.SubDelay)
	require.NoError(t, err)
	delayAt, err := dedupstore.ParseUnixSeconds(delayVal)
	require.NoError(t, err)
	assert.Equal(t, now.Add(policy.Delay).Unix(), delayAt.Unix())
}

// Scenario 4: non-redundant handler crash that exhausts the attempts budget
// on this very call — acked, OnFailure invoked, store purged.
func TestProcess_Scenario4_HandlerCrashAtAttemptsLimit(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubStatus, dedupstore.StatusIncomplete))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubAttempts, "1"))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubTimeout, dedupstore.FormatUnixSeconds(now.Add(-time.Second))))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubExpires, dedupstore.FormatUnixSeconds(now.Add(time.Hour))))

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	policy := message.Policy{
		Timeout:         10 * time.Second,
		Delay:           10 * time.Second,
		AttemptsLimit:   2,
		ExceptionsLimit: 5,
	}
	state := newState("m1", false, policy, d, now.Add(time.Hour))

	h := &fakeHandler{failUntil: 1, wantErr: errors.New("boom")}
	code := Process(ctx, pctx, state, h)

	assert.Equal(t, resultcode.AttemptsLimitReached, code)
	assert.Equal(t, 1, d.ackCount())
	assert.Equal(t, 1, h.failures)
	assert.Error(t, h.lastFailure)

	keys, err := store.Keys(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// Scenario 5: takeover after the previous consumer died — no mutex held,
// timeout already elapsed — this call seizes it and runs the handler.
func TestProcess_Scenario5_TakeoverAfterTimeout(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubStatus, dedupstore.StatusIncomplete))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubAttempts, "0"))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubTimeout, dedupstore.FormatUnixSeconds(now.Add(-5*time.Second))))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubExpires, dedupstore.FormatUnixSeconds(now.Add(time.Hour))))

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	policy := message.Policy{
		Timeout:         10 * time.Second,
		Delay:           10 * time.Second,
		AttemptsLimit:   2,
		ExceptionsLimit: 1,
	}
	state := newState("m1", true, policy, d, now.Add(time.Hour))

	h := &fakeHandler{}
	code := Process(ctx, pctx, state, h)

	assert.Equal(t, resultcode.OK, code)
	assert.Equal(t, 1, h.calls)

	timeoutVal, err := store.Get(ctx, "m1", dedupstore.SubTimeout)
	require.NoError(t, err)
	assert.Equal(t, "0", timeoutVal)
}

// Scenario 6: concurrent takeover loses the mutex race — setnx fails,
// mutex gets cleaned up, MutexLocked is returned, delivery is not acked.
func TestProcess_Scenario6_ConcurrentTakeoverLosesRace(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubStatus, dedupstore.StatusIncomplete))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubTimeout, dedupstore.FormatUnixSeconds(now.Add(-5*time.Second))))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubExpires, dedupstore.FormatUnixSeconds(now.Add(time.Hour))))
	_, err := store.SetNX(ctx, "m1", dedupstore.SubMutex, "other-worker")
	require.NoError(t, err)

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	policy := message.Policy{
		Timeout:         10 * time.Second,
		Delay:           10 * time.Second,
		AttemptsLimit:   2,
		ExceptionsLimit: 1,
	}
	state := newState("m1", true, policy, d, now.Add(time.Hour))

	h := &fakeHandler{}
	code := Process(ctx, pctx, state, h)

	assert.Equal(t, resultcode.MutexLocked, code)
	assert.Equal(t, 0, d.ackCount())
	assert.Equal(t, 0, h.calls)

	_, err = store.Get(ctx, "m1", dedupstore.SubMutex)
	assert.ErrorIs(t, err, dedupstore.ErrNotFound, "losing setnx must clean the mutex it raced on")
}

func TestProcess_Delayed(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubStatus, dedupstore.StatusIncomplete))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubDelay, dedupstore.FormatUnixSeconds(now.Add(5*time.Second))))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubExpires, dedupstore.FormatUnixSeconds(now.Add(time.Hour))))

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	state := newState("m1", true, message.Policy{AttemptsLimit: 2, ExceptionsLimit: 1}, d, now.Add(time.Hour))

	h := &fakeHandler{}
	code := Process(ctx, pctx, state, h)

	assert.Equal(t, resultcode.Delayed, code)
	assert.Equal(t, 0, d.ackCount())
	assert.Equal(t, 0, h.calls)
}

func TestProcess_HandlerNotYetTimedOut(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubStatus, dedupstore.StatusIncomplete))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubTimeout, dedupstore.FormatUnixSeconds(now.Add(5*time.Second))))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubExpires, dedupstore.FormatUnixSeconds(now.Add(time.Hour))))

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	state := newState("m1", true, message.Policy{AttemptsLimit: 2, ExceptionsLimit: 1}, d, now.Add(time.Hour))

	h := &fakeHandler{}
	code := Process(ctx, pctx, state, h)

	assert.Equal(t, resultcode.HandlerNotYetTimedOut, code)
	assert.Equal(t, 0, d.ackCount())
	assert.Equal(t, 0, h.calls)
}

// TestProcess_HandlerNotYetTimedOut_ExactTie 钉住 §8.3 的边界："timeout ==
// now" 不算超时（严格小于才算）. 之前这里是 timeoutAt > now.Unix()，在
// 相等时会误判为"早已挂掉"并走到抢占分支；这里用恰好等于 now 的
// timeout 值验证判定树仍然返回 HandlerNotYetTimedOut，并且没有发生任何
// 抢占（mutex 未被写入，attempts 未被自增）.
func TestProcess_HandlerNotYetTimedOut_ExactTie(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubStatus, dedupstore.StatusIncomplete))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubTimeout, dedupstore.FormatUnixSeconds(now)))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubExpires, dedupstore.FormatUnixSeconds(now.Add(time.Hour))))

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	state := newState("m1", true, message.Policy{AttemptsLimit: 2, ExceptionsLimit: 1}, d, now.Add(time.Hour))

	h := &fakeHandler{}
	code := Process(ctx, pctx, state, h)

	assert.Equal(t, resultcode.HandlerNotYetTimedOut, code)
	assert.Equal(t, 0, d.ackCount())
	assert.Equal(t, 0, h.calls)

	mutexExists, err := store.Exists(ctx, "m1", dedupstore.SubMutex)
	require.NoError(t, err)
	assert.False(t, mutexExists, "tie at timeout==now must not trigger a takeover/mutex write")

	_, err = store.Get(ctx, "m1", dedupstore.SubAttempts)
	assert.ErrorIs(t, err, dedupstore.ErrNotFound, "tie at timeout==now must not increment attempts")
}

func TestProcess_ExceptionsLimitReached(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubStatus, dedupstore.StatusIncomplete))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubAttempts, "0"))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubExceptions, "2"))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubTimeout, dedupstore.FormatUnixSeconds(now.Add(-time.Second))))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubExpires, dedupstore.FormatUnixSeconds(now.Add(time.Hour))))

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	policy := message.Policy{AttemptsLimit: 5, ExceptionsLimit: 1}
	state := newState("m1", true, policy, d, now.Add(time.Hour))

	h := &fakeHandler{}
	code := Process(ctx, pctx, state, h)

	assert.Equal(t, resultcode.ExceptionsLimitReached, code)
	assert.Equal(t, 1, d.ackCount())
	assert.Equal(t, 1, h.failures)
}

// Tie-break boundary: exceptions_limit_reached requires a strict >, so
// exceptions == limit must still allow a takeover attempt.
func TestProcess_ExceptionsEqualToLimitDoesNotTripBoundary(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubStatus, dedupstore.StatusIncomplete))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubAttempts, "0"))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubExceptions, "1"))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubTimeout, dedupstore.FormatUnixSeconds(now.Add(-time.Second))))
	require.NoError(t, store.Set(ctx, "m1", dedupstore.SubExpires, dedupstore.FormatUnixSeconds(now.Add(time.Hour))))

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	policy := message.Policy{AttemptsLimit: 5, ExceptionsLimit: 1}
	state := newState("m1", true, policy, d, now.Add(time.Hour))

	h := &fakeHandler{}
	code := Process(ctx, pctx, state, h)

	assert.Equal(t, resultcode.OK, code)
	assert.Equal(t, 1, h.calls)
}

func TestProcess_HandlerPanicOnSimplePathIsAttemptsLimitReached(t *testing.T) {
	now := time.Now()
	pctx, _ := newTestContext(t, now)
	ctx := context.Background()

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	state := newState("m1", false, message.Policy{AttemptsLimit: 1}, d, now.Add(time.Hour))

	panicHandler := handler.Func(func(ctx context.Context, payload []byte) error {
		panic("boom")
	})

	reraise := handler.ReraiseTestFailures
	handler.ReraiseTestFailures = false
	defer func() { handler.ReraiseTestFailures = reraise }()

	code := Process(ctx, pctx, state, panicHandler)
	assert.Equal(t, resultcode.AttemptsLimitReached, code, "a panicking Call on the simple fast path is just a failed attempt")
}

func TestProcess_TimeoutCountsAsHandlerCrash(t *testing.T) {
	now := time.Now()
	pctx, store := newTestContext(t, now)
	ctx := context.Background()

	d := &fakeDelivery{queue: "orders", msgID: "m1"}
	policy := message.Policy{
		Timeout:         20 * time.Millisecond,
		Delay:           time.Second,
		AttemptsLimit:   3,
		ExceptionsLimit: 2,
	}
	state := newState("m1", true, policy, d, now.Add(time.Hour))

	h := &fakeHandler{sleep: time.Hour}
	code := Process(ctx, pctx, state, h)

	assert.Equal(t, resultcode.HandlerCrash, code)
	assert.Equal(t, 0, d.ackCount())

	exceptions, err := store.Get(ctx, "m1", dedupstore.SubExceptions)
	require.NoError(t, err)
	assert.Equal(t, "1", exceptions)
}
