package process

import (
	"context"
	"errors"
	"strconv"

	"github.com/kagerou7/dedupq/dedupstore"
	"github.com/kagerou7/dedupq/handler"
	"github.com/kagerou7/dedupq/message"
	"github.com/kagerou7/dedupq/recovery"
	"github.com/kagerou7/dedupq/resultcode"
)

// Process 是处理状态机的唯一入口. 它从不向调用方抛出 panic——任何内部
// 错误都被转换成 resultcode.InternalError 并记录日志. 需要确认时
// Process 自己调用 state.Delivery.Ack；Code.Reject() 为 true 的结果既
// 不 Ack 也不调用 Delivery.Reject，这次投递留给 broker 重投.
func Process(ctx context.Context, pctx *Context, state *message.State, h handler.Handler) resultcode.Code {
	var code resultcode.Code

	panicErr := recovery.Guard(func() {
		code = run(ctx, pctx, state, h)
	})

	if panicErr != nil {
		pctx.logError("[process] 内部 panic: %v\n%s", panicErr.Value, panicErr.Stack)
		code = resultcode.InternalError
	}

	if code.Failure() {
		invokeOnFailure(ctx, h, state, code)
	}

	pctx.recordMetrics(state, code)

	return code
}

// run 实现 §4.3 的十步判定树（first-match-wins）.
func run(ctx context.Context, pctx *Context, state *message.State, h handler.Handler) resultcode.Code {
	now := pctx.now()

	// 1. DecodingError
	if state.DecodeErr != nil {
		ack(ctx, pctx, state)
		return resultcode.DecodingError
	}

	// 2. Ancient
	if state.Ancient(now) {
		ack(ctx, pctx, state)
		return resultcode.Ancient
	}

	// 3. Simple fast path
	if state.Simple() {
		ack(ctx, pctx, state)
		return runSimple(ctx, pctx, state, h)
	}

	store := pctx.Store
	msgID := state.Envelope.MessageID

	// 4. First sighting
	sighted, err := store.MSetNX(ctx, msgID, map[string]string{
		dedupstore.SubStatus:  dedupstore.StatusIncomplete,
		dedupstore.SubExpires: dedupstore.FormatUnixSeconds(state.Envelope.ExpiresAt),
		dedupstore.SubTimeout: dedupstore.FormatUnixSeconds(now.Add(state.Policy.Timeout)),
	})
	if err != nil {
		pctx.logError("[process] msetnx 失败: msg_id=%s, err=%v", msgID, err)
		return resultcode.InternalError
	}
	if sighted {
		return runAndRecord(ctx, pctx, state, h)
	}

	// 5. Completed
	status, err := store.Get(ctx, msgID, dedupstore.SubStatus)
	if err != nil && !errors.Is(err, dedupstore.ErrNotFound) {
		pctx.logError("[process] get status 失败: msg_id=%s, err=%v", msgID, err)
		return resultcode.InternalError
	}
	if status == dedupstore.StatusCompleted {
		ack(ctx, pctx, state)
		return resultcode.OK
	}

	// 6. Delayed
	delayRaw, err := store.Get(ctx, msgID, dedupstore.SubDelay)
	if err != nil && !errors.Is(err, dedupstore.ErrNotFound) {
		pctx.logError("[process] get delay 失败: msg_id=%s, err=%v", msgID, err)
		return resultcode.InternalError
	}
	if delayRaw != "" {
		delayAt, perr := dedupstore.ParseUnixSeconds(delayRaw)
		if perr == nil && delayAt.After(now) {
			return resultcode.Delayed
		}
	}

	// 7. Handler not yet timed out
	timeoutRaw, err := store.Get(ctx, msgID, dedupstore.SubTimeout)
	if err != nil && !errors.Is(err, dedupstore.ErrNotFound) {
		pctx.logError("[process] get timeout 失败: msg_id=%s, err=%v", msgID, err)
		return resultcode.InternalError
	}
	var timeoutAt int64
	if timeoutRaw != "" {
		t, perr := dedupstore.ParseUnixSeconds(timeoutRaw)
		if perr == nil {
			timeoutAt = t.Unix()
		}
	}
	if timeoutAt >= now.Unix() {
		return resultcode.HandlerNotYetTimedOut
	}

	attempts, err := attemptsCount(ctx, store, msgID)
	if err != nil {
		pctx.logError("[process] get attempts 失败: msg_id=%s, err=%v", msgID, err)
		return resultcode.InternalError
	}

	// 8. Attempts limit reached
	if attempts >= int64(state.Policy.AttemptsLimit) {
		ack(ctx, pctx, state)
		return resultcode.AttemptsLimitReached
	}

	exceptions, err := exceptionsCount(ctx, store, msgID)
	if err != nil {
		pctx.logError("[process] get exceptions 失败: msg_id=%s, err=%v", msgID, err)
		return resultcode.InternalError
	}

	// 9. Exceptions limit reached
	if exceptions > int64(state.Policy.ExceptionsLimit) {
		ack(ctx, pctx, state)
		return resultcode.ExceptionsLimitReached
	}

	// 10. Takeover
	if err := store.Set(ctx, msgID, dedupstore.SubTimeout, dedupstore.FormatUnixSeconds(now.Add(state.Policy.Timeout))); err != nil {
		pctx.logError("[process] 重置 timeout 失败: msg_id=%s, err=%v", msgID, err)
		return resultcode.InternalError
	}

	acquired, err := store.SetNX(ctx, msgID, dedupstore.SubMutex, dedupstore.FormatUnixSeconds(now))
	if err != nil {
		pctx.logError("[process] setnx mutex 失败: msg_id=%s, err=%v", msgID, err)
		return resultcode.InternalError
	}
	if acquired {
		return runAndRecord(ctx, pctx, state, h)
	}

	// 保守清理：setnx 失败时删除 mutex. 见 DESIGN.md 中关于该取舍的讨论.
	if err := store.Del(ctx, msgID, dedupstore.SubMutex); err != nil {
		pctx.logError("[process] 删除 mutex 失败: msg_id=%s, err=%v", msgID, err)
	}
	return resultcode.MutexLocked
}

// runSimple 处理非冗余、attempts_limit=1 的快速路径：不访问存储.
func runSimple(ctx context.Context, pctx *Context, state *message.State, h handler.Handler) resultcode.Code {
	adapter := handler.New(h, pctx.Logger)
	start := pctx.now()
	err := adapter.Invoke(ctx, state.Payload, state.Policy.Timeout)
	elapsed := pctx.now().Sub(start)

	if err == nil {
		pctx.recordHandlerDuration(state, resultcode.OK, elapsed)
		return resultcode.OK
	}

	h.OnException(ctx, state.Payload, err)
	pctx.recordHandlerDuration(state, resultcode.AttemptsLimitReached, elapsed)
	return resultcode.AttemptsLimitReached
}

// runAndRecord 实现 §4.3 的 run-and-record 子流程.
func runAndRecord(ctx context.Context, pctx *Context, state *message.State, h handler.Handler) resultcode.Code {
	store := pctx.Store
	msgID := state.Envelope.MessageID

	attempts, err := store.Incr(ctx, msgID, dedupstore.SubAttempts)
	if err != nil {
		pctx.logError("[process] incr attempts 失败: msg_id=%s, err=%v", msgID, err)
		return resultcode.InternalError
	}

	adapter := handler.New(h, pctx.Logger)
	start := pctx.now()
	callErr := adapter.Invoke(ctx, state.Payload, state.Policy.Timeout)
	elapsed := pctx.now().Sub(start)

	if callErr == nil {
		if err := store.Set(ctx, msgID, dedupstore.SubStatus, dedupstore.StatusCompleted); err != nil {
			pctx.logError("[process] set status completed 失败: msg_id=%s, err=%v", msgID, err)
			return resultcode.InternalError
		}
		if err := store.Set(ctx, msgID, dedupstore.SubTimeout, "0"); err != nil {
			pctx.logError("[process] 清零 timeout 失败: msg_id=%s, err=%v", msgID, err)
			return resultcode.InternalError
		}
		ack(ctx, pctx, state)
		pctx.log("[process] 处理完成: msg_id=%s, attempts=%d", msgID, attempts)
		pctx.recordHandlerDuration(state, resultcode.OK, elapsed)
		return resultcode.OK
	}

	h.OnException(ctx, state.Payload, callErr)

	exceptions, err := store.Incr(ctx, msgID, dedupstore.SubExceptions)
	if err != nil {
		pctx.logError("[process] incr exceptions 失败: msg_id=%s, err=%v", msgID, err)
		return resultcode.InternalError
	}

	if attempts >= int64(state.Policy.AttemptsLimit) {
		ack(ctx, pctx, state)
		pctx.recordHandlerDuration(state, resultcode.AttemptsLimitReached, elapsed)
		return resultcode.AttemptsLimitReached
	}
	if exceptions > int64(state.Policy.ExceptionsLimit) {
		ack(ctx, pctx, state)
		pctx.recordHandlerDuration(state, resultcode.ExceptionsLimitReached, elapsed)
		return resultcode.ExceptionsLimitReached
	}

	now := pctx.now()
	if err := store.Del(ctx, msgID, dedupstore.SubMutex); err != nil {
		pctx.logError("[process] 删除 mutex 失败: msg_id=%s, err=%v", msgID, err)
	}
	if err := store.Set(ctx, msgID, dedupstore.SubTimeout, "0"); err != nil {
		pctx.logError("[process] 清零 timeout 失败: msg_id=%s, err=%v", msgID, err)
	}
	if err := store.Set(ctx, msgID, dedupstore.SubDelay, dedupstore.FormatUnixSeconds(now.Add(state.Policy.Delay))); err != nil {
		pctx.logError("[process] 设置 delay 失败: msg_id=%s, err=%v", msgID, err)
	}

	pctx.recordHandlerDuration(state, resultcode.HandlerCrash, elapsed)
	return resultcode.HandlerCrash
}

// ack 实现 §4.3 的 ack! 策略：始终确认这条 Delivery；简单快速路径
// 不触碰存储，其余情况下只有在非冗余消息，或者冗余消息的第二次确认
// 到达时，才清空这条消息的全部子键.
func ack(ctx context.Context, pctx *Context, state *message.State) {
	if state.Delivery != nil {
		if err := state.Delivery.Ack(); err != nil {
			pctx.logError("[process] ack 失败: msg_id=%s, err=%v", state.Envelope.MessageID, err)
		}
	}

	if state.Simple() {
		return
	}

	msgID := state.Envelope.MessageID
	store := pctx.Store

	if !state.Envelope.Redundant {
		if err := store.DelKeys(ctx, msgID); err != nil {
			pctx.logError("[process] del_keys 失败: msg_id=%s, err=%v", msgID, err)
		}
		return
	}

	n, err := store.Incr(ctx, msgID, dedupstore.SubAckCount)
	if err != nil {
		pctx.logError("[process] incr ack_count 失败: msg_id=%s, err=%v", msgID, err)
		return
	}
	if n == 2 {
		if err := store.DelKeys(ctx, msgID); err != nil {
			pctx.logError("[process] del_keys 失败: msg_id=%s, err=%v", msgID, err)
		}
	}
}

func attemptsCount(ctx context.Context, store *dedupstore.Client, msgID string) (int64, error) {
	return readCount(ctx, store, msgID, dedupstore.SubAttempts)
}

func exceptionsCount(ctx context.Context, store *dedupstore.Client, msgID string) (int64, error) {
	return readCount(ctx, store, msgID, dedupstore.SubExceptions)
}

func readCount(ctx context.Context, store *dedupstore.Client, msgID, sub string) (int64, error) {
	raw, err := store.Get(ctx, msgID, sub)
	if err != nil {
		if errors.Is(err, dedupstore.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func invokeOnFailure(ctx context.Context, h handler.Handler, state *message.State, code resultcode.Code) {
	panicErr := recovery.Guard(func() {
		h.OnFailure(ctx, state.Payload, errorForCode(code))
	})
	if panicErr != nil {
		_ = panicErr // failback 自身的 panic 不应影响已经确定的结果码.
	}
}

func errorForCode(code resultcode.Code) error {
	return errors.New(code.String())
}
