// Package handler 把业务处理函数包装成状态机可以安全调用的形式：
// 固定超时、panic 隔离、以及处理完成/失败时的回调钩子.
package handler

import "context"

// Handler 是一条消息的业务处理能力. Call 做实际的工作；OnException
// 和 OnFailure 是可选的观测钩子，状态机在相应的时刻调用它们，但它们
// 的返回（这里是 void）从不影响处理结果本身.
type Handler interface {
	// Call 执行这条消息的业务逻辑. 返回的 error 被视为一次失败的尝试.
	Call(ctx context.Context, payload []byte) error

	// OnException 在一次尝试失败后被调用（超时也算一次失败）,
	// err 是这次失败的原因.
	OnException(ctx context.Context, payload []byte, err error)

	// OnFailure 在这条消息被最终放弃（达到 attempts_limit 或
	// exceptions_limit）时调用且只调用一次.
	OnFailure(ctx context.Context, payload []byte, err error)
}

// Base 提供 OnException 和 OnFailure 的空实现. 只关心业务逻辑本身的
// Handler 可以嵌入 Base，只实现 Call.
type Base struct{}

// OnException 空实现.
func (Base) OnException(context.Context, []byte, error) {}

// OnFailure 空实现.
func (Base) OnFailure(context.Context, []byte, error) {}

// Func 把一个裸函数适配成 Handler（OnException/OnFailure 均为空实现）.
type Func func(ctx context.Context, payload []byte) error

// Call 调用底层函数.
func (f Func) Call(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}

// OnException 空实现.
func (Func) OnException(context.Context, []byte, error) {}

// OnFailure 空实现.
func (Func) OnFailure(context.Context, []byte, error) {}
