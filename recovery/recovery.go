// Package recovery 提供通用的 panic 恢复原语.
package recovery

import (
	"fmt"
	"runtime"

	"github.com/kagerou7/dedupq/logger"
)

// Handler 是 panic 处理函数.
//
// 参数:
//   - ctx: 上下文信息；Guard 调用时总是传入 nil
//   - p: panic 值
//   - stack: 堆栈信息
//
// 返回值:
//   - error: Guard 忽略这个返回值，Guard 的调用方拿到的始终是 *PanicError
type Handler func(ctx any, p any, stack []byte) error

// Options 配置选项.
type Options struct {
	// Logger 日志记录器，可选；为 nil 时不记录日志.
	Logger logger.Logger

	// Handler 自定义 panic 处理函数.
	// 为 nil 时不调用任何处理函数；无论是否设置，Guard 都返回 *PanicError.
	Handler Handler

	// StackSize 堆栈大小，默认 64KB.
	StackSize int

	// StackAll 是否捕获所有 goroutine 的堆栈，默认 false.
	StackAll bool
}

// Option 是配置函数.
type Option func(*Options)

// WithLogger 设置日志记录器.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithHandler 设置自定义 panic 处理函数.
func WithHandler(h Handler) Option {
	return func(o *Options) {
		o.Handler = h
	}
}

// WithStackSize 设置堆栈大小.
func WithStackSize(size int) Option {
	return func(o *Options) {
		o.StackSize = size
	}
}

// WithStackAll 设置是否捕获所有 goroutine 的堆栈.
func WithStackAll(all bool) Option {
	return func(o *Options) {
		o.StackAll = all
	}
}

// defaultOptions 返回默认配置.
func defaultOptions() *Options {
	return &Options{
		StackSize: 64 * 1024, // 64KB
		StackAll:  false,
	}
}

// applyOptions 应用配置选项.
func applyOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// captureStack 捕获堆栈信息.
func captureStack(size int, all bool) []byte {
	stack := make([]byte, size)
	n := runtime.Stack(stack, all)
	return stack[:n]
}

// PanicError 表示 panic 错误.
type PanicError struct {
	// Value 是 panic 的值.
	Value any
	// Stack 是堆栈信息.
	Stack []byte
}

// Error 实现 error 接口.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap 返回原始错误（如果 panic 值是 error）.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Guard 执行 fn，把其中发生的 panic 转换成 *PanicError 返回，而不是
// 让它继续向上传播. fn 正常返回（或没有 panic）时 Guard 返回 nil.
func Guard(fn func(), opts ...Option) (panicErr *PanicError) {
	o := applyOptions(opts)

	defer func() {
		p := recover()
		if p == nil {
			return
		}

		stack := captureStack(o.StackSize, o.StackAll)
		panicErr = &PanicError{Value: p, Stack: stack}

		if o.Logger != nil {
			o.Logger.Error("panic recovered",
				logger.Any("panic", p),
				logger.String("stack", string(stack)),
			)
		}

		if o.Handler != nil {
			_ = o.Handler(nil, p, stack)
		}
	}()

	fn()
	return nil
}
