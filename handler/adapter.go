package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kagerou7/dedupq/logger"
	"github.com/kagerou7/dedupq/recovery"
)

// ReraiseTestFailures 控制 Invoke 在处理函数内部发生 panic 时是否把它
// 原样重新 panic，而不是转换成一个普通的 error 返回.
//
// 在生产构建里恒为 false：处理函数的 panic 必须被状态机当作一次失败
// 的尝试吞掉，绝不能让一条消息的处理函数拖垮整个工作者进程. 但在
// go test 二进制里默认为 true——否则测试用例里处理函数内部的断言失败
// 会被这里的 recover 悄悄转换成一个 resultcode.HandlerCrash，看起来像
// 业务失败，而不是显眼的测试崩溃.
var ReraiseTestFailures = testing.Testing()

// ErrTimeout 在处理函数未能在 timeout 窗口内返回时返回.
var ErrTimeout = errors.New("handler: 处理函数执行超时")

// Adapter 把一个 Handler 包装成状态机可以直接调用的形式.
type Adapter struct {
	Handler Handler
	Logger  logger.Logger
}

// New 创建一个 Adapter.
func New(h Handler, log logger.Logger) *Adapter {
	return &Adapter{Handler: h, Logger: log}
}

// Invoke 在 timeout 窗口内运行 Handler.Call. 处理函数在一个独立的
// goroutine 里执行；如果它没能在 timeout 内返回，Invoke 立即返回
// ErrTimeout 而不等待那个 goroutine ——这正是"超时放弃"
// （detached-goroutine-with-abandonment）契约：超时只意味着状态机不再
// 等待这次尝试的结果，处理函数本身可能仍在后台跑，调用方不能假设它
// 已经停止，也不应该依赖它最终完成时产生的任何副作用的时序.
//
// 处理函数内部的 panic 会被捕获并转换成 error，从不向上传播（除非
// ReraiseTestFailures 为 true）.
func (a *Adapter) Invoke(ctx context.Context, payload []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		var callErr error

		var opts []recovery.Option
		if a.Logger != nil {
			opts = append(opts, recovery.WithLogger(a.Logger))
		}

		panicErr := recovery.Guard(func() {
			callErr = a.Handler.Call(ctx, payload)
		}, opts...)

		if panicErr != nil {
			if ReraiseTestFailures {
				panic(panicErr)
			}
			done <- panicErr
			return
		}

		done <- callErr
	}()

	select {
	case <-ctx.Done():
		return ErrTimeout
	case err := <-done:
		return err
	}
}
