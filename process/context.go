// Package process 实现逐条投递的处理状态机：根据一条消息的 envelope
// 和去重存储里记录的状态，判定现在该不该运行 handler、该不该 ack、要
// 不要延后——并在判定结果是"运行"时，真正把 handler 带过这一轮执行.
package process

import (
	"time"

	"github.com/kagerou7/dedupq/dedupstore"
	"github.com/kagerou7/dedupq/logger"
	"github.com/kagerou7/dedupq/message"
	"github.com/kagerou7/dedupq/metrics"
	"github.com/kagerou7/dedupq/resultcode"
)

// Context 携带 Process 需要的一切本来会以进程级单例形式存在的状态：
// 这个队列对应的去重存储、一个可虚拟化的时钟（状态机里唯一的非确定性
// 来源）、日志器，以及可选的指标收集器. 显式传递意味着测试可以注入一
// 个假时钟，而不必触碰其他测试共享的全局状态.
type Context struct {
	Store   *dedupstore.Client
	Clock   func() time.Time
	Logger  logger.Logger
	Metrics metrics.Collector
}

func (c *Context) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c *Context) log(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Infof(format, args...)
	}
}

func (c *Context) logError(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Errorf(format, args...)
	}
}

// recordMetrics 按队列和结果码打点，指标收集器为空时什么都不做.
func (c *Context) recordMetrics(state *message.State, code resultcode.Code) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.IncrementCounter("message_processed_total", c.resultLabels(state, code))
}

// recordHandlerDuration 按队列和结果码记录一次 handler.Call 调用耗时，
// 指标收集器为空时什么都不做. duration 只覆盖 adapter.Invoke 本身，不
// 包含去重存储的读写耗时.
func (c *Context) recordHandlerDuration(state *message.State, code resultcode.Code, d time.Duration) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.ObserveHistogram("handler_duration_seconds", d.Seconds(), c.resultLabels(state, code))
}

func (c *Context) resultLabels(state *message.State, code resultcode.Code) map[string]string {
	queue := ""
	if state.Delivery != nil {
		queue = state.Delivery.Queue()
	}
	return map[string]string{
		"queue":  queue,
		"result": code.String(),
	}
}
