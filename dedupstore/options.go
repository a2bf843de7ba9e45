package dedupstore

import "github.com/kagerou7/dedupq/logger"

// Option 配置 Client.
type Option func(*Client)

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		c.logger = log
	}
}

// WithSampleRate 设置 GarbageCollect 每次调用实际执行清理的概率，
// 取值范围 (0, 1]. 多个工作者都挂着同一个清理任务时，用它把巡检压力
// 摊薄，而不需要额外的分布式锁.
//
// 默认 1.0（每次调用都执行）.
func WithSampleRate(rate float64) Option {
	return func(c *Client) {
		if rate > 0 && rate <= 1.0 {
			c.sampleRate = rate
		}
	}
}
