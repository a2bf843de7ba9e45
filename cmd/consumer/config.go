package main

import (
	"fmt"
	"time"

	"github.com/kagerou7/dedupq/broker"
	"github.com/kagerou7/dedupq/cache"
	"github.com/kagerou7/dedupq/logger"
	"github.com/kagerou7/dedupq/message"
	"github.com/kagerou7/dedupq/metrics"
)

// Config 是 consumer 进程的完整配置，从 YAML/JSON/TOML 文件加载.
type Config struct {
	Broker  broker.Config  `mapstructure:"broker"`
	Cache   cache.Config   `mapstructure:"cache"`
	Logger  logger.Config  `mapstructure:"logger"`
	Metrics metrics.Config `mapstructure:"metrics"`

	// Queue 是要消费的队列名，同时也是去重存储的命名空间.
	Queue string `mapstructure:"queue"`

	// MetricsAddr 是 /metrics 端点监听的地址.
	MetricsAddr string `mapstructure:"metrics_addr"`

	// Concurrency 是同时运行的 handler 调用数上限.
	Concurrency int64 `mapstructure:"concurrency"`

	// Policy 是这个队列上所有消息默认使用的处理策略.
	Policy message.Policy `mapstructure:"policy"`

	// GC 控制去重存储的周期性垃圾回收.
	GC GCConfig `mapstructure:"gc"`
}

// GCConfig 配置 dedupstore.GarbageCollectJob.
type GCConfig struct {
	// Schedule 是 cron 表达式.
	Schedule string `mapstructure:"schedule"`

	// Retention 是消息过期后再保留多久才真正清理，给延迟重投留余量.
	Retention time.Duration `mapstructure:"retention"`

	// Distributed 为 true 时要求集群里只有一个实例执行清理.
	Distributed bool `mapstructure:"distributed"`

	// SampleRate 控制这个实例巡检扫描的抽样比例.
	SampleRate float64 `mapstructure:"sample_rate"`
}

// Validate 实现 config.Validatable.
func (c *Config) Validate() error {
	if c.Queue == "" {
		return fmt.Errorf("consumer: queue 不能为空")
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 16
	}
	if c.GC.Schedule == "" {
		c.GC.Schedule = "0 */5 * * * *"
	}
	if c.GC.Retention <= 0 {
		c.GC.Retention = 24 * time.Hour
	}
	if c.GC.SampleRate <= 0 {
		c.GC.SampleRate = 1.0
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
	return nil
}
