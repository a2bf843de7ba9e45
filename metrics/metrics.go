// Package metrics 提供基于 Prometheus 的指标收集功能.
package metrics

import "net/http"

// Collector 指标收集器接口.
type Collector interface {
	// IncrementCounter 增加一个自定义计数器.
	IncrementCounter(name string, labels map[string]string)

	// ObserveHistogram 记录一次自定义直方图观测值.
	ObserveHistogram(name string, value float64, labels map[string]string)

	// SetGauge 设置一个自定义仪表盘的当前值.
	SetGauge(name string, value float64, labels map[string]string)

	// GetHandler 返回暴露指标的 HTTP 处理器（供 /metrics 端点使用）.
	GetHandler() http.Handler

	// GetPath 返回指标暴露路径.
	GetPath() string
}

// NewMetrics 创建指标收集器.
func NewMetrics(cfg *Config) (*PrometheusCollector, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	return NewPrometheus(cfg)
}

// MustNewMetrics 创建指标收集器，失败时 panic.
func MustNewMetrics(cfg *Config) *PrometheusCollector {
	c, err := NewMetrics(cfg)
	if err != nil {
		panic(err)
	}
	return c
}
