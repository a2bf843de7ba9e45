package main

import (
	"context"

	"github.com/kagerou7/dedupq/handler"
	"github.com/kagerou7/dedupq/logger"
)

// orderHandler 是这个消费者进程实际运行的业务逻辑. 真实项目里这里会
// 换成具体的订单/通知/对账处理——这里只保留调用骨架和观测钩子，
// 演示状态机如何把一条消息交给它.
type orderHandler struct {
	handler.Base
	logger logger.Logger
}

func newOrderHandler(log logger.Logger) *orderHandler {
	return &orderHandler{logger: log}
}

// Call 执行一次业务处理. payload 是消息体的原始字节，格式由上游约定.
func (h *orderHandler) Call(ctx context.Context, payload []byte) error {
	h.logger.Debugf("[order] 处理消息: %d bytes", len(payload))
	return nil
}

// OnException 在一次尝试失败后被调用（超时也算一次失败）.
func (h *orderHandler) OnException(ctx context.Context, payload []byte, err error) {
	h.logger.Warnf("[order] 一次处理尝试失败: %v", err)
}

// OnFailure 在这条消息被最终放弃时调用且只调用一次.
func (h *orderHandler) OnFailure(ctx context.Context, payload []byte, err error) {
	h.logger.Errorf("[order] 消息被放弃: %v", err)
}
