// Package message 定义处理状态机操作的单位：一条消息的信封、它的处理
// 策略，以及它在本次投递中携带的原始 Delivery 句柄.
package message

import (
	"time"

	"github.com/kagerou7/dedupq/broker"
	"github.com/kagerou7/dedupq/envelope"
)

// 策略默认值.
const (
	DefaultTimeout         = 600 * time.Second
	DefaultDelay           = 10 * time.Second
	DefaultAttemptsLimit   = 1
	DefaultExceptionsLimit = 0
)

// Policy 是一条消息的处理策略：超时多久算挂起、早到多少算"早"、
// 最多重试几次、最多容忍几次异常.
type Policy struct {
	// Timeout 是单次处理函数调用允许运行的最长时间.
	Timeout time.Duration

	// Delay 是一次处理异常之后，在重新尝试之前必须等待的最短时间.
	Delay time.Duration

	// AttemptsLimit 是允许的最大处理尝试次数（成功或失败都计数）.
	AttemptsLimit int

	// ExceptionsLimit 是允许的最大异常/超时次数.
	ExceptionsLimit int
}

// DefaultPolicy 返回默认策略（已经满足 Normalize 的约束）.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:         DefaultTimeout,
		Delay:           DefaultDelay,
		AttemptsLimit:   DefaultAttemptsLimit,
		ExceptionsLimit: DefaultExceptionsLimit,
	}
}

// Normalize 强制 AttemptsLimit 严格大于 ExceptionsLimit：如果达到异常
// 上限本该就放弃了，尝试次数上限不应该更早触发导致放弃原因被混淆.
func (p *Policy) Normalize() {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Delay <= 0 {
		p.Delay = DefaultDelay
	}
	if p.AttemptsLimit <= 0 {
		p.AttemptsLimit = DefaultAttemptsLimit
	}
	if p.ExceptionsLimit < 0 {
		p.ExceptionsLimit = DefaultExceptionsLimit
	}
	if p.AttemptsLimit <= p.ExceptionsLimit {
		p.AttemptsLimit = p.ExceptionsLimit + 1
	}
}

// State 是状态机对一条正在处理的消息持有的全部上下文.
type State struct {
	// Envelope 是解码后的信封（DecodeErr != nil 时内容不可信）.
	Envelope envelope.Envelope

	// Policy 是这条消息适用的处理策略（已 Normalize）.
	Policy Policy

	// Payload 是消息体字节，原样转交给处理函数.
	Payload []byte

	// Delivery 是这次投递的原始句柄，状态机结束时必须对它调用且只
	// 调用一次 Ack 或 Reject.
	Delivery broker.Delivery

	// DecodeErr 非 nil 表示 Envelope 解码失败，此时状态机应直接走
	// DecodingError 分支，不触碰去重存储.
	DecodeErr error
}

// Simple 报告这条消息是否满足"简单快速路径"：非冗余投递且
// AttemptsLimit 为 1——这种消息天然至多被处理一次，不需要完整地
// 走去重存储的首次哨兵/互斥锁逻辑.
func (s *State) Simple() bool {
	return !s.Envelope.Redundant && s.Policy.AttemptsLimit == 1 && s.Policy.ExceptionsLimit == 0
}

// Ancient 报告消息是否已经过期（超过 expires_at）.
func (s *State) Ancient(now time.Time) bool {
	return !s.Envelope.ExpiresAt.IsZero() && now.After(s.Envelope.ExpiresAt)
}
