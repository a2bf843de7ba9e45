// Package resultcode 定义处理状态机的封闭结果集.
//
// 每个 Code 只携带两个问题的答案：这条消息要不要被拒绝重投（Reject），
// 这次处理算不算失败（Failure）. 确认由状态机（process 包）自己对
// Delivery 调用 Ack 完成；Reject() 为 true 的结果不确认这次投递，等待
// broker 重投.
package resultcode

// Code 是处理一条消息后得到的封闭结果集合中的一个值.
type Code int

const (
	// OK 本次处理成功完成（首次处理，或取得了已完成的结果后直接放行）.
	OK Code = iota

	// Ancient 消息已过期（超过 expires_at），未被处理即放行.
	Ancient

	// DecodingError 信封解码失败，消息被视为不可处理的噪声.
	DecodingError

	// Delayed 消息早于其 delay 窗口到达，要求重投以便稍后重试.
	Delayed

	// HandlerNotYetTimedOut 已有一次尝试在进行中且未超时，要求重投等待.
	HandlerNotYetTimedOut

	// MutexLocked 另一个工作者当前持有这条消息的互斥锁，要求重投.
	MutexLocked

	// HandlerCrash 处理函数本次调用抛出了异常或超时.
	HandlerCrash

	// AttemptsLimitReached 已达到 attempts_limit，放弃（不再重投）.
	AttemptsLimitReached

	// ExceptionsLimitReached 已超过 exceptions_limit，放弃（不再重投）.
	ExceptionsLimitReached

	// InternalError 状态机自身的内部错误（存储故障、不可恢复的 panic 等）.
	InternalError
)

var names = map[Code]string{
	OK:                     "OK",
	Ancient:                "Ancient",
	DecodingError:          "DecodingError",
	Delayed:                "Delayed",
	HandlerNotYetTimedOut:  "HandlerNotYetTimedOut",
	MutexLocked:            "MutexLocked",
	HandlerCrash:           "HandlerCrash",
	AttemptsLimitReached:   "AttemptsLimitReached",
	ExceptionsLimitReached: "ExceptionsLimitReached",
	InternalError:          "InternalError",
}

// String 实现 fmt.Stringer.
func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return "Unknown"
}

// Reject 报告这个结果是否让这次投递保持未确认、等待 broker 重投.
func (c Code) Reject() bool {
	switch c {
	case Delayed, HandlerNotYetTimedOut, MutexLocked, HandlerCrash:
		return true
	default:
		return false
	}
}

// Failure 报告这次处理本身是否算作失败（用于指标与钩子，不影响 Ack/Reject）.
func (c Code) Failure() bool {
	switch c {
	case AttemptsLimitReached, ExceptionsLimitReached:
		return true
	default:
		return false
	}
}

// Valid 报告 c 是否是封闭集合中的已知值.
func (c Code) Valid() bool {
	_, ok := names[c]
	return ok
}
