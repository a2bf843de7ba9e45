// Package envelope 把领域消息编码进/解码出 broker.Message.
//
// 编码侧从一组发布选项（publishing_options）产生一条 broker.Message：
// 固定的信封头（format_version、flags、expires_at）加上一份封闭白名单内的
// 透传选项（key、mandatory、immediate、reply_to；persistent 不透传，发布
// 总是持久化的）. 解码侧只做
// 相反的事情，并且从不因为信封损坏而 panic——损坏被当作一个值返回，由
// 调用方决定后续怎么办（通常是标记为 DecodingError 并放行）.
package envelope

import "time"

// FormatVersion 是当前编码器写出的信封格式版本号.
const FormatVersion = 1

// Flag 是信封 flags 头里按位编码的标志位.
type Flag int

const (
	// FlagRedundant 表示这条消息经由两条独立的发布路径投递，消费侧
	// 据此决定 ack 时是直接清空去重键（非冗余）还是累加 ack_count 并
	// 等到第二次确认才清空（冗余）.
	FlagRedundant Flag = 1 << 0
)

// 信封头的键名. 所有值在线上都以字符串形式携带.
const (
	HeaderFormatVersion = "format_version"
	HeaderFlags         = "flags"
	HeaderExpiresAt     = "expires_at"
)

// DefaultTTL 在未显式指定 TTL 时使用.
const DefaultTTL = 24 * time.Hour

// Envelope 是信封头解码后的结构化结果.
type Envelope struct {
	// MessageID 取自 AMQP BasicProperties.MessageId（由 Encode 端写入）.
	MessageID string

	// FormatVersion 是写入方声明的信封格式版本.
	FormatVersion int

	// Redundant 报告发布方是否通过多条冗余路径发布了这条消息.
	Redundant bool

	// ExpiresAt 是这条消息的绝对过期时间.
	ExpiresAt time.Time
}
