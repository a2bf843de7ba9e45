package broker

import "time"

// Message 是发布到队列的一条原始消息，不携带任何去重/重试语义.
//
// envelope 包负责把领域消息编码进 Value，并把需要跨进程透传的字段
// 写入 Headers；broker 本身只搬运字节.
type Message struct {
	// Queue 目标队列名，通过默认交换机直接路由.
	Queue string

	// MessageID 对应 AMQP BasicProperties.MessageId.
	MessageID string

	// Value 是消息体.
	Value []byte

	// Headers 用于传递元数据（例如 envelope 的透传头）.
	Headers map[string]any

	// Mandatory 对应 AMQP 发布时的 mandatory 标志：交换机无法路由时
	// 要求服务端返回该消息而不是静默丢弃.
	Mandatory bool

	// Immediate 对应 AMQP 发布时的 immediate 标志.
	Immediate bool

	// ReplyTo 对应 AMQP BasicProperties.ReplyTo.
	ReplyTo string

	// Timestamp 由生产者在发布时填充.
	Timestamp time.Time
}
