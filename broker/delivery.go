package broker

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery 代表一条入站消息及其确认句柄.
//
// 与生产者/消费者的建链逻辑不同，这里的 Ack/Reject 从不由本包自动调用——
// 由处理层跑完判定流程后决定结果，并且只调用 Ack 或 Reject 中的一个.
type Delivery interface {
	// Queue 返回消息来源的队列名.
	Queue() string

	// MessageID 返回生产者写入的 AMQP message-id 属性.
	MessageID() string

	// Body 返回原始消息体.
	Body() []byte

	// Headers 返回 AMQP 消息头.
	Headers() map[string]any

	// Ack 确认处理成功，broker 不会重新投递.
	Ack() error

	// Reject 将消息标记为失败. requeue 为 true 时 broker 会重新投递
	// （受其自身重试/退避策略约束）；为 false 时消息被丢弃或转入死信.
	Reject(requeue bool) error
}

// amqpDelivery 把 amqp.Delivery 适配为 Delivery 接口.
type amqpDelivery struct {
	queue    string
	delivery amqp.Delivery
}

func (d *amqpDelivery) Queue() string     { return d.queue }
func (d *amqpDelivery) MessageID() string { return d.delivery.MessageId }
func (d *amqpDelivery) Body() []byte      { return d.delivery.Body }

func (d *amqpDelivery) Headers() map[string]any {
	headers := make(map[string]any, len(d.delivery.Headers))
	for k, v := range d.delivery.Headers {
		headers[k] = v
	}
	return headers
}

func (d *amqpDelivery) Ack() error {
	return d.delivery.Ack(false)
}

func (d *amqpDelivery) Reject(requeue bool) error {
	return d.delivery.Nack(false, requeue)
}
