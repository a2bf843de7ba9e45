package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kagerou7/dedupq/logger"
)

// exchangeType 交换机类型.
type exchangeType string

const (
	exchangeDirect  exchangeType = "direct"
	exchangeFanout  exchangeType = "fanout"
	exchangeTopic   exchangeType = "topic"
	exchangeHeaders exchangeType = "headers"
)

// Producer 将消息发布到队列.
type Producer interface {
	Publish(ctx context.Context, msg *Message) (*Message, error)
	Close() error
}

// rabbitMQProducer RabbitMQ 生产者.
type rabbitMQProducer struct {
	conn     *rabbitMQConnection
	channel  *amqp.Channel
	mu       sync.RWMutex
	closed   atomic.Bool
	confirms chan amqp.Confirmation

	exchange     string
	exchangeType exchangeType
	mandatory    bool
	immediate    bool
	durable      bool
	autoDelete   bool
	confirm      bool
	logger       logger.Logger
}

// NewProducer 创建 RabbitMQ 生产者.
func NewProducer(cfg *Config, log logger.Logger) (Producer, error) {
	if cfg.URL == "" {
		return nil, ErrNoBrokers
	}

	p := &rabbitMQProducer{
		exchange:     cfg.Exchange,
		exchangeType: exchangeDirect,
		durable:      cfg.Durable,
		confirm:      cfg.Confirm,
		logger:       log,
	}

	if cfg.ExchangeType != "" {
		p.exchangeType = exchangeType(cfg.ExchangeType)
	}

	var connOpts []rabbitMQConnectionOption
	if log != nil {
		connOpts = append(connOpts, withRabbitMQConnectionLogger(log))
	}
	if cfg.ReconnectDelay > 0 {
		connOpts = append(connOpts, withRabbitMQReconnectDelay(cfg.ReconnectDelay))
	}
	if cfg.MaxRetries != 0 {
		connOpts = append(connOpts, withRabbitMQMaxRetries(cfg.MaxRetries))
	}

	conn, err := newRabbitMQConnection(cfg.URL, connOpts...)
	if err != nil {
		return nil, err
	}
	p.conn = conn

	if err := p.setupChannel(); err != nil {
		conn.Close()
		return nil, err
	}

	go p.handleReconnect()

	return p, nil
}

func (p *rabbitMQProducer) setupChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateProducer, err)
	}

	if p.exchange != "" {
		err = ch.ExchangeDeclare(
			p.exchange,
			string(p.exchangeType),
			p.durable,
			p.autoDelete,
			false,
			false,
			nil,
		)
		if err != nil {
			ch.Close()
			return fmt.Errorf("声明交换机失败: %w", err)
		}
	}

	if p.confirm {
		if err := ch.Confirm(false); err != nil {
			ch.Close()
			return fmt.Errorf("启用发布确认失败: %w", err)
		}
		p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 100))
	}

	p.mu.Lock()
	p.channel = ch
	p.mu.Unlock()

	return nil
}

func (p *rabbitMQProducer) handleReconnect() {
	for range p.conn.ReconnectNotify() {
		if p.closed.Load() {
			return
		}

		p.log("检测到重连，重新创建 channel...")

		p.mu.Lock()
		if p.channel != nil {
			p.channel.Close()
		}
		p.mu.Unlock()

		if err := p.setupChannel(); err != nil {
			p.log("重建 channel 失败: %v", err)
		} else {
			p.log("channel 重建成功")
		}
	}
}

// Publish 把消息发布到 msg.Queue（经默认交换机或配置的交换机路由）.
func (p *rabbitMQProducer) Publish(ctx context.Context, msg *Message) (*Message, error) {
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}

	if msg == nil {
		return nil, ErrNilMessage
	}

	if msg.Queue == "" {
		return nil, ErrEmptyQueue
	}

	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()

	if ch == nil {
		return nil, ErrNoBrokersAvailable
	}

	publishing := amqp.Publishing{
		ContentType:  "application/octet-stream",
		Body:         msg.Value,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    msg.MessageID,
		ReplyTo:      msg.ReplyTo,
	}

	if len(msg.Headers) > 0 {
		publishing.Headers = make(amqp.Table, len(msg.Headers))
		for k, v := range msg.Headers {
			publishing.Headers[k] = v
		}
	}

	mandatory := p.mandatory || msg.Mandatory
	immediate := p.immediate || msg.Immediate

	err := ch.PublishWithContext(
		ctx,
		p.exchange,
		msg.Queue,
		mandatory,
		immediate,
		publishing,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendMessage, err)
	}

	if p.confirm && p.confirms != nil {
		select {
		case confirm := <-p.confirms:
			if !confirm.Ack {
				return nil, fmt.Errorf("%w: 消息被拒绝", ErrSendMessage)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	msg.Timestamp = publishing.Timestamp
	return msg, nil
}

func (p *rabbitMQProducer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}

	return p.conn.Close()
}

func (p *rabbitMQProducer) log(format string, args ...any) {
	if p.logger != nil {
		p.logger.Info(fmt.Sprintf(format, args...))
	}
}

// PublishRedundant 依次向每一个生产者发布同一条消息，使投递不因单个
// broker/线路失效而丢失. 每条线路各自拷贝一份 Message（MessageID 保持
// 一致），因此去重键空间始终由 (queue, message_id) 决定，与消费者先看到
// 冗余路径中的哪一条无关.
func PublishRedundant(ctx context.Context, producers []Producer, msg *Message) error {
	if len(producers) == 0 {
		return ErrNoBrokers
	}

	var errs []error
	delivered := 0

	for _, p := range producers {
		copyMsg := *msg
		if _, err := p.Publish(ctx, &copyMsg); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("%w: 全部 %d 条发布路径均失败: %v", ErrBatchSend, len(producers), errs)
	}

	return nil
}
