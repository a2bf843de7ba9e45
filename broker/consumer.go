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

// Handler 处理一条入站消息. Handler 本身不负责 Ack/Reject——调用方
// （处理状态机）在 Consume 的循环之外决定如何结算这条 Delivery.
type Handler func(ctx context.Context, d Delivery)

// Consumer 从队列拉取消息并逐条交给 Handler.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler Handler) error
	Close() error
}

// rabbitMQConsumer RabbitMQ 消费者.
type rabbitMQConsumer struct {
	conn    *rabbitMQConnection
	channel *amqp.Channel
	mu      sync.RWMutex
	closed  atomic.Bool

	consuming  atomic.Bool
	cancelFunc context.CancelFunc

	exchange      string
	exchangeType  exchangeType
	queueDurable  bool
	queueExcl     bool
	autoDelete    bool
	prefetchCount int
	prefetchSize  int
	logger        logger.Logger
}

// NewConsumer 创建 RabbitMQ 消费者. 消费者始终以手动确认模式运行：
// 是否 Ack/Reject 由处理状态机决定，broker 包自身不做任何自动判断.
func NewConsumer(cfg *Config, log logger.Logger) (Consumer, error) {
	if cfg.URL == "" {
		return nil, ErrNoBrokers
	}

	c := &rabbitMQConsumer{
		exchange:      cfg.Exchange,
		exchangeType:  exchangeDirect,
		queueDurable:  cfg.Durable,
		prefetchCount: 10,
		logger:        log,
	}

	if cfg.ExchangeType != "" {
		c.exchangeType = exchangeType(cfg.ExchangeType)
	}
	if cfg.PrefetchCount > 0 {
		c.prefetchCount = cfg.PrefetchCount
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
	c.conn = conn

	if err := c.setupChannel(); err != nil {
		conn.Close()
		return nil, err
	}

	return c, nil
}

func (c *rabbitMQConsumer) setupChannel() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCreateConsumer, err)
	}

	if err := ch.Qos(c.prefetchCount, c.prefetchSize, false); err != nil {
		ch.Close()
		return fmt.Errorf("设置 QoS 失败: %w", err)
	}

	if c.exchange != "" {
		err = ch.ExchangeDeclare(
			c.exchange,
			string(c.exchangeType),
			c.queueDurable,
			c.autoDelete,
			false,
			false,
			nil,
		)
		if err != nil {
			ch.Close()
			return fmt.Errorf("声明交换机失败: %w", err)
		}
	}

	c.mu.Lock()
	c.channel = ch
	c.mu.Unlock()

	return nil
}

// Consume 阻塞消费 queue，对每条消息调用 handler. handler 必须自行调用
// Delivery.Ack 或 Delivery.Reject——Consume 永不代为结算.
func (c *rabbitMQConsumer) Consume(ctx context.Context, queue string, handler Handler) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	if queue == "" {
		return ErrEmptyQueue
	}

	if handler == nil {
		return ErrNilHandler
	}

	if c.consuming.Swap(true) {
		return ErrAlreadyConsuming
	}
	defer c.consuming.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer cancel()

	deliveries, err := c.setupQueue(queue)
	if err != nil {
		return err
	}

	c.log("开始消费队列: %s", queue)

	go c.handleReconnect(ctx, queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case delivery, ok := <-deliveries:
			if !ok {
				c.log("消费 channel 关闭，等待重连...")
				time.Sleep(time.Second)
				continue
			}

			handler(ctx, &amqpDelivery{queue: queue, delivery: delivery})
		}
	}
}

func (c *rabbitMQConsumer) setupQueue(queue string) (<-chan amqp.Delivery, error) {
	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil {
		return nil, ErrNoBrokersAvailable
	}

	declared, err := ch.QueueDeclare(
		queue,
		c.queueDurable,
		c.autoDelete,
		c.queueExcl,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("声明队列失败: %w", err)
	}

	if c.exchange != "" {
		if err := ch.QueueBind(declared.Name, queue, c.exchange, false, nil); err != nil {
			return nil, fmt.Errorf("绑定队列失败: %w", err)
		}
	}

	deliveries, err := ch.Consume(
		declared.Name,
		"", // consumer tag, 由服务端生成
		false,
		c.queueExcl,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("启动消费失败: %w", err)
	}

	return deliveries, nil
}

func (c *rabbitMQConsumer) handleReconnect(ctx context.Context, queue string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.conn.ReconnectNotify():
			if c.closed.Load() {
				return
			}

			c.log("检测到重连，重新设置消费者...")

			c.mu.Lock()
			if c.channel != nil {
				c.channel.Close()
			}
			c.mu.Unlock()

			if err := c.setupChannel(); err != nil {
				c.log("重建 channel 失败: %v", err)
				continue
			}

			if _, err := c.setupQueue(queue); err != nil {
				c.log("重新设置队列失败: %v", err)
			}
		}
	}
}

func (c *rabbitMQConsumer) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	if c.cancelFunc != nil {
		c.cancelFunc()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		c.channel.Close()
	}

	return c.conn.Close()
}

func (c *rabbitMQConsumer) log(format string, args ...any) {
	if c.logger != nil {
		c.logger.Info(fmt.Sprintf(format, args...))
	}
}
