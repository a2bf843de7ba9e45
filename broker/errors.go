package broker

import "errors"

// 预定义错误.
//
// 所有错误均可通过 errors.Is 进行判断:
//
//	if errors.Is(err, broker.ErrProducerClosed) {
//	    // 处理生产者已关闭的情况
//	}
var (
	// ErrEmptyQueue 队列名为空.
	ErrEmptyQueue = errors.New("broker: 队列名为空")

	// ErrProducerClosed 生产者已关闭.
	ErrProducerClosed = errors.New("broker: 生产者已关闭")

	// ErrNilMessage 消息为空.
	ErrNilMessage = errors.New("broker: 消息为空")

	// ErrNilHandler 消息处理器为空.
	ErrNilHandler = errors.New("broker: 消息处理器为空")

	// ErrUnsupportedType 不支持的消息队列类型.
	ErrUnsupportedType = errors.New("broker: 不支持的消息队列类型")

	// ErrCreateProducer 创建生产者失败.
	ErrCreateProducer = errors.New("broker: 创建生产者失败")

	// ErrCreateConsumer 创建消费者失败.
	ErrCreateConsumer = errors.New("broker: 创建消费者失败")

	// ErrSendMessage 消息发送失败.
	ErrSendMessage = errors.New("broker: 消息发送失败")

	// ErrNoBrokers 未配置服务器地址.
	ErrNoBrokers = errors.New("broker: 未配置服务器地址")

	// ErrCreateClient 创建客户端失败.
	ErrCreateClient = errors.New("broker: 创建客户端失败")

	// ErrClientClosed 客户端已关闭.
	ErrClientClosed = errors.New("broker: 客户端已关闭")

	// ErrNoBrokersAvailable 没有可用的服务器.
	ErrNoBrokersAvailable = errors.New("broker: 没有可用的服务器")

	// ErrBatchSend 批量发送失败.
	ErrBatchSend = errors.New("broker: 批量发送失败")

	// ErrAlreadyConsuming 消费者已在运行.
	ErrAlreadyConsuming = errors.New("broker: 消费者已在运行")
)
