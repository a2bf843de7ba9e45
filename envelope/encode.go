package envelope

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kagerou7/dedupq/broker"
)

// PublishOptions 是调用方提交给 Encode 的发布选项. 字段集合是封闭的——
// 新增透传选项需要同时更新这里和 Decode.
type PublishOptions struct {
	// Key 是路由键，同时也是目标队列名（默认交换机按队列名路由）.
	Key string

	// Payload 是消息体（已经是领域层序列化之后的字节，envelope 不关心其格式）.
	Payload []byte

	// MessageID 留空时由 Encode 生成一个基于时间的 UUID v1.
	MessageID string

	// Mandatory、Immediate、ReplyTo 原样透传给 broker. Persistent 不会被
	// 写进 broker.Message：broker.Producer.Publish 总是以持久化模式发布.
	Mandatory  bool
	Immediate  bool
	Persistent bool
	ReplyTo    string

	// Redundant 标记这次发布将经由多条路径投递（与 broker.PublishRedundant 配合使用）.
	Redundant bool

	// TTL 决定 expires_at. 零值时使用 DefaultTTL.
	TTL time.Duration
}

// Encode 把 opts 编译成一条可直接交给 broker.Producer.Publish（或
// broker.PublishRedundant）的 broker.Message.
func Encode(opts PublishOptions) (*broker.Message, error) {
	if opts.Key == "" {
		return nil, ErrEmptyKey
	}

	id := opts.MessageID
	if id == "" {
		u, err := uuid.NewUUID()
		if err != nil {
			return nil, err
		}
		id = u.String()
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	expiresAt := time.Now().Add(ttl)

	var flags Flag
	if opts.Redundant {
		flags |= FlagRedundant
	}

	headers := map[string]any{
		HeaderFormatVersion: strconv.Itoa(FormatVersion),
		HeaderFlags:         strconv.Itoa(int(flags)),
		HeaderExpiresAt:     strconv.FormatInt(expiresAt.Unix(), 10),
	}

	return &broker.Message{
		Queue:     opts.Key,
		MessageID: id,
		Value:     opts.Payload,
		Headers:   headers,
		Mandatory: opts.Mandatory,
		Immediate: opts.Immediate,
		ReplyTo:   opts.ReplyTo,
	}, nil
}
