// Package dedupstore 把去重/重试所需的状态保存在一个外部 KV 存储里
// （cache.Cache 的任意实现），使多个工作者进程可以安全地对同一条消息
// 协作：谁先看到它、谁在处理它、处理了几次、该不该再给它一次机会.
//
// 每条消息的状态被拆成若干子键，键名格式固定为
// msgid:<queue>:<message_id>:<sub>，其中 queue 在构造 Client 时绑定，
// sub 是下面 Sub* 常量之一. 子键之间没有关系型约束——调用方（process
// 包）负责按正确的顺序读写它们.
package dedupstore

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/kagerou7/dedupq/cache"
	"github.com/kagerou7/dedupq/logger"
)

// 子键名. 与外部可见的键格式 msgid:<queue>:<message_id>:<sub> 中的
// 最后一段对应.
const (
	SubStatus     = "status"
	SubExpires    = "expires"
	SubTimeout    = "timeout"
	SubAttempts   = "attempts"
	SubExceptions = "exceptions"
	SubMutex      = "mutex"
	SubDelay      = "delay"
	SubAckCount   = "ack_count"
)

// 状态子键（SubStatus）的取值.
const (
	StatusIncomplete = "incomplete"
	StatusCompleted  = "completed"
)

// Client 是一个队列范围的去重存储句柄. 同一个队列的所有工作者应当
// 共享同一个底层 cache.Cache（通常是 Redis），否则去重保证不成立.
type Client struct {
	cache      cache.Cache
	queue      string
	sampleRate float64
	rng        *rand.Rand
	logger     logger.Logger
}

// New 创建一个绑定到 queue 的 Client.
func New(c cache.Cache, queue string, opts ...Option) *Client {
	client := &Client{
		cache:      c,
		queue:      queue,
		sampleRate: 1.0,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Queue 返回这个 Client 绑定的队列名.
func (c *Client) Queue() string {
	return c.queue
}

// key 拼出某个消息某个子键的外部可见键名.
func (c *Client) key(msgID, sub string) string {
	return fmt.Sprintf("msgid:%s:%s:%s", c.queue, msgID, sub)
}

// Get 读取一个子键. 不存在时返回 cache.ErrNotFound.
func (c *Client) Get(ctx context.Context, msgID, sub string) (string, error) {
	return c.cache.Get(ctx, c.key(msgID, sub))
}

// Set 无条件写入一个子键，不设置过期时间（生命周期由 GarbageCollect 管理）.
func (c *Client) Set(ctx context.Context, msgID, sub, value string) error {
	return c.cache.Set(ctx, c.key(msgID, sub), value, 0)
}

// SetNX 仅当子键不存在时写入. 返回 true 表示这次调用真正写入了它.
func (c *Client) SetNX(ctx context.Context, msgID, sub, value string) (bool, error) {
	return c.cache.SetNX(ctx, c.key(msgID, sub), value, 0)
}

// MSetNX 仅当 subs 列出的全部子键都不存在时，才整体写入它们（互斥组写入）.
// 这是"首次哨兵"（first-sighting）判定的核心原语：一批工作者同时看到同
// 一条新消息时，只有一个会让 MSetNX 成功.
func (c *Client) MSetNX(ctx context.Context, msgID string, subs map[string]string) (bool, error) {
	pairs := make(map[string]any, len(subs))
	for sub, value := range subs {
		pairs[c.key(msgID, sub)] = value
	}
	return c.cache.MSetNX(ctx, pairs, 0)
}

// Incr 对一个子键做原子自增，子键不存在时从 0 开始.
func (c *Client) Incr(ctx context.Context, msgID, sub string) (int64, error) {
	return c.cache.Increment(ctx, c.key(msgID, sub))
}

// Del 删除单个子键. 子键本不存在也不算错误.
func (c *Client) Del(ctx context.Context, msgID, sub string) error {
	return c.cache.Del(ctx, c.key(msgID, sub))
}

// DelKeys 删除一条消息名下目前存在的所有子键.
func (c *Client) DelKeys(ctx context.Context, msgID string) error {
	subs, err := c.Keys(ctx, msgID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	full := make([]string, len(subs))
	for i, sub := range subs {
		full[i] = c.key(msgID, sub)
	}
	return c.cache.Del(ctx, full...)
}

// Exists 报告某个子键当前是否存在.
func (c *Client) Exists(ctx context.Context, msgID, sub string) (bool, error) {
	return c.cache.Exists(ctx, c.key(msgID, sub))
}

// Keys 枚举一条消息名下目前存在的子键名（不含 msgid:<queue>:<message_id>: 前缀）.
func (c *Client) Keys(ctx context.Context, msgID string) ([]string, error) {
	prefix := fmt.Sprintf("msgid:%s:%s:", c.queue, msgID)
	full, err := c.cache.ScanKeys(ctx, prefix, 0)
	if err != nil {
		return nil, err
	}

	subs := make([]string, 0, len(full))
	for _, k := range full {
		subs = append(subs, strings.TrimPrefix(k, prefix))
	}
	return subs, nil
}

// MsgIDFromKey 从一个完整键名解析出 (queue, message_id). ok 为 false
// 表示 key 不是一个合法的 msgid:<queue>:<message_id>:<sub> 键.
func MsgIDFromKey(key string) (queue, msgID string, ok bool) {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) != 4 || parts[0] != "msgid" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// ParseUnixSeconds 把子键里存的十进制秒数解析成 time.Time.
func ParseUnixSeconds(value string) (time.Time, error) {
	secs, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0), nil
}

// FormatUnixSeconds 是 ParseUnixSeconds 的逆运算.
func FormatUnixSeconds(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
