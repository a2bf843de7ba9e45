package envelope

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kagerou7/dedupq/broker"
)

// Decode 从一条入站 Delivery 还原信封. 解码永不 panic；任何格式问题都
// 以 error 返回，调用方负责把它记到 message.State.DecodeErr 上并继续
// 跑状态机（通常结果是 resultcode.DecodingError）.
func Decode(d broker.Delivery) (Envelope, error) {
	env := Envelope{MessageID: d.MessageID()}

	if env.MessageID == "" {
		return env, fmt.Errorf("%w: message_id", ErrMissingHeader)
	}

	headers := d.Headers()

	fv, err := intHeader(headers, HeaderFormatVersion)
	if err != nil {
		return env, err
	}
	env.FormatVersion = fv

	flags, err := intHeader(headers, HeaderFlags)
	if err != nil {
		return env, err
	}
	env.Redundant = Flag(flags)&FlagRedundant != 0

	exp, err := intHeader(headers, HeaderExpiresAt)
	if err != nil {
		return env, err
	}
	env.ExpiresAt = time.Unix(int64(exp), 0)

	return env, nil
}

// intHeader 读取一个信封头并把它解析为整数. AMQP table 里数值可能以
// string 或原生整型（int32/int64/...)到达，两种都要接受.
func intHeader(headers map[string]any, key string) (int, error) {
	raw, ok := headers[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingHeader, key)
	}

	switch v := raw.(type) {
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrInvalidHeader, key, v)
		}
		return n, nil
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: %s 类型为 %T", ErrInvalidHeader, key, raw)
	}
}
