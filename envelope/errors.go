package envelope

import "errors"

var (
	// ErrMissingHeader 表示信封缺少某个必需的头字段.
	ErrMissingHeader = errors.New("envelope: 缺少必需的信封头")

	// ErrInvalidHeader 表示某个信封头的值无法解析.
	ErrInvalidHeader = errors.New("envelope: 信封头格式不合法")

	// ErrEmptyKey 表示编码时未提供路由键.
	ErrEmptyKey = errors.New("envelope: 发布选项缺少 key")
)
