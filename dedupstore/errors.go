package dedupstore

import "github.com/kagerou7/dedupq/cache"

// ErrNotFound 子键不存在时返回，与底层 cache.Cache 的哨兵错误是同一个
// 值，调用方用 errors.Is 即可判断，无需关心具体的存储实现.
var ErrNotFound = cache.ErrNotFound
