package dedupstore

import (
	"context"
	"strings"
	"time"

	"github.com/kagerou7/dedupq/scheduler"
)

// GarbageCollect 扫描这个队列名下所有消息的 expires 子键，删除那些已经
// 过了 olderThan 的消息的全部子键. 返回被清理的消息条数.
//
// 采样：如果构造时设置了 WithSampleRate 且本次没被抽中，直接返回
// (0, nil)——多个工作者各自挂一个巡检任务时，这样可以把扫描压力摊开，
// 而不需要额外的分布式锁（即便两次巡检撞在一起重复扫描，DelKeys 对已经
// 不存在的键是幂等的）.
func (c *Client) GarbageCollect(ctx context.Context, olderThan time.Time) (int, error) {
	if c.sampleRate < 1.0 && c.rng.Float64() >= c.sampleRate {
		return 0, nil
	}

	prefix := "msgid:" + c.queue + ":"
	keys, err := c.cache.ScanKeys(ctx, prefix, 0)
	if err != nil {
		return 0, err
	}

	cutoff := olderThan.Unix()
	seen := make(map[string]bool)
	purged := 0

	for _, key := range keys {
		if !strings.HasSuffix(key, ":"+SubExpires) {
			continue
		}

		_, msgID, ok := MsgIDFromKey(key)
		if !ok || seen[msgID] {
			continue
		}

		raw, err := c.cache.Get(ctx, key)
		if err != nil {
			continue
		}

		expiresAt, err := ParseUnixSeconds(raw)
		if err != nil {
			continue
		}
		if expiresAt.Unix() > cutoff {
			continue
		}

		seen[msgID] = true
		if err := c.DelKeys(ctx, msgID); err != nil {
			if c.logger != nil {
				c.logger.Errorf("[dedupstore] 清理消息 %s 失败: %v", msgID, err)
			}
			continue
		}
		purged++
	}

	return purged, nil
}

// GarbageCollectJob 把 GarbageCollect 包装成一个可以交给 scheduler 的
// 周期性任务. retention 决定多久之前过期的消息才会被清理（给可能的
// 延迟重投留出余量）；distributed 为 true 时要求调度器配置了
// scheduler.WithCache，确保同一时刻集群里只有一个实例在跑清理.
func (c *Client) GarbageCollectJob(name, schedule string, retention time.Duration, distributed bool) *scheduler.Job {
	return &scheduler.Job{
		Name:     name,
		Schedule: schedule,
		Handler: func(ctx context.Context) error {
			_, err := c.GarbageCollect(ctx, time.Now().Add(-retention))
			return err
		},
		Distributed: distributed,
	}
}
