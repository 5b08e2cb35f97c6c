package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/production-planner/backend/internal/domain"
)

var ErrPreviewNotFound = errors.New("预览计划不存在或已过期")

const runLockKey = "planner:run_lock"

// 只有持有者才能释放锁，避免误删别人在锁过期后重新获取的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PreviewCache 保存尚未确认的排产预览，并提供跨实例的排产互斥锁
type PreviewCache struct {
	rdb        *redis.Client
	expiration time.Duration
	lockTTL    time.Duration
}

func NewPreviewCache(rdb *redis.Client, expiration, lockTTL time.Duration) *PreviewCache {
	return &PreviewCache{
		rdb:        rdb,
		expiration: expiration,
		lockTTL:    lockTTL,
	}
}

func previewKey(runID string) string {
	return fmt.Sprintf("planner:preview:%s", runID)
}

func (c *PreviewCache) SavePreview(ctx context.Context, runID string, plan *domain.Plan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, previewKey(runID), data, c.expiration).Err()
}

// GetPreview 预览不存在或已过期时返回 ErrPreviewNotFound
func (c *PreviewCache) GetPreview(ctx context.Context, runID string) (*domain.Plan, error) {
	data, err := c.rdb.Get(ctx, previewKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPreviewNotFound
		}
		return nil, err
	}

	plan := &domain.Plan{}
	if err := json.Unmarshal(data, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (c *PreviewCache) DeletePreview(ctx context.Context, runID string) error {
	return c.rdb.Del(ctx, previewKey(runID)).Err()
}

// AcquireRunLock 尝试获取排产锁，已被其他实例持有时返回 false
func (c *PreviewCache) AcquireRunLock(ctx context.Context, token string) (bool, error) {
	return c.rdb.SetNX(ctx, runLockKey, token, c.lockTTL).Result()
}

func (c *PreviewCache) ReleaseRunLock(ctx context.Context, token string) error {
	return releaseScript.Run(ctx, c.rdb, []string{runLockKey}, token).Err()
}
