// Package cache 缓存抠图结果，键由输入内容与处理参数决定
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/chaos-io/removebg/config"
	"github.com/chaos-io/removebg/util"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

const (
	BackendNone  = "none"
	BackendRedis = "redis"
	BackendDisk  = "disk"
)

type Cache interface {
	// Get 未命中时返回 (nil, false, nil)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// New 按配置创建缓存，disk 后端会同时启动过期清理任务
func New(cfg config.CacheConfig, redisCfg config.RedisConfig) (Cache, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendRedis:
		c := NewRedisCache(redisCfg, cfg.TTL)
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		// 连接失败不影响启动，缓存读写出错时只记日志
		if err := c.Ping(ctx); err != nil {
			util.Logger.Warn("redis connection failed, results will not be cached until it recovers",
				zap.String("addr", redisCfg.Addr), zap.Error(err))
		} else {
			util.Logger.Info("redis connected successfully", zap.String("addr", redisCfg.Addr))
		}
		return c, nil
	case BackendDisk:
		disk, err := NewDiskCache(cfg.Dir, cfg.TTL)
		if err != nil {
			return nil, err
		}
		janitor, err := NewJanitor(disk, cfg.SweepSpec)
		if err != nil {
			return nil, err
		}
		janitor.Start()
		return &withJanitor{DiskCache: disk, janitor: janitor}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Nop 不缓存任何内容
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error        { return nil }
func (Nop) Close() error                                     { return nil }

type withJanitor struct {
	*DiskCache
	janitor *Janitor
}

func (w *withJanitor) Close() error {
	w.janitor.Stop()
	return w.DiskCache.Close()
}
