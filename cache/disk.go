package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

const diskExt = ".png"

// DiskCache 每个键一个文件，按修改时间判断过期
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

func NewDiskCache(dir string, ttl time.Duration) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}, nil
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+diskExt)
}

func (c *DiskCache) expired(modTime time.Time) bool {
	return c.ttl > 0 && c.now().Sub(modTime) > c.ttl
}

func (c *DiskCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	p := c.path(key)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if c.expired(info.ModTime()) {
		return nil, false, nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set 先写临时文件再重命名，读者不会看到半个文件
func (c *DiskCache) Set(_ context.Context, key string, value []byte) error {
	tmp := filepath.Join(c.dir, ".tmp-"+ksuid.New().String())
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, c.path(key)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Sweep 删除过期条目和遗留的临时文件，返回删除数量
func (c *DiskCache) Sweep() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, diskExt) && !strings.HasPrefix(name, ".tmp-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stale := c.expired(info.ModTime())
		if strings.HasPrefix(name, ".tmp-") {
			// 超过一小时的临时文件视为写入中途失败
			stale = c.now().Sub(info.ModTime()) > time.Hour
		}
		if !stale {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (c *DiskCache) Close() error {
	return nil
}
