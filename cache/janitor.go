package cache

import (
	"fmt"

	"github.com/chaos-io/removebg/util"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type sweeper interface {
	Sweep() (int, error)
}

// Janitor 按 cron 表达式定期清理过期缓存
type Janitor struct {
	cron *cron.Cron
}

func NewJanitor(s sweeper, spec string) (*Janitor, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() { sweep(s) })
	if err != nil {
		return nil, fmt.Errorf("invalid sweep spec %q: %w", spec, err)
	}
	return &Janitor{cron: c}, nil
}

func sweep(s sweeper) {
	n, err := s.Sweep()
	if err != nil {
		util.Logger.Warn("sweep cache failed", zap.Error(err))
		return
	}
	if n > 0 {
		util.Logger.Info("expired cache entries removed", zap.Int("count", n))
	}
}

func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop 停止调度并等待正在执行的清理结束
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
