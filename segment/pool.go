package segment

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// pool 是固定大小的资源池，同一资源同一时刻只借给一个调用方
type pool[T any] struct {
	items   chan T
	all     []T
	timeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newPool[T any](items []T, timeout time.Duration) *pool[T] {
	p := &pool[T]{
		items:   make(chan T, len(items)),
		all:     items,
		timeout: timeout,
		done:    make(chan struct{}),
	}
	for _, it := range items {
		p.items <- it
	}
	return p
}

// acquire 等待空闲资源，受 ctx 与排队超时约束
func (p *pool[T]) acquire(ctx context.Context) (T, error) {
	var zero T
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	select {
	case <-p.done:
		return zero, ErrClosed
	default:
	}

	select {
	case it := <-p.items:
		sessionsInUse.Inc()
		return it, nil
	case <-p.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %w", ErrQueueTimeout, ctx.Err())
	}
}

func (p *pool[T]) release(it T) {
	sessionsInUse.Dec()
	p.items <- it
}

// close 标记池关闭，等待借出的资源归还后依次调用 destroy
func (p *pool[T]) close(destroy func(T)) {
	p.closeOnce.Do(func() {
		close(p.done)
		for range p.all {
			destroy(<-p.items)
		}
	})
}
