// Package segment 负责前景分割推理，输出与原图同尺寸的灰度遮罩
package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/chaos-io/removebg/config"
)

const (
	BackendONNX   = "onnx"
	BackendRemote = "remote"
)

var (
	ErrEmptyImage   = errors.New("empty image")
	ErrQueueTimeout = errors.New("wait for inference session")
	ErrClosed       = errors.New("segmenter closed")
)

// Segmenter 对整张图做前景分割，返回 0-255 的遮罩，尺寸与 img 一致
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (*image.Gray, error)
	Close() error
}

// New 根据配置创建推理后端，返回的 Segmenter 会记录推理耗时
func New(cfg config.ModelConfig) (Segmenter, error) {
	var (
		s   Segmenter
		err error
	)
	switch cfg.Backend {
	case BackendONNX:
		s, err = NewONNXSegmenter(cfg)
	case BackendRemote:
		s = NewRemoteSegmenter(cfg.RemoteURL, cfg.RemoteTimeout)
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(s, cfg.Backend), nil
}

type instrumented struct {
	Segmenter
	backend string
}

// Instrument 包装 Segmenter，按后端统计推理耗时与失败次数
func Instrument(s Segmenter, backend string) Segmenter {
	return &instrumented{Segmenter: s, backend: backend}
}

func (i *instrumented) Segment(ctx context.Context, img image.Image) (*image.Gray, error) {
	start := time.Now()
	mask, err := i.Segmenter.Segment(ctx, img)
	inferenceDuration.WithLabelValues(i.backend).Observe(time.Since(start).Seconds())
	if err != nil {
		inferenceErrors.WithLabelValues(i.backend).Inc()
	}
	return mask, err
}
