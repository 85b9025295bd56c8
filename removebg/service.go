package removebg

import (
	"context"
	"encoding/json"
	"errors"
	"image"

	"github.com/chaos-io/removebg/cache"
	"github.com/chaos-io/removebg/compose"
	"github.com/chaos-io/removebg/config"
	"github.com/chaos-io/removebg/segment"
	"github.com/chaos-io/removebg/util"
	nhttp "github.com/chaos-io/removebg/util/http"
	"go.uber.org/zap"
)

type Result struct {
	PNG    []byte
	Cached bool
}

// DataURI 返回 data:image/png;base64,... 形式的结果
func (r *Result) DataURI() string {
	return compose.Base64(r.PNG, true)
}

type Service struct {
	baseDir   string
	acquirer  *Acquirer
	segmenter segment.Segmenter
	cache     cache.Cache
	threshold uint8
}

// NewService 组装流程。c 为 nil 时不缓存，cli 为 nil 时使用默认 HTTP 客户端
func NewService(cfg *config.Config, seg segment.Segmenter, c cache.Cache, cli nhttp.IClient) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		baseDir:   cfg.Storage.BaseDir,
		acquirer:  NewAcquirer(cfg.Storage.BaseDir, cli, cfg.Fetch.Timeout, cfg.Fetch.MaxBytes),
		segmenter: seg,
		cache:     c,
		threshold: cfg.Mask.ForegroundThreshold,
	}
}

// Process 去除背景，返回 PNG。所有错误都是 *Error
func (s *Service) Process(ctx context.Context, req *Request) (res *Result, err error) {
	defer util.Trace("removebg process")()
	defer func() { observe("removebg", err) }()

	img, data, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}

	key := s.cacheKey(data, req)
	if png, ok := s.lookup(ctx, key); ok {
		return &Result{PNG: png, Cached: true}, nil
	}

	cropped, mask, err := s.segment(ctx, req, img, req.KeepLargest)
	if err != nil {
		return nil, err
	}

	out, err := compose.ApplyMask(cropped, mask)
	if err != nil {
		return nil, newError(CodeProcessed, err, "composite image failed: %v", err)
	}
	png, err := compose.EncodePNG(out)
	if err != nil {
		return nil, newError(CodeProcessed, err, "encode image failed: %v", err)
	}

	s.store(ctx, key, png)
	return &Result{PNG: png}, nil
}

// Sunshine 生成扫光效果的 7 帧 PNG，遮罩固定只保留最大连通域
func (s *Service) Sunshine(ctx context.Context, req *Request, removeBg bool) (frames [][]byte, err error) {
	defer util.Trace("removebg sunshine")()
	defer func() { observe("sunshine", err) }()

	img, _, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}
	cropped, mask, err := s.segment(ctx, req, img, true)
	if err != nil {
		return nil, err
	}

	images, err := compose.Sunshine(cropped, mask, removeBg)
	if err != nil {
		return nil, newError(CodeProcessed, err, "sunshine effect failed: %v", err)
	}
	frames = make([][]byte, 0, len(images))
	for i, im := range images {
		png, err := compose.EncodePNG(im)
		if err != nil {
			return nil, newError(CodeProcessed, err, "encode frame %d failed: %v", i, err)
		}
		frames = append(frames, png)
	}
	return frames, nil
}

func (s *Service) load(ctx context.Context, req *Request) (image.Image, []byte, error) {
	if e := req.Check(s.baseDir); e != nil {
		return nil, nil, e
	}

	data, err := s.acquirer.Fetch(ctx, req)
	if err != nil {
		util.Logger.Warn("get image failed", zap.String("source", req.Source()), zap.Error(err))
		return nil, nil, newError(CodeAcquire, err, "%v", err)
	}
	img, err := Decode(data)
	if err != nil {
		util.Logger.Warn("decode image failed", zap.String("source", req.Source()), zap.Error(err))
		return nil, nil, newError(CodeAcquire, err, "decode image from %s failed", req.Source())
	}
	return img, data, nil
}

// segment 多边形裁剪后推理，遮罩限制在选区内
func (s *Service) segment(ctx context.Context, req *Request, img image.Image, keepLargest bool) (*image.NRGBA, *image.Gray, error) {
	cropped, applied := compose.CropPolygon(img, req.Polygon(), req.EditorSize[0], req.EditorSize[1])
	if cropped.Bounds().Empty() {
		return nil, nil, newError(CodeProcessed, nil, "selected polygon area is empty")
	}

	mask, err := s.segmenter.Segment(ctx, cropped)
	if err != nil {
		util.Logger.Error("segment image failed", zap.String("source", req.Source()), zap.Error(err))
		return nil, nil, newError(CodeProcessed, err, "segment image failed: %v", err)
	}
	if applied {
		if mask, err = compose.ClipToAlpha(mask, cropped); err != nil {
			return nil, nil, newError(CodeProcessed, err, "clip mask failed: %v", err)
		}
	}
	if keepLargest {
		mask = compose.KeepLargestComponent(mask, s.threshold)
	}
	return cropped, mask, nil
}

type cacheParams struct {
	Polygon     [][2]float64 `json:"p,omitempty"`
	Editor      [2]float64   `json:"e"`
	KeepLargest bool         `json:"k"`
	Threshold   uint8        `json:"t"`
}

func (s *Service) cacheKey(data []byte, req *Request) string {
	params, _ := json.Marshal(cacheParams{
		Polygon:     req.SelectPolygon,
		Editor:      req.EditorSize,
		KeepLargest: req.KeepLargest,
		Threshold:   s.threshold,
	})
	return util.BytesMD5(data, params)
}

// 缓存读写失败只记日志
func (s *Service) lookup(ctx context.Context, key string) ([]byte, bool) {
	png, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		util.Logger.Warn("get cached result failed", zap.String("key", key), zap.Error(err))
		cacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	if !ok {
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	cacheLookups.WithLabelValues("hit").Inc()
	util.Logger.Debug("cache hit", zap.String("key", key))
	return png, true
}

func (s *Service) store(ctx context.Context, key string, png []byte) {
	if err := s.cache.Set(ctx, key, png); err != nil && !errors.Is(err, context.Canceled) {
		util.Logger.Warn("set cached result failed", zap.String("key", key), zap.Error(err))
	}
}

// Close 释放推理后端与缓存
func (s *Service) Close() error {
	return errors.Join(s.segmenter.Close(), s.cache.Close())
}
