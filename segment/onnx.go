package segment

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/chaos-io/removebg/config"
	"github.com/chaos-io/removebg/util"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

var envMu sync.Mutex

type onnxSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *onnxSession) destroy() {
	if s.session != nil {
		_ = s.session.Destroy()
	}
	if s.input != nil {
		_ = s.input.Destroy()
	}
	if s.output != nil {
		_ = s.output.Destroy()
	}
}

// ONNXSegmenter 在进程内运行 ONNX 模型。模型启动时加载一次，
// 每个会话持有独立的输入输出张量，会话数即最大并发推理数
type ONNXSegmenter struct {
	size int
	pool *pool[*onnxSession]
}

func NewONNXSegmenter(cfg config.ModelConfig) (*ONNXSegmenter, error) {
	if !util.IsRegularFile(cfg.Path) {
		return nil, fmt.Errorf("model file not found: %s", cfg.Path)
	}
	size := cfg.InputSize
	if size <= 0 {
		size = DefaultInputSize
	}
	n := max(cfg.Sessions, 1)

	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("new session options: %w", err)
	}
	defer func() {
		_ = options.Destroy()
	}()
	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra op threads: %w", err)
		}
	}

	sessions := make([]*onnxSession, 0, n)
	for i := 0; i < n; i++ {
		s, err := newONNXSession(cfg, size, options)
		if err != nil {
			for _, s := range sessions {
				s.destroy()
			}
			return nil, err
		}
		sessions = append(sessions, s)
	}

	util.Logger.Info("onnx model loaded",
		zap.String("path", cfg.Path),
		zap.Int("inputSize", size),
		zap.Int("sessions", n))

	return &ONNXSegmenter{
		size: size,
		pool: newPool(sessions, cfg.QueueTimeout),
	}, nil
}

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

func newONNXSession(cfg config.ModelConfig, size int, options *ort.SessionOptions) (*onnxSession, error) {
	s := &onnxSession{}
	var err error

	s.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, int64(size), int64(size)))
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	s.session, err = ort.NewAdvancedSession(cfg.Path,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{s.input}, []ort.Value{s.output},
		options)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

func (o *ONNXSegmenter) Segment(ctx context.Context, img image.Image) (*image.Gray, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	s, err := o.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer o.pool.release(s)

	PreprocessInto(s.input.GetData(), img, o.size)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	return Postprocess(s.output.GetData(), o.size, o.size, b.Dx(), b.Dy())
}

// Close 等待进行中的推理结束后释放会话与运行时环境
func (o *ONNXSegmenter) Close() error {
	o.pool.close(func(s *onnxSession) { s.destroy() })

	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}
