// Package cmd 是 removebg 的命令行入口
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/chaos-io/removebg/cache"
	"github.com/chaos-io/removebg/config"
	"github.com/chaos-io/removebg/removebg"
	"github.com/chaos-io/removebg/segment"
	"github.com/chaos-io/removebg/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	exitUsage    = 1
	exitPipeline = 2
)

// exitError 携带进程退出码，reported 表示错误信息已经输出过
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type options struct {
	configPath string
	logLevel   string
	rect       string
	cfg        *config.Config
}

// Execute 运行命令并返回进程退出码
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&options{})
	err := root.ExecuteContext(ctx)
	util.Sync()
	if err == nil {
		return 0
	}

	code := exitUsage
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
		if ee.reported {
			return code
		}
	}
	_, _ = fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	return code
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "removebg SRC TARGET",
		Short: "Remove the background of an image",
		Long: `Remove the background of an image and write a transparent PNG.

SRC is a local image path or an http(s) URL, TARGET is the output PNG path.`,
		Example:       "  removebg photo.jpg out.png --rect=10,10,200,300\n  removebg https://example.com/a.png out.png",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				manual(cmd.ErrOrStderr())
				return &exitError{code: exitUsage, err: errors.New("expected SRC and TARGET"), reported: true}
			}
			return runRemove(cmd, opts, args[0], args[1])
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "config file path")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	root.Flags().StringVar(&opts.rect, "rect", "", "optional, selected rectangle: x,y,width,height")

	root.AddCommand(newServeCmd(opts), newSunshineCmd(opts), newVersionCmd())
	return root
}

func (o *options) init() error {
	cfg, err := config.New(o.configPath)
	if err != nil {
		return &exitError{code: exitUsage, err: fmt.Errorf("load config: %w", err)}
	}
	o.cfg = cfg
	level := o.cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	if err := util.InitLogger(o.cfg.Server.Mode, level, o.cfg.Log.File); err != nil {
		return &exitError{code: exitUsage, err: fmt.Errorf("init logger: %w", err)}
	}
	return nil
}

func manual(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Version: %s\n", Version)
	_, _ = fmt.Fprintln(w, "Usage: removebg SRC_IMAGE_PATH TARGET_IMAGE_PATH")
	_, _ = fmt.Fprintln(w, "or:    removebg SRC_IMAGE_URL TARGET_IMAGE_PATH")
	_, _ = fmt.Fprintln(w, "Options Supported:")
	_, _ = fmt.Fprintln(w, "\t--rect=rectangle\t\t\toptional, selected rectangle: x,y,width,height")
}

// ParseRect 解析 x,y,w,h，仅当 w>0、h>0、x>=0、y>=0 时返回选区
func ParseRect(value string) ([][2]float64, bool) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return nil, false
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		v[i] = f
	}
	x, y, w, h := v[0], v[1], v[2], v[3]
	if w <= 0 || h <= 0 || x < 0 || y < 0 {
		return nil, false
	}
	return removebg.RectPolygon(x, y, w, h), true
}

// sourceRequest 根据 SRC 判断是 URL 还是本地路径
func sourceRequest(src string) *removebg.Request {
	req := &removebg.Request{ResponseFormat: removebg.FormatPNG}
	if removebg.IsHTTPURL(src) {
		req.URL = src
	} else {
		req.Path = util.ResolvePath("", src)
	}
	return req
}

// newService 加载模型与缓存
func newService(cfg *config.Config) (*removebg.Service, error) {
	seg, err := segment.New(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	c, err := cache.New(cfg.Cache, cfg.Redis)
	if err != nil {
		_ = seg.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return removebg.NewService(cfg, seg, c, nil), nil
}

func pipelineError(w io.Writer, err error) error {
	var e *removebg.Error
	if errors.As(err, &e) {
		_, _ = fmt.Fprintf(w, "Error: code=%d, msg=%s\n", e.Code, e.Msg)
	} else {
		_, _ = fmt.Fprintf(w, "Error: code=%d, msg=%v\n", removebg.CodeOf(err), err)
	}
	return &exitError{code: exitPipeline, err: err, reported: true}
}

func runRemove(cmd *cobra.Command, opts *options, src, target string) error {
	svc, err := newService(opts.cfg)
	if err != nil {
		return pipelineError(cmd.ErrOrStderr(), err)
	}
	defer func() {
		_ = svc.Close()
	}()

	req := sourceRequest(src)
	if opts.rect != "" {
		if polygon, ok := ParseRect(opts.rect); ok {
			req.SelectPolygon = polygon
		} else {
			util.Logger.Warn("ignore invalid rect", zap.String("rect", opts.rect))
		}
	}

	res, err := svc.Process(cmd.Context(), req)
	if err != nil {
		return pipelineError(cmd.ErrOrStderr(), err)
	}

	target = util.ResolvePath("", target)
	if err := os.WriteFile(target, res.PNG, 0o644); err != nil {
		return pipelineError(cmd.ErrOrStderr(), fmt.Errorf("write %s: %w", target, err))
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", target)
	return nil
}
