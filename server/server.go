// Package server 提供抠图的 HTTP 接口
package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/chaos-io/removebg/config"
	"github.com/chaos-io/removebg/util"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// NewRouter 注册全部路由，staticDir 存在时同时提供前端页面
func NewRouter(cfg config.ServerConfig, h *Handler) *gin.Engine {
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger())
	r.Use(CORS())
	r.Use(Metrics())

	if cfg.StaticDir != "" && util.IsRegularFile(filepath.Join(cfg.StaticDir, "index.html")) {
		r.Static("/assets", filepath.Join(cfg.StaticDir, "assets"))
		r.StaticFile("/", filepath.Join(cfg.StaticDir, "index.html"))
		if svg := filepath.Join(cfg.StaticDir, "vite.svg"); util.IsRegularFile(svg) {
			r.StaticFile("/vite.svg", svg)
		}
	}

	r.GET("/health", h.Health)
	r.GET("/version", h.Version)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("", BodyLimit(cfg.MaxBodyBytes))
	{
		api.POST("/removebg", h.RemoveBg)
		api.GET("/removebg", h.RemoveBgByURL)
		api.POST("/sunshine", h.Sunshine)
	}
	return r
}

// Run 启动 HTTP 服务，ctx 取消后优雅退出
func Run(ctx context.Context, cfg config.ServerConfig, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		util.Logger.Info("server starting", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	util.Logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
