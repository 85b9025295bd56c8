package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/chaos-io/removebg/removebg"
	"github.com/chaos-io/removebg/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Processor 由 removebg.Service 实现
type Processor interface {
	Process(ctx context.Context, req *removebg.Request) (*removebg.Result, error)
	Sunshine(ctx context.Context, req *removebg.Request, removeBg bool) ([][]byte, error)
}

type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

type Response struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Result any    `json:"result"`
}

type SunshineRequest struct {
	removebg.Request
	RemoveBg bool `json:"removeBg"`
}

type Handler struct {
	svc   Processor
	build BuildInfo
}

func NewHandler(svc Processor, build BuildInfo) *Handler {
	return &Handler{svc: svc, build: build}
}

// StatusOf 错误码对应的 HTTP 状态
func StatusOf(code int) int {
	switch {
	case code == removebg.CodeOK:
		return http.StatusOK
	case code < removebg.CodeAcquire:
		return http.StatusBadRequest
	case code < removebg.CodeProcessed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := removebg.CodeOf(err)
	msg := err.Error()
	var e *removebg.Error
	if errors.As(err, &e) {
		msg = e.Msg
	}
	util.Logger.Warn("request failed",
		zap.String("request_id", c.GetString(ctxRequestID)),
		zap.Int("code", code),
		zap.String("msg", msg))
	c.JSON(StatusOf(code), Response{Code: code, Msg: msg, Result: ""})
}

func (h *Handler) badBody(c *gin.Context, err error) {
	h.fail(c, &removebg.Error{Code: removebg.CodeNoSource, Msg: "invalid request body: " + err.Error(), Err: err})
}

// RemoveBg POST /removebg
func (h *Handler) RemoveBg(c *gin.Context) {
	var req removebg.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c, err)
		return
	}
	h.process(c, &req)
}

// RemoveBgByURL GET /removebg?url=...，只返回 PNG
func (h *Handler) RemoveBgByURL(c *gin.Context) {
	req := removebg.Request{URL: c.Query("url"), ResponseFormat: removebg.FormatPNG}
	h.process(c, &req)
}

func (h *Handler) process(c *gin.Context, req *removebg.Request) {
	res, err := h.svc.Process(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	if res.Cached {
		c.Header("X-Cache", "HIT")
	}
	if req.ResponseFormat == removebg.FormatPNG {
		c.Data(http.StatusOK, "image/png", res.PNG)
		return
	}
	c.JSON(http.StatusOK, Response{Code: removebg.CodeOK, Msg: "", Result: res.DataURI()})
}

// Sunshine POST /sunshine，返回 7 帧 data URI
func (h *Handler) Sunshine(c *gin.Context) {
	var req SunshineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badBody(c, err)
		return
	}
	frames, err := h.svc.Sunshine(c.Request.Context(), &req.Request, req.RemoveBg)
	if err != nil {
		h.fail(c, err)
		return
	}
	result := make([]string, len(frames))
	for i, f := range frames {
		result[i] = (&removebg.Result{PNG: f}).DataURI()
	}
	c.JSON(http.StatusOK, Response{Code: removebg.CodeOK, Msg: "", Result: result})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.build.Version,
	})
}

func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}
