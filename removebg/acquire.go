package removebg

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chaos-io/removebg/util"
	nhttp "github.com/chaos-io/removebg/util/http"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrFetch  = errors.New("fetch image")
	ErrDecode = errors.New("decode image")
)

const base64Marker = ";base64,"

// Acquirer 从本地路径、URL 或 base64 读取原始图片字节
type Acquirer struct {
	baseDir  string
	cli      nhttp.IClient
	timeout  time.Duration
	maxBytes int64
}

func NewAcquirer(baseDir string, cli nhttp.IClient, timeout time.Duration, maxBytes int64) *Acquirer {
	if cli == nil {
		cli = nhttp.NewHTTPClientWithTimeout(timeout)
	}
	return &Acquirer{baseDir: baseDir, cli: cli, timeout: timeout, maxBytes: maxBytes}
}

// Fetch 返回图片字节，错误包装 ErrFetch 并带上来源
func (a *Acquirer) Fetch(ctx context.Context, req *Request) ([]byte, error) {
	switch {
	case req.Path != "":
		p := util.ResolvePath(a.baseDir, req.Path)
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: read image from %s failed: %v", ErrFetch, p, err)
		}
		return data, nil
	case req.URL != "":
		var data []byte
		err := a.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
			RequestURI:   req.URL,
			Method:       http.MethodGet,
			Response:     &data,
			Timeout:      a.timeout,
			MaxBodyBytes: a.maxBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: get image from %s failed: %v", ErrFetch, req.URL, err)
		}
		return data, nil
	case req.Base64 != "":
		data, err := DecodeBase64(req.Base64)
		if err != nil {
			return nil, fmt.Errorf("%w: parse base64 image %s failed: %v", ErrFetch, abbreviate(req.Base64), err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: no image source", ErrFetch)
}

// Source 描述图片来源，用于错误信息
func (r *Request) Source() string {
	switch {
	case r.Path != "":
		return r.Path
	case r.URL != "":
		return r.URL
	default:
		return "base64 " + abbreviate(r.Base64)
	}
}

// DecodeBase64 去掉 data URI 前缀后解码，兼容无填充的写法
func DecodeBase64(s string) ([]byte, error) {
	if i := strings.LastIndex(s, base64Marker); i >= 0 {
		s = s[i+len(base64Marker):]
	}
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return data, err
}

// Decode 解码 PNG/JPEG/GIF/BMP/TIFF/WebP，按 EXIF 方向旋转
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

func abbreviate(s string) string {
	const n = 32
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
