package removebg

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/chaos-io/removebg/cache"
	"github.com/chaos-io/removebg/compose"
	"github.com/chaos-io/removebg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halfSegmenter 把左半边当作前景
type halfSegmenter struct {
	calls atomic.Int32
	err   error
}

func (h *halfSegmenter) Segment(_ context.Context, img image.Image) (*image.Gray, error) {
	h.calls.Add(1)
	if h.err != nil {
		return nil, h.err
	}
	b := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx()/2; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return mask, nil
}

func (h *halfSegmenter) Close() error { return nil }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 100, 50, 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func newTestService(t *testing.T, seg *halfSegmenter, c cache.Cache) (*Service, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.BaseDir = t.TempDir()
	return NewService(cfg, seg, c, nil), cfg.Storage.BaseDir
}

func TestRequest_Check(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	tests := []struct {
		name string
		req  Request
		code int
	}{
		{name: "没有来源", req: Request{}, code: CodeNoSource},
		{name: "路径不存在", req: Request{Path: "missing.png"}, code: CodeBadPath},
		{name: "路径是目录", req: Request{Path: "sub"}, code: CodeBadPath},
		{name: "相对路径", req: Request{Path: "a.png"}, code: CodeOK},
		{name: "同时给了路径和url", req: Request{Path: "a.png", URL: "https://example.com/a.png"}, code: CodeMultiSrc},
		{name: "同时给了url和base64", req: Request{URL: "https://example.com/a.png", Base64: "aGVsbG8="}, code: CodeMultiSrc},
		{name: "三个来源都有", req: Request{Path: "a.png", URL: "https://example.com/a.png", Base64: "aGVsbG8="}, code: CodeMultiSrc},
		{name: "非法url", req: Request{URL: "not a url"}, code: CodeBadURL},
		{name: "缺少host", req: Request{URL: "http://"}, code: CodeBadURL},
		{name: "非http协议", req: Request{URL: "ftp://example.com/a.png"}, code: CodeBadURL},
		{name: "合法url", req: Request{URL: "https://example.com/a.png?x=1"}, code: CodeOK},
		{name: "base64", req: Request{Base64: "abc"}, code: CodeOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.req.Check(dir)
			if tt.code == CodeOK {
				assert.Nil(t, e)
				return
			}
			require.NotNil(t, e)
			assert.Equal(t, tt.code, e.Code)
			assert.NotEmpty(t, e.Msg)
		})
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeOK, CodeOf(nil))
	assert.Equal(t, CodeBadURL, CodeOf(&Error{Code: CodeBadURL}))
	assert.Equal(t, CodeAcquire, CodeOf(errors.Join(errors.New("x"), &Error{Code: CodeAcquire})))
	assert.Equal(t, CodeProcessed, CodeOf(errors.New("boom")))
}

func TestDecodeBase64(t *testing.T) {
	data, err := DecodeBase64("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = DecodeBase64("aGVsbG8")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = DecodeBase64("!!!")
	assert.Error(t, err)
}

func TestService_Process_Base64(t *testing.T) {
	seg := &halfSegmenter{}
	s, _ := newTestService(t, seg, nil)

	req := &Request{Base64: compose.Base64(pngBytes(t, 8, 4), true)}
	res, err := s.Process(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Contains(t, res.DataURI(), compose.DataURIPrefix)

	out := decodePNG(t, res.PNG)
	assert.Equal(t, image.Rect(0, 0, 8, 4), out.Bounds())
	_, _, _, a := out.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	_, _, _, a = out.At(6, 1).RGBA()
	assert.Equal(t, uint32(0), a)
}

func TestService_Process_PathAndURL(t *testing.T) {
	data := pngBytes(t, 6, 6)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	}))
	defer server.Close()

	s, dir := newTestService(t, &halfSegmenter{}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), data, 0o644))

	res, err := s.Process(context.Background(), &Request{Path: "a.png"})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 6), decodePNG(t, res.PNG).Bounds())

	res, err = s.Process(context.Background(), &Request{URL: server.URL + "/a.png"})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 6), decodePNG(t, res.PNG).Bounds())

	_, err = s.Process(context.Background(), &Request{URL: server.URL + "/missing.png"})
	assert.Equal(t, CodeAcquire, CodeOf(err))
	assert.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "/missing.png")
}

func TestService_Process_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		segErr  error
		code    int
		wantErr error
	}{
		{name: "没有来源", req: &Request{}, code: CodeNoSource},
		{name: "多个来源", req: &Request{URL: "https://example.com/a.png", Base64: "png"}, code: CodeMultiSrc},
		{name: "路径不存在", req: &Request{Path: "nope.png"}, code: CodeBadPath},
		{name: "非法url", req: &Request{URL: "::"}, code: CodeBadURL},
		{name: "base64 解析失败", req: &Request{Base64: "!!!"}, code: CodeAcquire, wantErr: ErrFetch},
		{name: "不是图片", req: &Request{Base64: "aGVsbG8="}, code: CodeAcquire, wantErr: ErrDecode},
		{name: "推理失败", req: &Request{Base64: "png"}, segErr: errors.New("onnx failed"), code: CodeProcessed},
		{
			name: "选区面积为 0",
			req:  &Request{Base64: "png", SelectPolygon: [][2]float64{{1, 1}, {2, 2}, {3, 3}}},
			code: CodeProcessed,
		},
	}

	valid := compose.Base64(pngBytes(t, 8, 8), false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := &halfSegmenter{err: tt.segErr}
			s, _ := newTestService(t, seg, nil)
			if tt.req.Base64 == "png" {
				tt.req.Base64 = valid
			}

			res, err := s.Process(context.Background(), tt.req)
			assert.Nil(t, res)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestService_Process_Polygon(t *testing.T) {
	seg := &halfSegmenter{}
	s, _ := newTestService(t, seg, nil)

	req := &Request{
		Base64:        compose.Base64(pngBytes(t, 20, 20), false),
		SelectPolygon: RectPolygon(2, 4, 5, 3),
		EditorSize:    [2]float64{10, 10},
	}
	res, err := s.Process(context.Background(), req)
	require.NoError(t, err)

	// 编辑器坐标放大两倍后裁剪
	out := decodePNG(t, res.PNG)
	assert.Equal(t, image.Rect(0, 0, 10, 6), out.Bounds())
	_, _, _, a := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	_, _, _, a = out.At(9, 5).RGBA()
	assert.Equal(t, uint32(0), a)
}

func TestService_Process_Cache(t *testing.T) {
	disk, err := cache.NewDiskCache(t.TempDir(), 0)
	require.NoError(t, err)

	seg := &halfSegmenter{}
	s, _ := newTestService(t, seg, disk)
	req := &Request{Base64: compose.Base64(pngBytes(t, 4, 4), false)}

	first, err := s.Process(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Process(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.PNG, second.PNG)
	assert.Equal(t, int32(1), seg.calls.Load())

	// 参数不同不命中
	req.KeepLargest = true
	third, err := s.Process(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, int32(2), seg.calls.Load())
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("redis down")
}
func (brokenCache) Set(context.Context, string, []byte) error { return errors.New("redis down") }
func (brokenCache) Close() error                            { return nil }

func TestService_Process_CacheFailureIgnored(t *testing.T) {
	s, _ := newTestService(t, &halfSegmenter{}, brokenCache{})
	res, err := s.Process(context.Background(), &Request{Base64: compose.Base64(pngBytes(t, 4, 4), false)})
	require.NoError(t, err)
	assert.NotEmpty(t, res.PNG)
}

func TestService_Sunshine(t *testing.T) {
	seg := &halfSegmenter{}
	s, _ := newTestService(t, seg, nil)
	req := &Request{Base64: compose.Base64(pngBytes(t, 16, 12), false)}

	for _, removeBg := range []bool{true, false} {
		frames, err := s.Sunshine(context.Background(), req, removeBg)
		require.NoError(t, err)
		require.Len(t, frames, compose.SunshineFrames)
		for _, f := range frames {
			img := decodePNG(t, f)
			assert.Equal(t, image.Rect(0, 0, 16, 12), img.Bounds())
			_, _, _, a := img.At(15, 0).RGBA()
			assert.Equal(t, uint32(0), a)
		}
	}

	_, err := s.Sunshine(context.Background(), &Request{}, true)
	assert.Equal(t, CodeNoSource, CodeOf(err))
}
