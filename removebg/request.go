// Package removebg 串起整条抠图流程：校验请求，获取图片，多边形裁剪，
// 分割推理，合成透明图并编码为 PNG
package removebg

import (
	"net/url"

	"github.com/chaos-io/removebg/compose"
	"github.com/chaos-io/removebg/util"
)

const (
	FormatBase64 = 0 // JSON 中返回 data URI
	FormatPNG    = 1 // 直接返回 image/png
)

type Request struct {
	Path           string       `json:"path"`
	URL            string       `json:"url"`
	Base64         string       `json:"base64"`
	SelectPolygon  [][2]float64 `json:"selectPolygon"`
	EditorSize     [2]float64   `json:"editorSize"`
	ResponseFormat int          `json:"responseFormat"`
	// 只保留最大的前景连通域
	KeepLargest bool `json:"keepLargest"`
}

// Check 校验图片来源，path/url/base64 必须且只能有一个
func (r *Request) Check(baseDir string) *Error {
	switch r.sources() {
	case 0:
		return newError(CodeNoSource, nil, "One of the path/url/base64 parameters must have a value")
	case 1:
	default:
		return newError(CodeMultiSrc, nil, "Only one of the path/url/base64 parameters can have a value")
	}
	if r.Path != "" {
		if !util.IsRegularFile(util.ResolvePath(baseDir, r.Path)) {
			return newError(CodeBadPath, nil, "path: %s not exist or it is not file!", r.Path)
		}
		return nil
	}
	if r.URL != "" && !IsHTTPURL(r.URL) {
		return newError(CodeBadURL, nil, "url: %s is not valid url!", r.URL)
	}
	return nil
}

func (r *Request) sources() int {
	n := 0
	for _, s := range []string{r.Path, r.URL, r.Base64} {
		if s != "" {
			n++
		}
	}
	return n
}

// IsHTTPURL 判断是否为带 host 的 http(s) 绝对地址
func IsHTTPURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r *Request) Polygon() []compose.Point {
	if len(r.SelectPolygon) == 0 {
		return nil
	}
	points := make([]compose.Point, len(r.SelectPolygon))
	for i, p := range r.SelectPolygon {
		points[i] = compose.Point{X: p[0], Y: p[1]}
	}
	return points
}

// RectPolygon 把矩形选区转成顺时针四边形
func RectPolygon(x, y, w, h float64) [][2]float64 {
	return [][2]float64{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
}
