package segment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/chaos-io/removebg/compose"
	nhttp "github.com/chaos-io/removebg/util/http"
	"github.com/disintegration/imaging"
)

var ErrUnexpectedContent = errors.New("unexpected mask content type")

// RemoteSegmenter 把图片上传到外部分割服务，服务返回灰度遮罩 PNG
//
//	curl -X POST "$URL" -F "image=@input.png" -F "type=mask"
type RemoteSegmenter struct {
	url     string
	timeout time.Duration
	cli     nhttp.IClient
}

func NewRemoteSegmenter(url string, timeout time.Duration) *RemoteSegmenter {
	return &RemoteSegmenter{
		url:     url,
		timeout: timeout,
		cli:     nhttp.NewHTTPClientWithTimeout(timeout),
	}
}

func (r *RemoteSegmenter) Segment(ctx context.Context, img image.Image) (*image.Gray, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	body, contentType, err := r.uploadBody(img)
	if err != nil {
		return nil, err
	}

	var raw []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.url,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": contentType},
		Body:       body,
		Response:   &raw,
		Timeout:    r.timeout,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if !isImageContent(reqParam.ContentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedContent, reqParam.ContentType)
	}

	out, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}
	ob := out.Bounds()
	gray := image.NewGray(image.Rect(0, 0, ob.Dx(), ob.Dy()))
	draw.Draw(gray, gray.Bounds(), out, ob.Min, draw.Src)

	plane := make([]float32, len(gray.Pix))
	for i, v := range gray.Pix {
		plane[i] = float32(v)
	}
	return Postprocess(plane, ob.Dx(), ob.Dy(), b.Dx(), b.Dy())
}

// isImageContent 未声明类型或声明为图片/二进制流时才按遮罩解码
func isImageContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/octet-stream"
}

func (r *RemoteSegmenter) uploadBody(img image.Image) (*bytes.Buffer, string, error) {
	data, err := compose.EncodePNG(img)
	if err != nil {
		return nil, "", err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// image 文件字段
	part, err := writer.CreateFormFile("image", "input.png")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}

	_ = writer.WriteField("type", "mask")
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func (r *RemoteSegmenter) Close() error {
	return nil
}
