package compose

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const DataURIPrefix = "data:image/png;base64,"

// EncodePNG 编码为 PNG 字节
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64 编码为 base64 PNG，dataURI 为 true 时带上 data:image/png;base64, 前缀
func EncodeBase64(img image.Image, dataURI bool) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return Base64(data, dataURI), nil
}

// Base64 把已编码的 PNG 字节转成 base64 字符串
func Base64(png []byte, dataURI bool) string {
	s := base64.StdEncoding.EncodeToString(png)
	if dataURI {
		return DataURIPrefix + s
	}
	return s
}
