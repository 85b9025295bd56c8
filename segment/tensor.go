package segment

import (
	"fmt"
	"image"

	"github.com/chaos-io/removebg/compose"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

const (
	DefaultInputSize = 1024

	normMean = 0.5
	normStd  = 1.0
)

// Preprocess 生成模型输入：RGB 三通道，双线性缩放到 size*size，
// 像素缩放到 [0,1] 后减均值除方差，按 CHW 排列
func Preprocess(img image.Image, size int) []float32 {
	dst := make([]float32, 3*size*size)
	PreprocessInto(dst, img, size)
	return dst
}

// PreprocessInto 同 Preprocess，结果写入 dst（长度至少 3*size*size）
func PreprocessInto(dst []float32, img image.Image, size int) {
	rgb := opaqueRGB(img)
	resized := resize.Resize(uint(size), uint(size), rgb, resize.Bilinear)
	src := compose.ToNRGBA(resized)

	plane := size * size
	for y := 0; y < size; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			dst[i] = (float32(row[x*4])/255 - normMean) / normStd
			dst[plane+i] = (float32(row[x*4+1])/255 - normMean) / normStd
			dst[2*plane+i] = (float32(row[x*4+2])/255 - normMean) / normStd
		}
	}
}

// opaqueRGB 丢弃 alpha，保留未预乘的颜色值；灰度图复制到三个通道
func opaqueRGB(img image.Image) *image.RGBA {
	src := compose.ToNRGBA(img)
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for i := 0; i < len(src.Pix); i += 4 {
		dst.Pix[i] = src.Pix[i]
		dst.Pix[i+1] = src.Pix[i+1]
		dst.Pix[i+2] = src.Pix[i+2]
		dst.Pix[i+3] = 255
	}
	return dst
}

// Postprocess 把模型输出（outW*outH 的单通道张量）双线性缩放回 w*h，
// 再做 min-max 归一化到 [0,255]。输出为常量时返回全 0 遮罩
func Postprocess(out []float32, outW, outH, w, h int) (*image.Gray, error) {
	if outW <= 0 || outH <= 0 || len(out) < outW*outH {
		return nil, fmt.Errorf("invalid output tensor: %d values for %dx%d", len(out), outW, outH)
	}
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyImage
	}
	out = out[:outW*outH]

	// 先用张量自身的范围量化到 16 位，再交给 x/image/draw 做双线性缩放
	plane := image.NewGray16(image.Rect(0, 0, outW, outH))
	lo, hi := minMax(out)
	if hi > lo {
		scale := 65535 / (hi - lo)
		for i, v := range out {
			q := uint16((v - lo) * scale)
			plane.Pix[2*i] = uint8(q >> 8)
			plane.Pix[2*i+1] = uint8(q)
		}
	}

	resized := plane
	if outW != w || outH != h {
		resized = image.NewGray16(image.Rect(0, 0, w, h))
		draw.BiLinear.Scale(resized, resized.Bounds(), plane, plane.Bounds(), draw.Src, nil)
	}

	values := make([]uint32, w*h)
	rlo, rhi := uint32(65535), uint32(0)
	for i := range values {
		v := uint32(resized.Pix[2*i])<<8 | uint32(resized.Pix[2*i+1])
		values[i] = v
		rlo = min(rlo, v)
		rhi = max(rhi, v)
	}

	mask := image.NewGray(image.Rect(0, 0, w, h))
	if rhi <= rlo {
		return mask, nil
	}
	span := rhi - rlo
	for i, v := range values {
		mask.Pix[i] = uint8((v - rlo) * 255 / span)
	}
	return mask, nil
}

func minMax(values []float32) (lo, hi float32) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
