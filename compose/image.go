// Package compose 实现抠图流程中与模型无关的图像操作：
// 多边形裁剪、连通域清理、alpha 合成、扫光特效和 PNG 编码。
package compose

import (
	"errors"
	"image"
	"image/draw"
)

var ErrSizeMismatch = errors.New("mask size does not match image size")

// Point 浮点像素坐标
type Point struct {
	X, Y float64
}

// ToNRGBA 转成原点在 (0,0) 的 NRGBA，已经满足条件时直接返回原图
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return nrgba
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// alphaBBox 返回 alpha > 0 的最小外接矩形，没有前景时返回空矩形
func alphaBBox(mask *image.Alpha) image.Rectangle {
	return bbox(mask.Pix, mask.Stride, mask.Bounds())
}

// grayBBox 返回非零像素的最小外接矩形
func grayBBox(mask *image.Gray) image.Rectangle {
	return bbox(mask.Pix, mask.Stride, mask.Bounds())
}

func bbox(pix []uint8, stride int, b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	minX, minY := w, h
	maxX, maxY := -1, -1

	for y := 0; y < h; y++ {
		row := pix[y*stride : y*stride+w]
		for x, v := range row {
			if v == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1).Add(b.Min)
}

func sameSize(a, b image.Rectangle) bool {
	return a.Dx() == b.Dx() && a.Dy() == b.Dy()
}
