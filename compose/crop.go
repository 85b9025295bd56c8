package compose

import (
	"image"
	"image/draw"

	"golang.org/x/image/vector"
)

// MapPolygon 把编辑器画布坐标映射为图片像素坐标，并截断到 [0, 宽/高]
// 画布尺寸 <= 0 时对应方向缩放系数为 1
func MapPolygon(points []Point, imgW, imgH int, editorW, editorH float64) []Point {
	widthFactor, heightFactor := 1.0, 1.0
	if editorW > 0 {
		widthFactor = float64(imgW) / editorW
	}
	if editorH > 0 {
		heightFactor = float64(imgH) / editorH
	}

	mapped := make([]Point, len(points))
	for i, p := range points {
		mapped[i] = Point{
			X: clamp(p.X*widthFactor, 0, float64(imgW)),
			Y: clamp(p.Y*heightFactor, 0, float64(imgH)),
		}
	}
	return mapped
}

// PolygonMask 把多边形光栅化成 w*h 的 alpha 遮罩，多边形内部为 255
func PolygonMask(w, h int, points []Point) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 || len(points) < 3 {
		return mask
	}

	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Src
	z.MoveTo(float32(points[0].X), float32(points[0].Y))
	for _, p := range points[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// CropPolygon 按用户选择的多边形裁剪图片
//
//	少于 3 个点：原图原样返回（applied=false）
//	多边形外的像素变为全透明，然后裁剪到多边形遮罩的外接矩形
//	遮罩面积为 0 时返回 0x0 的空图（applied=true），由调用方决定如何处理
func CropPolygon(img image.Image, points []Point, editorW, editorH float64) (cropped *image.NRGBA, applied bool) {
	src := ToNRGBA(img)
	if len(points) < 3 {
		return src, false
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	mask := PolygonMask(w, h, MapPolygon(points, w, h, editorW, editorH))

	box := alphaBBox(mask)
	if box.Empty() {
		return image.NewNRGBA(image.Rectangle{}), true
	}

	dst := image.NewNRGBA(image.Rect(0, 0, box.Dx(), box.Dy()))
	for y := 0; y < box.Dy(); y++ {
		srcRow := src.Pix[(box.Min.Y+y)*src.Stride+box.Min.X*4:]
		maskRow := mask.Pix[(box.Min.Y+y)*mask.Stride+box.Min.X:]
		dstRow := dst.Pix[y*dst.Stride:]
		for x := 0; x < box.Dx(); x++ {
			copy(dstRow[x*4:x*4+3], srcRow[x*4:x*4+3])
			dstRow[x*4+3] = maskRow[x]
		}
	}
	return dst, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
