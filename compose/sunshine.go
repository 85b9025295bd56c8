package compose

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"golang.org/x/image/draw"
)

const (
	// SunshineFrames 扫光帧数，外接矩形按 8 等分得到 7 条分割线
	SunshineFrames = 7

	sunshineLineWidth = 25
	// 对应 51x51 高斯核在 sigma 自动推导时的值
	sunshineBlurSigma = 8.0
)

// Sunshine 生成从右上到左下扫过主体的 7 帧光照图，每帧的 alpha 通道都等于 mask
// removeBg 为 true 时先用 mask 去掉背景再叠加光照
func Sunshine(src image.Image, mask *image.Gray, removeBg bool) ([]*image.NRGBA, error) {
	base := imaging.Clone(src)
	if !sameSize(base.Bounds(), mask.Bounds()) {
		return nil, ErrSizeMismatch
	}
	if removeBg {
		setAlpha(base, mask)
	} else {
		fillAlpha(base, 255)
	}

	rect := grayBBox(mask).Sub(mask.Bounds().Min)
	xstep := float64(rect.Dx()) / (SunshineFrames + 1)
	ystep := float64(rect.Dy()) / (SunshineFrames + 1)

	frames := make([]*image.NRGBA, 0, SunshineFrames)
	for i := 1; i <= SunshineFrames; i++ {
		topRight := Point{
			X: float64(rect.Min.X) + float64(i)*xstep,
			Y: float64(rect.Min.Y) + float64(i-1)*ystep,
		}
		bottomLeft := Point{
			X: float64(rect.Min.X) + float64(i-1)*xstep,
			Y: float64(rect.Min.Y) + float64(i)*ystep,
		}

		overlay := image.NewRGBA(base.Bounds())
		if p1, p2, ok := sweepSegment(rect, topRight, bottomLeft); ok {
			strokeLine(overlay, p1, p2)
		}
		light := imaging.Blur(overlay, sunshineBlurSigma)

		frame := imaging.Clone(base)
		draw.Draw(frame, frame.Bounds(), light, image.Point{}, draw.Over)
		setAlpha(frame, mask)
		frames = append(frames, frame)
	}
	return frames, nil
}

// sweepSegment 把经过 p1、p2 的直线延长到 rect 边界，返回与边界的两个交点
func sweepSegment(rect image.Rectangle, p1, p2 Point) (Point, Point, bool) {
	if rect.Empty() {
		return Point{}, Point{}, false
	}

	x0, y0 := float64(rect.Min.X), float64(rect.Min.Y)
	x1, y1 := float64(rect.Max.X), float64(rect.Max.Y)

	var candidates []Point
	add := func(p Point) {
		p = Point{X: math.Round(p.X), Y: math.Round(p.Y)}
		for _, c := range candidates {
			if c == p {
				return
			}
		}
		candidates = append(candidates, p)
	}

	if p2.X == p1.X {
		if p1.X >= x0 && p1.X <= x1 {
			add(Point{X: p1.X, Y: y0})
			add(Point{X: p1.X, Y: y1})
		}
	} else {
		k := (p2.Y - p1.Y) / (p2.X - p1.X)
		if y := k*(x0-p1.X) + p1.Y; y >= y0 && y <= y1 {
			add(Point{X: x0, Y: y})
		}
		if y := k*(x1-p1.X) + p1.Y; y >= y0 && y <= y1 {
			add(Point{X: x1, Y: y})
		}
		if k != 0 {
			if x := (y0-p1.Y)/k + p1.X; x >= x0 && x <= x1 {
				add(Point{X: x, Y: y0})
			}
			if x := (y1-p1.Y)/k + p1.X; x >= x0 && x <= x1 {
				add(Point{X: x, Y: y1})
			}
		}
	}

	if len(candidates) < 2 {
		return Point{}, Point{}, false
	}

	// 经过矩形角点时可能得到 3~4 个交点，取距离最远的一对
	a, b, best := 0, 1, -1.0
	for i := range candidates {
		for j := i + 1; j < len(candidates); j++ {
			dx, dy := candidates[i].X-candidates[j].X, candidates[i].Y-candidates[j].Y
			if d := dx*dx + dy*dy; d > best {
				a, b, best = i, j, d
			}
		}
	}
	return candidates[a], candidates[b], true
}

func strokeLine(dst *image.RGBA, p1, p2 Point) {
	gc := draw2dimg.NewGraphicContext(dst)
	gc.SetStrokeColor(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	gc.SetLineWidth(sunshineLineWidth)
	gc.SetLineCap(draw2d.RoundCap)
	gc.BeginPath()
	gc.MoveTo(p1.X, p1.Y)
	gc.LineTo(p2.X, p2.Y)
	gc.Stroke()
}
