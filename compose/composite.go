package compose

import (
	"image"
)

// ApplyMask 以 mask 作为 alpha 通道，RGB 取自原图
func ApplyMask(img image.Image, mask *image.Gray) (*image.NRGBA, error) {
	src := ToNRGBA(img)
	if !sameSize(src.Bounds(), mask.Bounds()) {
		return nil, ErrSizeMismatch
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcRow := src.Pix[y*src.Stride:]
		maskRow := mask.Pix[y*mask.Stride:]
		dstRow := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			copy(dstRow[x*4:x*4+3], srcRow[x*4:x*4+3])
			dstRow[x*4+3] = maskRow[x]
		}
	}
	return dst, nil
}

// ClipToAlpha 逐像素取 mask 与 img alpha 的较小值，把模型遮罩限制在多边形选区内
func ClipToAlpha(mask *image.Gray, img *image.NRGBA) (*image.Gray, error) {
	if !sameSize(mask.Bounds(), img.Bounds()) {
		return nil, ErrSizeMismatch
	}

	w, h := mask.Bounds().Dx(), mask.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := mask.Pix[y*mask.Stride+x]
			a := img.Pix[y*img.Stride+x*4+3]
			out.Pix[y*out.Stride+x] = min(m, a)
		}
	}
	return out, nil
}

// setAlpha 把 mask 写入 img 的 alpha 通道（原地修改）
func setAlpha(img *image.NRGBA, mask *image.Gray) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x*4+3] = mask.Pix[y*mask.Stride+x]
		}
	}
}

// fillAlpha 把 img 的 alpha 通道全部设为 a（原地修改）
func fillAlpha(img *image.NRGBA, a uint8) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = a
	}
}
