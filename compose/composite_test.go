package compose

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMask(t *testing.T) {
	img := solid(3, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	mask := grayFrom(
		[]uint8{0, 128, 255},
		[]uint8{255, 1, 0},
	)

	got, err := ApplyMask(img, mask)
	require.NoError(t, err)

	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			c := got.NRGBAAt(x, y)
			assert.Equal(t, mask.GrayAt(x, y).Y, c.A)
			assert.Equal(t, uint8(10), c.R)
			assert.Equal(t, uint8(20), c.G)
			assert.Equal(t, uint8(30), c.B)
		}
	}
}

func TestApplyMask_SizeMismatch(t *testing.T) {
	_, err := ApplyMask(solid(3, 3, color.NRGBA{}), image.NewGray(image.Rect(0, 0, 2, 3)))
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestApplyMask_GraySource(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.SetGray(0, 0, color.Gray{Y: 77})
	mask := grayFrom([]uint8{255, 0})

	got, err := ApplyMask(src, mask)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 77, G: 77, B: 77, A: 255}, got.NRGBAAt(0, 0))
	assert.Equal(t, uint8(0), got.NRGBAAt(1, 0).A)
}

func TestClipToAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{A: 100})
	img.SetNRGBA(2, 0, color.NRGBA{A: 0})
	mask := grayFrom([]uint8{200, 200, 200})

	got, err := ClipToAlpha(mask, img)
	require.NoError(t, err)
	assert.Equal(t, []uint8{200, 100, 0}, got.Pix)

	_, err = ClipToAlpha(grayFrom([]uint8{1}), img)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}
