package compose

import "image"

// KeepLargestComponent 只保留遮罩中面积最大的 8 连通前景区域
//
//	前景：像素值 > threshold，不大于 threshold 的像素一律置 0
//	没有前景：返回全 0 遮罩
//	保留面积最大的区域（相同面积取扫描顺序靠前的），其余置 0，保留区域的灰度值不变
func KeepLargestComponent(mask *image.Gray, threshold uint8) *image.Gray {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()

	labels := make([]int32, w*h)
	var areas []int
	queue := make([]int, 0, 256)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if labels[idx] != 0 || mask.Pix[y*mask.Stride+x] <= threshold {
				continue
			}

			label := int32(len(areas) + 1)
			labels[idx] = label
			queue = append(queue[:0], idx)

			for i := 0; i < len(queue); i++ {
				px, py := queue[i]%w, queue[i]/w
				for dy := -1; dy <= 1; dy++ {
					ny := py + dy
					if ny < 0 || ny >= h {
						continue
					}
					for dx := -1; dx <= 1; dx++ {
						nx := px + dx
						if nx < 0 || nx >= w || (dx == 0 && dy == 0) {
							continue
						}
						n := ny*w + nx
						if labels[n] != 0 || mask.Pix[ny*mask.Stride+nx] <= threshold {
							continue
						}
						labels[n] = label
						queue = append(queue, n)
					}
				}
			}
			areas = append(areas, len(queue))
		}
	}

	if len(areas) == 0 {
		return image.NewGray(b)
	}

	largest := 0
	for i, area := range areas {
		if area > areas[largest] {
			largest = i
		}
	}
	keep := int32(largest + 1)

	out := image.NewGray(b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if labels[y*w+x] == keep {
				out.Pix[y*out.Stride+x] = mask.Pix[y*mask.Stride+x]
			}
		}
	}
	return out
}
