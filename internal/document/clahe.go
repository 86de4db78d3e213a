package document

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// claheLuminance applies contrast-limited adaptive histogram equalization to
// the luminance channel of the image, leaving chroma untouched. The image is
// split into grid x grid tiles; each tile gets its own clipped-histogram
// equalization mapping, and per-pixel values are bilinearly interpolated
// between the four surrounding tile mappings to avoid visible tile seams.
func claheLuminance(src image.Image, clipLimit float64, grid int) *image.NRGBA {
	img := imaging.Clone(src)
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 || grid < 1 {
		return img
	}

	luma := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			yv, _, _ := color.RGBToYCbCr(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
			luma[y*w+x] = yv
		}
	}

	tileW := (w + grid - 1) / grid
	tileH := (h + grid - 1) / grid

	luts := make([][256]uint8, grid*grid)
	for t := range luts {
		for v := 0; v < 256; v++ {
			luts[t][v] = uint8(v)
		}
	}

	for ty := 0; ty < grid; ty++ {
		for tx := 0; tx < grid; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			if x0 >= x1 || y0 >= y1 {
				continue
			}
			area := (x1 - x0) * (y1 - y0)

			var hist [256]int
			for yy := y0; yy < y1; yy++ {
				for xx := x0; xx < x1; xx++ {
					hist[luma[yy*w+xx]]++
				}
			}

			// Clip each bin and spread the excess evenly across all bins.
			clip := int(clipLimit * float64(area) / 256.0)
			if clip < 1 {
				clip = 1
			}
			excess := 0
			for i := range hist {
				if hist[i] > clip {
					excess += hist[i] - clip
					hist[i] = clip
				}
			}
			bonus, rem := excess/256, excess%256
			for i := range hist {
				hist[i] += bonus
				if i < rem {
					hist[i]++
				}
			}

			cdf := 0
			lut := &luts[ty*grid+tx]
			for v := 0; v < 256; v++ {
				cdf += hist[v]
				lut[v] = uint8(cdf * 255 / area)
			}
		}
	}

	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := clampTile(ty0+1, grid)
		ty0 = clampTile(ty0, grid)

		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := clampTile(tx0+1, grid)
			tx0 = clampTile(tx0, grid)

			v := luma[y*w+x]
			top := float64(luts[ty0*grid+tx0][v])*(1-wx) + float64(luts[ty0*grid+tx1][v])*wx
			bottom := float64(luts[ty1*grid+tx0][v])*(1-wx) + float64(luts[ty1*grid+tx1][v])*wx
			nv := uint8(math.Round(math.Min(255, math.Max(0, top*(1-wy)+bottom*wy))))

			i := img.PixOffset(x, y)
			_, cb, cr := color.RGBToYCbCr(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = color.YCbCrToRGB(nv, cb, cr)
		}
	}

	return img
}

func clampTile(t, grid int) int {
	if t < 0 {
		return 0
	}
	if t > grid-1 {
		return grid - 1
	}
	return t
}
