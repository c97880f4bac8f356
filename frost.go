package glass

import "image"

// saturationMatrix returns the 3x3 luminance-preserving saturation matrix
// (row-major). s=1 is identity, 0 is grayscale.
func saturationMatrix(s float64) [9]float64 {
	sr := (1 - s) * 0.299
	sg := (1 - s) * 0.587
	sb := (1 - s) * 0.114
	return [9]float64{
		sr + s, sg, sb,
		sr, sg + s, sb,
		sr, sg, sb + s,
	}
}

// Frost blurs src with a separable box blur of the given radius and adjusts
// its saturation. It is the CPU counterpart of the BlurFilter +
// ColorMatrixFilter stage used by Panel.Draw. A radius of zero and a
// saturation of one return an unmodified copy.
func Frost(src image.Image, radius int, saturation float64) *image.RGBA {
	img := toRGBA(src)
	out := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	for y := 0; y < out.Rect.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+out.Rect.Dx()*4], img.Pix[y*img.Stride:])
	}
	if radius > 0 {
		boxBlur(out, radius)
	}
	if saturation != 1 {
		saturate(out, saturation)
	}
	return out
}

// boxBlur blurs img in place, horizontal then vertical, clamping at edges.
func boxBlur(img *image.RGBA, radius int) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	n := max(w, h)
	line := make([]float64, n*4)
	span := float64(2*radius + 1)

	pass := func(count, length int, at func(i, j int) int) {
		for i := 0; i < count; i++ {
			for j := 0; j < length; j++ {
				off := at(i, j)
				for c := 0; c < 4; c++ {
					line[j*4+c] = float64(img.Pix[off+c])
				}
			}
			var sum [4]float64
			for k := -radius; k <= radius; k++ {
				j := clamp(k, 0, length-1)
				for c := 0; c < 4; c++ {
					sum[c] += line[j*4+c]
				}
			}
			for j := 0; j < length; j++ {
				off := at(i, j)
				for c := 0; c < 4; c++ {
					img.Pix[off+c] = uint8(clamp(sum[c]/span+0.5, 0, 255))
				}
				out := clamp(j-radius, 0, length-1)
				in := clamp(j+radius+1, 0, length-1)
				for c := 0; c < 4; c++ {
					sum[c] += line[in*4+c] - line[out*4+c]
				}
			}
		}
	}
	pass(h, w, func(row, col int) int { return row*img.Stride + col*4 })
	pass(w, h, func(col, row int) int { return row*img.Stride + col*4 })
}

// saturate applies saturationMatrix to the straight-alpha color of each
// pixel.
func saturate(img *image.RGBA, s float64) {
	m := saturationMatrix(s)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		a := float64(img.Pix[i+3])
		if a == 0 {
			continue
		}
		r := float64(img.Pix[i]) / a
		g := float64(img.Pix[i+1]) / a
		b := float64(img.Pix[i+2]) / a
		nr := clamp(m[0]*r+m[1]*g+m[2]*b, 0, 1)
		ng := clamp(m[3]*r+m[4]*g+m[5]*b, 0, 1)
		nb := clamp(m[6]*r+m[7]*g+m[8]*b, 0, 1)
		img.Pix[i] = uint8(nr*a + 0.5)
		img.Pix[i+1] = uint8(ng*a + 0.5)
		img.Pix[i+2] = uint8(nb*a + 0.5)
	}
}

// TintRoundedRect lays tint source-over every pixel of img inside the
// rounded rectangle of its bounds, in place. Pixels outside the clip are left
// alone. This is the last step of GlassFilter, so a composited image tinted
// here matches the GPU output.
func TintRoundedRect(img *image.RGBA, tint Color, radius float64) {
	if tint.A <= 0 {
		return
	}
	t := tint.toRGBA()
	ta := float64(t.A) / 255
	w, h := img.Rect.Dx(), img.Rect.Dy()
	r := clampCornerRadius(radius, w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !insideRoundedRect(float64(x)+0.5, float64(y)+0.5, float64(w), float64(h), r) {
				continue
			}
			px := img.Pix[y*img.Stride+x*4 : y*img.Stride+x*4+4]
			px[0] = uint8(float64(t.R) + float64(px[0])*(1-ta) + 0.5)
			px[1] = uint8(float64(t.G) + float64(px[1])*(1-ta) + 0.5)
			px[2] = uint8(float64(t.B) + float64(px[2])*(1-ta) + 0.5)
			px[3] = uint8(float64(t.A) + float64(px[3])*(1-ta) + 0.5)
		}
	}
}
