package glass

import (
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// MaskMode selects how the compositor separates the distorted rim from the
// sharp centre.
type MaskMode uint8

const (
	// MaskRadial uses an elliptical gradient centred on the panel.
	MaskRadial MaskMode = iota
	// MaskField uses the normalized displacement magnitude of the field.
	MaskField
)

// Params controls a composite. Start from DefaultParams; zero tuning fields
// (AberrationDir, AberrationStep, MaskInner/MaskOuter both zero) fall back to
// the defaults.
type Params struct {
	// DisplacementScale is the pixel offset produced by a full-range field
	// channel. Zero disables displacement.
	DisplacementScale float64
	// AberrationIntensity separates red and blue samples. Zero skips the
	// per-channel pass entirely.
	AberrationIntensity float64
	// CornerRadius of the clip, in pixels. Clamped to half the short side.
	CornerRadius float64
	// Mode is the variant the field was built from; it selects the
	// displacement sign.
	Mode Variant

	// AberrationDir is the axis red moves along (blue moves opposite).
	AberrationDir Vec2
	// AberrationStep is the pixel offset per unit of intensity.
	AberrationStep float64

	Mask      MaskMode
	MaskInner float64
	MaskOuter float64
}

const (
	defaultDisplacementScale   = 70
	defaultAberrationIntensity = 2
	defaultAberrationStep      = 1
	defaultRadialMaskInner     = 0.55
	defaultRadialMaskOuter     = 0.95
	defaultFieldMaskInner      = 0.02
	defaultFieldMaskOuter      = 0.25
)

// fieldZero is the channel value raw displacement 0 encodes to.
const fieldZero = 128

var defaultAberrationDir = Vec2{math.Sqrt2 / 2, math.Sqrt2 / 2}

// DefaultParams returns the reference tuning for v.
func DefaultParams(v Variant) Params {
	p := Params{
		DisplacementScale:   defaultDisplacementScale,
		AberrationIntensity: defaultAberrationIntensity,
		CornerRadius:        32,
		Mode:                v,
		AberrationDir:       defaultAberrationDir,
		AberrationStep:      defaultAberrationStep,
	}
	if v == VariantPanel {
		p.Mask = MaskField
	}
	p.MaskInner, p.MaskOuter = p.maskThresholds()
	return p
}

func (p Params) maskThresholds() (inner, outer float64) {
	if p.MaskInner != 0 || p.MaskOuter != 0 {
		return p.MaskInner, p.MaskOuter
	}
	if p.Mask == MaskField {
		return defaultFieldMaskInner, defaultFieldMaskOuter
	}
	return defaultRadialMaskInner, defaultRadialMaskOuter
}

// channelOffset returns the red offset; blue is its negation.
func (p Params) channelOffset() Vec2 {
	dir := p.AberrationDir
	if dir == (Vec2{}) {
		dir = defaultAberrationDir
	}
	step := p.AberrationStep
	if step == 0 {
		step = defaultAberrationStep
	}
	return dir.Scale(p.AberrationIntensity * step)
}

// Composite renders src through field f: base displacement, optional
// chromatic aberration, rim/centre masking and a rounded-rect clip. The
// output has src's bounds. A nil field means no displacement; a field of a
// different size is resampled to src.
//
// With DisplacementScale and AberrationIntensity both zero the result equals
// ClipRoundedRect(src, p.CornerRadius).
func Composite(src image.Image, f *Field, p Params) (*image.RGBA, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("composite %dx%d: %w", w, h, ErrInvalidSize)
	}
	if f != nil && (f.Width != w || f.Height != h) {
		resized, err := f.Resize(w, h)
		if err != nil {
			return nil, fmt.Errorf("composite: %w", err)
		}
		f = resized
	}

	sharp := toRGBA(src)
	out := image.NewRGBA(b)

	scale := p.DisplacementScale * p.Mode.DisplacementSign()
	displace := f != nil && scale != 0
	aberrate := p.AberrationIntensity > 0
	red := p.channelOffset()
	inner, outer := p.maskThresholds()
	radius := clampCornerRadius(p.CornerRadius, w, h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dstOff := y*out.Stride + x*4
			px, py := float64(x)+0.5, float64(y)+0.5
			if !insideRoundedRect(px, py, float64(w), float64(h), radius) {
				continue // transparent
			}
			srcOff := y*sharp.Stride + x*4
			s := [4]uint8(sharp.Pix[srcOff : srcOff+4])

			var n Vec2
			if f != nil {
				fo := (y*f.Width + x) * 4
				n = Vec2{decodeOffset(f.Pix[fo]), decodeOffset(f.Pix[fo+1])}
			}

			var m float64
			switch p.Mask {
			case MaskField:
				m = smoothstep(inner, outer, math.Max(math.Abs(n.X), math.Abs(n.Y)))
			default:
				ex := (px - float64(w)/2) / (float64(w) / 2)
				ey := (py - float64(h)/2) / (float64(h) / 2)
				m = smoothstep(inner, outer, math.Hypot(ex, ey))
			}
			if m == 0 {
				copy(out.Pix[dstOff:dstOff+4], s[:])
				continue
			}

			d := Vec2{}
			if displace {
				d = n.Scale(scale)
			}
			var a [4]uint8
			switch {
			case aberrate:
				a = sampleAberrated(sharp, float64(x)+d.X, float64(y)+d.Y, red)
			case d == (Vec2{}):
				a = s
			default:
				a = sampleBilinear(sharp, float64(x)+d.X, float64(y)+d.Y)
			}
			if a == s || m == 1 {
				if m == 1 {
					s = a
				}
				copy(out.Pix[dstOff:dstOff+4], s[:])
				continue
			}
			for c := 0; c < 4; c++ {
				out.Pix[dstOff+c] = uint8(clamp(float64(a[c])*m+float64(s[c])*(1-m)+0.5, 0, 255))
			}
		}
	}
	return out, nil
}

// decodeOffset maps a channel value to a normalized offset in [-1, 1]. The
// encoded zero (128) decodes to exactly 0 so undisplaced pixels, including
// the edge ring, are copied rather than resampled.
func decodeOffset(c uint8) float64 {
	d := float64(c) - fieldZero
	if d >= 0 {
		return d / (255 - fieldZero)
	}
	return d / fieldZero
}

// sampleAberrated samples red at +red, green at the base position and blue at
// -red, taking alpha from the green tap.
func sampleAberrated(img *image.RGBA, x, y float64, red Vec2) [4]uint8 {
	r := sampleBilinear(img, x+red.X, y+red.Y)
	g := sampleBilinear(img, x, y)
	b := sampleBilinear(img, x-red.X, y-red.Y)
	a := g[3]
	// Keep the result a valid premultiplied color.
	return [4]uint8{min(r[0], a), g[1], min(b[2], a), a}
}

// sampleBilinear returns the premultiplied color at pixel coordinates (x, y)
// relative to img's origin, clamping to the edge. Integer coordinates return
// the stored pixel exactly.
func sampleBilinear(img *image.RGBA, x, y float64) [4]uint8 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	x = clamp(x, 0, float64(w-1))
	y = clamp(y, 0, float64(h-1))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := img.Pix[y0*img.Stride+x0*4:]
	p10 := img.Pix[y0*img.Stride+x1*4:]
	p01 := img.Pix[y1*img.Stride+x0*4:]
	p11 := img.Pix[y1*img.Stride+x1*4:]
	var out [4]uint8
	for c := 0; c < 4; c++ {
		top := lerp(float64(p00[c]), float64(p10[c]), fx)
		bot := lerp(float64(p01[c]), float64(p11[c]), fx)
		out[c] = uint8(clamp(lerp(top, bot, fy)+0.5, 0, 255))
	}
	return out
}

// toRGBA returns src as an *image.RGBA with origin-relative Pix indexing.
// *image.RGBA inputs whose bounds start at the origin are used directly.
func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst
}

// clampCornerRadius limits r to half the shorter side.
func clampCornerRadius(r float64, w, h int) float64 {
	return clamp(r, 0, float64(min(w, h))/2)
}

// insideRoundedRect reports whether (x, y) lies in the w×h rectangle at the
// origin with corner radius r.
func insideRoundedRect(x, y, w, h, r float64) bool {
	return roundedRectSDF(x-w/2, y-h/2, w/2, h/2, r) <= 0
}

// ClipRoundedRect returns a copy of src with every pixel whose centre lies
// outside the rounded rectangle of src's bounds made transparent.
func ClipRoundedRect(src image.Image, radius float64) *image.RGBA {
	b := src.Bounds()
	sharp := toRGBA(src)
	out := image.NewRGBA(b)
	w, h := b.Dx(), b.Dy()
	r := clampCornerRadius(radius, w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !insideRoundedRect(float64(x)+0.5, float64(y)+0.5, float64(w), float64(h), r) {
				continue
			}
			copy(out.Pix[y*out.Stride+x*4:y*out.Stride+x*4+4], sharp.Pix[y*sharp.Stride+x*4:])
		}
	}
	return out
}
