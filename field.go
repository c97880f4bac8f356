package glass

import (
	"fmt"
	"image"
	"math"
	"time"

	xdraw "golang.org/x/image/draw"
)

// minMaxScale floors the normalization range so near-flat fields do not blow
// up quantization noise.
const minMaxScale = 1.0

// edgeFalloffWidth is the distance in pixels over which displacement ramps
// from zero at the raster border to full strength.
const edgeFalloffWidth = 2.0

// Field is a rasterized displacement field. Pix holds the encoded RGBA raster
// (R = dx, G = dy, B = dy, A = 255) with stride 4*Width; DX and DY hold the
// edge-smoothed displacement in pixels before quantization.
//
// Displacement is a backward mapping: the output pixel at (x, y) samples the
// source at (x+dx, y+dy).
type Field struct {
	Width, Height int
	// MaxScale is the largest absolute raw displacement component observed
	// over the field, floored at 1. Channels map [-MaxScale, MaxScale] to
	// [0, 255].
	MaxScale float64
	Pix      []uint8
	DX, DY   []float64
}

// EncodeChannel quantizes a displacement component to a channel value.
func EncodeChannel(raw, maxScale float64) uint8 {
	v := (raw/maxScale + 1) / 2 * 255
	return uint8(clamp(math.Round(v), 0, 255))
}

// DecodeChannel reconstructs a displacement component from a channel value.
func DecodeChannel(c uint8, maxScale float64) float64 {
	return (float64(c)/255*2 - 1) * maxScale
}

// Rasterize samples variant v over a width×height grid and encodes the
// result.
func Rasterize(v Variant, width, height int) (*Field, error) {
	fn, err := v.Func()
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	f, err := RasterizeFunc(fn, width, height)
	if err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", v, err)
	}
	return f, nil
}

// RasterizeFunc samples an arbitrary displacement function. Pixel (x, y)
// maps to uv (x/width, y/height).
func RasterizeFunc(fn DisplaceFunc, width, height int) (*Field, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%dx%d: %w", width, height, ErrInvalidSize)
	}
	var t0 time.Time
	if debugEnabled {
		t0 = time.Now()
	}

	n := width * height
	f := &Field{
		Width:  width,
		Height: height,
		DX:     make([]float64, n),
		DY:     make([]float64, n),
	}
	w, h := float64(width), float64(height)

	maxScale := 0.0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			uv := fn(Vec2{float64(x) / w, float64(y) / h})
			dx := uv.X*w - float64(x)
			dy := uv.Y*h - float64(y)
			i := y*width + x
			f.DX[i] = dx
			f.DY[i] = dy
			maxScale = max(maxScale, math.Abs(dx), math.Abs(dy))
		}
	}
	f.MaxScale = max(maxScale, minMaxScale)
	f.smoothEdges()
	f.encode()

	if debugEnabled {
		debugLogf("rasterize %dx%d: max %.3f px in %v", width, height, maxScale, time.Since(t0))
	}
	return f, nil
}

// smoothEdges scales displacement to exactly zero on the outermost ring so
// the compositor never samples outside the source.
func (f *Field) smoothEdges() {
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			edge := min(x, y, f.Width-1-x, f.Height-1-y)
			factor := clamp(float64(edge)/edgeFalloffWidth, 0, 1)
			if factor == 1 {
				continue
			}
			i := y*f.Width + x
			f.DX[i] *= factor
			f.DY[i] *= factor
		}
	}
}

// encode writes Pix from DX/DY.
func (f *Field) encode() {
	if cap(f.Pix) < len(f.DX)*4 {
		f.Pix = make([]uint8, len(f.DX)*4)
	}
	f.Pix = f.Pix[:len(f.DX)*4]
	for i := range f.DX {
		r := EncodeChannel(f.DX[i], f.MaxScale)
		g := EncodeChannel(f.DY[i], f.MaxScale)
		off := i * 4
		f.Pix[off+0] = r
		f.Pix[off+1] = g
		f.Pix[off+2] = g
		f.Pix[off+3] = 0xff
	}
}

// Displacement returns the decoded displacement at (x, y) in pixels.
// Coordinates outside the field return zero.
func (f *Field) Displacement(x, y int) (dx, dy float64) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, 0
	}
	off := (y*f.Width + x) * 4
	return DecodeChannel(f.Pix[off], f.MaxScale), DecodeChannel(f.Pix[off+1], f.MaxScale)
}

// Image returns the encoded raster as an *image.RGBA sharing Pix.
func (f *Field) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Resize resamples the field to width×height by filtering the encoded raster
// bilinearly. Channel values keep their meaning: the compositor reads them
// relative to Params.DisplacementScale, so the field keeps its shape at the
// new size. The edge falloff is reapplied on the new border.
func (f *Field) Resize(width, height int) (*Field, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("resize field to %dx%d: %w", width, height, ErrInvalidSize)
	}
	if width == f.Width && height == f.Height {
		return f, nil
	}
	src := f.Image()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	out := &Field{
		Width:    width,
		Height:   height,
		MaxScale: f.MaxScale,
		DX:       make([]float64, width*height),
		DY:       make([]float64, width*height),
		Pix:      dst.Pix,
	}
	for i := range out.DX {
		out.DX[i] = DecodeChannel(dst.Pix[i*4], f.MaxScale)
		out.DY[i] = DecodeChannel(dst.Pix[i*4+1], f.MaxScale)
	}
	out.smoothEdges()
	out.encode()
	return out, nil
}
