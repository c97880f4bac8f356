package glass

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Filter is the interface for GPU passes applied to the panel backdrop.
type Filter interface {
	// Apply renders src into dst with the filter effect.
	Apply(src, dst *ebiten.Image)
	// Padding returns the extra pixels needed around the source to accommodate
	// the effect (e.g. blur radius). Zero means no padding.
	Padding() int
}

// --- Kage shader sources ---
// All shaders use //kage:unit pixels. Ebitengine uses premultiplied alpha;
// shaders un-premultiply before processing and re-premultiply output where
// needed.

const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

// glassShaderSrc is the GPU rendition of Composite. Images[0] is the
// backdrop, Images[1] the encoded field at the same size. The panel occupies
// the source inset by Inset pixels on each side; the margin is only sampled.
const glassShaderSrc = `//kage:unit pixels
package main

var Inset float
var Scale float
var RedOffset vec2
var Aberrate float
var CornerRadius float
var MaskMode float
var MaskInner float
var MaskOuter float
var Tint vec4

func roundedRectSDF(p vec2, half vec2, r float) float {
	q := abs(p) - half + r
	return min(max(q.x, q.y), 0) + length(max(q, vec2(0))) - r
}

// decodeOffset maps encoded channels to [-1, 1] with 128 decoding to 0.
func decodeOffset(v vec2) vec2 {
	d := v*255 - 128
	return d / mix(vec2(128), vec2(127), step(vec2(0), d))
}

func sampleLinear(p vec2) vec4 {
	origin := imageSrc0Origin()
	size := imageSrc0Size()
	p = clamp(p, origin+0.5, origin+size-0.5) - 0.5
	f := fract(p)
	base := floor(p) + 0.5
	c00 := imageSrc0At(base)
	c10 := imageSrc0At(base + vec2(1, 0))
	c01 := imageSrc0At(base + vec2(0, 1))
	c11 := imageSrc0At(base + vec2(1, 1))
	return mix(mix(c00, c10, f.x), mix(c01, c11, f.x), f.y)
}

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	texel := src - imageSrc0Origin()
	size := imageSrc0Size() - 2*Inset
	local := texel - Inset
	if roundedRectSDF(local-size/2, size/2, CornerRadius) > 0 {
		return vec4(0)
	}
	sharp := imageSrc0UnsafeAt(src)
	field := imageSrc1UnsafeAt(texel + imageSrc1Origin())
	n := decodeOffset(field.rg)

	m := 0.0
	if MaskMode == 1 {
		m = smoothstep(MaskInner, MaskOuter, max(abs(n.x), abs(n.y)))
	} else {
		e := (local - size/2) / (size / 2)
		m = smoothstep(MaskInner, MaskOuter, length(e))
	}

	p := src + n*Scale
	a := vec4(0)
	if Aberrate > 0 {
		r := sampleLinear(p + RedOffset)
		g := sampleLinear(p)
		b := sampleLinear(p - RedOffset)
		a = vec4(min(r.r, g.a), g.g, min(b.b, g.a), g.a)
	} else {
		a = sampleLinear(p)
	}
	c := mix(sharp, a, m)
	return Tint + c*(1-Tint.a)
}
`

// --- Lazy shader compilation (no sync.Once: shaders are only touched from
// the draw loop) ---

var (
	colorMatrixShader *ebiten.Shader
	glassShader       *ebiten.Shader
)

func ensureColorMatrixShader() *ebiten.Shader {
	if colorMatrixShader == nil {
		s, err := ebiten.NewShader([]byte(colorMatrixShaderSrc))
		if err != nil {
			panic("glass: failed to compile color matrix shader: " + err.Error())
		}
		colorMatrixShader = s
	}
	return colorMatrixShader
}

func ensureGlassShader() *ebiten.Shader {
	if glassShader == nil {
		s, err := ebiten.NewShader([]byte(glassShaderSrc))
		if err != nil {
			panic("glass: failed to compile glass shader: " + err.Error())
		}
		glassShader = s
	}
	return glassShader
}

// --- ColorMatrixFilter ---

// ColorMatrixFilter applies a 4x5 color matrix transformation using a Kage shader.
// The matrix is stored in row-major order: [R_r, R_g, R_b, R_a, R_offset, G_r, ...].
// Panels use it for the frost saturation boost.
type ColorMatrixFilter struct {
	Matrix      [20]float64
	uniforms    map[string]any
	matrixF32   [20]float32 // persistent buffer to avoid per-frame slice escape
	matrixSlice []float32   // persistent slice header pointing into matrixF32
	shaderOp    ebiten.DrawRectShaderOptions
}

// NewColorMatrixFilter creates a color matrix filter initialized to the identity.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{
		uniforms: make(map[string]any, 1),
	}
	f.matrixSlice = f.matrixF32[:]
	f.uniforms["Matrix"] = f.matrixSlice
	f.SetSaturation(1)
	return f
}

// SetSaturation sets the matrix to adjust saturation. s=1 is normal, 0=grayscale.
func (f *ColorMatrixFilter) SetSaturation(s float64) {
	m := saturationMatrix(s)
	f.Matrix = [20]float64{
		m[0], m[1], m[2], 0, 0,
		m[3], m[4], m[5], 0, 0,
		m[6], m[7], m[8], 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Apply renders the color matrix transformation from src into dst.
func (f *ColorMatrixFilter) Apply(src, dst *ebiten.Image) {
	shader := ensureColorMatrixShader()
	for i, v := range f.Matrix {
		f.matrixF32[i] = float32(v)
	}
	bounds := src.Bounds()
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), shader, &f.shaderOp)
}

// Padding returns 0; color matrix transforms don't expand the image bounds.
func (f *ColorMatrixFilter) Padding() int { return 0 }

// --- BlurFilter ---

// BlurFilter applies a Kawase iterative blur using downscale/upscale passes.
// No Kage shader needed: bilinear filtering during DrawImage does the work.
type BlurFilter struct {
	Radius int
	temps  []*ebiten.Image
	imgOp  ebiten.DrawImageOptions
}

// NewBlurFilter creates a blur filter with the given radius (in pixels).
func NewBlurFilter(radius int) *BlurFilter {
	if radius < 0 {
		radius = 0
	}
	return &BlurFilter{Radius: radius}
}

// blurPasses returns the number of halving passes for radius, minimum 1.
func blurPasses(radius int) int {
	return max(int(math.Ceil(math.Log2(float64(radius)))), 1)
}

// Apply renders a Kawase blur from src into dst using iterative downscale/upscale.
func (f *BlurFilter) Apply(src, dst *ebiten.Image) {
	op := &f.imgOp
	if f.Radius <= 0 {
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.Filter = ebiten.FilterNearest
		dst.DrawImage(src, op)
		return
	}

	passes := blurPasses(f.Radius)
	srcBounds := src.Bounds()
	w, h := srcBounds.Dx(), srcBounds.Dy()

	for len(f.temps) < passes {
		f.temps = append(f.temps, nil)
	}
	// Deallocate excess temp images from previous larger radius.
	for i := passes; i < len(f.temps); i++ {
		if f.temps[i] != nil {
			f.temps[i].Deallocate()
			f.temps[i] = nil
		}
	}
	f.temps = f.temps[:passes]

	// Downscale passes: each half-size.
	current := src
	for i := 0; i < passes; i++ {
		w = max(w/2, 1)
		h = max(h/2, 1)
		if f.temps[i] == nil || f.temps[i].Bounds().Dx() != w || f.temps[i].Bounds().Dy() != h {
			if f.temps[i] != nil {
				f.temps[i].Deallocate()
			}
			f.temps[i] = ebiten.NewImage(w, h)
		} else {
			f.temps[i].Clear()
		}
		f.drawScaled(f.temps[i], current)
		current = f.temps[i]
	}

	// Upscale passes back through the chain.
	for i := passes - 2; i >= 0; i-- {
		f.temps[i].Clear()
		f.drawScaled(f.temps[i], current)
		current = f.temps[i]
	}
	f.drawScaled(dst, current)
}

// drawScaled stretches src over dst with linear filtering.
func (f *BlurFilter) drawScaled(dst, src *ebiten.Image) {
	op := &f.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	sw := float64(src.Bounds().Dx())
	sh := float64(src.Bounds().Dy())
	tw := float64(dst.Bounds().Dx())
	th := float64(dst.Bounds().Dy())
	op.GeoM.Scale(tw/sw, th/sh)
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(src, op)
}

// Padding returns the blur radius; the offscreen buffer is expanded to avoid clipping.
func (f *BlurFilter) Padding() int { return f.Radius }

// --- GlassFilter ---

// GlassFilter displaces, aberrates, masks, tints and clips its source through
// an encoded field texture. It is the GPU counterpart of Composite and takes
// the same Params.
type GlassFilter struct {
	Params Params
	Tint   Color
	// Inset is the margin, in pixels, between the source bounds and the
	// panel. Panel.Draw sets it to the padding of the filters before the
	// glass so blurs can sample backdrop beyond the rim; the margin itself
	// is clipped away.
	Inset int

	field     *ebiten.Image
	fieldFit  *ebiten.Image // field stretched to the inner rect of the source
	fitFrom   *ebiten.Image
	fitInset  int
	uniforms  map[string]any
	redOffset [2]float32
	tintF32   [4]float32
	shaderOp  ebiten.DrawRectShaderOptions
	imgOp     ebiten.DrawImageOptions
}

// NewGlassFilter creates a glass filter with the given parameters and no
// field; until SetField is called it behaves as a clip with no displacement.
func NewGlassFilter(p Params) *GlassFilter {
	f := &GlassFilter{
		Params:   p,
		uniforms: make(map[string]any, 8),
	}
	f.uniforms["RedOffset"] = f.redOffset[:]
	f.uniforms["Tint"] = f.tintF32[:]
	return f
}

// SetField sets the encoded field texture, typically Resource.Texture from a
// TextureSink.
func (f *GlassFilter) SetField(tex *ebiten.Image) {
	if tex != f.field {
		f.field = tex
		f.fitFrom = nil
	}
}

// Field returns the current field texture.
func (f *GlassFilter) Field() *ebiten.Image { return f.field }

// fitField returns a w×h image holding the field stretched over the rect
// inset by inset pixels. DrawRectShader requires all source images to share
// a size, so mismatched fields are stretched into a persistent scratch
// image.
func (f *GlassFilter) fitField(w, h, inset int) *ebiten.Image {
	if f.field == nil {
		return nil
	}
	b := f.field.Bounds()
	if inset == 0 && b.Dx() == w && b.Dy() == h {
		return f.field
	}
	if f.fieldFit != nil && f.fitFrom == f.field && f.fitInset == inset {
		fb := f.fieldFit.Bounds()
		if fb.Dx() == w && fb.Dy() == h {
			return f.fieldFit
		}
	}
	if f.fieldFit == nil || f.fieldFit.Bounds().Dx() != w || f.fieldFit.Bounds().Dy() != h {
		if f.fieldFit != nil {
			f.fieldFit.Deallocate()
		}
		f.fieldFit = ebiten.NewImage(w, h)
	} else {
		f.fieldFit.Clear()
	}
	iw, ih := max(w-2*inset, 1), max(h-2*inset, 1)
	op := &f.imgOp
	op.GeoM.Reset()
	op.GeoM.Scale(float64(iw)/float64(b.Dx()), float64(ih)/float64(b.Dy()))
	op.GeoM.Translate(float64(inset), float64(inset))
	op.Filter = ebiten.FilterLinear
	op.Blend = ebiten.BlendCopy
	f.fieldFit.DrawImage(f.field, op)
	f.fitFrom = f.field
	f.fitInset = inset
	return f.fieldFit
}

// updateUniforms writes Params and Tint into the uniform map for a w×h pass.
func (f *GlassFilter) updateUniforms(w, h int) {
	inset := f.insetFor(w, h)
	p := f.Params
	scale := p.DisplacementScale * p.Mode.DisplacementSign()
	if f.field == nil {
		scale = 0
	}
	red := p.channelOffset()
	inner, outer := p.maskThresholds()
	f.redOffset[0] = float32(red.X)
	f.redOffset[1] = float32(red.Y)
	t := f.Tint.toRGBA()
	f.tintF32 = [4]float32{float32(t.R) / 255, float32(t.G) / 255, float32(t.B) / 255, float32(t.A) / 255}

	// Scalar float32 boxing is unavoidable with Ebitengine's uniform API.
	f.uniforms["Scale"] = float32(scale)
	f.uniforms["Aberrate"] = float32(0)
	if p.AberrationIntensity > 0 {
		f.uniforms["Aberrate"] = float32(1)
	}
	f.uniforms["Inset"] = float32(inset)
	f.uniforms["CornerRadius"] = float32(clampCornerRadius(p.CornerRadius, w-2*inset, h-2*inset))
	f.uniforms["MaskMode"] = float32(p.Mask)
	f.uniforms["MaskInner"] = float32(inner)
	f.uniforms["MaskOuter"] = float32(outer)
}

// Apply renders src through the field into dst.
func (f *GlassFilter) Apply(src, dst *ebiten.Image) {
	shader := ensureGlassShader()
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	field := f.fitField(w, h, f.insetFor(w, h))
	if field == nil {
		field = src // scale is zeroed; any same-size image will do
	}
	f.updateUniforms(w, h)
	f.shaderOp.Images[0] = src
	f.shaderOp.Images[1] = field
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(w, h, shader, &f.shaderOp)
}

// Padding returns 0; the glass clips to its inset rect.
func (f *GlassFilter) Padding() int { return 0 }

// insetFor returns Inset limited so a w×h source keeps at least one pixel.
func (f *GlassFilter) insetFor(w, h int) int {
	return clamp(f.Inset, 0, max((min(w, h)-1)/2, 0))
}

// --- Filter chain helpers ---

// filterChainPadding returns the cumulative padding required by a slice of filters.
func filterChainPadding(filters []Filter) int {
	pad := 0
	for _, f := range filters {
		pad += f.Padding()
	}
	return pad
}

// applyFilters runs a filter chain on src, ping-ponging between two images.
// Returns the image containing the final result (either src or a pooled
// scratch image). The caller releases the pooled images it got back.
func applyFilters(filters []Filter, src *ebiten.Image, pool *renderTexturePool) *ebiten.Image {
	if len(filters) == 0 {
		return src
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	current := src
	var scratch *ebiten.Image

	for _, f := range filters {
		if scratch == nil || scratch == src {
			scratch = pool.Acquire(w, h)
		} else {
			scratch.Clear()
		}
		f.Apply(current, scratch)
		current, scratch = scratch, current
	}
	if scratch != nil && scratch != src {
		pool.Release(scratch)
	}
	return current
}
