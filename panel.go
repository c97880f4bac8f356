package glass

import (
	"image"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween/ease"
	xdraw "golang.org/x/image/draw"
)

const (
	defaultSpringFPS       = 60
	defaultSpringFrequency = 8.0
	defaultSpringDamping   = 0.45
	// reactiveDownsample is the resolution divisor for pointer-reactive
	// fields, which are rebuilt on every pointer change.
	reactiveDownsample = 4
	maxFrameDelta      = 0.1
)

// Panel is a glass panel: its geometry, the field for its current size and
// variant, and the pointer-driven elastic transform. Pointer and resize
// events may arrive at any rate; Update folds them in once per frame.
//
// A Panel is driven from one goroutine (the frame loop). Only PointerMove and
// PointerLeave may be called concurrently with it.
type Panel struct {
	cfg    Config
	params Params
	rect   Rect
	moved  bool

	cache  *FieldCache
	field  *Field
	fieldW int
	fieldH int

	// PointerReactive rebuilds the field around the pointer on every
	// pointer change instead of using the cached pointer-independent field.
	PointerReactive bool
	reactiveField   *Field
	reactiveTex     *ebiten.Image

	sampler PointerSampler
	pointer Pointer
	resize  *ResizeDebouncer
	spring  *ElasticSpring
	elastic ElasticTransform

	lastUpdate  time.Time
	switchTween *ParamTween
	nextVariant Variant
	switching   bool
	switchHalf  float32
	targetScale float64
	aberration  *ParamTween

	glass   *GlassFilter
	blur    *BlurFilter
	frost   *ColorMatrixFilter
	filters []Filter
	pool    renderTexturePool
	drawOp  ebiten.DrawImageOptions
}

// NewPanel validates cfg and builds the panel's initial field from cache. A
// nil cache gets a private one encoding textures for Draw.
func NewPanel(cfg Config, cache *FieldCache) (*Panel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = NewFieldCache(TextureSink{})
	}
	p := &Panel{
		cfg:         cfg,
		params:      cfg.Params(),
		rect:        Rect{X: cfg.X, Y: cfg.Y, Width: cfg.Width, Height: cfg.Height},
		cache:       cache,
		resize:      NewResizeDebouncer(DefaultResizeWindow),
		spring:      NewElasticSpring(defaultSpringFPS, defaultSpringFrequency, defaultSpringDamping),
		elastic:     IdentityElastic,
		targetScale: cfg.DisplacementScale,
	}
	p.glass = NewGlassFilter(p.params)
	p.glass.Tint = cfg.Tint
	p.blur = NewBlurFilter(cfg.Blur)
	p.frost = NewColorMatrixFilter()
	p.frost.SetSaturation(cfg.Saturation)
	p.rebuildFilters()

	if err := p.loadField(p.pixelSize()); err != nil {
		return nil, err
	}
	return p, nil
}

// rebuildFilters assembles the backdrop chain: blur, saturation, glass.
// Stages that would be no-ops are left out.
func (p *Panel) rebuildFilters() {
	p.filters = p.filters[:0]
	if p.blur.Radius > 0 {
		p.filters = append(p.filters, p.blur)
	}
	if p.cfg.Saturation != 1 {
		p.filters = append(p.filters, p.frost)
	}
	p.filters = append(p.filters, p.glass)
}

// pixelSize returns the panel size rounded up to whole pixels, at least 1×1.
func (p *Panel) pixelSize() (int, int) {
	w := max(int(math.Ceil(p.rect.Width)), 1)
	h := max(int(math.Ceil(p.rect.Height)), 1)
	return w, h
}

// loadField fetches the cached field for the current variant at w×h.
func (p *Panel) loadField(w, h int) error {
	f, err := p.cache.Field(p.params.Mode, w, h)
	if err != nil {
		return err
	}
	p.field, p.fieldW, p.fieldH = f, w, h
	p.glass.SetField(nil)
	return nil
}

// Config returns the configuration the panel was created with, updated with
// its current geometry and variant.
func (p *Panel) Config() Config {
	c := p.cfg
	c.X, c.Y = p.rect.X, p.rect.Y
	c.Width, c.Height = p.rect.Width, p.rect.Height
	c.Mode = p.params.Mode
	return c
}

// Rect returns the panel's untransformed bounds.
func (p *Panel) Rect() Rect { return p.rect }

// Params returns the current compositor parameters, including any
// in-progress tween.
func (p *Panel) Params() Params { return p.params }

// Field returns the field currently used for compositing.
func (p *Panel) Field() *Field {
	if p.PointerReactive && p.reactiveField != nil {
		return p.reactiveField
	}
	return p.field
}

// Elastic returns the spring-smoothed elastic transform as of the last
// Update.
func (p *Panel) Elastic() ElasticTransform { return p.elastic }

// Pointer returns the pointer sample used by the last Update.
func (p *Panel) Pointer() Pointer { return p.pointer }

// SetViewport centres the panel in a w×h viewport if it is configured as
// centred and has not been moved yet.
func (p *Panel) SetViewport(w, h float64) {
	if !p.cfg.Centered || p.moved {
		return
	}
	p.rect.X = (w - p.rect.Width) / 2
	p.rect.Y = (h - p.rect.Height) / 2
}

// MoveTo places the panel's top-left corner and ends auto-centring.
func (p *Panel) MoveTo(x, y float64) {
	p.rect.X, p.rect.Y = x, y
	p.moved = true
}

// MoveBy offsets the panel, e.g. by a drag delta.
func (p *Panel) MoveBy(dx, dy float64) {
	p.MoveTo(p.rect.X+dx, p.rect.Y+dy)
}

// Resize changes the panel size immediately. Field regeneration waits until
// resizing has been quiet for DefaultResizeWindow. Sizes below one pixel are
// clamped to one.
func (p *Panel) Resize(now time.Time, width, height float64) {
	p.rect.Width = math.Max(width, 1)
	p.rect.Height = math.Max(height, 1)
	w, h := p.pixelSize()
	p.resize.Request(now, w, h)
}

// PointerMove records a pointer position in device pixels. Safe to call at
// any rate and from any goroutine.
func (p *Panel) PointerMove(x, y float64) { p.sampler.Move(x, y) }

// PointerLeave records that the pointer is gone.
func (p *Panel) PointerLeave() { p.sampler.Leave() }

// SetVariant switches the displacement variant. With a positive duration
// (seconds) the displacement scale eases to zero, the field is swapped, and
// the scale eases back; otherwise the swap is immediate.
func (p *Panel) SetVariant(v Variant, duration float32) error {
	if !v.Valid() {
		return ErrUnknownVariant
	}
	if v == p.params.Mode && !p.switching {
		return nil
	}
	if duration <= 0 {
		p.switching = false
		p.switchTween = nil
		p.params.DisplacementScale = p.targetScale
		return p.applyVariant(v)
	}
	p.nextVariant = v
	if !p.switching {
		p.switching = true
		p.switchHalf = duration / 2
		p.switchTween = TweenDisplacement(&p.params, 0, p.switchHalf, ease.InQuad)
	}
	return nil
}

func (p *Panel) applyVariant(v Variant) error {
	prev := p.params.Mode
	p.params.Mode = v
	mask := DefaultParams(v)
	p.params.Mask = mask.Mask
	p.params.MaskInner, p.params.MaskOuter = mask.MaskInner, mask.MaskOuter
	if err := p.loadField(p.fieldW, p.fieldH); err != nil {
		p.params.Mode = prev
		return err
	}
	p.reactiveField = nil
	return nil
}

// SetDisplacementScale sets the resting displacement scale.
func (p *Panel) SetDisplacementScale(s float64) {
	p.targetScale = s
	if !p.switching {
		p.params.DisplacementScale = s
	}
}

// SetAberration sets the chromatic aberration intensity. Zero disables the
// per-channel pass.
func (p *Panel) SetAberration(intensity float64) {
	p.FadeAberration(intensity, 0)
}

// FadeAberration eases the chromatic aberration intensity to intensity over
// duration seconds, replacing any fade in progress. A non-positive duration
// applies it immediately.
func (p *Panel) FadeAberration(intensity float64, duration float32) {
	intensity = math.Max(intensity, 0)
	if duration <= 0 {
		p.aberration = nil
		p.params.AberrationIntensity = intensity
		return
	}
	p.aberration = TweenAberration(&p.params, intensity, duration, ease.InOutQuad)
}

// Update folds in everything that happened since the previous frame: the
// latest pointer sample, a settled resize, and animation progress. Call once
// per frame.
func (p *Panel) Update(now time.Time) {
	dt := float32(1.0 / defaultSpringFPS)
	if !p.lastUpdate.IsZero() {
		dt = float32(math.Min(now.Sub(p.lastUpdate).Seconds(), maxFrameDelta))
	}
	p.lastUpdate = now

	if w, h, ok := p.resize.Poll(now); ok && (w != p.fieldW || h != p.fieldH) {
		if err := p.loadField(w, h); err != nil {
			warnf("resize field %dx%d: %v", w, h, err)
		}
		p.reactiveField = nil
		p.pool.Drain()
	}

	ptr, changed := p.sampler.Sample()
	p.pointer = ptr
	if changed && p.PointerReactive {
		p.rebuildReactiveField()
	}
	target := EstimateElastic(ptr, p.rect, p.cfg.Elasticity)
	p.elastic = p.spring.Step(target)

	p.updateSwitch(dt)
	if p.aberration != nil {
		p.aberration.Update(dt)
		if p.aberration.Done {
			p.aberration = nil
		}
	}
}

// updateSwitch advances a variant cross-fade.
func (p *Panel) updateSwitch(dt float32) {
	if p.switchTween == nil {
		return
	}
	p.switchTween.Update(dt)
	if !p.switchTween.Done {
		return
	}
	if p.switching {
		p.switching = false
		if err := p.applyVariant(p.nextVariant); err != nil {
			warnf("switch variant: %v", err)
		}
		p.switchTween = TweenDisplacement(&p.params, p.targetScale, p.switchHalf, ease.OutQuad)
		return
	}
	p.switchTween = nil
}

// rebuildReactiveField rasterizes the pointer-centred field at reduced
// resolution and stretches it to the panel. Errors leave the previous field
// in place.
func (p *Panel) rebuildReactiveField() {
	if !p.pointer.Valid {
		p.reactiveField = nil
		return
	}
	uv := Vec2{
		(p.pointer.X - p.rect.X) / p.rect.Width,
		(p.pointer.Y - p.rect.Y) / p.rect.Height,
	}
	fn, err := p.params.Mode.PointerFunc(uv)
	if err != nil {
		return
	}
	w, h := p.pixelSize()
	small, err := RasterizeFunc(fn, max(w/reactiveDownsample, 4), max(h/reactiveDownsample, 4))
	if err != nil {
		debugLogf("reactive field: %v", err)
		return
	}
	full, err := small.Resize(w, h)
	if err != nil {
		debugLogf("reactive field: %v", err)
		return
	}
	p.reactiveField = full
	if p.reactiveTex != nil {
		p.reactiveTex.Deallocate()
		p.reactiveTex = nil
	}
}

// HitTest reports whether the screen point (x, y) falls inside the panel as
// currently deformed by the elastic transform.
func (p *Panel) HitTest(x, y float64) bool {
	inv := invertAffine(p.elastic.Matrix(p.rect))
	lx, ly := transformPoint(inv, x, y)
	r := clampCornerRadius(p.params.CornerRadius, int(p.rect.Width), int(p.rect.Height))
	return insideRoundedRect(lx-p.rect.X, ly-p.rect.Y, p.rect.Width, p.rect.Height, r)
}

// Composite renders the panel on the CPU from the backdrop behind it. The
// backdrop is in the same coordinate space as the panel; the part under the
// panel is cropped, frosted, run through Composite and tinted, in the same
// order as Draw. Any failure degrades to the clipped, undistorted, tinted
// crop. The elastic transform is not applied; hosts place the result with
// Elastic().Matrix.
func (p *Panel) Composite(backdrop image.Image) *image.RGBA {
	w, h := p.pixelSize()
	crop := image.NewRGBA(image.Rect(0, 0, w, h))
	if backdrop != nil {
		origin := image.Pt(int(math.Floor(p.rect.X)), int(math.Floor(p.rect.Y)))
		xdraw.Draw(crop, crop.Bounds(), backdrop, origin, xdraw.Src)
	}
	frosted := Frost(crop, p.cfg.Blur, p.cfg.Saturation)
	out, err := Composite(frosted, p.Field(), p.params)
	if err != nil {
		debugLogf("composite degraded: %v", err)
		out = ClipRoundedRect(crop, p.params.CornerRadius)
	}
	TintRoundedRect(out, p.cfg.Tint, p.params.CornerRadius)
	return out
}

// fieldTexture returns the GPU texture for the current field, or nil to
// draw without displacement.
func (p *Panel) fieldTexture() *ebiten.Image {
	if p.PointerReactive && p.reactiveField != nil {
		if p.reactiveTex == nil {
			res := EncodeResource(TextureSink{}, p.reactiveField)
			if !res.Placeholder {
				p.reactiveTex = res.Texture
			}
		}
		return p.reactiveTex
	}
	res, err := p.cache.Resource(p.params.Mode, p.fieldW, p.fieldH)
	if err != nil || res.Texture == nil || res.Placeholder {
		return nil
	}
	return res.Texture
}

// padding returns the margin Draw keeps around the panel so the filters
// before the glass can sample backdrop beyond the rim.
func (p *Panel) padding() int { return filterChainPadding(p.filters) }

// Draw renders the panel onto dst using the GPU filter chain. backdrop is
// the scene behind the panel in dst's coordinate space; it must not be dst
// itself.
func (p *Panel) Draw(dst, backdrop *ebiten.Image) {
	w, h := p.pixelSize()
	pad := p.padding()
	src := p.pool.Acquire(w+2*pad, h+2*pad)
	x, y := math.Floor(p.rect.X), math.Floor(p.rect.Y)
	op := &p.drawOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.Blend = ebiten.BlendCopy
	op.Filter = ebiten.FilterNearest
	op.GeoM.Translate(float64(pad)-x, float64(pad)-y)
	src.DrawImage(backdrop, op)

	p.glass.Params = p.params
	p.glass.Tint = p.cfg.Tint
	p.glass.Inset = pad
	p.glass.SetField(p.fieldTexture())
	out := applyFilters(p.filters, src, &p.pool)

	op.GeoM = p.placement(pad)
	op.Blend = ebiten.BlendSourceOver
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(out, op)

	if out != src {
		p.pool.Release(out)
	}
	p.pool.Release(src)
}

// placement maps the padded offscreen buffer to dst: the margin is shifted
// off, then the elastic transform and the panel offset are applied.
func (p *Panel) placement(pad int) ebiten.GeoM {
	var g ebiten.GeoM
	g.Translate(-float64(pad), -float64(pad))
	g.Concat(p.elastic.GeoM(Rect{Width: p.rect.Width, Height: p.rect.Height}))
	g.Translate(math.Floor(p.rect.X), math.Floor(p.rect.Y))
	return g
}

// Switching reports whether a variant change is still animating.
func (p *Panel) Switching() bool { return p.switchTween != nil }

// Fading reports whether an aberration fade is still animating.
func (p *Panel) Fading() bool { return p.aberration != nil }
