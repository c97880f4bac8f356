package glass

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"testing"
	"time"
)

func newTestPanel(t *testing.T, cfg Config) (*Panel, *FieldCache, *atomic.Int32) {
	t.Helper()
	cache, n := countingCache(t, PNGSink{})
	p, err := NewPanel(cfg, cache)
	if err != nil {
		t.Fatal(err)
	}
	return p, cache, n
}

func fixedConfig() Config {
	cfg := DefaultConfig()
	cfg.Centered = false
	return cfg
}

func TestNewPanelRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 0
	if _, err := NewPanel(cfg, NewFieldCache(nil)); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("err = %v, want ErrInvalidSize", err)
	}
}

func TestPanelInitialField(t *testing.T) {
	p, cache, n := newTestPanel(t, fixedConfig())
	f := p.Field()
	if f.Width != 300 || f.Height != 200 {
		t.Errorf("field = %dx%d, want 300x200", f.Width, f.Height)
	}
	want, _ := cache.Field(VariantStandard, 300, 200)
	if f != want {
		t.Error("panel field is not the cached field")
	}
	if n.Load() != 1 {
		t.Errorf("rasterized %d times, want 1", n.Load())
	}
}

func TestPanelCentring(t *testing.T) {
	p, _, _ := newTestPanel(t, DefaultConfig())
	p.SetViewport(800, 600)
	if r := p.Rect(); r.X != 250 || r.Y != 200 {
		t.Errorf("centred at (%v, %v), want (250, 200)", r.X, r.Y)
	}
	p.MoveBy(10, -5)
	p.SetViewport(1000, 1000)
	if r := p.Rect(); r.X != 260 || r.Y != 195 {
		t.Errorf("moved panel re-centred to (%v, %v)", r.X, r.Y)
	}
	if c := p.Config(); c.X != 260 || c.Y != 195 {
		t.Errorf("Config position = (%v, %v)", c.X, c.Y)
	}
}

func TestPanelResizeDebounced(t *testing.T) {
	p, _, n := newTestPanel(t, fixedConfig())
	t0 := time.Unix(2000, 0)

	// A drag-resize burst, one event per millisecond, with a frame after each.
	for i := 0; i < 10; i++ {
		now := t0.Add(time.Duration(i) * time.Millisecond)
		p.Resize(now, float64(200+i), 100)
		p.Update(now)
	}
	if r := p.Rect(); r.Width != 209 {
		t.Errorf("Rect width = %v, want 209 immediately", r.Width)
	}
	if f := p.Field(); f.Width != 300 {
		t.Errorf("field regenerated mid-burst at %dx%d", f.Width, f.Height)
	}

	p.Update(t0.Add(30 * time.Millisecond))
	if f := p.Field(); f.Width != 209 || f.Height != 100 {
		t.Errorf("settled field = %dx%d, want 209x100", f.Width, f.Height)
	}
	if got := n.Load(); got != 2 {
		t.Errorf("rasterized %d times, want 2 (initial + settled)", got)
	}
}

func TestPanelResizeDegenerate(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	t0 := time.Unix(3000, 0)
	p.Resize(t0, 0, -5)
	if r := p.Rect(); r.Width != 1 || r.Height != 1 {
		t.Errorf("Rect = %vx%v, want 1x1", r.Width, r.Height)
	}
	p.Update(t0.Add(time.Second))
	if f := p.Field(); f.Width != 1 || f.Height != 1 {
		t.Errorf("field = %dx%d, want 1x1", f.Width, f.Height)
	}
	out := p.Composite(stripes(10, 10))
	if b := out.Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Errorf("composite bounds = %v, want 1x1", b)
	}
}

func TestPanelPointerCoalescedPerFrame(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	p.PointerMove(10, 10)
	p.PointerMove(20, 20)
	p.PointerMove(310, 100)
	p.Update(time.Unix(0, 0))
	if got := p.Pointer(); got != (Pointer{X: 310, Y: 100, Valid: true}) {
		t.Errorf("Pointer = %+v, want last move", got)
	}
	received, coalesced := p.sampler.Stats()
	if received != 3 || coalesced != 2 {
		t.Errorf("sampler stats = (%d, %d), want (3, 2)", received, coalesced)
	}
}

func TestPanelElasticFollowsPointer(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	now := time.Unix(0, 0)
	step := func(n int) {
		for i := 0; i < n; i++ {
			now = now.Add(16 * time.Millisecond)
			p.Update(now)
		}
	}

	p.PointerMove(350, 100)
	step(60)
	e := p.Elastic()
	if e.Translate.X <= 0 || e.Scale.X <= 1 {
		t.Errorf("elastic = %+v, want stretch toward +x", e)
	}

	p.PointerLeave()
	step(600)
	e = p.Elastic()
	if math.Abs(e.Translate.X) > 1e-3 || math.Abs(e.Scale.X-1) > 1e-3 {
		t.Errorf("elastic after leave = %+v, want identity", e)
	}
}

func TestPanelSetVariantImmediate(t *testing.T) {
	p, cache, _ := newTestPanel(t, fixedConfig())
	if err := p.SetVariant(VariantPanel, 0); err != nil {
		t.Fatal(err)
	}
	if p.Params().Mode != VariantPanel || p.Params().Mask != MaskField {
		t.Errorf("params = %+v, want panel variant with field mask", p.Params())
	}
	want, _ := cache.Field(VariantPanel, 300, 200)
	if p.Field() != want {
		t.Error("field not swapped to the panel variant")
	}
	if p.Config().Mode != VariantPanel {
		t.Error("Config does not report the new mode")
	}
}

func TestPanelSetVariantTweened(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	if err := p.SetVariant(VariantPolar, 0.2); err != nil {
		t.Fatal(err)
	}
	if !p.Switching() || p.Params().Mode != VariantStandard {
		t.Fatalf("switch should start on the old variant: mode %v, switching %v", p.Params().Mode, p.Switching())
	}
	now := time.Unix(0, 0)
	for i := 0; i < 20; i++ {
		now = now.Add(50 * time.Millisecond)
		p.Update(now)
	}
	if p.Switching() {
		t.Fatal("switch still animating")
	}
	if p.Params().Mode != VariantPolar {
		t.Errorf("Mode = %v, want polar", p.Params().Mode)
	}
	if p.Params().DisplacementScale != 70 {
		t.Errorf("DisplacementScale = %v, want restored 70", p.Params().DisplacementScale)
	}
}

func TestPanelSetVariantUnknown(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	if err := p.SetVariant(Variant(50), 0); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("err = %v, want ErrUnknownVariant", err)
	}
}

func TestPanelHitTest(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	if !p.HitTest(150, 100) {
		t.Error("centre should hit")
	}
	if p.HitTest(1, 1) {
		t.Error("rounded corner should miss")
	}
	if p.HitTest(400, 100) {
		t.Error("outside should miss")
	}
}

func TestPanelCompositeDisabledIsClippedCrop(t *testing.T) {
	cfg := fixedConfig()
	cfg.DisplacementScale = 0
	cfg.AberrationIntensity = 0
	cfg.Blur = 0
	cfg.Saturation = 1
	p, _, _ := newTestPanel(t, cfg)
	p.MoveTo(50, 40)

	backdrop := stripes(400, 300)
	got := p.Composite(backdrop)
	crop := backdrop.SubImage(image.Rect(50, 40, 350, 240))
	want := ClipRoundedRect(crop, cfg.CornerRadius)
	if !bytes.Equal(got.Pix, want.Pix) {
		t.Error("disabled panel composite differs from the clipped backdrop crop")
	}
}

func TestPanelCompositeTintsAfterClip(t *testing.T) {
	cfg := fixedConfig()
	cfg.Tint = Color{1, 1, 1, 0.5}
	p, _, _ := newTestPanel(t, cfg)

	// No backdrop: every pixel inside the clip is transparent before the
	// tint, so only a tint applied last can reach it.
	out := p.Composite(nil)
	if got := out.RGBAAt(150, 100); got != (color.RGBA{128, 128, 128, 128}) {
		t.Errorf("centre = %v, want the bare tint", got)
	}
	if got := out.RGBAAt(0, 0); got.A != 0 {
		t.Errorf("corner = %v, want clipped", got)
	}

	backdrop := stripes(400, 300)
	tinted := p.Composite(backdrop)
	p.cfg.Tint = ColorTransparent
	plain := p.Composite(backdrop)
	TintRoundedRect(plain, cfg.Tint, cfg.CornerRadius)
	if !bytes.Equal(tinted.Pix, plain.Pix) {
		t.Error("tint should be applied after displacement and clipping")
	}
}

func TestPanelPaddingFollowsBlur(t *testing.T) {
	cfg := fixedConfig()
	cfg.Blur = 6
	p, _, _ := newTestPanel(t, cfg)
	if got := p.padding(); got != 6 {
		t.Errorf("padding = %d, want blur radius 6", got)
	}

	cfg.Blur = 0
	p, _, _ = newTestPanel(t, cfg)
	if got := p.padding(); got != 0 {
		t.Errorf("padding without blur = %d, want 0", got)
	}
}

func TestPanelPlacementDropsMargin(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	p.MoveTo(50.7, 40)
	g := p.placement(6)
	x, y := g.Apply(6, 6)
	assertNear(t, "inner origin x", x, 50)
	assertNear(t, "inner origin y", y, 40)
	x, y = g.Apply(0, 0)
	assertNear(t, "buffer origin x", x, 44)
	assertNear(t, "buffer origin y", y, 34)
}

func TestPanelCompositeDefaultSize(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	out := p.Composite(stripes(640, 480))
	if b := out.Bounds(); b.Dx() != 300 || b.Dy() != 200 {
		t.Errorf("bounds = %v, want 300x200", b)
	}
	if out.RGBAAt(150, 100).A != 255 {
		t.Error("centre should be opaque")
	}
	if out.RGBAAt(0, 0).A != 0 {
		t.Error("corner should be clipped")
	}
}

func TestPanelPointerReactiveField(t *testing.T) {
	p, cache, n := newTestPanel(t, fixedConfig())
	p.PointerReactive = true
	p.PointerMove(100, 80)
	p.Update(time.Unix(0, 0))

	cached, _ := cache.Field(VariantStandard, 300, 200)
	f := p.Field()
	if f == cached {
		t.Fatal("pointer-reactive panel used the cached field")
	}
	if f.Width != 300 || f.Height != 200 {
		t.Errorf("reactive field = %dx%d, want 300x200", f.Width, f.Height)
	}
	if n.Load() != 1 {
		t.Errorf("reactive rebuild went through the cache (%d rasterizations)", n.Load())
	}

	p.PointerLeave()
	p.Update(time.Unix(1, 0))
	if p.Field() != cached {
		t.Error("field should fall back to the cached one when the pointer leaves")
	}
}

func TestPanelSetStrength(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	p.SetDisplacementScale(25)
	p.SetAberration(-3)
	if got := p.Params(); got.DisplacementScale != 25 || got.AberrationIntensity != 0 {
		t.Errorf("params = (%v, %v), want (25, 0)", got.DisplacementScale, got.AberrationIntensity)
	}
}

func TestPanelFadeAberration(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	start := p.Params().AberrationIntensity
	p.FadeAberration(0, 0.2)
	if !p.Fading() {
		t.Fatal("expected a fade in progress")
	}

	t0 := time.Unix(100, 0)
	p.Update(t0)
	if got := p.Params().AberrationIntensity; got <= 0 || got >= start {
		t.Errorf("after one frame intensity = %v, want in (0, %v)", got, start)
	}
	for i := 1; i <= 3; i++ {
		p.Update(t0.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	if got := p.Params().AberrationIntensity; got != 0 {
		t.Errorf("intensity after fade = %v, want 0", got)
	}
	if p.Fading() {
		t.Error("fade should be finished")
	}
}

func TestPanelSetAberrationCancelsFade(t *testing.T) {
	p, _, _ := newTestPanel(t, fixedConfig())
	p.FadeAberration(0, 1)
	p.SetAberration(5)
	p.Update(time.Unix(100, 0))
	if got := p.Params().AberrationIntensity; got != 5 {
		t.Errorf("intensity = %v, want 5", got)
	}
	if p.Fading() {
		t.Error("SetAberration should cancel the fade")
	}
}
