package glass

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestFrostIdentity(t *testing.T) {
	src := stripes(20, 12)
	out := Frost(src, 0, 1)
	if !bytes.Equal(out.Pix, src.Pix) {
		t.Error("Frost with no blur, unit saturation and no tint should copy the source")
	}
	out.Pix[0] = 7
	if src.Pix[0] == 7 {
		t.Error("Frost returned the source buffer instead of a copy")
	}
}

func TestFrostBlurKeepsUniform(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:i+4], []uint8{40, 80, 120, 255})
	}
	out := Frost(src, 3, 1)
	if !bytes.Equal(out.Pix, src.Pix) {
		t.Error("blurring a uniform image should not change it")
	}
}

func TestFrostBlurSpreadsEdges(t *testing.T) {
	src := stripes(30, 4)
	out := Frost(src, 2, 1)
	c := out.RGBAAt(3, 1) // first blue column, next to red
	if c.R == 0 || c.B == 255 {
		t.Errorf("blurred boundary = %v, want a red/blue mix", c)
	}
}

func TestFrostDesaturate(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, color.RGBA{200, 50, 10, 255})
	src.SetRGBA(1, 1, color.RGBA{0, 0, 0, 0})
	out := Frost(src, 0, 0)
	c := out.RGBAAt(0, 0)
	if c.R != c.G || c.G != c.B {
		t.Errorf("saturation 0 = %v, want grey", c)
	}
	if out.RGBAAt(1, 1) != (color.RGBA{}) {
		t.Error("transparent pixel should stay transparent")
	}
}

func TestTintRoundedRectOpaque(t *testing.T) {
	img := stripes(6, 6)
	TintRoundedRect(img, Color{1, 1, 1, 1}, 0)
	for i := 0; i < len(img.Pix); i++ {
		if img.Pix[i] != 255 {
			t.Fatalf("byte %d = %d, want 255 under opaque white tint", i, img.Pix[i])
		}
	}
}

func TestTintRoundedRectSkipsCorners(t *testing.T) {
	img := ClipRoundedRect(stripes(20, 20), 8)
	TintRoundedRect(img, Color{1, 1, 1, 0.5}, 8)
	if got := img.RGBAAt(0, 0); got != (color.RGBA{}) {
		t.Errorf("corner = %v, want transparent", got)
	}
	// Blue stripe pixel under premultiplied half white: G = 0 + 128.
	if got := img.RGBAAt(10, 10); got.G != 128 || got.A != 255 {
		t.Errorf("centre = %v, want G=128 A=255", got)
	}
}

func TestTintRoundedRectTransparentNoop(t *testing.T) {
	img := stripes(6, 6)
	want := append([]uint8(nil), img.Pix...)
	TintRoundedRect(img, ColorTransparent, 2)
	if !bytes.Equal(img.Pix, want) {
		t.Error("transparent tint modified the image")
	}
}

func TestSaturationMatrixIdentity(t *testing.T) {
	m := saturationMatrix(1)
	want := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	for i := range m {
		assertNear(t, "m", m[i], want[i])
	}
}
