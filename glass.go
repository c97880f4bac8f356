package glass

import (
	"errors"
	"fmt"
	"image/color"
	"math"
)

// Errors returned by the field pipeline.
var (
	// ErrUnknownVariant is returned when a variant name or value does not
	// match one of the built-in displacement functions.
	ErrUnknownVariant = errors.New("glass: unknown displacement variant")
	// ErrInvalidSize is returned for zero or negative raster dimensions.
	ErrInvalidSize = errors.New("glass: invalid field size")
	// ErrNoSource is returned when the compositor is given no source image.
	ErrNoSource = errors.New("glass: nil source image")
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs at render submission time.
type Color struct {
	R, G, B, A float64
}

// ColorTransparent is the zero tint.
var ColorTransparent = Color{}

// toRGBA converts to a premultiplied color.RGBA.
func (c Color) toRGBA() color.RGBA {
	a := clamp(c.A, 0, 1)
	return color.RGBA{
		R: uint8(clamp(c.R, 0, 1)*a*255 + 0.5),
		G: uint8(clamp(c.G, 0, 1)*a*255 + 0.5),
		B: uint8(clamp(c.B, 0, 1)*a*255 + 0.5),
		A: uint8(a*255 + 0.5),
	}
}

// Vec2 is a 2D vector used for UV coordinates, pixel offsets and scale factors.
type Vec2 struct {
	X, Y float64
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v*s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Vec2 {
	return Vec2{r.X + r.Width/2, r.Y + r.Height/2}
}

// DistanceTo returns the Euclidean distance from (x, y) to the nearest point
// of the rectangle. Points inside or on the edge are at distance zero.
func (r Rect) DistanceTo(x, y float64) float64 {
	dx := math.Max(math.Max(r.X-x, 0), x-(r.X+r.Width))
	dy := math.Max(math.Max(r.Y-y, 0), y-(r.Y+r.Height))
	return math.Hypot(dx, dy)
}

// Variant selects a displacement function.
type Variant uint8

const (
	VariantStandard  Variant = iota // barrel lens, strongest at the centre
	VariantPolar                    // radial swirl
	VariantProminent                // interference waves
	VariantPanel                    // refraction band along a rounded-rect rim
)

var variantNames = [...]string{
	VariantStandard:  "standard",
	VariantPolar:     "polar",
	VariantProminent: "prominent",
	VariantPanel:     "panel-rounded-rect",
}

// Variants lists every built-in variant in declaration order.
var Variants = []Variant{VariantStandard, VariantPolar, VariantProminent, VariantPanel}

// String returns the variant tag used in presets and cache keys.
func (v Variant) String() string {
	if int(v) < len(variantNames) {
		return variantNames[v]
	}
	return fmt.Sprintf("Variant(%d)", uint8(v))
}

// Valid reports whether v names a built-in variant.
func (v Variant) Valid() bool {
	return int(v) < len(variantNames)
}

// ParseVariant maps a variant tag to its Variant. Unknown tags are a
// configuration bug and return ErrUnknownVariant.
func ParseVariant(s string) (Variant, error) {
	for i, name := range variantNames {
		if name == s {
			return Variant(i), nil
		}
	}
	return 0, fmt.Errorf("parse variant %q: %w", s, ErrUnknownVariant)
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("marshal variant %d: %w", uint8(v), ErrUnknownVariant)
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(b []byte) error {
	parsed, err := ParseVariant(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// DisplacementSign is the multiplier the compositor applies to the decoded
// field for this variant. The panel variant pulls the backdrop inward for a
// positive scale; the lens variants push it outward.
func (v Variant) DisplacementSign() float64 {
	if v == VariantPanel {
		return -1
	}
	return 1
}
