package glass

import (
	"fmt"
	"math"
)

// DisplaceFunc maps a UV coordinate in [0,1]² (origin top-left) to the UV the
// output pixel should sample. Implementations are pure and continuous.
type DisplaceFunc func(uv Vec2) Vec2

// warpFunc operates on coordinates centred at (0, 0).
type warpFunc func(p Vec2) Vec2

// Rounded-rect refraction constants, in centred UV units.
const (
	panelHalfW       = 0.3
	panelHalfH       = 0.2
	panelCornerR     = 0.6
	panelEdgeOffset  = 0.15
	panelEdgeOuter   = 0.8
	pointerPullRatio = 0.25 // how far the lens centre follows the pointer
)

var warps = [...]warpFunc{
	VariantStandard:  warpStandard,
	VariantPolar:     warpPolar,
	VariantProminent: warpProminent,
	VariantPanel:     warpPanel,
}

// Func returns the displacement function for v.
func (v Variant) Func() (DisplaceFunc, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("displace %s: %w", v, ErrUnknownVariant)
	}
	w := warps[v]
	return func(uv Vec2) Vec2 {
		p := w(Vec2{uv.X - 0.5, uv.Y - 0.5})
		return Vec2{p.X + 0.5, p.Y + 0.5}
	}, nil
}

// Displace returns the displaced UV for uv under variant v.
func Displace(v Variant, uv Vec2) (Vec2, error) {
	fn, err := v.Func()
	if err != nil {
		return uv, err
	}
	return fn(uv), nil
}

// DisplacePointer is Displace with the lens centre pulled toward the pointer
// UV. Fields built with it depend on the pointer and are never cached.
func DisplacePointer(v Variant, uv, pointer Vec2) (Vec2, error) {
	fn, err := v.PointerFunc(pointer)
	if err != nil {
		return uv, err
	}
	return fn(uv), nil
}

// PointerFunc returns v's displacement function centred between the field
// centre and pointer.
func (v Variant) PointerFunc(pointer Vec2) (DisplaceFunc, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("displace %s: %w", v, ErrUnknownVariant)
	}
	w := warps[v]
	cx := lerp(0.5, clamp(pointer.X, 0, 1), pointerPullRatio)
	cy := lerp(0.5, clamp(pointer.Y, 0, 1), pointerPullRatio)
	return func(uv Vec2) Vec2 {
		p := w(Vec2{uv.X - cx, uv.Y - cy})
		return Vec2{p.X + cx, p.Y + cy}
	}, nil
}

// warpStandard is a barrel lens whose strength decays away from the centre.
func warpStandard(p Vec2) Vec2 {
	r2 := p.X*p.X + p.Y*p.Y
	dist := math.Sqrt(r2)
	strength := math.Exp(-dist*2.5) * 0.15
	return p.Scale(1 + r2*strength)
}

// warpPolar swirls the angle and pushes the radius out near the centre.
func warpPolar(p Vec2) Vec2 {
	radius := p.Len()
	angle := math.Atan2(p.Y, p.X)
	effect := math.Exp(-radius*3) * 0.2
	radius *= 1 + effect
	angle += math.Sin(angle*3) * effect * 0.3
	sin, cos := math.Sincos(angle)
	return Vec2{radius * cos, radius * sin}
}

// warpProminent sums three interference patterns under a radial falloff.
func warpProminent(p Vec2) Vec2 {
	x, y := p.X+0.5, p.Y+0.5
	wave := 0.4*math.Sin(x*4*math.Pi)*math.Sin(y*4*math.Pi) +
		0.3*math.Cos(x*6*math.Pi)*math.Cos(y*6*math.Pi) +
		0.3*math.Sin((x+y)*8*math.Pi)
	d := wave * math.Exp(-p.Len()*2) * 0.25
	return p.Scale(1 + d)
}

// warpPanel leaves the flat interior alone and compresses a band around the
// rounded-rect boundary toward the centre.
func warpPanel(p Vec2) Vec2 {
	dist := roundedRectSDF(p.X, p.Y, panelHalfW, panelHalfH, panelCornerR)
	d := smoothstep(panelEdgeOuter, 0, dist-panelEdgeOffset)
	s := smoothstep(0, 1, d)
	return p.Scale(s)
}

// roundedRectSDF is the signed distance from (x, y) to a rounded rectangle
// centred at the origin with half extents (hw, hh) and corner radius r.
// Negative inside.
func roundedRectSDF(x, y, hw, hh, r float64) float64 {
	qx := math.Abs(x) - hw + r
	qy := math.Abs(y) - hh + r
	outside := math.Hypot(math.Max(qx, 0), math.Max(qy, 0))
	inside := math.Min(math.Max(qx, qy), 0)
	return inside + outside - r
}
