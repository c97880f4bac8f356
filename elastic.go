package glass

import (
	"math"

	"github.com/charmbracelet/harmonica"
	"github.com/hajimehoshi/ebiten/v2"
)

const (
	// ActivationZone is the distance from the panel's bounding box, in
	// device pixels, inside which the pointer deforms the panel.
	ActivationZone = 200.0
	// stretchDistance is the centre distance at which stretch saturates.
	stretchDistance = 300.0
	translateFactor = 0.1
	stretchMajor    = 0.3
	stretchMinor    = 0.15
	minElasticScale = 0.8
)

// Pointer is a pointer position in device pixels. Valid is false when no
// pointer is present (left the window, touch released).
type Pointer struct {
	X, Y  float64
	Valid bool
}

// ElasticTransform is a whole-panel translation plus anisotropic scale about
// the panel centre.
type ElasticTransform struct {
	Translate Vec2
	Scale     Vec2
}

// IdentityElastic is the transform that leaves the panel untouched.
var IdentityElastic = ElasticTransform{Scale: Vec2{1, 1}}

// IsIdentity reports whether t is exactly the identity.
func (t ElasticTransform) IsIdentity() bool {
	return t == IdentityElastic
}

// FadeIn returns the activation factor for a pointer at edgeDistance from
// the panel: 1 on or inside the panel, falling linearly to 0 at
// ActivationZone.
func FadeIn(edgeDistance float64) float64 {
	if edgeDistance > ActivationZone {
		return 0
	}
	return 1 - edgeDistance/ActivationZone
}

// EstimateElastic computes the stretch-toward-pointer transform for a panel.
// An absent pointer, a pointer exactly at the panel centre or a pointer
// beyond the activation zone yields IdentityElastic.
func EstimateElastic(p Pointer, panel Rect, elasticity float64) ElasticTransform {
	if !p.Valid {
		return IdentityElastic
	}
	center := panel.Center()
	delta := Vec2{p.X - center.X, p.Y - center.Y}
	centerDist := delta.Len()
	if centerDist == 0 {
		return IdentityElastic
	}
	fade := FadeIn(panel.DistanceTo(p.X, p.Y))
	if fade == 0 {
		return IdentityElastic
	}

	t := ElasticTransform{
		Translate: delta.Scale(elasticity * translateFactor * fade),
	}
	nx := math.Abs(delta.X / centerDist)
	ny := math.Abs(delta.Y / centerDist)
	stretch := math.Min(centerDist/stretchDistance, 1) * elasticity * fade
	t.Scale.X = math.Max(minElasticScale, 1+nx*stretch*stretchMajor-ny*stretch*stretchMinor)
	t.Scale.Y = math.Max(minElasticScale, 1+ny*stretch*stretchMajor-nx*stretch*stretchMinor)
	return t
}

// Matrix returns t as an affine matrix [a, b, c, d, tx, ty] scaling about the
// centre of panel.
func (t ElasticTransform) Matrix(panel Rect) [6]float64 {
	c := panel.Center()
	m := translateAffine(-c.X, -c.Y)
	m = multiplyAffine(scaleAffine(t.Scale.X, t.Scale.Y), m)
	m = multiplyAffine(translateAffine(c.X+t.Translate.X, c.Y+t.Translate.Y), m)
	return m
}

// GeoM returns Matrix as an ebiten.GeoM, for drawing the panel.
func (t ElasticTransform) GeoM(panel Rect) ebiten.GeoM {
	m := t.Matrix(panel)
	var g ebiten.GeoM
	g.SetElement(0, 0, m[0])
	g.SetElement(1, 0, m[1])
	g.SetElement(0, 1, m[2])
	g.SetElement(1, 1, m[3])
	g.SetElement(0, 2, m[4])
	g.SetElement(1, 2, m[5])
	return g
}

// ElasticSpring eases the panel toward successive EstimateElastic targets so
// the deformation wobbles instead of snapping.
type ElasticSpring struct {
	spring harmonica.Spring
	pos    [4]float64 // tx, ty, sx, sy
	vel    [4]float64
}

// NewElasticSpring creates a spring stepped fps times per second. Damping
// below 1 overshoots.
func NewElasticSpring(fps int, frequency, damping float64) *ElasticSpring {
	s := &ElasticSpring{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
	s.Reset()
	return s
}

// Reset snaps the spring to the identity at rest.
func (s *ElasticSpring) Reset() {
	s.pos = [4]float64{0, 0, 1, 1}
	s.vel = [4]float64{}
}

// Step advances one frame toward target and returns the current transform.
func (s *ElasticSpring) Step(target ElasticTransform) ElasticTransform {
	goal := [4]float64{target.Translate.X, target.Translate.Y, target.Scale.X, target.Scale.Y}
	for i := range goal {
		s.pos[i], s.vel[i] = s.spring.Update(s.pos[i], s.vel[i], goal[i])
	}
	return ElasticTransform{
		Translate: Vec2{s.pos[0], s.pos[1]},
		Scale:     Vec2{math.Max(s.pos[2], minElasticScale), math.Max(s.pos[3], minElasticScale)},
	}
}
