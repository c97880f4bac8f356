package glass

import (
	"math"
	"testing"

	"github.com/tanema/gween/ease"
)

func TestTweenDisplacementReachesTarget(t *testing.T) {
	p := DefaultParams(VariantStandard)
	g := TweenDisplacement(&p, 10, 1.0, ease.Linear)

	g.Update(0.5)
	if math.Abs(p.DisplacementScale-40) > 0.5 {
		t.Errorf("midway DisplacementScale = %v, want ~40", p.DisplacementScale)
	}
	g.Update(0.5)

	if !g.Done {
		t.Fatal("expected Done after full duration")
	}
	if math.Abs(p.DisplacementScale-10) > 0.01 {
		t.Errorf("DisplacementScale = %v, want 10", p.DisplacementScale)
	}
}

func TestTweenAberrationToZero(t *testing.T) {
	p := DefaultParams(VariantStandard)
	g := TweenAberration(&p, 0, 0.5, ease.OutQuad)
	g.Update(0.25)
	g.Update(0.25)
	if !g.Done || p.AberrationIntensity != 0 {
		t.Errorf("AberrationIntensity = %v (done %v), want 0", p.AberrationIntensity, g.Done)
	}
}

func TestTweenUpdateAfterDoneIsNoop(t *testing.T) {
	p := DefaultParams(VariantStandard)
	g := TweenDisplacement(&p, 5, 0.1, ease.Linear)
	g.Update(0.2)
	p.DisplacementScale = 99
	g.Update(0.1)
	if p.DisplacementScale != 99 {
		t.Errorf("finished tween wrote %v", p.DisplacementScale)
	}
}
