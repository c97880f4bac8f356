package glass

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// ParamTween animates one float64 field of a Params. Create one via
// TweenDisplacement or TweenAberration and call Update(dt) each frame.
//
// There is no global animation manager; callers (usually Panel) call Update
// themselves.
type ParamTween struct {
	tween *gween.Tween
	field *float64
	Done  bool
}

// Update advances the tween by dt seconds and writes the value to the target
// field.
func (g *ParamTween) Update(dt float32) {
	if g.Done {
		return
	}
	val, finished := g.tween.Update(dt)
	*g.field = float64(val)
	g.Done = finished
}

func newParamTween(field *float64, to float64, duration float32, fn ease.TweenFunc) *ParamTween {
	return &ParamTween{
		tween: gween.New(float32(*field), float32(to), duration, fn),
		field: field,
	}
}

// TweenDisplacement animates p.DisplacementScale to the given value over
// duration seconds.
func TweenDisplacement(p *Params, to float64, duration float32, fn ease.TweenFunc) *ParamTween {
	return newParamTween(&p.DisplacementScale, to, duration, fn)
}

// TweenAberration animates p.AberrationIntensity to the given value over
// duration seconds.
func TweenAberration(p *Params, to float64, duration float32, fn ease.TweenFunc) *ParamTween {
	return newParamTween(&p.AberrationIntensity, to, duration, fn)
}
