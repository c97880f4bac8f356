package glass

import "golang.org/x/exp/constraints"

func clamp[N constraints.Integer | constraints.Float](n, lo, hi N) N {
	n = min(n, hi)
	n = max(n, lo)
	return n
}

func lerp[F constraints.Float](a, b, t F) F {
	return a + (b-a)*t
}

// smoothstep is the GLSL smoothstep. edge0 may be greater than edge1, which
// inverts the ramp.
func smoothstep(edge0, edge1, x float64) float64 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}
