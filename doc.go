// Package glass renders a "liquid glass" panel for [Ebitengine]: the backdrop
// behind a panel is refracted through a per-pixel displacement field, split
// into color fringes at the rim, and the whole panel stretches toward the
// pointer like jelly.
//
// # Pipeline
//
// A displacement function maps a UV coordinate to the UV it should sample
// ([Displace]). [Rasterize] samples one over a pixel grid and encodes the
// offsets into an RGBA [Field] (R = dx, G = dy). A [FieldCache] keeps one
// field per (variant, width, height) and hands out encoded [Resource]s
// through a [Sink]: PNG or BMP bytes, or a GPU texture.
//
// [Composite] is the CPU compositor; [GlassFilter] is the same pass as a
// Kage shader. Both displace the source, optionally aberrate the red and
// blue channels, blend the result with the sharp source through an edge
// mask, and clip to a rounded rectangle:
//
//	field, err := glass.Rasterize(glass.VariantStandard, 300, 200)
//	if err != nil {
//		return err
//	}
//	out, err := glass.Composite(backdrop, field, glass.DefaultParams(glass.VariantStandard))
//
// # Panels
//
// [Panel] ties the pieces together for an interactive host. Feed it pointer
// and resize events as they arrive, call [Panel.Update] once per frame, and
// draw with [Panel.Draw] (GPU) or [Panel.Composite] (CPU):
//
//	cfg := glass.DefaultConfig()
//	panel, err := glass.NewPanel(cfg, nil)
//	// in Update:
//	panel.PointerMove(x, y)
//	panel.Update(time.Now())
//	// in Draw:
//	panel.Draw(screen, backdrop)
//
// Pointer events are coalesced to the latest sample per frame
// ([PointerSampler]); resizes are debounced ([ResizeDebouncer]) before a new
// field is fetched. [EstimateElastic] turns the pointer into a whole-panel
// translation and anisotropic scale, smoothed by an [ElasticSpring].
//
// Configuration can be loaded from JSON presets with [LoadConfig]; tint
// colors accept CSS syntax.
//
// [Ebitengine]: https://ebitengine.org
package glass
