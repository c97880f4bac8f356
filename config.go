package glass

import (
	"encoding/json"
	"errors"
	"fmt"

	css "github.com/mazznoer/csscolorparser"
)

// Config describes a glass panel: geometry, compositing parameters, pointer
// response and backdrop frosting. JSON presets map onto it field by field;
// fields absent from a preset keep their DefaultConfig values.
type Config struct {
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	CornerRadius float64 `json:"cornerRadius"`
	// X and Y are the panel's top-left corner. When Centered is true the
	// panel is centred in the viewport until it is first moved.
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Centered bool    `json:"centered"`

	Mode                Variant `json:"mode"`
	DisplacementScale   float64 `json:"displacementScale"`
	AberrationIntensity float64 `json:"aberrationIntensity"`
	Elasticity          float64 `json:"elasticity"`

	// Blur is the frost blur radius in pixels applied to the backdrop.
	Blur int `json:"blur"`
	// Saturation multiplies backdrop saturation; 1 leaves it unchanged.
	Saturation float64 `json:"saturation"`
	// Tint is laid over the glass. Presets accept any CSS color string.
	Tint Color `json:"tint"`
}

// DefaultConfig returns the reference panel.
func DefaultConfig() Config {
	return Config{
		Width:               300,
		Height:              200,
		CornerRadius:        32,
		Centered:            true,
		Mode:                VariantStandard,
		DisplacementScale:   defaultDisplacementScale,
		AberrationIntensity: defaultAberrationIntensity,
		Elasticity:          0.15,
		Blur:                4,
		Saturation:          1.4,
	}
}

// LoadConfig parses a JSON preset over DefaultConfig and validates it.
func LoadConfig(jsonData []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse glass config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("parse glass config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("panel %vx%v: %w", c.Width, c.Height, ErrInvalidSize)
	case !c.Mode.Valid():
		return fmt.Errorf("mode %d: %w", uint8(c.Mode), ErrUnknownVariant)
	case c.AberrationIntensity < 0:
		return errors.New("aberrationIntensity must be >= 0")
	case c.Elasticity < 0 || c.Elasticity > 1:
		return errors.New("elasticity must be in [0, 1]")
	case c.CornerRadius < 0:
		return errors.New("cornerRadius must be >= 0")
	case c.Blur < 0:
		return errors.New("blur must be >= 0")
	case c.Saturation < 0:
		return errors.New("saturation must be >= 0")
	}
	return nil
}

// Params returns the compositor parameters for c.
func (c Config) Params() Params {
	p := DefaultParams(c.Mode)
	p.DisplacementScale = c.DisplacementScale
	p.AberrationIntensity = c.AberrationIntensity
	p.CornerRadius = c.CornerRadius
	return p
}

// ParseColor parses a CSS color string ("#fff8", "rgba(255,255,255,0.1)",
// "hsl(200 50% 50%)", named colors).
func ParseColor(s string) (Color, error) {
	c, err := css.Parse(s)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return Color{R: c.R, G: c.G, B: c.B, A: c.A}, nil
}

// MarshalText implements encoding.TextMarshaler as a CSS hex color.
func (c Color) MarshalText() ([]byte, error) {
	cc := css.Color{R: clamp(c.R, 0, 1), G: clamp(c.G, 0, 1), B: clamp(c.B, 0, 1), A: clamp(c.A, 0, 1)}
	return []byte(cc.HexString()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler via ParseColor.
func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
