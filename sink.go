package glass

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/bmp"
)

// Resource is an encoded field in a form a compositing backend can consume.
// Byte sinks fill MIME and Data; TextureSink fills Texture.
type Resource struct {
	Width, Height int
	MIME          string
	Data          []byte
	Texture       *ebiten.Image
	// Placeholder is true when the resource is the 1x1 transparent fallback.
	Placeholder bool
}

// DataURI returns the resource as an embeddable data: URI, or "" for
// texture-only resources.
func (r Resource) DataURI() string {
	if len(r.Data) == 0 {
		return ""
	}
	return "data:" + r.MIME + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// Sink turns a rasterized field into a Resource.
type Sink interface {
	Encode(f *Field) (Resource, error)
}

var errNilField = errors.New("glass: nil field")

// PNGSink encodes fields as PNG bytes.
type PNGSink struct {
	// Compression is passed to png.Encoder. Zero is png.DefaultCompression.
	Compression png.CompressionLevel
}

// Encode implements Sink.
func (s PNGSink) Encode(f *Field) (Resource, error) {
	if f == nil {
		return Resource{}, errNilField
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: s.Compression}
	if err := enc.Encode(&buf, f.Image()); err != nil {
		return Resource{}, fmt.Errorf("encode png %dx%d: %w", f.Width, f.Height, err)
	}
	return Resource{Width: f.Width, Height: f.Height, MIME: "image/png", Data: buf.Bytes()}, nil
}

// BMPSink encodes fields as uncompressed BMP bytes. Cheaper than PNG for
// fields that are regenerated often.
type BMPSink struct{}

// Encode implements Sink.
func (BMPSink) Encode(f *Field) (Resource, error) {
	if f == nil {
		return Resource{}, errNilField
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, f.Image()); err != nil {
		return Resource{}, fmt.Errorf("encode bmp %dx%d: %w", f.Width, f.Height, err)
	}
	return Resource{Width: f.Width, Height: f.Height, MIME: "image/bmp", Data: buf.Bytes()}, nil
}

// TextureSink uploads fields to GPU textures for GlassFilter.
type TextureSink struct{}

// Encode implements Sink. Ebitengine panics on invalid image operations; the
// panic is converted to an error so the caller can fall back.
func (TextureSink) Encode(f *Field) (res Resource, err error) {
	if f == nil {
		return Resource{}, errNilField
	}
	defer func() {
		if r := recover(); r != nil {
			res = Resource{}
			err = fmt.Errorf("upload field texture %dx%d: %v", f.Width, f.Height, r)
		}
	}()
	img := ebiten.NewImage(f.Width, f.Height)
	img.WritePixels(f.Pix)
	return Resource{Width: f.Width, Height: f.Height, Texture: img}, nil
}

var placeholderPNG = sync.OnceValue(func() []byte {
	var buf bytes.Buffer
	// A 1x1 NRGBA image is all zero: fully transparent black.
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		panic("glass: failed to encode placeholder: " + err.Error())
	}
	return buf.Bytes()
})

var placeholderTexture = sync.OnceValue(func() *ebiten.Image {
	return ebiten.NewImage(1, 1)
})

// Placeholder returns the 1x1 fully transparent fallback resource. It
// carries both PNG bytes and a texture so any backend can use it.
func Placeholder() Resource {
	return Resource{
		Width:       1,
		Height:      1,
		MIME:        "image/png",
		Data:        placeholderPNG(),
		Texture:     placeholderTexture(),
		Placeholder: true,
	}
}

// EncodeResource runs s on f and substitutes Placeholder on failure. The
// render path never sees a sink error.
func EncodeResource(s Sink, f *Field) Resource {
	if s == nil {
		s = PNGSink{}
	}
	res, err := s.Encode(f)
	if err != nil {
		debugLogf("sink fallback: %v", err)
		return Placeholder()
	}
	return res
}
