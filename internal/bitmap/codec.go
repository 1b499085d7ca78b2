package bitmap

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	// Registered for decoding only.
	_ "image/gif"

	"github.com/LavishGent/pixcache/internal/types"
)

// Format names accepted by NewCodec.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// Codec decodes any registered image format and encodes bitmaps in one
// configured format.
type Codec struct {
	format      string
	jpegQuality int
	// Immutable marks decoded bitmaps as not reusable.
	immutable bool
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithJPEGQuality sets the quality used when the format is jpeg.
func WithJPEGQuality(q int) CodecOption {
	return func(c *Codec) {
		c.jpegQuality = q
	}
}

// WithImmutableBitmaps makes Decode produce bitmaps the reuse pool ignores.
func WithImmutableBitmaps() CodecOption {
	return func(c *Codec) {
		c.immutable = true
	}
}

// NewCodec creates a codec that encodes in format ("png" or "jpeg").
func NewCodec(format string, opts ...CodecOption) (*Codec, error) {
	switch format {
	case "", FormatPNG:
		format = FormatPNG
	case FormatJPEG, "jpg":
		format = FormatJPEG
	default:
		return nil, fmt.Errorf("bitmap: unsupported encode format %q", format)
	}
	c := &Codec{format: format, jpegQuality: jpeg.DefaultQuality}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DefaultCodec returns a PNG codec.
func DefaultCodec() *Codec {
	c, _ := NewCodec(FormatPNG)
	return c
}

func (c *Codec) Format() string {
	return c.format
}

// DecodeBounds reads only the image header.
func (c *Codec) DecodeBounds(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", types.ErrDecodeFailed, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Decode decodes data, drawing into reuse when it is a bitmap of the same shape.
//
// The image decoders always allocate their own image, so reuse does not
// avoid that allocation. It only lets the cache keep the pooled buffer and
// drop the decoder's copy, which becomes garbage as soon as Decode returns.
func (c *Codec) Decode(data []byte, reuse types.Resource) (types.Resource, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDecodeFailed, err)
	}
	if bm, ok := reuse.(*Bitmap); ok && !c.immutable && bm.overwrite(img) {
		return bm, nil
	}
	return FromImage(img, !c.immutable), nil
}

// Encode writes res, which must be a *Bitmap.
func (c *Codec) Encode(w io.Writer, res types.Resource) error {
	bm, ok := res.(*Bitmap)
	if !ok {
		return fmt.Errorf("%w: unsupported resource type %T", types.ErrEncodeFailed, res)
	}
	img, err := bm.Image()
	if err != nil {
		return err
	}

	switch c.format {
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: c.jpegQuality})
	default:
		err = png.Encode(w, img)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrEncodeFailed, err)
	}
	return nil
}

var (
	_ types.Decoder = (*Codec)(nil)
	_ types.Encoder = (*Codec)(nil)
)
