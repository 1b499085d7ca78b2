package bitmap

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/LavishGent/pixcache/internal/types"
)

func encodePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() = %v", err)
	}
	return buf.Bytes()
}

func TestBitmap(t *testing.T) {
	t.Run("reports size and shape", func(t *testing.T) {
		bm := New(10, 5)
		if bm.Width() != 10 || bm.Height() != 5 {
			t.Errorf("shape = %dx%d, want 10x5", bm.Width(), bm.Height())
		}
		if bm.SizeBytes() != 200 {
			t.Errorf("SizeBytes() = %d, want 200", bm.SizeBytes())
		}
		if !bm.Mutable() {
			t.Error("New() bitmap should be mutable")
		}
	})

	t.Run("image fails after reclaim", func(t *testing.T) {
		bm := New(2, 2)
		bm.Reclaim()
		bm.Reclaim()

		if _, err := bm.Image(); !errors.Is(err, types.ErrReclaimed) {
			t.Errorf("Image() error = %v, want ErrReclaimed", err)
		}
		if !bm.IsReclaimed() {
			t.Error("IsReclaimed() = false")
		}
	})
}

func TestCodec(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}

	t.Run("bounds without full decode", func(t *testing.T) {
		w, h, err := DefaultCodec().DecodeBounds(encodePNG(t, 7, 3, red))
		if err != nil {
			t.Fatalf("DecodeBounds() = %v", err)
		}
		if w != 7 || h != 3 {
			t.Errorf("DecodeBounds() = %dx%d, want 7x3", w, h)
		}
	})

	t.Run("decode allocates without reuse", func(t *testing.T) {
		res, err := DefaultCodec().Decode(encodePNG(t, 4, 4, red), nil)
		if err != nil {
			t.Fatalf("Decode() = %v", err)
		}
		img, _ := res.(*Bitmap).Image()
		if got := img.NRGBAAt(1, 1); got != red {
			t.Errorf("pixel = %v, want %v", got, red)
		}
	})

	t.Run("decode reuses same shaped bitmap", func(t *testing.T) {
		reuse := New(4, 4)
		res, err := DefaultCodec().Decode(encodePNG(t, 4, 4, blue), reuse)
		if err != nil {
			t.Fatalf("Decode() = %v", err)
		}
		if res != types.Resource(reuse) {
			t.Fatal("Decode() did not reuse the offered bitmap")
		}
		img, _ := reuse.Image()
		if got := img.NRGBAAt(3, 3); got != blue {
			t.Errorf("pixel = %v, want %v", got, blue)
		}
	})

	t.Run("decode ignores wrong shaped bitmap", func(t *testing.T) {
		reuse := New(2, 2)
		res, err := DefaultCodec().Decode(encodePNG(t, 4, 4, blue), reuse)
		if err != nil {
			t.Fatalf("Decode() = %v", err)
		}
		if res == types.Resource(reuse) {
			t.Error("Decode() reused a bitmap of the wrong shape")
		}
	})

	t.Run("corrupt data wraps ErrDecodeFailed", func(t *testing.T) {
		_, err := DefaultCodec().Decode([]byte("not an image"), nil)
		if !errors.Is(err, types.ErrDecodeFailed) {
			t.Errorf("Decode() error = %v, want ErrDecodeFailed", err)
		}
		_, _, err = DefaultCodec().DecodeBounds([]byte{0x89, 'P'})
		if !errors.Is(err, types.ErrDecodeFailed) {
			t.Errorf("DecodeBounds() error = %v, want ErrDecodeFailed", err)
		}
	})

	t.Run("encode then decode", func(t *testing.T) {
		for _, format := range []string{FormatPNG, FormatJPEG} {
			c, err := NewCodec(format)
			if err != nil {
				t.Fatalf("NewCodec(%q) = %v", format, err)
			}
			bm := New(8, 6)
			var buf bytes.Buffer
			if err := c.Encode(&buf, bm); err != nil {
				t.Fatalf("Encode() = %v", err)
			}
			w, h, err := c.DecodeBounds(buf.Bytes())
			if err != nil || w != 8 || h != 6 {
				t.Errorf("%s round trip bounds = %dx%d, %v", format, w, h, err)
			}
		}
	})

	t.Run("encode reclaimed bitmap fails", func(t *testing.T) {
		bm := New(1, 1)
		bm.Reclaim()
		if err := DefaultCodec().Encode(&bytes.Buffer{}, bm); !errors.Is(err, types.ErrReclaimed) {
			t.Errorf("Encode() error = %v, want ErrReclaimed", err)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		if _, err := NewCodec("bmp"); err == nil {
			t.Error("NewCodec(bmp) = nil error")
		}
	})
}
