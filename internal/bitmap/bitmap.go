// Package bitmap provides the default Resource: a decoded RGBA image whose
// pixel buffer can be reclaimed and reused for another image of the same shape.
package bitmap

import (
	"image"
	"image/draw"
	"sync"

	"github.com/LavishGent/pixcache/internal/types"
)

const bytesPerPixel = 4

// Bitmap is an image.NRGBA with an explicit lifetime.
type Bitmap struct {
	img     *image.NRGBA
	width   int
	height  int
	mutable bool
	mu      sync.RWMutex
}

// New allocates a transparent, mutable bitmap.
func New(width, height int) *Bitmap {
	return &Bitmap{
		img:     image.NewNRGBA(image.Rect(0, 0, width, height)),
		width:   width,
		height:  height,
		mutable: true,
	}
}

// FromImage copies src into a new bitmap.
func FromImage(src image.Image, mutable bool) *Bitmap {
	b := src.Bounds()
	bm := New(b.Dx(), b.Dy())
	draw.Draw(bm.img, bm.img.Bounds(), src, b.Min, draw.Src)
	bm.mutable = mutable
	return bm
}

func (b *Bitmap) Width() int       { return b.width }
func (b *Bitmap) Height() int      { return b.height }
func (b *Bitmap) Mutable() bool    { return b.mutable }
func (b *Bitmap) SizeBytes() int64 { return int64(b.width) * int64(b.height) * bytesPerPixel }

// Image returns the pixel buffer, or ErrReclaimed.
func (b *Bitmap) Image() (*image.NRGBA, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.img == nil {
		return nil, types.ErrReclaimed
	}
	return b.img, nil
}

// Reclaim drops the pixel buffer.
func (b *Bitmap) Reclaim() {
	b.mu.Lock()
	if b.img != nil {
		b.img.Pix = nil
		b.img = nil
	}
	b.mu.Unlock()
}

func (b *Bitmap) IsReclaimed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.img == nil
}

// overwrite draws src into the existing buffer. It fails when the shapes
// differ, the bitmap is immutable, or it has been reclaimed.
func (b *Bitmap) overwrite(src image.Image) bool {
	sb := src.Bounds()
	if !b.mutable || sb.Dx() != b.width || sb.Dy() != b.height {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return false
	}
	draw.Draw(b.img, b.img.Bounds(), src, sb.Min, draw.Src)
	return true
}

var _ types.Resource = (*Bitmap)(nil)
