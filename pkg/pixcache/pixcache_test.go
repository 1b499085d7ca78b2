package pixcache_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/pixcache/pkg/pixcache"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	return img
}

func newTestCache(t *testing.T, opts ...pixcache.ManagerOption) pixcache.Cache {
	t.Helper()
	c, err := pixcache.NewFromConfig(pixcache.TestConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew(t *testing.T) {
	t.Run("local disk", func(t *testing.T) {
		c, err := pixcache.New(pixcache.WithDiskLocation(filepath.Join(t.TempDir(), "images")))
		require.NoError(t, err)
		defer c.Close()

		assert.True(t, c.IsMemoryCacheEnabled())
		assert.True(t, c.IsDiskCacheEnabled())
	})

	t.Run("no location disables disk", func(t *testing.T) {
		c, err := pixcache.New()
		require.NoError(t, err)
		defer c.Close()

		assert.False(t, c.IsDiskCacheEnabled())
		assert.True(t, c.IsHealthy(context.Background()))
	})

	t.Run("memory only", func(t *testing.T) {
		c, err := pixcache.NewMemoryOnly()
		require.NoError(t, err)
		defer c.Close()

		assert.False(t, c.IsDiskCacheEnabled())
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := pixcache.NewFromFile(filepath.Join(t.TempDir(), "missing.json"))
		assert.Error(t, err)
	})
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	key := "https://example.com/img.png"

	h, err := c.Put(ctx, key, pixcache.BitmapFromImage(testImage(8, 6)))
	require.NoError(t, err)
	assert.Equal(t, pixcache.Shape{Width: 8, Height: 6}, h.Shape())

	acquired, err := c.Acquire(ctx, key)
	require.NoError(t, err)
	assert.Same(t, h, acquired)
	acquired.Release()

	assert.Equal(t, 1, c.TrimUnused(ctx))

	loaded, err := c.Acquire(ctx, key)
	require.NoError(t, err)
	defer loaded.Release()

	err = loaded.Use(func(res pixcache.Resource) error {
		img, err := res.(*pixcache.Bitmap).Image()
		if err != nil {
			return err
		}
		assert.Equal(t, color.NRGBA{R: 7, G: 5, A: 255}, img.NRGBAAt(7, 5))
		return nil
	})
	require.NoError(t, err)
}

func TestPutStream(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(5, 5)))

	h, err := c.PutStream(ctx, "stream", &buf)
	require.NoError(t, err)
	assert.Equal(t, 5, h.Width())

	ok, err := c.ContainsInDisk(ctx, "stream")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	_, err := c.Get(ctx, "missing")
	assert.True(t, pixcache.IsCacheMiss(err))

	_, err = c.Get(ctx, "")
	assert.True(t, pixcache.IsInvalidKey(err))

	require.NoError(t, c.Close())
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, pixcache.ErrClosed)
}

func TestOptions(t *testing.T) {
	ctx := context.Background()
	tracker := pixcache.NewTracker(nil)
	c := newTestCache(t,
		pixcache.WithMetrics(tracker),
		pixcache.WithReclaimPolicy(pixcache.PolicyEager),
		pixcache.WithGracePeriod(time.Second),
		pixcache.WithoutResilience(),
	)

	h, err := c.Put(ctx, "k", pixcache.NewBitmap(4, 4))
	require.NoError(t, err)
	require.NoError(t, c.Remove(ctx, "k"))
	assert.Equal(t, pixcache.StateReclaimed, h.State())

	snap := tracker.(interface {
		Snapshot() pixcache.MetricsSnapshot
	}).Snapshot()
	assert.EqualValues(t, 1, snap.Reclaims)
}

func TestCustomCodec(t *testing.T) {
	ctx := context.Background()
	codec, err := pixcache.NewCodec(pixcache.FormatJPEG, pixcache.WithJPEGQuality(90))
	require.NoError(t, err)
	c := newTestCache(t, pixcache.WithCodec(codec))

	_, err = c.Put(ctx, "k", pixcache.BitmapFromImage(testImage(16, 16)))
	require.NoError(t, err)
	c.TrimUnused(ctx)

	h, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 16, h.Width())
}

func TestDataDogPublisherLifecycle(t *testing.T) {
	cfg := pixcache.TestConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.DataDog.Enabled = true
	cfg.Metrics.DataDog.AgentHost = "127.0.0.1"
	cfg.Metrics.DataDog.Port = 8125
	cfg.Metrics.DataDog.Prefix = "pixcache_test"
	cfg.Metrics.PublishInterval = 10 * time.Millisecond

	c, err := pixcache.NewFromConfig(cfg)
	require.NoError(t, err)

	_, err = c.Put(context.Background(), "k", pixcache.NewBitmap(2, 2))
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want pixcache.Policy
		ok   bool
	}{
		{"disabled", pixcache.PolicyDisabled, true},
		{"eager", pixcache.PolicyEager, true},
		{"lazy", pixcache.PolicyLazy, true},
		{"", pixcache.PolicyLazy, true},
		{"never", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := pixcache.ParsePolicy(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
