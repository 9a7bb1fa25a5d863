package imagecache

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{30, 100, 230, 255})
		}
	}
	return img
}

func TestEncodePNGAndCacheHit(t *testing.T) {
	c := New(4)
	img := testImage(64, 36)
	k := Key{Seq: 1, Format: PNG}

	data, err := c.Encode(context.Background(), img, k)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, decoded.Bounds().Dx())

	again, err := c.Encode(context.Background(), img, k)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestEncodeScaledJPEG(t *testing.T) {
	c := New(4)
	data, err := c.Encode(context.Background(), testImage(64, 36), Key{Seq: 1, Format: JPEG, Quality: 70, Width: 32})
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 18), decoded.Bounds())
}

func TestScaleKeepsSmallOrLargeRequests(t *testing.T) {
	img := testImage(64, 36)
	assert.Same(t, img, Scale(img, 0))
	assert.Same(t, img, Scale(img, 8), "below MinWidth")
	assert.Same(t, img, Scale(img, 64))
	assert.Same(t, img, Scale(img, 1000))
	assert.Equal(t, image.Rect(0, 0, 40, 22), Scale(img, 40).Bounds())
}

func TestEvictsOldest(t *testing.T) {
	c := New(2)
	img := testImage(16, 16)
	for seq := uint64(1); seq <= 3; seq++ {
		_, err := c.Encode(context.Background(), img, Key{Seq: seq, Format: PNG})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Size())

	_, ok := c.Get(Key{Seq: 1, Format: PNG})
	assert.False(t, ok)
	_, ok = c.Get(Key{Seq: 3, Format: PNG})
	assert.True(t, ok)
}

func TestUnknownFormat(t *testing.T) {
	c := New(2)
	_, err := c.Encode(context.Background(), testImage(16, 16), Key{Seq: 1, Format: "gif"})
	assert.ErrorContains(t, err, "unknown format")
	assert.Equal(t, 0, c.Size())
}

func TestConcurrentEncodeSharesResult(t *testing.T) {
	c := New(8)
	img := testImage(128, 72)
	k := Key{Seq: 9, Format: JPEG, Quality: 80}

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := c.Encode(context.Background(), img, k)
			assert.NoError(t, err)
			results[i] = data
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
	assert.Equal(t, 1, c.Size())
}

func TestEncodeCancelledWhileSaturated(t *testing.T) {
	c := New(2)
	for i := 0; i < MaxConcurrentEncodes; i++ {
		c.sem <- struct{}{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Encode(ctx, testImage(16, 16), Key{Seq: 1, Format: PNG})
	assert.ErrorIs(t, err, context.Canceled)
}
