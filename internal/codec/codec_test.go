package codec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/newthinker/comicshrink/internal/core"
	"github.com/newthinker/comicshrink/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJPEG_ShrinksWithinBound(t *testing.T) {
	src := testutil.JPEG(t, 128, 96)

	out, err := JPEG{}.Encode(src, 5)
	require.NoError(t, err)
	assert.Less(t, len(out), len(src))

	a, err := jpeg.Decode(bytes.NewReader(src))
	require.NoError(t, err)
	b, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.LessOrEqual(t, Diff(a, b), 5.0)
}

func TestJPEG_LargerBoundNeverGrows(t *testing.T) {
	src := testutil.JPEG(t, 96, 96)

	tight, err := JPEG{}.Encode(src, 1)
	require.NoError(t, err)
	loose, err := JPEG{}.Encode(src, 50)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(loose), len(src))
	assert.LessOrEqual(t, len(tight), len(src))
}

func TestJPEG_ZeroBoundReturnsOriginal(t *testing.T) {
	src := testutil.JPEG(t, 32, 32)

	out, err := JPEG{}.Encode(src, 0)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestJPEG_Malformed(t *testing.T) {
	_, err := JPEG{}.Encode([]byte("not a jpeg"), 50)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCodecFailed))

	src := testutil.JPEG(t, 32, 32)
	_, err = JPEG{}.Encode(src[:len(src)/3], 50)
	assert.True(t, errors.Is(err, core.ErrCodecFailed))
}

func TestDiff(t *testing.T) {
	black := image.NewGray(image.Rect(0, 0, 4, 4))
	white := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			white.SetGray(x, y, color.Gray{Y: 0xff})
		}
	}

	assert.Equal(t, 0.0, Diff(black, black))
	assert.InDelta(t, 100.0, Diff(black, white), 1e-9)
	assert.Equal(t, 100.0, Diff(black, image.NewGray(image.Rect(0, 0, 2, 2))))
	assert.Equal(t, 0.0, Diff(image.NewGray(image.Rectangle{}), image.NewGray(image.Rectangle{})))
}

func TestFunc(t *testing.T) {
	var got float64
	c := Func(func(data []byte, maxDiff float64) ([]byte, error) {
		got = maxDiff
		return data[:1], nil
	})

	out, err := c.Encode([]byte("abc"), 12.5)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), out)
	assert.Equal(t, 12.5, got)
}
