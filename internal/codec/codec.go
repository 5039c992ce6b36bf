// Package codec re-encodes JPEG images under a perceptual difference bound.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/newthinker/comicshrink/internal/core"
)

// Codec turns raw image bytes into a smaller encoding whose visual
// difference from the source is at most maxDiff percent.
type Codec interface {
	Encode(data []byte, maxDiff float64) ([]byte, error)
}

// Func adapts a plain function to Codec.
type Func func(data []byte, maxDiff float64) ([]byte, error)

// Encode calls f.
func (f Func) Encode(data []byte, maxDiff float64) ([]byte, error) {
	return f(data, maxDiff)
}

const (
	defaultMinQuality = 10
	maxQuality        = 100
)

// JPEG searches for the lowest JPEG quality whose decoded output stays
// within the difference bound. The source is returned unchanged when no
// passing encoding is smaller than it.
type JPEG struct {
	// MinQuality is the lowest quality tried. Zero means 10.
	MinQuality int
}

// Encode implements Codec.
func (c JPEG) Encode(data []byte, maxDiff float64) ([]byte, error) {
	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, core.WrapError(core.ErrCodecFailed, err)
	}
	if maxDiff <= 0 {
		return data, nil
	}

	lo, hi := c.MinQuality, maxQuality
	if lo <= 0 {
		lo = defaultMinQuality
	}

	var best []byte
	for lo <= hi {
		q := (lo + hi) / 2
		enc, diff, err := encodeAt(src, q)
		if err != nil {
			return nil, core.WrapError(core.ErrCodecFailed, fmt.Errorf("quality %d: %w", q, err))
		}
		if diff <= maxDiff {
			best = enc
			hi = q - 1
		} else {
			lo = q + 1
		}
	}

	if best == nil || len(best) >= len(data) {
		return data, nil
	}
	return best, nil
}

// encodeAt encodes img at quality q and measures the round-trip difference.
func encodeAt(img image.Image, q int) ([]byte, float64, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, 0, err
	}
	decoded, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), Diff(img, decoded), nil
}

// Diff returns the mean absolute per-channel difference between a and b as
// a percentage of full scale. Images of different bounds differ by 100.
func Diff(a, b image.Image) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 100
	}
	if ab.Empty() {
		return 0
	}

	var sum uint64
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			r1, g1, b1, _ := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, g2, b2, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			sum += absDiff(r1, r2) + absDiff(g1, g2) + absDiff(b1, b2)
		}
	}
	samples := uint64(ab.Dx()) * uint64(ab.Dy()) * 3
	return float64(sum) / float64(samples) / 0xffff * 100
}

func absDiff(a, b uint32) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
