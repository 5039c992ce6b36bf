// Package testutil builds comic archive and image fixtures for tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Entry is one archive member. Names ending in "/" are directories.
type Entry struct {
	Name string
	Data []byte
}

// WriteZip creates dir/name containing entries in order and returns its path.
func WriteZip(t testing.TB, dir, name string, entries []Entry) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))

	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		require.NoError(t, err)
		if len(e.Data) > 0 {
			_, err = w.Write(e.Data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return p
}

// ReadZip returns the content of every member of the archive at p.
func ReadZip(t testing.TB, p string) map[string][]byte {
	t.Helper()
	r, err := zip.OpenReader(p)
	require.NoError(t, err)
	defer r.Close()

	out := make(map[string][]byte, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = data
	}
	return out
}

// ZipNames returns member names of the archive at p in stored order.
func ZipNames(t testing.TB, p string) []string {
	t.Helper()
	r, err := zip.OpenReader(p)
	require.NoError(t, err)
	defer r.Close()

	names := make([]string, len(r.File))
	for i, f := range r.File {
		names[i] = f.Name
	}
	return names
}

// JPEG renders a deterministic w×h test pattern (smooth gradients with a
// little texture) and encodes it at quality 100, so it always has room to
// shrink.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := uint8((x*7 + y*13) % 9)
			img.Set(x, y, color.RGBA{
				R: uint8(x*255/w) ^ n,
				G: uint8(y*255/h) ^ n,
				B: uint8((x+y)*255/(w+h)) ^ n,
				A: 0xff,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	return buf.Bytes()
}
