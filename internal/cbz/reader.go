package cbz

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
	"sync/atomic"

	"github.com/newthinker/comicshrink/internal/core"
)

// Entry is one node of an open archive in enumeration order.
type Entry struct {
	Path  string
	Dir   bool
	Size  int64
	Class Class
}

// Handle is a read-only view over a comic archive. ReadFile may be called
// from multiple goroutines; the handle is invalid after Close.
type Handle struct {
	rc      *zip.ReadCloser
	files   map[string]*zip.File
	root    *Node
	entries []Entry
	closed  atomic.Bool
}

// Open opens the archive at p and enumerates its full entry tree.
func Open(p string) (*Handle, error) {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, core.WrapError(core.ErrArchiveOpen, err)
	}

	h := &Handle{
		rc:    rc,
		files: make(map[string]*zip.File, len(rc.File)),
	}
	if err := h.enumerate(); err != nil {
		rc.Close()
		return nil, err
	}
	return h, nil
}

func (h *Handle) enumerate() error {
	b := newTreeBuilder()
	for _, f := range h.rc.File {
		name, ok, err := cleanEntryName(f.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if f.FileInfo().IsDir() {
			if _, err := b.dir(name); err != nil {
				return core.WrapError(core.ErrArchiveOpen, err)
			}
			continue
		}
		if _, err := b.leaf(name, int64(f.UncompressedSize64)); err != nil {
			return core.WrapError(core.ErrArchiveOpen, err)
		}
		h.files[name] = f
	}

	h.root = b.build()
	h.root.Walk(func(n *Node) bool {
		if n != h.root {
			h.entries = append(h.entries, Entry{
				Path:  n.Path,
				Dir:   n.Dir,
				Size:  n.Size,
				Class: Classify(n.Path),
			})
		}
		return true
	})
	return nil
}

// cleanEntryName normalizes a zip entry name to a clean relative slash path.
// ok is false for names that denote the archive root itself.
func cleanEntryName(name string) (string, bool, error) {
	p := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(p, "/") || hasDriveLetter(p) {
		return "", false, core.WrapError(core.ErrUnsafePath, fmt.Errorf("%q", name))
	}
	p = path.Clean(strings.TrimSuffix(p, "/"))
	if p == "." || p == "" {
		return "", false, nil
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", false, core.WrapError(core.ErrUnsafePath, fmt.Errorf("%q", name))
	}
	return p, true, nil
}

func hasDriveLetter(p string) bool {
	return len(p) >= 2 && p[1] == ':' &&
		(('a' <= p[0] && p[0] <= 'z') || ('A' <= p[0] && p[0] <= 'Z'))
}

// Root returns the archive tree.
func (h *Handle) Root() *Node { return h.root }

// Entries returns every directory and leaf, parents before children.
func (h *Handle) Entries() []Entry { return h.entries }

// Leaves returns the leaf entries in enumeration order.
func (h *Handle) Leaves() []Entry {
	var out []Entry
	for _, e := range h.Entries() {
		if !e.Dir {
			out = append(out, e)
		}
	}
	return out
}

// ReadFile returns the uncompressed bytes of the leaf at p.
func (h *Handle) ReadFile(p string) ([]byte, error) {
	if h.closed.Load() {
		return nil, core.ErrArchiveClosed
	}
	f, ok := h.files[p]
	if !ok {
		return nil, core.WrapError(core.ErrEntryRead, fmt.Errorf("%s: no such entry", p))
	}
	r, err := f.Open()
	if err != nil {
		return nil, core.WrapError(core.ErrEntryRead, fmt.Errorf("%s: %w", p, err))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, core.WrapError(core.ErrEntryRead, fmt.Errorf("%s: %w", p, err))
	}
	return data, nil
}

// Close releases the underlying file. It is safe to call more than once.
func (h *Handle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	return h.rc.Close()
}
