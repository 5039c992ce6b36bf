// Package workspace manages the scratch directory an archive is rebuilt in.
package workspace

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/newthinker/comicshrink/internal/cbz"
	"github.com/newthinker/comicshrink/internal/core"
	"go.uber.org/zap"
)

// Workspace is a scratch tree owned by one archive run. Every path it
// creates is tracked so Cleanup can remove it, including paths whose write
// failed halfway.
type Workspace struct {
	root   string
	logger *zap.Logger

	mu       sync.Mutex
	tracked  []string
	known    map[string]struct{}
	reserved map[string]struct{}
}

// New creates a workspace directory under parent (the system temp dir when
// empty), named after stem.
func New(parent, stem string, logger *zap.Logger) (*Workspace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := os.MkdirTemp(parent, sanitizeStem(stem)+"-*")
	if err != nil {
		return nil, core.WrapError(core.ErrWorkspaceWrite, err)
	}
	w := &Workspace{
		root:     root,
		logger:   logger,
		known:    make(map[string]struct{}),
		reserved: make(map[string]struct{}),
	}
	w.track(root)
	return w, nil
}

func sanitizeStem(stem string) string {
	stem = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == filepath.Separator || r == '*' {
			return '_'
		}
		return r
	}, stem)
	if stem == "" {
		return "comic"
	}
	return stem
}

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

// Tracked returns every path registered for cleanup, in creation order.
func (w *Workspace) Tracked() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.tracked))
	copy(out, w.tracked)
	return out
}

func (w *Workspace) track(p string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.known[p]; ok {
		return false
	}
	w.known[p] = struct{}{}
	w.tracked = append(w.tracked, p)
	return true
}

// resolve maps a slash-separated relative path into the workspace.
func (w *Workspace) resolve(rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", core.WrapError(core.ErrUnsafePath, fmt.Errorf("%q", rel))
	}
	return filepath.Join(w.root, local), nil
}

// Mkdir creates the directory rel and its parents. Their names are
// reserved, so Reserve never renames a leaf onto a directory.
func (w *Workspace) Mkdir(rel string) error {
	p, err := w.resolve(rel)
	if err != nil {
		return err
	}
	w.reserveDir(rel)
	return w.mkdirAll(p)
}

func (w *Workspace) reserveDir(rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for d := path.Clean(rel); d != "." && d != "/"; d = path.Dir(d) {
		w.reserved[d] = struct{}{}
	}
}

// mkdirAll registers each missing ancestor below the root, then creates them.
func (w *Workspace) mkdirAll(p string) error {
	var chain []string
	for dir := p; dir != w.root && strings.HasPrefix(dir, w.root); dir = filepath.Dir(dir) {
		chain = append(chain, dir)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		w.track(chain[i])
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return core.WrapError(core.ErrWorkspaceWrite, err)
	}
	return nil
}

// Reserve assigns the workspace-relative name of every leaf, keyed by entry
// path. Images get the canonical extension unless that name is already
// taken, in which case they keep their original name and are listed in
// collided. Directories made with Mkdir and entries already carrying their
// final name are reserved first, so the result depends only on the entry
// list. Call Mkdir for every directory before Reserve.
func (w *Workspace) Reserve(leaves []cbz.Entry) (names map[string]string, collided []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	names = make(map[string]string, len(leaves))
	var renamed []cbz.Entry
	for _, e := range leaves {
		rel := cbz.TargetName(e.Path, e.Class)
		if rel != e.Path {
			renamed = append(renamed, e)
			continue
		}
		w.reserved[rel] = struct{}{}
		names[e.Path] = rel
	}
	for _, e := range renamed {
		rel := cbz.TargetName(e.Path, e.Class)
		if _, taken := w.reserved[rel]; taken {
			rel = e.Path
			collided = append(collided, e.Path)
		}
		w.reserved[rel] = struct{}{}
		names[e.Path] = rel
	}
	return names, collided
}

// Place writes data at the workspace-relative path rel and returns the
// absolute path written. rel is a name assigned by Reserve.
func (w *Workspace) Place(rel string, data []byte) (string, error) {
	p, err := w.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := w.mkdirAll(filepath.Dir(p)); err != nil {
		return "", err
	}
	w.track(p)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", core.WrapError(core.ErrWorkspaceWrite, fmt.Errorf("%s: %w", rel, err))
	}
	return p, nil
}

// Cleanup removes the workspace. Failure is logged and returned but never
// needs to fail the caller.
func (w *Workspace) Cleanup() error {
	if err := os.RemoveAll(w.root); err != nil {
		w.logger.Warn("workspace cleanup failed",
			zap.String("workspace", w.root),
			zap.Int("tracked_paths", len(w.Tracked())),
			zap.Error(err),
		)
		return err
	}
	return nil
}
