package cbz

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/newthinker/comicshrink/internal/core"
)

// Pack serializes the directory tree under root into a new zip archive at
// output, replacing any existing file. The root itself is not emitted;
// directories become entries ending in "/" and hidden paths are skipped with
// their descendants.
//
// On error the output file may be partially written. Callers must discard it.
func Pack(root, output string) error {
	tree, err := scan(root)
	if err != nil {
		return core.WrapError(core.ErrPackFailed, err)
	}

	f, err := os.Create(output)
	if err != nil {
		return core.WrapError(core.ErrPackFailed, err)
	}

	bw := bufio.NewWriterSize(f, 1<<20)
	zw := zip.NewWriter(bw)

	werr := emit(zw, root, tree)
	if err := zw.Close(); err != nil && werr == nil {
		werr = err
	}
	if err := bw.Flush(); err != nil && werr == nil {
		werr = err
	}
	if err := f.Close(); err != nil && werr == nil {
		werr = err
	}
	if werr != nil {
		return core.WrapError(core.ErrPackFailed, werr)
	}
	return nil
}

// emit writes every non-hidden node below tree in DFS parent-first order.
func emit(zw *zip.Writer, root string, tree *Node) error {
	var err error
	tree.Walk(func(n *Node) bool {
		if err != nil {
			return false
		}
		if n == tree {
			return true
		}
		if IsHidden(n.Path) {
			return false
		}
		if n.Dir {
			_, err = zw.CreateHeader(&zip.FileHeader{
				Name:   n.Path + "/",
				Method: zip.Store,
			})
			return err == nil
		}
		err = writeLeaf(zw, filepath.Join(root, filepath.FromSlash(n.Path)), n.Path)
		return false
	})
	return err
}

func writeLeaf(zw *zip.Writer, src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	// JPEG payloads are stored, everything else is deflated.
	header.Method = zip.Deflate
	if Classify(name).Content == ContentImage {
		header.Method = zip.Store
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// scan builds a Node tree mirroring the directory at root.
func scan(root string) (*Node, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	tree := &Node{Dir: true}
	return tree, scanDir(root, tree)
}

func scanDir(root string, parent *Node) error {
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(parent.Path)))
	if err != nil {
		return err
	}
	// os.ReadDir returns entries sorted by file name.
	for _, de := range entries {
		n := &Node{Name: de.Name(), Path: path.Join(parent.Path, de.Name()), Dir: de.IsDir()}
		parent.Children = append(parent.Children, n)
		if n.Dir {
			if err := scanDir(root, n); err != nil {
				return err
			}
			continue
		}
		info, err := de.Info()
		if err != nil {
			return err
		}
		n.Size = info.Size()
	}
	return nil
}
