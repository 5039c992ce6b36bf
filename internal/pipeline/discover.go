package pipeline

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ArchiveExt is the extension of archives the batch driver picks up.
const ArchiveExt = ".cbz"

// DefaultOutputDir is used, under the input directory, when the output
// directory would otherwise be the input directory itself.
const DefaultOutputDir = "compressed-comics"

// ResolveOutputDir returns the directory results are written to. An output
// that resolves to the input becomes <input>/compressed-comics.
func ResolveOutputDir(inputDir, outputDir string) (string, error) {
	in, err := filepath.Abs(inputDir)
	if err != nil {
		return "", err
	}
	out, err := filepath.Abs(outputDir)
	if err != nil {
		return "", err
	}
	if in == out {
		return filepath.Join(in, DefaultOutputDir), nil
	}
	return out, nil
}

// Discover walks inputDir, collects .cbz files (any case), prunes the output
// tree when it lies inside the input, and returns the paths sorted
// lexicographically for deterministic processing order.
func Discover(inputDir, outputDir string) ([]string, error) {
	skip := ""
	if outputDir != "" {
		abs, err := filepath.Abs(outputDir)
		if err != nil {
			return nil, err
		}
		skip = abs
	}

	var files []string
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skip != "" {
				if abs, err := filepath.Abs(path); err == nil && abs == skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ArchiveExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// MirrorPath maps src under inputDir to the same relative location under
// outputDir.
func MirrorPath(inputDir, outputDir, src string) (string, error) {
	rel, err := filepath.Rel(inputDir, src)
	if err != nil {
		return "", err
	}
	if !filepath.IsLocal(rel) {
		return filepath.Join(outputDir, filepath.Base(src)), nil
	}
	return filepath.Join(outputDir, rel), nil
}
