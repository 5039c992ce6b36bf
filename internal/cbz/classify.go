package cbz

import (
	"path"
	"strings"
)

// CanonicalImageExt is the extension every recompressed image is written with.
const CanonicalImageExt = ".jpg"

// Content classifies a leaf entry by what the pipeline does with its bytes.
type Content int

const (
	ContentOpaque Content = iota // Copied verbatim.
	ContentImage                 // Sent through the recompression stage.
)

func (c Content) String() string {
	if c == ContentImage {
		return "image"
	}
	return "opaque"
}

// Class is the result of classifying an entry path.
type Class struct {
	Content Content
	Hidden  bool
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

// Classify tags a slash-separated entry path. It looks at the file name
// extension only, so a PNG renamed to .jpg is classified as an image.
func Classify(p string) Class {
	c := Class{Hidden: IsHidden(p)}
	if imageExtensions[strings.ToLower(path.Ext(p))] {
		c.Content = ContentImage
	}
	return c
}

// IsHidden reports whether any segment of the slash-separated path starts
// with a dot.
func IsHidden(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg != "" && seg != "." && seg != ".." && strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// TargetName returns the workspace-relative path an entry is written to.
// Image entries get CanonicalImageExt; everything else keeps its name.
func TargetName(p string, c Class) string {
	if c.Content != ContentImage {
		return p
	}
	return strings.TrimSuffix(p, path.Ext(p)) + CanonicalImageExt
}
