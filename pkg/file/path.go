package file

import (
	"path/filepath"
	"strings"
)

// WithSuffix inserts a suffix before the extension of path and
// optionally swaps the extension: ("book.txt", "_fr", "json") →
// "book_fr.json". An empty ext keeps the original extension.
func WithSuffix(path, suffix, ext string) string {
	if path == "" {
		return path
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)

	oldExt := filepath.Ext(base)
	name := strings.TrimSuffix(base, oldExt)

	if ext == "" {
		ext = strings.TrimPrefix(oldExt, ".")
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return filepath.Join(dir, name+suffix+ext)
}
