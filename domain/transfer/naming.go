package transfer

import (
	"path/filepath"
	"strings"
)

// Compression markers used in derived file names
const (
	CompressedSuffix = "_compressed"
	CompressedPrefix = "compressed_"
)

// CompressedCopyName inserts the compression marker before the extension:
// "holiday.jpg" becomes "holiday_compressed.jpg"
func CompressedCopyName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		// dotfiles like ".profile" have no extension to preserve
		return name + CompressedSuffix
	}
	return base + CompressedSuffix + ext
}

// LocalUploadName names a local file in Drive. Files that actually shrank
// carry the "compressed_" prefix; everything else keeps its name.
func LocalUploadName(name string, shrank bool) string {
	if !shrank {
		return name
	}
	return CompressedPrefix + name
}
