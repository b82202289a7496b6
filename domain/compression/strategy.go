package compression

import (
	"regexp"
	"strings"
)

// Strategy names how a payload is transformed before upload
type Strategy string

const (
	ImageCompress Strategy = "image"
	VideoCompress Strategy = "video"
	Passthrough   Strategy = "passthrough"
)

// DefaultSmallImageThreshold is the size under which images are uploaded as-is
const DefaultSmallImageThreshold int64 = 50 * 1024

var (
	imageFamily = regexp.MustCompile(`^image/(jpeg|jpg|pjpeg|png|webp|gif|bmp|tiff)$`)
	videoFamily = regexp.MustCompile(`^video/(mp4|quicktime|mov|x-msvideo|avi|webm|x-matroska|mkv|mpeg)$`)
)

// Policy selects a strategy from a declared content type and size
type Policy struct {
	SmallImageThreshold int64
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{SmallImageThreshold: DefaultSmallImageThreshold}
}

// SelectStrategy routes images and videos to their compressors. Images below
// the small-file threshold and every other content type pass through.
func (p Policy) SelectStrategy(mimeType string, sizeBytes int64) Strategy {
	mimeType = NormalizeMimeType(mimeType)

	switch {
	case imageFamily.MatchString(mimeType):
		if sizeBytes < p.SmallImageThreshold {
			return Passthrough
		}
		return ImageCompress
	case videoFamily.MatchString(mimeType):
		return VideoCompress
	default:
		return Passthrough
	}
}

// SelectStrategy applies the default policy
func SelectStrategy(mimeType string, sizeBytes int64) Strategy {
	return DefaultPolicy().SelectStrategy(mimeType, sizeBytes)
}

// NormalizeMimeType lowercases and strips parameters such as "; charset=..."
func NormalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
