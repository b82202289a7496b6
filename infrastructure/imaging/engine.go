package imaging

import (
	"fmt"

	"drive-media-compressor/domain/compression"
)

// Image engines selectable in configuration
const (
	EngineImaging = "imaging"
	EngineOpenCV  = "opencv"
)

// New returns the image compressor for the named engine
func New(engine string) (compression.ImageCompressor, error) {
	switch engine {
	case "", EngineImaging:
		return NewCompressor(), nil
	case EngineOpenCV:
		c, err := NewOpenCVCompressor()
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown image engine %q", engine)
	}
}
