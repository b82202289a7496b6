package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"drive-media-compressor/domain/compression"
)

// containers maps the video types the compressor can rewrite in place to
// the file extension ffmpeg uses to pick the muxer
var containers = map[string]string{
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/mov":        ".mov",
	"video/x-matroska": ".mkv",
	"video/mkv":        ".mkv",
	"video/x-msvideo":  ".avi",
	"video/avi":        ".avi",
	"video/webm":       ".webm",
	"video/mpeg":       ".mpg",
}

// maxVP9CRF is the upper bound of libvpx-vp9's constant quality scale
const maxVP9CRF = 63

// Compressor implements compression.VideoCompressor using ffmpeg
type Compressor struct {
	ffmpegPath string
	tempDir    string
	runner     CommandRunner
}

// CompressorOption is a functional option for configuring Compressor
type CompressorOption func(*Compressor)

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) CompressorOption {
	return func(c *Compressor) {
		if path != "" {
			c.ffmpegPath = path
		}
	}
}

// WithTempDir sets the directory used for the scratch input/output files
func WithTempDir(dir string) CompressorOption {
	return func(c *Compressor) {
		c.tempDir = dir
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner CommandRunner) CompressorOption {
	return func(c *Compressor) {
		c.runner = runner
	}
}

// NewCompressor creates a new FFmpeg-based video compressor
func NewCompressor(opts ...CompressorOption) *Compressor {
	c := &Compressor{
		ffmpegPath: "ffmpeg",
		runner:     &ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CompressVideo implements compression.VideoCompressor. The payload is
// written to a scratch directory that is removed before returning.
func (c *Compressor) CompressVideo(ctx context.Context, data []byte, mimeType string, opts compression.VideoOptions) ([]byte, error) {
	ext, ok := containers[compression.NormalizeMimeType(mimeType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", compression.ErrUnsupportedFormat, mimeType)
	}
	if opts.CRF == 0 {
		opts.CRF = compression.DefaultVideoCRF
	}
	if opts.Preset == "" {
		opts.Preset = compression.DefaultVideoPreset
	}

	dir, err := os.MkdirTemp(c.tempDir, "drive-media-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	inputPath := filepath.Join(dir, "input"+ext)
	outputPath := filepath.Join(dir, "output"+ext)
	if err := os.WriteFile(inputPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write scratch input: %w", err)
	}

	if err := c.runner.Run(ctx, c.ffmpegPath, buildArgs(inputPath, outputPath, ext, opts)...); err != nil {
		return nil, fmt.Errorf("ffmpeg compression failed: %w", err)
	}

	out, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ffmpeg output: %w", err)
	}
	return out, nil
}

// buildArgs returns the ffmpeg arguments for re-encoding into the input's
// container: VP9 for WebM, MPEG-2 for MPEG program streams, H.264 otherwise
func buildArgs(inputPath, outputPath, ext string, opts compression.VideoOptions) []string {
	args := []string{"-i", inputPath}
	switch ext {
	case ".webm":
		// -b:v 0 selects constant quality mode
		return append(args,
			"-vcodec", "libvpx-vp9",
			"-crf", strconv.Itoa(min(opts.CRF, maxVP9CRF)),
			"-b:v", "0",
			"-y", outputPath,
		)
	case ".mpg":
		// mpeg2video has no -crf; map onto its 2-31 quantizer scale
		return append(args,
			"-vcodec", "mpeg2video",
			"-qscale:v", strconv.Itoa(mpegQuantizer(opts.CRF)),
			"-y", outputPath,
		)
	}

	args = append(args,
		"-vcodec", "libx264",
		"-crf", strconv.Itoa(opts.CRF),
		"-preset", opts.Preset,
	)
	if ext == ".mp4" || ext == ".mov" {
		// Move the index to the front so playback can start before download completes
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-y", outputPath)
}

func mpegQuantizer(crf int) int {
	return max(2, min(31, crf/5))
}

// VerifyInstalled checks that ffmpeg is available
func (c *Compressor) VerifyInstalled(ctx context.Context) error {
	_, err := c.runner.Output(ctx, c.ffmpegPath, "-version")
	if err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}

// Ensure Compressor implements compression.VideoCompressor
var _ compression.VideoCompressor = (*Compressor)(nil)
