package ffmpeg

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"drive-media-compressor/domain/compression"
)

// mockCommandRunner records the call and writes a fake output file
type mockCommandRunner struct {
	output     []byte
	shouldFail bool
	failError  error
	lastName   string
	lastArgs   []string
	inputSeen  []byte
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	m.lastName = name
	m.lastArgs = args
	if m.shouldFail {
		return m.failError
	}
	// -i <input> ... -y <output>
	m.inputSeen, _ = os.ReadFile(args[1])
	return os.WriteFile(args[len(args)-1], m.output, 0600)
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	return []byte("ffmpeg version 6.0"), nil
}

func TestCompressor_CompressVideo(t *testing.T) {
	runner := &mockCommandRunner{output: []byte("smaller")}
	c := NewCompressor(WithCommandRunner(runner), WithFFmpegPath("/usr/bin/ffmpeg"), WithTempDir(t.TempDir()))

	input := []byte("original video bytes")
	out, err := c.CompressVideo(context.Background(), input, "video/mp4", compression.VideoOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "smaller" {
		t.Errorf("unexpected output %q", out)
	}
	if runner.lastName != "/usr/bin/ffmpeg" {
		t.Errorf("unexpected executable %q", runner.lastName)
	}
	if string(runner.inputSeen) != string(input) {
		t.Error("ffmpeg did not receive the original bytes")
	}

	joined := strings.Join(runner.lastArgs, " ")
	for _, want := range []string{"-vcodec libx264", "-crf 28", "-preset fast", "-movflags +faststart"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in args %q", want, joined)
		}
	}
}

func TestCompressor_ScratchFilesRemoved(t *testing.T) {
	dir := t.TempDir()
	c := NewCompressor(WithCommandRunner(&mockCommandRunner{output: []byte("x")}), WithTempDir(dir))

	if _, err := c.CompressVideo(context.Background(), []byte("v"), "video/quicktime", compression.VideoOptions{CRF: 30, Preset: "slow"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected scratch directory to be cleaned up, found %d entries", len(entries))
	}
}

func TestCompressor_UnsupportedContainer(t *testing.T) {
	runner := &mockCommandRunner{}
	c := NewCompressor(WithCommandRunner(runner))

	_, err := c.CompressVideo(context.Background(), []byte("v"), "video/x-flv", compression.VideoOptions{})
	if !errors.Is(err, compression.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if runner.lastName != "" {
		t.Error("ffmpeg must not run for unsupported containers")
	}
}

func TestCompressor_CodecPerContainer(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		want     []string
		wantNot  string
	}{
		{"webm uses vp9", "video/webm", []string{"-vcodec libvpx-vp9", "-crf 28", "-b:v 0"}, "libx264"},
		{"mpeg uses mpeg2video", "video/mpeg", []string{"-vcodec mpeg2video", "-qscale:v 5"}, "-crf"},
		{"mp4 with codec parameters", "video/mp4; codecs=avc1", []string{"-vcodec libx264", "-movflags +faststart"}, "libvpx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockCommandRunner{output: []byte("small")}
			c := NewCompressor(WithCommandRunner(runner), WithTempDir(t.TempDir()))

			out, err := c.CompressVideo(context.Background(), []byte("original video"), tt.mimeType, compression.VideoOptions{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(out) != "small" {
				t.Errorf("unexpected output %q", out)
			}
			joined := strings.Join(runner.lastArgs, " ")
			for _, want := range tt.want {
				if !strings.Contains(joined, want) {
					t.Errorf("expected %q in args %q", want, joined)
				}
			}
			if strings.Contains(joined, tt.wantNot) {
				t.Errorf("did not expect %q in args %q", tt.wantNot, joined)
			}
		})
	}
}

func TestBuildArgs_VP9CRFClamped(t *testing.T) {
	args := strings.Join(buildArgs("in.webm", "out.webm", ".webm", compression.VideoOptions{CRF: 70}), " ")
	if !strings.Contains(args, "-crf 63") {
		t.Errorf("expected crf clamped to 63, got %q", args)
	}
}

func TestCompressor_RunFailure(t *testing.T) {
	runner := &mockCommandRunner{shouldFail: true, failError: errors.New("exit status 1")}
	c := NewCompressor(WithCommandRunner(runner), WithTempDir(t.TempDir()))

	_, err := c.CompressVideo(context.Background(), []byte("v"), "video/mp4", compression.VideoOptions{})
	if err == nil || !strings.Contains(err.Error(), "ffmpeg compression failed") {
		t.Errorf("expected wrapped ffmpeg error, got %v", err)
	}
}

func TestBuildArgs_NoFaststartForMatroska(t *testing.T) {
	args := buildArgs("in.mkv", "out.mkv", ".mkv", compression.VideoOptions{CRF: 28, Preset: "fast"})
	for _, a := range args {
		if a == "-movflags" {
			t.Error("faststart applies only to mp4/mov containers")
		}
	}
	if args[len(args)-1] != "out.mkv" {
		t.Errorf("output path must be last, got %v", args)
	}
}

func TestCompressor_VerifyInstalled(t *testing.T) {
	ok := NewCompressor(WithCommandRunner(&mockCommandRunner{}))
	if err := ok.VerifyInstalled(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	missing := NewCompressor(WithCommandRunner(&mockCommandRunner{shouldFail: true, failError: errors.New("not found")}))
	if err := missing.VerifyInstalled(context.Background()); err == nil {
		t.Error("expected error when ffmpeg is missing")
	}
}
