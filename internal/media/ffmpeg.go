package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Static errors for media operations.
var (
	// ErrFrameExtraction is returned when a still frame cannot be pulled
	// out of a video.
	ErrFrameExtraction = errors.New("media: frame extraction failed")
	// ErrMux is returned when audio and video cannot be combined into one file.
	ErrMux = errors.New("media: mux failed")
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("media: ffprobe execution failed")
)

// frameSeekOffset is where the extracted frame is taken from. A small
// positive offset avoids the black first frame many encoders emit.
const frameSeekOffset = "0.1"

// FFmpegProcessor implements Processor using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH);
// ffprobe is resolved the same way.
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: "ffprobe"}
}

// ExtractFrame extracts one still frame from videoPath as a JPEG at the
// video's native resolution. The frame is taken 0.1 seconds in, and the
// temporary output file is removed on every exit path.
func (p *FFmpegProcessor) ExtractFrame(ctx context.Context, videoPath string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "seed-frame-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrFrameExtraction, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	args := []string{
		"-y",
		"-ss", frameSeekOffset, // seek past the black first frame
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2", // high-quality JPEG
		tmpPath,
	}
	if err := p.runFFmpeg(ctx, args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrameExtraction, err)
	}

	data, err := os.ReadFile(tmpPath) // #nosec G304 - tmpPath is created above
	if err != nil {
		return nil, fmt.Errorf("%w: read frame: %w", ErrFrameExtraction, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame output", ErrFrameExtraction)
	}
	return data, nil
}

// Mux combines a video file and a WAV audio file into one WebM container.
// The video stream is re-encoded to VP9 and the audio to Opus; -shortest
// bounds the output by the shorter of the two streams. A partially written
// output file is removed when muxing fails.
func (p *FFmpegProcessor) Mux(ctx context.Context, videoPath, audioPath, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0750); err != nil {
		return fmt.Errorf("%w: create output dir: %w", ErrMux, err)
	}

	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libvpx-vp9",
		"-crf", "32",
		"-b:v", "0",
		"-c:a", "libopus",
		"-b:a", "128k",
		"-shortest",
		outputPath,
	}
	if err := p.runFFmpeg(ctx, args); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("%w: %w", ErrMux, err)
	}
	return nil
}

// ProbeDuration returns the duration in seconds of a media file.
func (p *FFmpegProcessor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.runFFprobe(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(out), "%f", &duration); err != nil {
		return 0, fmt.Errorf("media: parse duration: %w", err)
	}
	return duration, nil
}

// ProbeDimensions returns the pixel width and height of a video file.
func (p *FFmpegProcessor) ProbeDimensions(ctx context.Context, path string) (int, int, error) {
	out, err := p.runFFprobe(ctx,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	)
	if err != nil {
		return 0, 0, err
	}

	var width, height int
	if _, err := fmt.Sscanf(strings.TrimSpace(out), "%dx%d", &width, &height); err != nil {
		return 0, 0, fmt.Errorf("media: parse dimensions: %w", err)
	}
	return width, height, nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// runFFprobe executes ffprobe with the given arguments and returns stdout.
func (p *FFmpegProcessor) runFFprobe(ctx context.Context, args ...string) (string, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}
	return stdout.String(), nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
