// Package media provides video frame extraction and audio/video muxing.
package media

import "context"

// Processor defines the interface for media post-processing operations.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// ExtractFrame extracts a single still frame from a video file as a
	// JPEG image at the video's native resolution. Returns the image data
	// as bytes. The frame is taken slightly after the start of the video
	// to avoid an all-black first frame.
	ExtractFrame(ctx context.Context, videoPath string) ([]byte, error)

	// Mux combines a video file and a WAV audio file into one WebM
	// container, bounded by the shorter of the two streams.
	Mux(ctx context.Context, videoPath, audioPath, outputPath string) error

	// ProbeDimensions returns the pixel width and height of a video file.
	ProbeDimensions(ctx context.Context, path string) (width, height int, err error)
}
