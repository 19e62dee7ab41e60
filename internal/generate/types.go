// Package generate exposes the five generation operations the
// presentation layer consumes: image edit, image generation, video
// generation, video remix, and speech synthesis, plus the combined
// narrated-video operation. Each request and result is an explicit typed
// value; failures are normalized into a Kind plus a single
// user-presentable message.
package generate

// ImageEditInput describes an image edit: a source image plus an
// instruction.
type ImageEditInput struct {
	// ImageData is the raw source image bytes.
	ImageData []byte
	// MimeType is the MIME type of the source image.
	MimeType string
	// Prompt is the edit instruction.
	Prompt string
}

// ImageCreateInput describes a text-to-image generation.
type ImageCreateInput struct {
	// Prompt describes the image to generate.
	Prompt string
}

// VideoCreateInput describes a text-to-video generation.
type VideoCreateInput struct {
	// Prompt describes the video to generate.
	Prompt string
	// AspectRatio is the target aspect ratio, e.g. "16:9".
	AspectRatio string
	// OnSubmit, if set, is invoked with the provider operation name once
	// the job has been accepted.
	OnSubmit func(operationName string)
}

// VideoRemixInput describes an image-conditioned video generation seeded
// from an uploaded source video.
type VideoRemixInput struct {
	// SourceVideoPath is the local path of the uploaded source video.
	SourceVideoPath string
	// Prompt is the remix instruction.
	Prompt string
	// OnSubmit, if set, is invoked with the provider operation name once
	// the job has been accepted.
	OnSubmit func(operationName string)
}

// SpeechInput describes a speech synthesis request.
type SpeechInput struct {
	// Text is the text to synthesize.
	Text string
}

// NarratedVideoInput describes a combined video-plus-voice-over request.
type NarratedVideoInput struct {
	// Prompt describes the video to generate.
	Prompt string
	// AspectRatio is the target aspect ratio, e.g. "16:9".
	AspectRatio string
	// VoiceOverText is the narration to synthesize.
	VoiceOverText string
	// OnSubmit, if set, is invoked with the provider operation name of the
	// video job once it has been accepted.
	OnSubmit func(operationName string)
}

// ImageResult is a generated or edited image.
type ImageResult struct {
	// Data is the raw image bytes.
	Data []byte
	// MimeType is the MIME type the provider declared for the image.
	MimeType string
}

// VideoResult is a generated video stored as a local temp file owned by
// the caller, who is responsible for cleaning it up.
type VideoResult struct {
	// Path is the local path of the downloaded video.
	Path string
}

// AudioResult is synthesized speech as raw 24 kHz mono 16-bit PCM.
type AudioResult struct {
	// PCM is the raw sample data.
	PCM []byte
}

// NarratedVideoResult is the output of the combined operation: the video
// and audio tracks plus the muxed file containing both.
type NarratedVideoResult struct {
	// VideoPath is the local path of the generated video.
	VideoPath string
	// AudioPath is the local path of the narration as a WAV file.
	AudioPath string
	// CombinedPath is the local path of the muxed WebM file.
	CombinedPath string
}
