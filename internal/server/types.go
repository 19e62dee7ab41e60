// Package server provides the HTTP surface of the studio API. It
// includes handlers, middleware, routes, and DTOs separated from domain
// types.
package server

// EditImageRequest is the HTTP request body for editing an image.
type EditImageRequest struct {
	// ImageBase64 is the base64-encoded source image.
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
	// MimeType is the MIME type of the source image.
	MimeType string `json:"mime_type" validate:"required"`
	// Prompt is the edit instruction.
	Prompt string `json:"prompt" validate:"required"`
}

// CreateImageRequest is the HTTP request body for generating an image.
type CreateImageRequest struct {
	// Prompt describes the image to generate.
	Prompt string `json:"prompt" validate:"required"`
}

// ImageResponse carries a generated or edited image.
type ImageResponse struct {
	// ImageBase64 is the base64-encoded result image.
	ImageBase64 string `json:"image_base64"`
	// MimeType is the MIME type of the result image.
	MimeType string `json:"mime_type"`
}

// CreateSpeechRequest is the HTTP request body for speech synthesis.
type CreateSpeechRequest struct {
	// Text is the text to synthesize.
	Text string `json:"text" validate:"required"`
}

// CreateVideoJobRequest is the HTTP request body for starting a video
// generation job.
type CreateVideoJobRequest struct {
	// Prompt describes the video to generate.
	Prompt string `json:"prompt" validate:"required"`
	// AspectRatio is the target aspect ratio.
	AspectRatio string `json:"aspect_ratio" validate:"omitempty,oneof=16:9 9:16 1:1"`
	// VoiceOverText, when set, synthesizes narration and muxes it into
	// the finished video.
	VoiceOverText string `json:"voice_over_text"`
	// Publish uploads the finished video to S3 when configured.
	Publish bool `json:"publish"`
}

// CreateRemixJobRequest is the HTTP request body for starting a video
// remix job.
type CreateRemixJobRequest struct {
	// VideoBase64 is the base64-encoded source video.
	VideoBase64 string `json:"video_base64" validate:"required,base64"`
	// Prompt is the remix instruction.
	Prompt string `json:"prompt" validate:"required"`
	// Publish uploads the finished video to S3 when configured.
	Publish bool `json:"publish"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Kind is the operation this job represents.
	Kind string `json:"kind"`
	// Status is the current job status.
	Status string `json:"status"`
	// Error contains the normalized message if the job failed.
	Error string `json:"error,omitempty"`
	// VideoURL is the published URL of the finished video, if uploaded.
	VideoURL string `json:"video_url,omitempty"`
	// HasAudio reports whether a narration track is available.
	HasAudio bool `json:"has_audio"`
	// HasCombined reports whether a muxed audio+video file is available.
	HasCombined bool `json:"has_combined"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
