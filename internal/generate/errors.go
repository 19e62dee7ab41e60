package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mediaremix/studio-api/internal/audio"
	"github.com/mediaremix/studio-api/internal/gemini"
	"github.com/mediaremix/studio-api/internal/media"
)

// Kind classifies a generation failure so callers can react without
// parsing message text.
type Kind string

// Failure kinds surfaced to callers.
const (
	KindRateLimited     Kind = "RATE_LIMITED"
	KindPolicyBlocked   Kind = "POLICY_BLOCKED"
	KindProvider        Kind = "PROVIDER_ERROR"
	KindDownload        Kind = "DOWNLOAD_ERROR"
	KindFrameExtraction Kind = "FRAME_EXTRACTION_ERROR"
	KindMalformedAudio  Kind = "MALFORMED_AUDIO"
	KindMux             Kind = "MUX_ERROR"
	KindTimeout         Kind = "TIMEOUT"
	KindUnknown         Kind = "UNKNOWN"
)

// Error is a normalized generation failure: a kind for programmatic
// handling plus a single user-presentable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes two generation errors of the same kind match under errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// newError builds a normalized Error wrapping cause.
func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the kind of a normalized error, or KindUnknown when err
// was produced outside this package.
func KindOf(err error) Kind {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return KindUnknown
}

// normalize maps any failure into an Error with a user-presentable
// message. Rate limiting always says so explicitly, regardless of which
// operation triggered it.
func normalize(err error) *Error {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr
	}

	switch {
	case errors.Is(err, gemini.ErrRateLimited) || strings.Contains(err.Error(), "429"):
		return newError(KindRateLimited, "API request limit reached. Please try again later.", err)
	case errors.Is(err, media.ErrFrameExtraction):
		return newError(KindFrameExtraction, "Could not extract a frame from the source video.", err)
	case errors.Is(err, media.ErrMux):
		return newError(KindMux, "Failed to combine the video and audio tracks.", err)
	case errors.Is(err, audio.ErrMalformedAudio):
		return newError(KindMalformedAudio, "The provider returned audio data that could not be decoded.", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindTimeout, "The generation did not finish in time.", err)
	case errors.Is(err, gemini.ErrServerError) || errors.Is(err, gemini.ErrRequestFailed):
		return newError(KindProvider, fmt.Sprintf("Gemini API error: %v.", err), err)
	default:
		return newError(KindUnknown, "An unknown error occurred while processing the request.", err)
	}
}
