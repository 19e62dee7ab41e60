package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mediaremix/studio-api/internal/audio"
	"github.com/mediaremix/studio-api/internal/generate"
	"github.com/mediaremix/studio-api/internal/job"
	"github.com/mediaremix/studio-api/internal/storage"
)

// Generator is the synchronous generation surface the handlers need.
type Generator interface {
	EditImage(ctx context.Context, input generate.ImageEditInput) (*generate.ImageResult, error)
	CreateImage(ctx context.Context, input generate.ImageCreateInput) (*generate.ImageResult, error)
	CreateSpeech(ctx context.Context, input generate.SpeechInput) (*generate.AudioResult, error)
}

// JobService is the asynchronous job surface the handlers need.
type JobService interface {
	Create(ctx context.Context, input job.CreateInput) (*job.Job, error)
	Get(ctx context.Context, jobID string) (*job.Job, error)
	List(ctx context.Context) ([]*job.Job, error)
	Cancel(ctx context.Context, jobID string) error
	Remove(ctx context.Context, jobID string) error
	Run(ctx context.Context, jobID string, input job.CreateInput)
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	gen      Generator
	jobs     JobService
	store    storage.Storage
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandlers creates handlers wired to the given services.
func NewHandlers(gen Generator, jobs JobService, store storage.Storage, logger *slog.Logger) *Handlers {
	return &Handlers{
		gen:      gen,
		jobs:     jobs,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// EditImage handles POST /images/edits.
func (h *Handlers) EditImage(w http.ResponseWriter, r *http.Request) {
	var req EditImageRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	imageData, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "image_base64 is not valid base64", "VALIDATION_ERROR")
		return
	}

	result, err := h.gen.EditImage(r.Context(), generate.ImageEditInput{
		ImageData: imageData,
		MimeType:  req.MimeType,
		Prompt:    req.Prompt,
	})
	if err != nil {
		h.writeGenerateError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ImageResponse{
		ImageBase64: base64.StdEncoding.EncodeToString(result.Data),
		MimeType:    result.MimeType,
	})
}

// CreateImage handles POST /images.
func (h *Handlers) CreateImage(w http.ResponseWriter, r *http.Request) {
	var req CreateImageRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.gen.CreateImage(r.Context(), generate.ImageCreateInput{Prompt: req.Prompt})
	if err != nil {
		h.writeGenerateError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ImageResponse{
		ImageBase64: base64.StdEncoding.EncodeToString(result.Data),
		MimeType:    result.MimeType,
	})
}

// CreateSpeech handles POST /speech. The response body is a complete WAV
// file, not JSON.
func (h *Handlers) CreateSpeech(w http.ResponseWriter, r *http.Request) {
	var req CreateSpeechRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.gen.CreateSpeech(r.Context(), generate.SpeechInput{Text: req.Text})
	if err != nil {
		h.writeGenerateError(w, r, err)
		return
	}

	buf, err := audio.DecodePCM(result.PCM)
	if err != nil {
		h.writeGenerateError(w, r, err)
		return
	}

	wav := audio.EncodeWAV(buf)
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(wav)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(wav); err != nil {
		h.logger.Error("failed to write speech response", "error", err)
	}
}

// CreateVideoJob handles POST /videos.
func (h *Handlers) CreateVideoJob(w http.ResponseWriter, r *http.Request) {
	var req CreateVideoJobRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	kind := job.KindVideo
	if req.VoiceOverText != "" {
		kind = job.KindNarrated
	}

	h.startJob(w, r, job.CreateInput{
		Kind:          kind,
		Prompt:        req.Prompt,
		AspectRatio:   req.AspectRatio,
		VoiceOverText: req.VoiceOverText,
		Publish:       req.Publish,
	})
}

// CreateRemixJob handles POST /videos/remixes. The uploaded source video
// is written to working storage before the job is created, so the request
// body can be released immediately.
func (h *Handlers) CreateRemixJob(w http.ResponseWriter, r *http.Request) {
	var req CreateRemixJobRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	videoData, err := base64.StdEncoding.DecodeString(req.VideoBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "video_base64 is not valid base64", "VALIDATION_ERROR")
		return
	}

	sourcePath, err := h.store.Save(r.Context(), "source-video.mp4", bytes.NewReader(videoData))
	if err != nil {
		h.logger.Error("failed to save source video", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store the uploaded video", "INTERNAL_ERROR")
		return
	}

	h.startJob(w, r, job.CreateInput{
		Kind:            job.KindRemix,
		Prompt:          req.Prompt,
		SourceVideoPath: sourcePath,
		Publish:         req.Publish,
	})
}

// startJob creates the job and launches its lifecycle in the background.
func (h *Handlers) startJob(w http.ResponseWriter, r *http.Request, input job.CreateInput) {
	j, err := h.jobs.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create job", "INTERNAL_ERROR")
		return
	}

	// The job outlives the request; it is cancelled through DELETE
	// /jobs/{id}, not by the client disconnecting.
	go h.jobs.Run(context.Background(), j.ID, input)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     j.ID,
		Status: string(j.GetStatus()),
	})
}

// GetJob handles GET /jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	j, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get job", "INTERNAL_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, jobToResponse(j))
}

// ListJobs handles GET /jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, jobToResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteJob handles DELETE /jobs/{id}. A running job is cancelled; a
// finished one is removed along with its stored artifacts.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	err := h.jobs.Cancel(r.Context(), jobID)
	if errors.Is(err, job.ErrNotCancellable) {
		err = h.jobs.Remove(r.Context(), jobID)
	}

	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	default:
		h.logger.Error("failed to delete job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete job", "INTERNAL_ERROR")
	}
}

// DownloadJob handles GET /jobs/{id}/download. The track query parameter
// selects which artifact to stream: video (default), audio or combined.
func (h *Handlers) DownloadJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	j, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get job", "INTERNAL_ERROR")
		return
	}

	if j.GetStatus() != job.StatusSucceeded {
		writeError(w, http.StatusConflict, "job has no downloadable artifacts yet", "JOB_NOT_READY")
		return
	}

	track := r.URL.Query().Get("track")
	if track == "" {
		track = "video"
	}

	var path, contentType, filename string
	switch track {
	case "video":
		path, contentType, filename = j.VideoPath, "video/mp4", "generated-video.mp4"
	case "audio":
		path, contentType, filename = j.AudioPath, "audio/wav", "generated-audio.wav"
	case "combined":
		path, contentType, filename = j.CombinedPath, "video/webm", "generated-video-with-audio.webm"
	default:
		writeError(w, http.StatusBadRequest, "track must be one of video, audio, combined", "VALIDATION_ERROR")
		return
	}

	if path == "" {
		writeError(w, http.StatusNotFound, "job has no "+track+" track", "TRACK_NOT_FOUND")
		return
	}

	file, err := h.store.Open(r.Context(), path)
	if err != nil {
		h.logger.Error("failed to open artifact", "job_id", jobID, "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open artifact", "INTERNAL_ERROR")
		return
	}
	defer func() { _ = file.Close() }()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file); err != nil {
		h.logger.Error("failed to stream artifact", "job_id", jobID, "error", err)
	}
}

// decodeAndValidate parses the JSON body into dst and checks its
// validation tags, writing a 400 response on any failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, formatValidationError(err), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeGenerateError maps a normalized generation failure onto an HTTP
// status. Rate limiting surfaces as 429 so clients can back off; policy
// refusals as 422 because retrying the same input will not help.
func (h *Handlers) writeGenerateError(w http.ResponseWriter, r *http.Request, err error) {
	kind := generate.KindOf(err)

	var status int
	switch kind {
	case generate.KindRateLimited:
		status = http.StatusTooManyRequests
	case generate.KindPolicyBlocked:
		status = http.StatusUnprocessableEntity
	case generate.KindTimeout:
		status = http.StatusGatewayTimeout
	default:
		status = http.StatusBadGateway
	}

	h.logger.Error("generation failed",
		"kind", string(kind),
		"error", err,
		"request_id", RequestIDFromContext(r.Context()),
	)
	writeError(w, status, err.Error(), string(kind))
}

func jobToResponse(j *job.Job) JobResponse {
	c := j.Clone()
	return JobResponse{
		ID:          c.ID,
		Kind:        string(c.Kind),
		Status:      string(c.Status),
		Error:       c.Error,
		VideoURL:    c.VideoURL,
		HasAudio:    c.AudioPath != "",
		HasCombined: c.CombinedPath != "",
	}
}

// formatValidationError turns the first validator failure into a short
// human-readable message.
func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("field '%s' is required", fe.Field())
		case "base64":
			return fmt.Sprintf("field '%s' must be valid base64", fe.Field())
		case "oneof":
			return fmt.Sprintf("field '%s' must be one of: %s", fe.Field(), fe.Param())
		default:
			return fmt.Sprintf("field '%s' failed validation '%s'", fe.Field(), fe.Tag())
		}
	}
	return "validation failed"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
