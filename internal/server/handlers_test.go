package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediaremix/studio-api/internal/audio"
	"github.com/mediaremix/studio-api/internal/generate"
	"github.com/mediaremix/studio-api/internal/job"
	"github.com/mediaremix/studio-api/internal/storage"
)

// mockGenerator implements Generator for testing.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) EditImage(ctx context.Context, input generate.ImageEditInput) (*generate.ImageResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generate.ImageResult), args.Error(1)
}

func (m *mockGenerator) CreateImage(ctx context.Context, input generate.ImageCreateInput) (*generate.ImageResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generate.ImageResult), args.Error(1)
}

func (m *mockGenerator) CreateSpeech(ctx context.Context, input generate.SpeechInput) (*generate.AudioResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generate.AudioResult), args.Error(1)
}

// mockJobService implements JobService for testing.
type mockJobService struct {
	mock.Mock
}

func (m *mockJobService) Create(ctx context.Context, input job.CreateInput) (*job.Job, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *mockJobService) Get(ctx context.Context, jobID string) (*job.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *mockJobService) List(ctx context.Context) ([]*job.Job, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*job.Job), args.Error(1)
}

func (m *mockJobService) Cancel(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *mockJobService) Remove(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *mockJobService) Run(ctx context.Context, jobID string, input job.CreateInput) {
	m.Called(ctx, jobID, input)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, gen Generator, jobs JobService) (http.Handler, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	h := NewHandlers(gen, jobs, store, testLogger())
	return NewRouter(h, testLogger()), store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	handler, _ := newTestServer(t, &mockGenerator{}, &mockJobService{})

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestEditImage(t *testing.T) {
	gen := &mockGenerator{}
	handler, _ := newTestServer(t, gen, &mockJobService{})

	source := []byte("source-image")
	gen.On("EditImage", mock.Anything, mock.MatchedBy(func(input generate.ImageEditInput) bool {
		return bytes.Equal(input.ImageData, source) &&
			input.MimeType == "image/png" &&
			input.Prompt == "make it blue"
	})).Return(&generate.ImageResult{Data: []byte("edited"), MimeType: "image/png"}, nil)

	rec := doJSON(t, handler, http.MethodPost, "/images/edits", EditImageRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(source),
		MimeType:    "image/png",
		Prompt:      "make it blue",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ImageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("edited")), resp.ImageBase64)
	assert.Equal(t, "image/png", resp.MimeType)
	gen.AssertExpectations(t)
}

func TestEditImage_InvalidBody(t *testing.T) {
	handler, _ := newTestServer(t, &mockGenerator{}, &mockJobService{})

	req := httptest.NewRequest(http.MethodPost, "/images/edits", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestEditImage_MissingPrompt(t *testing.T) {
	handler, _ := newTestServer(t, &mockGenerator{}, &mockJobService{})

	rec := doJSON(t, handler, http.MethodPost, "/images/edits", EditImageRequest{
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("img")),
		MimeType:    "image/png",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Contains(t, resp.Error, "Prompt")
}

func TestEditImage_RateLimited(t *testing.T) {
	gen := &mockGenerator{}
	handler, _ := newTestServer(t, gen, &mockJobService{})

	gen.On("EditImage", mock.Anything, mock.Anything).
		Return(nil, &generate.Error{Kind: generate.KindRateLimited, Message: "API request limit reached. Please try again later."})

	rec := doJSON(t, handler, http.MethodPost, "/images/edits", EditImageRequest{
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("img")),
		MimeType:    "image/png",
		Prompt:      "make it blue",
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "RATE_LIMITED", resp.Code)
	assert.Equal(t, "API request limit reached. Please try again later.", resp.Error)
}

func TestCreateImage_PolicyBlocked(t *testing.T) {
	gen := &mockGenerator{}
	handler, _ := newTestServer(t, gen, &mockJobService{})

	gen.On("CreateImage", mock.Anything, mock.Anything).
		Return(nil, &generate.Error{Kind: generate.KindPolicyBlocked, Message: "refused"})

	rec := doJSON(t, handler, http.MethodPost, "/images", CreateImageRequest{Prompt: "something"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "POLICY_BLOCKED", resp.Code)
}

func TestCreateSpeech(t *testing.T) {
	gen := &mockGenerator{}
	handler, _ := newTestServer(t, gen, &mockJobService{})

	pcm := []byte{0x00, 0x10, 0x00, 0x20}
	gen.On("CreateSpeech", mock.Anything, generate.SpeechInput{Text: "hello"}).
		Return(&generate.AudioResult{PCM: pcm}, nil)

	rec := doJSON(t, handler, http.MethodPost, "/speech", CreateSpeechRequest{Text: "hello"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))

	body := rec.Body.Bytes()
	require.Len(t, body, 44+len(pcm))
	assert.Equal(t, "RIFF", string(body[0:4]))
	assert.Equal(t, "WAVE", string(body[8:12]))
	assert.Equal(t, uint32(audio.SpeechSampleRate), binary.LittleEndian.Uint32(body[24:28]))
}

func TestCreateSpeech_ProviderError(t *testing.T) {
	gen := &mockGenerator{}
	handler, _ := newTestServer(t, gen, &mockJobService{})

	gen.On("CreateSpeech", mock.Anything, mock.Anything).
		Return(nil, &generate.Error{Kind: generate.KindProvider, Message: "No audio data received from the API."})

	rec := doJSON(t, handler, http.MethodPost, "/speech", CreateSpeechRequest{Text: "hello"})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PROVIDER_ERROR", resp.Code)
}

func TestCreateVideoJob(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	created := job.NewWithID("job-1", job.KindVideo)
	jobs.On("Create", mock.Anything, mock.MatchedBy(func(input job.CreateInput) bool {
		return input.Kind == job.KindVideo &&
			input.Prompt == "a drone shot" &&
			input.AspectRatio == "16:9"
	})).Return(created, nil)

	ran := make(chan struct{})
	jobs.On("Run", mock.Anything, "job-1", mock.Anything).
		Run(func(mock.Arguments) { close(ran) }).Return()

	rec := doJSON(t, handler, http.MethodPost, "/videos", CreateVideoJobRequest{
		Prompt:      "a drone shot",
		AspectRatio: "16:9",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp CreateJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, string(job.StatusSubmitted), resp.Status)

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("expected job to be launched")
	}
	jobs.AssertExpectations(t)
}

func TestCreateVideoJob_NarratedWhenVoiceOverSet(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	created := job.NewWithID("job-1", job.KindNarrated)
	jobs.On("Create", mock.Anything, mock.MatchedBy(func(input job.CreateInput) bool {
		return input.Kind == job.KindNarrated && input.VoiceOverText == "welcome"
	})).Return(created, nil)
	jobs.On("Run", mock.Anything, "job-1", mock.Anything).Return().Maybe()

	rec := doJSON(t, handler, http.MethodPost, "/videos", CreateVideoJobRequest{
		Prompt:        "a drone shot",
		VoiceOverText: "welcome",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	jobs.AssertCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateVideoJob_InvalidAspectRatio(t *testing.T) {
	handler, _ := newTestServer(t, &mockGenerator{}, &mockJobService{})

	rec := doJSON(t, handler, http.MethodPost, "/videos", CreateVideoJobRequest{
		Prompt:      "a drone shot",
		AspectRatio: "4:3",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRemixJob(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	var savedPath string
	created := job.NewWithID("job-1", job.KindRemix)
	jobs.On("Create", mock.Anything, mock.MatchedBy(func(input job.CreateInput) bool {
		savedPath = input.SourceVideoPath
		return input.Kind == job.KindRemix && input.SourceVideoPath != ""
	})).Return(created, nil)
	jobs.On("Run", mock.Anything, "job-1", mock.Anything).Return().Maybe()

	rec := doJSON(t, handler, http.MethodPost, "/videos/remixes", CreateRemixJobRequest{
		VideoBase64: base64.StdEncoding.EncodeToString([]byte("video-bytes")),
		Prompt:      "make it rain",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)

	// The uploaded video is on disk before the job starts.
	data, err := os.ReadFile(savedPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), data)
}

func TestGetJob(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	j := job.NewWithID("job-1", job.KindNarrated)
	_ = j.Start()
	j.SetOutput("/work/video.mp4", "/work/audio.wav", "/work/combined.webm")
	_ = j.Succeed()
	jobs.On("Get", mock.Anything, "job-1").Return(j, nil)

	rec := doJSON(t, handler, http.MethodGet, "/jobs/job-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.ID)
	assert.Equal(t, string(job.KindNarrated), resp.Kind)
	assert.Equal(t, string(job.StatusSucceeded), resp.Status)
	assert.True(t, resp.HasAudio)
	assert.True(t, resp.HasCombined)
}

func TestGetJob_NotFound(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	jobs.On("Get", mock.Anything, "missing").Return(nil, job.ErrJobNotFound)

	rec := doJSON(t, handler, http.MethodGet, "/jobs/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "JOB_NOT_FOUND", resp.Code)
}

func TestListJobs(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	jobs.On("List", mock.Anything).Return([]*job.Job{
		job.NewWithID("job-2", job.KindRemix),
		job.NewWithID("job-1", job.KindVideo),
	}, nil)

	rec := doJSON(t, handler, http.MethodGet, "/jobs", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "job-2", resp[0].ID)
}

func TestDownloadJob(t *testing.T) {
	jobs := &mockJobService{}
	handler, store := newTestServer(t, &mockGenerator{}, jobs)

	path, err := store.Save(context.Background(), "generated-video.mp4", bytes.NewReader([]byte("video-bytes")))
	require.NoError(t, err)

	j := job.NewWithID("job-1", job.KindVideo)
	_ = j.Start()
	j.SetOutput(path, "", "")
	_ = j.Succeed()
	jobs.On("Get", mock.Anything, "job-1").Return(j, nil)

	rec := doJSON(t, handler, http.MethodGet, "/jobs/job-1/download", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "generated-video.mp4")
	assert.Equal(t, []byte("video-bytes"), rec.Body.Bytes())
}

func TestDownloadJob_NotReady(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	j := job.NewWithID("job-1", job.KindVideo)
	_ = j.Start()
	jobs.On("Get", mock.Anything, "job-1").Return(j, nil)

	rec := doJSON(t, handler, http.MethodGet, "/jobs/job-1/download", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDownloadJob_MissingTrack(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	j := job.NewWithID("job-1", job.KindVideo)
	_ = j.Start()
	j.SetOutput("/work/video.mp4", "", "")
	_ = j.Succeed()
	jobs.On("Get", mock.Anything, "job-1").Return(j, nil)

	rec := doJSON(t, handler, http.MethodGet, "/jobs/job-1/download?track=audio", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "TRACK_NOT_FOUND", resp.Code)
}

func TestDownloadJob_InvalidTrack(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	j := job.NewWithID("job-1", job.KindVideo)
	_ = j.Start()
	j.SetOutput("/work/video.mp4", "", "")
	_ = j.Succeed()
	jobs.On("Get", mock.Anything, "job-1").Return(j, nil)

	rec := doJSON(t, handler, http.MethodGet, "/jobs/job-1/download?track=bogus", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteJob_CancelsRunning(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	jobs.On("Cancel", mock.Anything, "job-1").Return(nil)

	rec := doJSON(t, handler, http.MethodDelete, "/jobs/job-1", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	jobs.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestDeleteJob_RemovesFinished(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	jobs.On("Cancel", mock.Anything, "job-1").Return(job.ErrNotCancellable)
	jobs.On("Remove", mock.Anything, "job-1").Return(nil)

	rec := doJSON(t, handler, http.MethodDelete, "/jobs/job-1", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	jobs.AssertExpectations(t)
}

func TestDeleteJob_NotFound(t *testing.T) {
	jobs := &mockJobService{}
	handler, _ := newTestServer(t, &mockGenerator{}, jobs)

	jobs.On("Cancel", mock.Anything, "missing").Return(job.ErrJobNotFound)

	rec := doJSON(t, handler, http.MethodDelete, "/jobs/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	handler, _ := newTestServer(t, &mockGenerator{}, &mockJobService{})

	req := httptest.NewRequest(http.MethodOptions, "/videos", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
