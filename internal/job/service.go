package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mediaremix/studio-api/internal/generate"
	"github.com/mediaremix/studio-api/internal/storage"
)

// ErrNotCancellable is returned when cancelling a job that already
// reached a terminal state.
var ErrNotCancellable = errors.New("job is not cancellable")

// ErrJobRunning is returned when removing a job that has not reached a
// terminal state yet.
var ErrJobRunning = errors.New("job is still running")

// Generator is the subset of the generation service the job service
// drives for asynchronous work.
type Generator interface {
	CreateVideo(ctx context.Context, input generate.VideoCreateInput) (*generate.VideoResult, error)
	RemixVideo(ctx context.Context, input generate.VideoRemixInput) (*generate.VideoResult, error)
	CreateNarratedVideo(ctx context.Context, input generate.NarratedVideoInput) (*generate.NarratedVideoResult, error)
}

// CreateInput describes a new asynchronous generation request.
type CreateInput struct {
	// Kind selects the operation; required.
	Kind Kind
	// Prompt is the generation instruction; required.
	Prompt string
	// AspectRatio applies to video and narrated jobs.
	AspectRatio string
	// VoiceOverText applies to narrated jobs.
	VoiceOverText string
	// SourceVideoPath applies to remix jobs.
	SourceVideoPath string
	// Publish uploads the finished video to S3 when storage supports it.
	Publish bool
}

// Service creates jobs, runs them to completion in the background, and
// serves status reads. A job abandoned via Cancel has its context
// cancelled so in-flight polling stops promptly.
type Service struct {
	repo   Repository
	gen    Generator
	store  storage.Storage
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewService creates a job service.
func NewService(repo Repository, gen Generator, store storage.Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		gen:     gen,
		store:   store,
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Create registers a new job in SUBMITTED state.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Job, error) {
	j := New(input.Kind)
	j.Prompt = input.Prompt
	j.AspectRatio = input.AspectRatio
	j.VoiceOverText = input.VoiceOverText
	j.SourceVideoPath = input.SourceVideoPath

	s.logger.Info("creating job",
		slog.String("job_id", j.ID),
		slog.String("kind", string(input.Kind)),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	return j.Clone(), nil
}

// Get returns a snapshot of a job by ID.
func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// List returns snapshots of all known jobs, newest first.
func (s *Service) List(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Remove deletes a terminal job and releases its artifacts. Running jobs
// must be cancelled first.
func (s *Service) Remove(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !j.IsTerminal() {
		return ErrJobRunning
	}

	var paths []string
	for _, p := range []string{j.VideoPath, j.AudioPath, j.CombinedPath, j.SourceVideoPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) > 0 {
		_ = s.store.Cleanup(ctx, paths)
	}

	return s.repo.Delete(ctx, jobID)
}

// Cancel abandons a job. A running job has its context cancelled so poll
// loops and in-flight requests observe the abandonment cooperatively; a
// job whose goroutine has not started yet is closed out directly.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.IsTerminal() {
		return ErrNotCancellable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
		return nil
	}

	// No cancel func yet: the run goroutine has not picked the job up, or
	// it already finished and deregistered. Re-read under the lock and
	// close the job out before the goroutine can start it.
	j, err = s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.IsTerminal() {
		return ErrNotCancellable
	}
	if err := j.Cancel(); err != nil {
		return ErrNotCancellable
	}
	return s.repo.Save(ctx, j)
}

// Run executes a job's generation workflow. It is meant to be called on
// a goroutine with a context detached from the originating request; the
// job's own cancel function is registered so Cancel can reach it.
func (s *Service) Run(ctx context.Context, jobID string, input CreateInput) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.cancels, jobID)
		s.mu.Unlock()
	}()

	j, err := s.repo.FindByID(runCtx, jobID)
	if err != nil {
		s.logger.Error("job vanished before run",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := j.Start(); err != nil {
		if j.IsTerminal() {
			// Cancelled between Create and the goroutine getting here.
			s.logger.Info("job closed before start", slog.String("job_id", jobID))
		} else {
			s.logger.Error("job could not start",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	_ = s.repo.Save(runCtx, j)

	onSubmit := func(operationName string) {
		j.SetOperationName(operationName)
		_ = s.repo.Save(context.WithoutCancel(runCtx), j)
	}

	videoPath, audioPath, combinedPath, genErr := s.dispatch(runCtx, j, input, onSubmit)

	// Persist the outcome even when the run context was cancelled.
	saveCtx := context.WithoutCancel(runCtx)

	if genErr != nil {
		s.resolveFailure(saveCtx, j, genErr)
		return
	}

	j.SetOutput(videoPath, audioPath, combinedPath)

	if input.Publish {
		if url, err := s.publish(saveCtx, jobID, videoPath); err != nil {
			s.logger.Warn("publish failed, keeping local artifact",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		} else {
			j.SetVideoURL(url)
		}
	}

	if err := j.Succeed(); err != nil {
		s.logger.Error("job could not complete",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
	_ = s.repo.Save(saveCtx, j)

	s.logger.Info("job finished",
		slog.String("job_id", jobID),
		slog.String("status", string(j.GetStatus())),
	)
}

// dispatch runs the generation operation matching the job kind.
func (s *Service) dispatch(ctx context.Context, j *Job, input CreateInput, onSubmit func(string)) (videoPath, audioPath, combinedPath string, err error) {
	switch j.Kind {
	case KindRemix:
		res, err := s.gen.RemixVideo(ctx, generate.VideoRemixInput{
			SourceVideoPath: input.SourceVideoPath,
			Prompt:          input.Prompt,
			OnSubmit:        onSubmit,
		})
		if err != nil {
			return "", "", "", err
		}
		return res.Path, "", "", nil

	case KindNarrated:
		res, err := s.gen.CreateNarratedVideo(ctx, generate.NarratedVideoInput{
			Prompt:        input.Prompt,
			AspectRatio:   input.AspectRatio,
			VoiceOverText: input.VoiceOverText,
			OnSubmit:      onSubmit,
		})
		if err != nil {
			return "", "", "", err
		}
		return res.VideoPath, res.AudioPath, res.CombinedPath, nil

	default:
		res, err := s.gen.CreateVideo(ctx, generate.VideoCreateInput{
			Prompt:      input.Prompt,
			AspectRatio: input.AspectRatio,
			OnSubmit:    onSubmit,
		})
		if err != nil {
			return "", "", "", err
		}
		return res.Path, "", "", nil
	}
}

// resolveFailure maps a normalized generation error onto the job's
// terminal state. The job never carries a partial result.
func (s *Service) resolveFailure(saveCtx context.Context, j *Job, genErr error) {
	var transitionErr error
	switch {
	case errors.Is(genErr, context.Canceled):
		transitionErr = j.Cancel()
	case generate.KindOf(genErr) == generate.KindPolicyBlocked:
		transitionErr = j.Block(genErr.Error())
	case generate.KindOf(genErr) == generate.KindTimeout:
		transitionErr = j.Timeout(genErr.Error())
	default:
		transitionErr = j.Fail(genErr.Error())
	}
	if transitionErr != nil {
		s.logger.Error("job could not record failure",
			slog.String("job_id", j.ID),
			slog.String("error", transitionErr.Error()),
		)
	}
	_ = s.repo.Save(saveCtx, j)

	s.logger.Warn("job failed",
		slog.String("job_id", j.ID),
		slog.String("status", string(j.GetStatus())),
		slog.String("error", genErr.Error()),
	)

	// Remix inputs are working files owned by the job; release them now.
	if j.SourceVideoPath != "" {
		_ = s.store.Cleanup(saveCtx, []string{j.SourceVideoPath})
	}
}

// publish uploads the finished video and returns its URL.
func (s *Service) publish(ctx context.Context, jobID, videoPath string) (string, error) {
	f, err := s.store.Open(ctx, videoPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	return s.store.Upload(ctx, jobID+".mp4", f)
}
