package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mediaremix/studio-api/internal/audio"
	"github.com/mediaremix/studio-api/internal/gemini"
	"github.com/mediaremix/studio-api/internal/media"
	"github.com/mediaremix/studio-api/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Default models and polling behavior. Remix jobs are polled more
// frequently because they are expected to finish faster.
const (
	DefaultImageModel  = "gemini-2.5-flash-image"
	DefaultVideoModel  = "veo-3.0-generate-001"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultVoiceName   = "Kore"

	DefaultVideoPollInterval = 10 * time.Second
	DefaultRemixPollInterval = 5 * time.Second
	DefaultPollTimeout       = 10 * time.Minute
)

// finishReasonStop is the only finish reason that indicates a complete,
// unblocked candidate.
const finishReasonStop = "STOP"

// Service implements the generation operations on top of the Gemini
// client, the media processor (frame extraction, muxing) and storage.
type Service struct {
	client    gemini.Client
	processor media.Processor
	store     storage.Storage
	logger    *slog.Logger

	imageModel  string
	videoModel  string
	speechModel string
	voiceName   string

	videoPollInterval time.Duration
	remixPollInterval time.Duration
	pollTimeout       time.Duration
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithModels overrides the default model identifiers. Empty values keep
// the defaults.
func WithModels(imageModel, videoModel, speechModel string) Option {
	return func(s *Service) {
		if imageModel != "" {
			s.imageModel = imageModel
		}
		if videoModel != "" {
			s.videoModel = videoModel
		}
		if speechModel != "" {
			s.speechModel = speechModel
		}
	}
}

// WithVoice sets the prebuilt voice used for speech synthesis.
func WithVoice(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.voiceName = name
		}
	}
}

// WithPollIntervals sets the sleep between status polls for fresh video
// generation and for remixes.
func WithPollIntervals(video, remix time.Duration) Option {
	return func(s *Service) {
		if video > 0 {
			s.videoPollInterval = video
		}
		if remix > 0 {
			s.remixPollInterval = remix
		}
	}
}

// WithPollTimeout bounds how long a video job may stay pending before the
// operation fails with a timeout.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollTimeout = d
		}
	}
}

// NewService creates a generation service.
func NewService(client gemini.Client, processor media.Processor, store storage.Storage, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		client:            client,
		processor:         processor,
		store:             store,
		logger:            logger,
		imageModel:        DefaultImageModel,
		videoModel:        DefaultVideoModel,
		speechModel:       DefaultSpeechModel,
		voiceName:         DefaultVoiceName,
		videoPollInterval: DefaultVideoPollInterval,
		remixPollInterval: DefaultRemixPollInterval,
		pollTimeout:       DefaultPollTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EditImage applies an instruction to a source image and returns the
// edited image.
func (s *Service) EditImage(ctx context.Context, input ImageEditInput) (*ImageResult, error) {
	req := gemini.GenerateContentRequest{
		Contents: []gemini.Content{{
			Parts: []gemini.Part{
				{InlineData: &gemini.InlineData{
					MimeType: input.MimeType,
					Data:     base64.StdEncoding.EncodeToString(input.ImageData),
				}},
				{Text: input.Prompt},
			},
		}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}

	resp, err := s.client.GenerateContent(ctx, s.imageModel, req)
	if err != nil {
		return nil, normalize(err)
	}
	return s.imageFromResponse(resp)
}

// CreateImage generates an image from a text prompt.
func (s *Service) CreateImage(ctx context.Context, input ImageCreateInput) (*ImageResult, error) {
	req := gemini.GenerateContentRequest{
		Contents: []gemini.Content{{
			Parts: []gemini.Part{{Text: input.Prompt}},
		}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}

	resp, err := s.client.GenerateContent(ctx, s.imageModel, req)
	if err != nil {
		return nil, normalize(err)
	}
	return s.imageFromResponse(resp)
}

// imageFromResponse extracts the image payload from a generateContent
// response, reporting policy blocks and non-success finish reasons
// distinctly so the caller can present an actionable message.
func (s *Service) imageFromResponse(resp *gemini.GenerateContentResponse) (*ImageResult, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, newError(KindPolicyBlocked,
			fmt.Sprintf("The request was blocked by the provider (%s).", resp.PromptFeedback.BlockReason), nil)
	}

	for _, cand := range resp.Candidates {
		if cand.FinishReason != "" && cand.FinishReason != finishReasonStop {
			return nil, newError(KindProvider,
				fmt.Sprintf("The model stopped with reason %s.", cand.FinishReason), nil)
		}
	}

	inline := resp.FirstInlineData()
	if inline == nil {
		return nil, newError(KindPolicyBlocked,
			"No image data received from the API. The model may have refused the request.", nil)
	}

	data, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return nil, normalize(fmt.Errorf("decode image payload: %w", err))
	}

	mimeType := inline.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &ImageResult{Data: data, MimeType: mimeType}, nil
}

// CreateVideo generates a video from a text prompt. It submits a
// long-running job, polls it to completion, and downloads the result into
// local storage.
func (s *Service) CreateVideo(ctx context.Context, input VideoCreateInput) (*VideoResult, error) {
	req := gemini.SubmitVideoRequest{
		Instances: []gemini.VideoInstance{{Prompt: input.Prompt}},
	}
	if input.AspectRatio != "" {
		req.Parameters = &gemini.VideoParameters{AspectRatio: input.AspectRatio}
	}

	return s.runVideoJob(ctx, req, s.videoPollInterval, input.OnSubmit)
}

// RemixVideo generates a video conditioned on a seed frame extracted from
// the source video. Extraction failure short-circuits before any network
// call. The generated video keeps the source's orientation: its
// dimensions are probed and mapped to the nearest supported aspect ratio.
func (s *Service) RemixVideo(ctx context.Context, input VideoRemixInput) (*VideoResult, error) {
	frame, err := s.processor.ExtractFrame(ctx, input.SourceVideoPath)
	if err != nil {
		return nil, normalize(err)
	}

	req := gemini.SubmitVideoRequest{
		Instances: []gemini.VideoInstance{{
			Prompt: input.Prompt,
			Image: &gemini.VideoImage{
				BytesBase64Encoded: base64.StdEncoding.EncodeToString(frame),
				MimeType:           "image/jpeg",
			},
		}},
	}

	width, height, err := s.processor.ProbeDimensions(ctx, input.SourceVideoPath)
	if err != nil {
		s.logger.Warn("could not probe source dimensions, using model default",
			slog.String("error", err.Error()),
		)
	} else {
		req.Parameters = &gemini.VideoParameters{AspectRatio: aspectRatioFor(width, height)}
	}

	return s.runVideoJob(ctx, req, s.remixPollInterval, input.OnSubmit)
}

// aspectRatioFor maps source dimensions to the nearest supported aspect
// ratio: 16:9 for landscape, 9:16 for portrait, 1:1 for square.
func aspectRatioFor(width, height int) string {
	switch {
	case width > height:
		return "16:9"
	case height > width:
		return "9:16"
	default:
		return "1:1"
	}
}

// runVideoJob submits a video generation job, polls it until terminal,
// and downloads the result. Polls never overlap: each cycle sleeps, then
// fetches status once.
func (s *Service) runVideoJob(ctx context.Context, req gemini.SubmitVideoRequest, interval time.Duration, onSubmit func(string)) (*VideoResult, error) {
	opName, err := s.client.SubmitVideo(ctx, s.videoModel, req)
	if err != nil {
		return nil, normalize(err)
	}
	if onSubmit != nil {
		onSubmit(opName)
	}

	s.logger.Info("video job submitted",
		slog.String("operation", opName),
		slog.Duration("poll_interval", interval),
	)

	op, err := s.pollUntilDone(ctx, opName, interval)
	if err != nil {
		return nil, err
	}

	if op.Error != nil {
		return nil, newError(KindProvider,
			fmt.Sprintf("Video generation failed: %s.", strings.TrimSuffix(op.Error.Message, ".")),
			nil)
	}

	uri := op.VideoURI()
	if uri == "" {
		// Done with neither an error nor a result link is how the provider
		// reports a policy block on video jobs.
		return nil, newError(KindPolicyBlocked,
			"The provider returned no download link; the request may have been blocked.", nil)
	}

	data, err := s.client.DownloadFile(ctx, uri)
	if err != nil {
		norm := normalize(err)
		if norm.Kind == KindRateLimited {
			return nil, norm
		}
		return nil, newError(KindDownload, "The generated video could not be downloaded.", err)
	}

	path, err := s.store.Save(ctx, "generated-video.mp4", bytes.NewReader(data))
	if err != nil {
		return nil, newError(KindDownload, "The generated video could not be saved.", err)
	}

	s.logger.Info("video job completed",
		slog.String("operation", opName),
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)

	return &VideoResult{Path: path}, nil
}

// pollUntilDone re-fetches operation status on a fixed interval until the
// job reports done, the deadline set by the poll timeout passes, or the
// context is cancelled.
func (s *Service) pollUntilDone(ctx context.Context, opName string, interval time.Duration) (*gemini.Operation, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()

	for {
		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return nil, newError(KindUnknown, "The generation was cancelled.", ctx.Err())
			}
			return nil, newError(KindTimeout, "The generation did not finish in time.", pollCtx.Err())
		case <-time.After(interval):
		}

		op, err := s.client.PollOperation(pollCtx, opName)
		if err != nil {
			return nil, normalize(err)
		}
		if op.Done {
			return op, nil
		}

		s.logger.Debug("video job still pending",
			slog.String("operation", opName),
		)
	}
}

// CreateSpeech synthesizes narration for the given text with the
// configured prebuilt voice. The provider returns raw 24 kHz mono PCM.
func (s *Service) CreateSpeech(ctx context.Context, input SpeechInput) (*AudioResult, error) {
	req := gemini.GenerateContentRequest{
		Contents: []gemini.Content{{
			Parts: []gemini.Part{{Text: input.Text}},
		}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &gemini.SpeechConfig{
				VoiceConfig: &gemini.VoiceConfig{
					PrebuiltVoiceConfig: &gemini.PrebuiltVoiceConfig{VoiceName: s.voiceName},
				},
			},
		},
	}

	resp, err := s.client.GenerateContent(ctx, s.speechModel, req)
	if err != nil {
		return nil, normalize(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, newError(KindPolicyBlocked,
			fmt.Sprintf("The request was blocked by the provider (%s).", resp.PromptFeedback.BlockReason), nil)
	}

	inline := resp.FirstInlineData()
	if inline == nil {
		return nil, newError(KindProvider, "No audio data received from the API.", nil)
	}

	pcm, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return nil, normalize(fmt.Errorf("decode audio payload: %w", err))
	}

	return &AudioResult{PCM: pcm}, nil
}

// CreateNarratedVideo runs video generation and speech synthesis in
// flight together, then muxes the two tracks into one WebM file. A
// failure of either leg rejects the whole operation; no partial result
// is ever returned, and files produced along the way are cleaned up.
func (s *Service) CreateNarratedVideo(ctx context.Context, input NarratedVideoInput) (*NarratedVideoResult, error) {
	var (
		video  *VideoResult
		speech *AudioResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		video, err = s.CreateVideo(gctx, VideoCreateInput{
			Prompt:      input.Prompt,
			AspectRatio: input.AspectRatio,
			OnSubmit:    input.OnSubmit,
		})
		return err
	})
	g.Go(func() error {
		var err error
		speech, err = s.CreateSpeech(gctx, SpeechInput{Text: input.VoiceOverText})
		return err
	})
	if err := g.Wait(); err != nil {
		if video != nil {
			_ = s.store.Cleanup(ctx, []string{video.Path})
		}
		return nil, normalize(err)
	}

	buf, err := audio.DecodePCM(speech.PCM)
	if err != nil {
		_ = s.store.Cleanup(ctx, []string{video.Path})
		return nil, normalize(err)
	}

	wavPath, err := s.store.Save(ctx, "generated-audio.wav", bytes.NewReader(audio.EncodeWAV(buf)))
	if err != nil {
		_ = s.store.Cleanup(ctx, []string{video.Path})
		return nil, normalize(fmt.Errorf("save narration: %w", err))
	}

	combinedPath, err := s.store.Save(ctx, "generated-video-with-audio.webm", bytes.NewReader(nil))
	if err != nil {
		_ = s.store.Cleanup(ctx, []string{video.Path, wavPath})
		return nil, normalize(fmt.Errorf("allocate combined output: %w", err))
	}

	if err := s.processor.Mux(ctx, video.Path, wavPath, combinedPath); err != nil {
		_ = s.store.Cleanup(ctx, []string{video.Path, wavPath, combinedPath})
		return nil, normalize(err)
	}

	return &NarratedVideoResult{
		VideoPath:    video.Path,
		AudioPath:    wavPath,
		CombinedPath: combinedPath,
	}, nil
}
