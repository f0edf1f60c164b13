package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/buntercodes/vid-gen/internal/logging"
	"github.com/buntercodes/vid-gen/internal/metrics"
	"github.com/buntercodes/vid-gen/internal/quota"
	"github.com/buntercodes/vid-gen/pkg/models"
)

// ErrInvalidRequest marks a generation request rejected by validation.
var ErrInvalidRequest = errors.New("invalid generation request")

// Generator is the external generation call: opaque, binary outcome.
type Generator interface {
	Generate(ctx context.Context, req *models.GenerationRequest) ([]byte, error)
}

// QuotaService gates admission and records usage.
type QuotaService interface {
	CheckQuota(ctx context.Context, userID string) (bool, error)
	ReserveUsage(ctx context.Context, userID string) (bool, error)
	ReleaseUsage(ctx context.Context, userID string) error
	RecordUsage(ctx context.Context, userID string) error
}

// ObjectStore persists produced video blobs.
type ObjectStore interface {
	SaveVideo(ctx context.Context, key string, data []byte) error
	VideoURL(ctx context.Context, key string) (string, error)
}

// Ledger persists generation records.
type Ledger interface {
	CreateGeneration(ctx context.Context, gen *models.Generation) error
	UpdateGeneration(ctx context.Context, gen *models.Generation) error
}

// Publisher hands accepted generation jobs to the worker queue.
type Publisher interface {
	PublishGeneration(ctx context.Context, job *models.GenerationJob) error
}

// Service orchestrates a generation: quota admission, the external call,
// output storage, usage recording. Usage is recorded strictly after the
// result has been produced and stored; a failed generation never consumes
// quota, and an abandoned request has recorded nothing yet.
type Service struct {
	quota     QuotaService
	client    Generator
	objects   ObjectStore
	ledger    Ledger
	publisher Publisher

	// strictReserve switches admission at process time from the advisory
	// check to a conditional increment that cannot overshoot the
	// allowance. The reserved slot is released when the generation fails.
	strictReserve bool

	logger *logging.Logger
}

// NewService creates a generation orchestrator
func NewService(q QuotaService, client Generator, objects ObjectStore, ledger Ledger, publisher Publisher, strictReserve bool, logger *logging.Logger) *Service {
	return &Service{
		quota:         q,
		client:        client,
		objects:       objects,
		ledger:        ledger,
		publisher:     publisher,
		strictReserve: strictReserve,
		logger:        logger,
	}
}

// Submit validates a request, checks the user's quota, and enqueues the
// generation. The check here is advisory and exists to reject doomed
// requests before they occupy the queue; process-time admission decides for
// real.
func (s *Service) Submit(ctx context.Context, userID string, req *models.GenerationRequest) (*models.Generation, error) {
	if userID == "" {
		return nil, quota.ErrInvalidUser
	}
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	allowed, err := s.quota.CheckQuota(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}
	metrics.RecordQuotaCheck(allowed)
	if !allowed {
		return nil, quota.ErrQuotaExceeded
	}

	gen := &models.Generation{
		ID:          uuid.New().String(),
		UserID:      userID,
		Model:       req.Model,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Duration:    req.Duration,
		Size:        SizeFor(req.Model, req.AspectRatio),
		Status:      models.GenerationStatusQueued,
	}

	if err := s.ledger.CreateGeneration(ctx, gen); err != nil {
		return nil, fmt.Errorf("failed to create generation record: %w", err)
	}

	if err := s.publisher.PublishGeneration(ctx, &models.GenerationJob{Generation: gen, Request: req}); err != nil {
		return nil, fmt.Errorf("failed to queue generation: %w", err)
	}

	metrics.GenerationsSubmitted.Inc()
	if s.logger != nil {
		s.logger.LogGenerationEvent(gen.ID, userID, gen.Model, string(gen.Status), nil)
	}
	return gen, nil
}

// Process runs the full generation sequence for a queued job. A nil return
// means the job reached a terminal state (completed or failed); an error
// means transient infrastructure trouble and the job may be retried.
func (s *Service) Process(ctx context.Context, gen *models.Generation, req *models.GenerationRequest) error {
	log := s.logger
	if log != nil {
		log = log.WithGenerationID(gen.ID).WithUserID(gen.UserID)
	}

	gen.Status = models.GenerationStatusProcessing
	if err := s.ledger.UpdateGeneration(ctx, gen); err != nil {
		return fmt.Errorf("failed to mark generation processing: %w", err)
	}

	// Admission at process time. A store outage is surfaced, never
	// interpreted as pass or fail: the expensive external call stays gated.
	granted, err := s.admit(ctx, gen.UserID)
	if err != nil {
		metrics.QuotaStoreErrors.Inc()
		return fmt.Errorf("failed to check quota: %w", err)
	}
	metrics.RecordQuotaCheck(granted)
	if !granted {
		return s.fail(ctx, gen, quota.ErrQuotaExceeded.Error())
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "generation.external_call")
	span.SetTag("model", gen.Model)
	start := time.Now()
	video, genErr := s.client.Generate(ctx, req)
	metrics.GenerationDuration.WithLabelValues(gen.Model).Observe(time.Since(start).Seconds())
	if genErr != nil {
		span.SetTag("error", true)
		span.LogKV("error", genErr.Error())
	}
	span.Finish()

	if genErr != nil {
		// The external call failed: no quota is charged. In strict mode
		// the reserved slot is handed back.
		if s.strictReserve {
			if relErr := s.quota.ReleaseUsage(ctx, gen.UserID); relErr != nil && log != nil {
				log.ErrorWithErr("failed to release reserved credit", relErr)
			}
		}
		if log != nil {
			log.ErrorWithErr("generation failed", genErr)
		}
		return s.fail(ctx, gen, genErr.Error())
	}

	key := fmt.Sprintf("generations/%s/%s.mp4", gen.UserID, gen.ID)
	if err := s.objects.SaveVideo(ctx, key, video); err != nil {
		if s.strictReserve {
			if relErr := s.quota.ReleaseUsage(ctx, gen.UserID); relErr != nil && log != nil {
				log.ErrorWithErr("failed to release reserved credit", relErr)
			}
		}
		return fmt.Errorf("failed to store generated video: %w", err)
	}
	metrics.GenerationOutputBytes.Observe(float64(len(video)))

	gen.OutputKey = key
	if url, err := s.objects.VideoURL(ctx, key); err == nil {
		gen.OutputURL = url
	} else if log != nil {
		log.ErrorWithErr("failed to presign output URL", err)
	}

	now := time.Now()
	gen.Status = models.GenerationStatusCompleted
	gen.CompletedAt = &now
	gen.ErrorMsg = nil
	if err := s.ledger.UpdateGeneration(ctx, gen); err != nil {
		return fmt.Errorf("failed to mark generation completed: %w", err)
	}

	// Best-effort charge: the result is already delivered, so a store
	// outage here is logged rather than undoing the generation. In strict
	// mode the reservation already counted it.
	if !s.strictReserve {
		if err := s.quota.RecordUsage(ctx, gen.UserID); err != nil {
			metrics.QuotaStoreErrors.Inc()
			if log != nil {
				log.ErrorWithErr("usage tracking may be inconsistent: failed to record usage", err)
			}
		}
	}

	metrics.RecordGeneration(string(models.GenerationStatusCompleted), gen.Model)
	if log != nil {
		log.LogGenerationEvent(gen.ID, gen.UserID, gen.Model, string(gen.Status), map[string]interface{}{
			"output_key": key,
			"size_bytes": len(video),
		})
	}
	return nil
}

// admit applies the configured admission policy.
func (s *Service) admit(ctx context.Context, userID string) (bool, error) {
	if s.strictReserve {
		return s.quota.ReserveUsage(ctx, userID)
	}
	return s.quota.CheckQuota(ctx, userID)
}

// fail marks the generation terminally failed. Quota is never charged on
// this path.
func (s *Service) fail(ctx context.Context, gen *models.Generation, msg string) error {
	now := time.Now()
	gen.Status = models.GenerationStatusFailed
	gen.ErrorMsg = &msg
	gen.CompletedAt = &now

	metrics.RecordGeneration(string(models.GenerationStatusFailed), gen.Model)
	if err := s.ledger.UpdateGeneration(ctx, gen); err != nil {
		return fmt.Errorf("failed to mark generation failed: %w", err)
	}
	return nil
}

// validateRequest rejects malformed generation requests before any quota or
// external activity.
func validateRequest(req *models.GenerationRequest) error {
	if req == nil || req.Prompt == "" {
		return errors.New("prompt is required")
	}

	model, ok := models.LookupModel(req.Model)
	if !ok {
		return fmt.Errorf("unknown model: %s", req.Model)
	}
	if model.Category == models.CategoryImageToVideo && req.Image == "" {
		return errors.New("a seed image is required for image-to-video models")
	}

	switch req.AspectRatio {
	case "", "16:9", "9:16", "1:1", "21:9":
	default:
		return fmt.Errorf("unsupported aspect ratio: %s", req.AspectRatio)
	}

	switch req.Duration {
	case "", "5s", "10s":
	default:
		return fmt.Errorf("unsupported duration: %s", req.Duration)
	}

	return nil
}
