package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"voicetask-service/internal/model"
	"voicetask-service/internal/service/extract"
	"voicetask-service/internal/store"
	"voicetask-service/pkg/logger"
	"voicetask-service/pkg/metrics"
)

// ErrCaptureInFlight is returned while a previous recording is still being
// processed. The recorder stays disabled until the in-flight extraction
// finishes or fails.
var ErrCaptureInFlight = errors.New("a capture is already in flight")

// Extractor turns an audio payload into a structured task payload.
type Extractor interface {
	Extract(ctx context.Context, audio []byte, mimeType string, now time.Time) (*extract.Extraction, error)
}

// Service orchestrates record-new-task: audio in, extraction call, task
// created on success. At most one capture runs at a time; extraction failure
// creates no task and is surfaced to the caller.
type Service struct {
	store     *store.Store
	extractor Extractor
	log       *zap.Logger

	busy atomic.Bool
}

func NewService(st *store.Store, extractor Extractor, log *zap.Logger) *Service {
	return &Service{
		store:     st,
		extractor: extractor,
		log:       log,
	}
}

// Busy reports whether a capture is currently being processed.
func (s *Service) Busy() bool {
	return s.busy.Load()
}

// Process runs one capture end to end.
func (s *Service) Process(ctx context.Context, audio []byte, mimeType string) (model.Task, error) {
	if !s.busy.CompareAndSwap(false, true) {
		metrics.IncrementCapture("busy")
		return model.Task{}, ErrCaptureInFlight
	}
	defer s.busy.Store(false)

	log := logger.WithTrace(ctx, s.log)
	log.Info("Processing voice capture",
		zap.String("mime_type", mimeType),
		zap.Int("audio_bytes", len(audio)),
	)

	extraction, err := s.extractor.Extract(ctx, audio, mimeType, time.Now())
	if err != nil {
		metrics.IncrementCapture("failed")
		log.Warn("Extraction failed, no task created",
			zap.String("reason", string(extract.ReasonOf(err))),
			zap.Error(err),
		)
		return model.Task{}, err
	}

	task := s.store.Create(ctx, extraction.Heading, extraction.Body, extraction.DueDate)
	metrics.IncrementCapture("success")
	metrics.IncrementTaskCreated("voice")
	return task, nil
}
