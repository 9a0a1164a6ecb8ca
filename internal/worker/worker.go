package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/metrics"
	"github.com/jenin-ai/interview-backend/internal/recordings"
	"github.com/jenin-ai/interview-backend/pkg/queue"
)

// Jobs is the queue surface the processor consumes. *queue.Queue implements it.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// RecordingProcessor uploads queued capture audio to object storage.
type RecordingProcessor struct {
	uploader recordings.Uploader
	statuses recordings.Statuses
	queue    Jobs
	metrics  *metrics.Metrics
	backoff  time.Duration
	logger   *zap.Logger
}

// NewRecordingProcessor creates a recording upload processor. statuses and m may be nil.
func NewRecordingProcessor(uploader recordings.Uploader, statuses recordings.Statuses, q Jobs, m *metrics.Metrics, logger *zap.Logger) *RecordingProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingProcessor{
		uploader: uploader,
		statuses: statuses,
		queue:    q,
		metrics:  m,
		backoff:  queue.RetryBackoff,
		logger:   logger,
	}
}

// Process executes one recording upload job.
func (p *RecordingProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeRecordingUpload {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.RecordingUploadPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.Key == "" || len(payload.Audio) == 0 {
		return fmt.Errorf("job %s: empty recording payload", job.ID)
	}

	err := p.uploader.Upload(ctx, payload.Key, payload.MimeType, bytes.NewReader(payload.Audio), int64(len(payload.Audio)))
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	p.setStatus(ctx, payload.Key, recordings.StatusUploaded)
	p.metrics.RecordingUploaded("uploaded")
	p.logger.Info("recording upload completed", zap.String("key", payload.Key), zap.String("session_id", payload.SessionID))
	return nil
}

func (p *RecordingProcessor) setStatus(ctx context.Context, key, status string) {
	if p.statuses == nil {
		return
	}
	if err := p.statuses.UpdateStatus(ctx, key, status); err != nil {
		p.logger.Warn("update recording status failed", zap.String("key", key), zap.Error(err))
	}
}

// Run dequeues and processes jobs until ctx is done. Failed jobs are retried
// and end in the dead-letter queue after queue.MaxRetries attempts.
func (p *RecordingProcessor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			p.logger.Info("recording worker stopping")
			return nil
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			p.metrics.RecordingUploaded("failed")
			if job.Attempt+1 >= queue.MaxRetries {
				p.markFailed(ctx, job)
			}
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *RecordingProcessor) markFailed(ctx context.Context, job *queue.Job) {
	var payload queue.RecordingUploadPayload
	if json.Unmarshal(job.Payload, &payload) == nil && payload.Key != "" {
		p.setStatus(ctx, payload.Key, recordings.StatusFailed)
	}
}

func (p *RecordingProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
