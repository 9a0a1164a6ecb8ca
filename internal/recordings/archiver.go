// Package recordings archives the audio of finalized captures to object
// storage and serves it back.
package recordings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/jenin-ai/interview-backend/internal/metrics"
	"github.com/jenin-ai/interview-backend/pkg/queue"
	"github.com/jenin-ai/interview-backend/pkg/storage"
)

// Uploader stores an object.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) error
}

// Enqueuer hands an upload to the background worker.
type Enqueuer interface {
	EnqueueRecordingUpload(ctx context.Context, payload queue.RecordingUploadPayload) error
}

// Statuses records recording metadata. *Repository implements it.
type Statuses interface {
	Create(ctx context.Context, rec Recording) error
	UpdateStatus(ctx context.Context, key, status string) error
}

// Archiver implements session.Archiver. With a queue the upload happens in
// the worker; otherwise it uploads inline.
type Archiver struct {
	uploader Uploader
	queue    Enqueuer
	statuses Statuses
	metrics  *metrics.Metrics
	now      func() time.Time
	logger   *zap.Logger
}

// NewArchiver creates an archiver. At least one of uploader and q must be
// non-nil; statuses and m may be nil.
func NewArchiver(uploader Uploader, q Enqueuer, statuses Statuses, m *metrics.Metrics, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{uploader: uploader, queue: q, statuses: statuses, metrics: m, now: time.Now, logger: logger}
}

// RecordingKey assigns the object key for a capture recorded now.
func (a *Archiver) RecordingKey(sessionID, mimeType string) string {
	return storage.RecordingKey(sessionID, mimeType, a.now())
}

// Archive stores audio under key, a value previously returned by RecordingKey.
func (a *Archiver) Archive(ctx context.Context, key, sessionID string, audio []byte, mimeType string) error {
	if len(audio) == 0 {
		return errors.New("archive: empty audio")
	}
	rec := Recording{Key: key, SessionID: sessionID, MimeType: mimeType, FileSize: int64(len(audio))}

	if a.queue != nil {
		err := a.queue.EnqueueRecordingUpload(ctx, queue.RecordingUploadPayload{
			Key:       key,
			SessionID: sessionID,
			MimeType:  mimeType,
			Audio:     audio,
		})
		if err == nil {
			rec.Status = StatusQueued
			a.record(ctx, rec)
			a.metrics.RecordingUploaded("queued")
			return nil
		}
		if a.uploader == nil {
			a.metrics.RecordingUploaded("failed")
			return fmt.Errorf("enqueue recording: %w", err)
		}
		a.logger.Warn("enqueue recording failed, uploading inline", zap.String("key", key), zap.Error(err))
	}

	if a.uploader == nil {
		return errors.New("archive: no uploader configured")
	}
	if err := a.uploader.Upload(ctx, key, mimeType, bytes.NewReader(audio), int64(len(audio))); err != nil {
		a.metrics.RecordingUploaded("failed")
		return err
	}
	rec.Status = StatusUploaded
	a.record(ctx, rec)
	a.metrics.RecordingUploaded("uploaded")
	return nil
}

func (a *Archiver) record(ctx context.Context, rec Recording) {
	if a.statuses == nil {
		return
	}
	if err := a.statuses.Create(ctx, rec); err != nil {
		a.logger.Warn("record recording metadata failed", zap.String("key", rec.Key), zap.Error(err))
	}
}
