package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"studydocs-backend/internal/chunk"
	"studydocs-backend/internal/extract"
	"studydocs-backend/internal/shared/metrics"
	"studydocs-backend/internal/shared/storage/object"
	"studydocs-backend/internal/shared/telemetry"
)

// Processor extracts and chunks an uploaded document, then records the outcome.
type Processor struct {
	Repo      Repo
	Store     object.ObjectStore
	Extractor extract.Extractor
	// MaxBytes caps how much of a stored file is read when positive.
	MaxBytes     int64
	ChunkSize    int
	ChunkOverlap int
}

// Process runs one processing job. Extraction problems mark the document
// failed and are not returned; only persistence errors are, so the caller
// may retry them.
func (p *Processor) Process(ctx context.Context, documentID, storageKey string) (err error) {
	start := time.Now()
	fields := map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"document_id": documentID,
		"storage_key": storageKey,
	}
	metrics.IncProcessingStarted()

	defer func() {
		if rec := recover(); rec != nil {
			fields["panic"] = fmt.Sprint(rec)
			telemetry.Error("document.process_panic", fields)
			err = p.fail(ctx, documentID, fmt.Errorf("%w: panic: %v", ErrProcessing, rec), start)
		}
	}()

	text, extractErr := p.extract(ctx, storageKey)
	if extractErr != nil {
		return p.fail(ctx, documentID, extractErr, start)
	}

	chunks := chunk.Split(text, p.chunkSize(), p.chunkOverlap())
	if err := p.Repo.CompleteProcessing(ctx, documentID, text, chunks); err != nil {
		return p.repoOutcome(documentID, "ready", err)
	}

	metrics.IncProcessingReady()
	metrics.ObserveChunkCount(len(chunks))
	metrics.ObserveProcessingDurationMs(metrics.Since(start))
	telemetry.Info("document.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"document_id":       documentID,
		"status":            StatusReady,
		"status_transition": "processing->ready",
		"chunk_count":       len(chunks),
		"text_length":       len(text),
		"duration_ms":       metrics.Since(start),
	})
	return nil
}

func (p *Processor) extract(ctx context.Context, storageKey string) (string, error) {
	if p.Extractor == nil {
		return "", fmt.Errorf("%w: extractor not configured", ErrProcessing)
	}
	if strings.TrimSpace(storageKey) == "" {
		return "", fmt.Errorf("%w: missing storage key", ErrProcessing)
	}

	rc, err := p.Store.Open(ctx, storageKey)
	if err != nil {
		return "", fmt.Errorf("%w: open file: %v", ErrProcessing, err)
	}
	defer rc.Close()

	var reader io.Reader = rc
	if p.MaxBytes > 0 {
		reader = io.LimitReader(rc, p.MaxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("%w: read file: %v", ErrProcessing, err)
	}
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return "", fmt.Errorf("%w: file exceeds %d bytes", ErrProcessing, p.MaxBytes)
	}

	text, err := p.Extractor.Extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessing, err)
	}
	return text, nil
}

func (p *Processor) fail(ctx context.Context, documentID string, cause error, start time.Time) error {
	telemetry.Warn("document.process_failed", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"document_id": documentID,
		"error":       cause.Error(),
	})
	if err := p.Repo.FailProcessing(ctx, documentID); err != nil {
		return p.repoOutcome(documentID, "failed", err)
	}

	metrics.IncProcessingFailed()
	metrics.ObserveProcessingDurationMs(metrics.Since(start))
	telemetry.Info("document.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"document_id":       documentID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"duration_ms":       metrics.Since(start),
	})
	return nil
}

// repoOutcome swallows transitions that can never succeed: the document was
// deleted mid-flight or another job already settled it.
func (p *Processor) repoOutcome(documentID, target string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		telemetry.Info("document.process_skipped", map[string]any{
			"document_id": documentID,
			"target":      target,
			"reason":      "deleted",
		})
		return nil
	case errors.Is(err, ErrNotProcessing):
		telemetry.Info("document.process_skipped", map[string]any{
			"document_id": documentID,
			"target":      target,
			"reason":      "already_settled",
		})
		return nil
	default:
		return fmt.Errorf("record %s: %w", target, err)
	}
}

func (p *Processor) chunkSize() int {
	if p.ChunkSize > 0 {
		return p.ChunkSize
	}
	return chunk.DefaultSize
}

func (p *Processor) chunkOverlap() int {
	if p.ChunkOverlap > 0 {
		return p.ChunkOverlap
	}
	return chunk.DefaultOverlap
}
