package documents

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"studydocs-backend/internal/queue"
	"studydocs-backend/internal/shared/metrics"
	"studydocs-backend/internal/shared/storage/object"
	"studydocs-backend/internal/shared/telemetry"
	"studydocs-backend/internal/shared/util"
)

const pdfSniffWindow = 1024

// Service contains business logic for documents.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Queue queue.Client
	// MaxUploadBytes rejects larger files when positive.
	MaxUploadBytes int64
	Now            func() time.Time
}

// UploadInput is a received file plus the form fields sent with it.
type UploadInput struct {
	UserID   string
	Title    string
	FileName string
	// Size is the size reported by the client, or -1 when unknown.
	Size int64
	Body io.Reader
	// BaseURL is the public URL prefix files are served under, without a trailing slash.
	BaseURL string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Upload stores the file, records the document as processing and schedules
// background processing. Scheduling failures are logged, never returned.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Document, error) {
	title := strings.TrimSpace(in.Title)
	if in.Body == nil || strings.TrimSpace(in.FileName) == "" {
		return Document{}, invalid(MsgFileRequired)
	}
	if title == "" {
		return Document{}, invalid(MsgTitleRequired)
	}
	if s.MaxUploadBytes > 0 && in.Size > s.MaxUploadBytes {
		return Document{}, invalid(MsgFileTooLarge)
	}
	if _, err := util.SanitizeFileName(in.FileName); err != nil {
		return Document{}, invalid(MsgBadFileName)
	}

	body := bufio.NewReaderSize(in.Body, pdfSniffWindow)
	head, err := body.Peek(pdfSniffWindow)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Document{}, fmt.Errorf("read upload: %w", err)
	}
	if !bytes.Contains(head, []byte("%PDF-")) {
		return Document{}, invalid(MsgOnlyPDF)
	}

	var reader io.Reader = body
	if s.MaxUploadBytes > 0 {
		reader = io.LimitReader(body, s.MaxUploadBytes+1)
	}
	obj, err := s.Store.Save(ctx, in.FileName, reader)
	if err != nil {
		return Document{}, fmt.Errorf("store upload: %w", err)
	}

	doc, err := s.record(ctx, in, title, obj)
	if err != nil {
		s.removeFile(obj.Key, "upload_cleanup")
		return Document{}, err
	}

	metrics.IncDocumentUploaded()
	telemetry.Info("document.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           doc.UserID,
		"document_id":       doc.ID,
		"status":            doc.Status,
		"status_transition": "none->processing",
		"file_size":         doc.FileSize,
	})

	if err := s.dispatch(ctx, doc); err != nil {
		doc.Status = StatusFailed
	}
	return doc, nil
}

func (s *Service) record(ctx context.Context, in UploadInput, title string, obj object.Object) (Document, error) {
	if s.MaxUploadBytes > 0 && obj.Size > s.MaxUploadBytes {
		return Document{}, invalid(MsgFileTooLarge)
	}

	now := s.now()
	doc := Document{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		Title:        title,
		FileName:     in.FileName,
		FilePath:     strings.TrimRight(in.BaseURL, "/") + "/" + obj.Key,
		StorageKey:   obj.Key,
		FileSize:     obj.Size,
		Status:       StatusProcessing,
		UploadDate:   now,
		LastAccessed: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// dispatch hands the document to the job queue. When that fails the document
// is marked failed so it never stays in processing.
func (s *Service) dispatch(ctx context.Context, doc Document) error {
	err := ErrQueueNotConfigured
	if s.Queue != nil {
		msg := queue.NewMessage(doc.ID, doc.StorageKey, requestIDFromContext(ctx), s.now())
		err = s.Queue.Send(ctx, msg)
	}
	if err == nil {
		return nil
	}

	metrics.IncJobDispatchFailed()
	telemetry.Error("document.dispatch_failed", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"document_id": doc.ID,
		"error":       err.Error(),
	})
	if failErr := s.Repo.FailProcessing(context.Background(), doc.ID); failErr != nil {
		telemetry.Error("document.fail_update_failed", map[string]any{
			"document_id": doc.ID,
			"error":       failErr.Error(),
		})
		return err
	}
	metrics.IncProcessingFailed()
	telemetry.Info("document.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"document_id":       doc.ID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"reason":            "dispatch",
	})
	return err
}

// List returns the user's documents newest first with study material counts.
func (s *Service) List(ctx context.Context, userID string) ([]DocumentWithCounts, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListWithCounts(ctx, userID)
}

// Get returns one of the user's documents with counts and records the access.
// A failed access update is logged and does not fail the read.
func (s *Service) Get(ctx context.Context, userID, id string) (DocumentWithCounts, error) {
	if strings.TrimSpace(userID) == "" {
		return DocumentWithCounts{}, ErrInvalidInput
	}
	doc, err := s.Repo.GetWithCounts(ctx, userID, id)
	if err != nil {
		return DocumentWithCounts{}, err
	}

	at := s.now()
	if err := s.Repo.TouchLastAccessed(ctx, userID, id, at); err != nil {
		telemetry.Warn("document.touch_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": id,
			"error":       err.Error(),
		})
		return doc, nil
	}
	doc.LastAccessed = at
	return doc, nil
}

// Delete removes the stored file (best effort) and the document record.
// Flashcards and quizzes referencing the document are left in place.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidInput
	}
	doc, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}

	s.removeFile(StoredFileName(doc), "delete")

	if err := s.Repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	metrics.IncDocumentDeleted()
	telemetry.Info("document.deleted", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"user_id":     userID,
		"document_id": id,
	})
	return nil
}

// StoredFileName derives the stored file name from the document's public URL,
// falling back to the recorded storage key.
func StoredFileName(doc Document) string {
	if u, err := url.Parse(doc.FilePath); err == nil {
		if name := path.Base(u.Path); name != "." && name != "/" && name != "" {
			return name
		}
	}
	return doc.StorageKey
}

func (s *Service) removeFile(key, reason string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Store.Delete(ctx, key); err != nil && !errors.Is(err, object.ErrNotFound) {
		telemetry.Warn("document.file_delete_failed", map[string]any{
			"storage_key": key,
			"reason":      reason,
			"error":       err.Error(),
		})
	}
}
