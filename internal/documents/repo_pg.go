package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `d.id, d.user_id, d.title, d.file_name, d.file_path, d.storage_key, d.file_size, d.status,
    d.extracted_text, d.chunks, d.upload_date, d.last_accessed, d.created_at, d.updated_at`

const listColumns = `d.id, d.user_id, d.title, d.file_name, d.file_path, d.storage_key, d.file_size, d.status,
    NULL, NULL, d.upload_date, d.last_accessed, d.created_at, d.updated_at`

// Counts are scoped to the document owner.
const countColumns = `
    (SELECT COUNT(*) FROM flashcards f WHERE f.document_id = d.id AND f.user_id = d.user_id) AS flashcard_count,
    (SELECT COUNT(*) FROM quizzes q WHERE q.document_id = d.id AND q.user_id = d.user_id) AS quiz_count`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    title,
    file_name,
    file_path,
    storage_key,
    file_size,
    status,
    upload_date,
    last_accessed,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.Title,
		doc.FileName,
		doc.FilePath,
		doc.StorageKey,
		doc.FileSize,
		string(doc.Status),
		doc.UploadDate,
		doc.LastAccessed,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

// GetByID fetches a document by ID for a user.
func (r *PGRepo) GetByID(ctx context.Context, userID, id string) (Document, error) {
	query := `
SELECT ` + documentColumns + `
FROM documents d
WHERE d.id = $1 AND d.user_id = $2`

	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// GetWithCounts fetches a document and its flashcard/quiz counts in one query.
func (r *PGRepo) GetWithCounts(ctx context.Context, userID, id string) (DocumentWithCounts, error) {
	query := `
SELECT ` + documentColumns + `,` + countColumns + `
FROM documents d
WHERE d.id = $1 AND d.user_id = $2`

	out, err := scanDocumentWithCounts(r.DB.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentWithCounts{}, ErrNotFound
		}
		return DocumentWithCounts{}, err
	}
	return out, nil
}

// ListWithCounts lists a user's documents newest first, without text or chunks.
func (r *PGRepo) ListWithCounts(ctx context.Context, userID string) ([]DocumentWithCounts, error) {
	query := `
SELECT ` + listColumns + `,` + countColumns + `
FROM documents d
WHERE d.user_id = $1
ORDER BY d.upload_date DESC, d.id DESC`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DocumentWithCounts, 0)
	for rows.Next() {
		doc, err := scanDocumentWithCounts(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// CompleteProcessing stores the extraction result and moves the document to ready.
func (r *PGRepo) CompleteProcessing(ctx context.Context, id, text string, chunks []string) error {
	const query = `
UPDATE documents
SET extracted_text = $2, chunks = $3, status = 'ready', updated_at = $4
WHERE id = $1 AND status = 'processing'`

	payload, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query, id, text, payload, time.Now().UTC())
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, id, res)
}

// FailProcessing moves the document to failed.
func (r *PGRepo) FailProcessing(ctx context.Context, id string) error {
	const query = `
UPDATE documents
SET status = 'failed', updated_at = $2
WHERE id = $1 AND status = 'processing'`

	res, err := r.DB.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return err
	}
	return r.checkTransition(ctx, id, res)
}

func (r *PGRepo) checkTransition(ctx context.Context, id string, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrNotProcessing
}

// TouchLastAccessed updates last_accessed for a user's document.
func (r *PGRepo) TouchLastAccessed(ctx context.Context, userID, id string, at time.Time) error {
	const query = `
UPDATE documents
SET last_accessed = $3
WHERE id = $1 AND user_id = $2`

	res, err := r.DB.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes a user's document. Flashcards and quizzes are not touched.
func (r *PGRepo) Delete(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM documents WHERE id = $1 AND user_id = $2`

	res, err := r.DB.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func documentDest(doc *Document, text *sql.NullString, chunks *[]byte, status *string) []any {
	return []any{
		&doc.ID,
		&doc.UserID,
		&doc.Title,
		&doc.FileName,
		&doc.FilePath,
		&doc.StorageKey,
		&doc.FileSize,
		status,
		text,
		chunks,
		&doc.UploadDate,
		&doc.LastAccessed,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	}
}

func finishDocument(doc *Document, text sql.NullString, chunks []byte, status string) error {
	doc.Status = Status(status)
	if text.Valid {
		s := text.String
		doc.ExtractedText = &s
	}
	if len(chunks) > 0 {
		if err := json.Unmarshal(chunks, &doc.Chunks); err != nil {
			return fmt.Errorf("decode chunks document=%s: %w", doc.ID, err)
		}
	}
	return nil
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var text sql.NullString
	var chunks []byte
	var status string
	if err := row.Scan(documentDest(&doc, &text, &chunks, &status)...); err != nil {
		return Document{}, err
	}
	if err := finishDocument(&doc, text, chunks, status); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func scanDocumentWithCounts(row rowScanner) (DocumentWithCounts, error) {
	var out DocumentWithCounts
	var text sql.NullString
	var chunks []byte
	var status string
	dest := append(documentDest(&out.Document, &text, &chunks, &status), &out.FlashcardCount, &out.QuizCount)
	if err := row.Scan(dest...); err != nil {
		return DocumentWithCounts{}, err
	}
	if err := finishDocument(&out.Document, text, chunks, status); err != nil {
		return DocumentWithCounts{}, err
	}
	return out, nil
}

var _ Repo = (*PGRepo)(nil)
