package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo. It also keeps flashcard
// and quiz references so counts behave like the database-backed repos.
type MemoryRepo struct {
	mu         sync.RWMutex
	docs       map[string]Document
	flashcards []Flashcard
	quizzes    []Quiz
	now        func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs: make(map[string]Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = cloneDocument(doc)
	return nil
}

// GetByID returns a document by ID for a user.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok || doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// GetWithCounts returns a document and its flashcard/quiz counts.
func (r *MemoryRepo) GetWithCounts(ctx context.Context, userID, id string) (DocumentWithCounts, error) {
	if err := ctx.Err(); err != nil {
		return DocumentWithCounts{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok || doc.UserID != userID {
		return DocumentWithCounts{}, ErrNotFound
	}
	return r.withCountsLocked(cloneDocument(doc)), nil
}

// ListWithCounts returns the user's documents, newest upload first.
func (r *MemoryRepo) ListWithCounts(ctx context.Context, userID string) ([]DocumentWithCounts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DocumentWithCounts, 0)
	for _, doc := range r.docs {
		if doc.UserID != userID {
			continue
		}
		out = append(out, r.withCountsLocked(stripBody(doc)))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UploadDate.Equal(out[j].UploadDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].UploadDate.After(out[j].UploadDate)
	})
	return out, nil
}

// CompleteProcessing records the extraction result and marks the document ready.
func (r *MemoryRepo) CompleteProcessing(ctx context.Context, id, text string, chunks []string) error {
	return r.transition(ctx, id, func(doc *Document) {
		doc.Status = StatusReady
		doc.ExtractedText = &text
		doc.Chunks = append([]string(nil), chunks...)
	})
}

// FailProcessing marks the document failed.
func (r *MemoryRepo) FailProcessing(ctx context.Context, id string) error {
	return r.transition(ctx, id, func(doc *Document) {
		doc.Status = StatusFailed
	})
}

func (r *MemoryRepo) transition(ctx context.Context, id string, apply func(*Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return ErrNotFound
	}
	if doc.Status != StatusProcessing {
		return ErrNotProcessing
	}
	apply(&doc)
	doc.UpdatedAt = r.now()
	r.docs[id] = doc
	return nil
}

// TouchLastAccessed sets lastAccessed for a user's document.
func (r *MemoryRepo) TouchLastAccessed(ctx context.Context, userID, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.UserID != userID {
		return ErrNotFound
	}
	doc.LastAccessed = at
	r.docs[id] = doc
	return nil
}

// Delete removes a user's document. Flashcards and quizzes are left in place.
func (r *MemoryRepo) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.UserID != userID {
		return ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

// AddFlashcard records a flashcard set referencing a document.
func (r *MemoryRepo) AddFlashcard(f Flashcard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flashcards = append(r.flashcards, f)
}

// AddQuiz records a quiz referencing a document.
func (r *MemoryRepo) AddQuiz(q Quiz) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quizzes = append(r.quizzes, q)
}

// CountOrphans returns flashcards and quizzes whose document no longer exists.
func (r *MemoryRepo) CountOrphans() (flashcards, quizzes int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.flashcards {
		if _, ok := r.docs[f.DocumentID]; !ok {
			flashcards++
		}
	}
	for _, q := range r.quizzes {
		if _, ok := r.docs[q.DocumentID]; !ok {
			quizzes++
		}
	}
	return flashcards, quizzes
}

func (r *MemoryRepo) withCountsLocked(doc Document) DocumentWithCounts {
	out := DocumentWithCounts{Document: doc}
	for _, f := range r.flashcards {
		if f.DocumentID == doc.ID && f.UserID == doc.UserID {
			out.FlashcardCount++
		}
	}
	for _, q := range r.quizzes {
		if q.DocumentID == doc.ID && q.UserID == doc.UserID {
			out.QuizCount++
		}
	}
	return out
}

func cloneDocument(doc Document) Document {
	if doc.ExtractedText != nil {
		text := *doc.ExtractedText
		doc.ExtractedText = &text
	}
	if doc.Chunks != nil {
		doc.Chunks = append([]string(nil), doc.Chunks...)
	}
	return doc
}

var _ Repo = (*MemoryRepo)(nil)
