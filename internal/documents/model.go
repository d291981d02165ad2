package documents

import "time"

// Status is the processing state of a document.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Document represents an uploaded PDF owned by a user.
type Document struct {
	ID       string
	UserID   string
	Title    string
	FileName string
	// FilePath is the public URL of the stored file.
	FilePath string
	// StorageKey is the stored file name; it is the last segment of FilePath.
	StorageKey    string
	FileSize      int64
	Status        Status
	ExtractedText *string
	Chunks        []string
	UploadDate    time.Time
	LastAccessed  time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DocumentWithCounts is a document read together with its study material counts.
type DocumentWithCounts struct {
	Document
	FlashcardCount int
	QuizCount      int
}

// Flashcard is a flashcard set generated from a document. Only the
// references needed for counting are modelled here.
type Flashcard struct {
	ID         string
	UserID     string
	DocumentID string
	CreatedAt  time.Time
}

// Quiz is a quiz generated from a document.
type Quiz struct {
	ID         string
	UserID     string
	DocumentID string
	CreatedAt  time.Time
}
