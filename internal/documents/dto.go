package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID             string    `json:"_id"`
	UserID         string    `json:"userId"`
	Title          string    `json:"title"`
	FileName       string    `json:"fileName"`
	FilePath       string    `json:"filePath"`
	FileSize       int64     `json:"fileSize"`
	Status         Status    `json:"status"`
	ExtractedText  *string   `json:"extractedText,omitempty"`
	Chunks         []string  `json:"chunks,omitempty"`
	UploadDate     time.Time `json:"uploadDate"`
	LastAccessed   time.Time `json:"lastAccessed"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	FlashcardCount *int      `json:"flashcardCount,omitempty"`
	QuizCount      *int      `json:"quizCount,omitempty"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		ID:            doc.ID,
		UserID:        doc.UserID,
		Title:         doc.Title,
		FileName:      doc.FileName,
		FilePath:      doc.FilePath,
		FileSize:      doc.FileSize,
		Status:        doc.Status,
		ExtractedText: doc.ExtractedText,
		Chunks:        doc.Chunks,
		UploadDate:    doc.UploadDate,
		LastAccessed:  doc.LastAccessed,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func toResponseWithCounts(doc DocumentWithCounts) DocumentResponse {
	resp := toResponse(doc.Document)
	flashcards, quizzes := doc.FlashcardCount, doc.QuizCount
	resp.FlashcardCount = &flashcards
	resp.QuizCount = &quizzes
	return resp
}

// stripBody drops the heavy fields from list views.
func stripBody(doc Document) Document {
	doc.ExtractedText = nil
	doc.Chunks = nil
	return doc
}
