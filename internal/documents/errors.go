package documents

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrNotProcessing      = errors.New("document is not processing")
	ErrProcessing         = errors.New("processing failed")
	ErrQueueNotConfigured = errors.New("job queue not configured")
)

// User-facing messages.
const (
	MsgFileRequired  = "Please upload a PDF file"
	MsgTitleRequired = "Please provide a document title"
	MsgOnlyPDF       = "Only PDF files are allowed"
	MsgBadFileName   = "Invalid file name"
	MsgFileTooLarge  = "File is too large"
	MsgUploaded      = "Document uploaded successfully. Processing in progress..."
	MsgNotFound      = "Document not found"
	MsgDeleted       = "Document deleted successfully"
	MsgServerError   = "Server error"
)

// ValidationError carries a message that is safe to return to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
