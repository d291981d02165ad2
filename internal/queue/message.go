package queue

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MessageVersion is the current payload schema version.
const MessageVersion = 1

// ErrMissingDocumentID marks a payload without a document id.
var ErrMissingDocumentID = errors.New("missing documentId")

// Message asks a worker to process one uploaded document.
type Message struct {
	DocumentID string `json:"documentId"`
	StorageKey string `json:"storageKey"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage builds a message stamped with the current version and time.
func NewMessage(documentID, storageKey, requestID string, now time.Time) Message {
	return Message{
		DocumentID: documentID,
		StorageKey: storageKey,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339Nano),
		Version:    MessageVersion,
	}
}

// Validate reports whether the message can be processed.
func (m Message) Validate() error {
	if strings.TrimSpace(m.DocumentID) == "" {
		return ErrMissingDocumentID
	}
	return nil
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
