package models

import "time"

// Processing status values for a Document. A document is created as
// StatusPending at upload time and is mutated exclusively by the extraction
// service afterwards.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document is the Firestore record for one uploaded file. ExtractedText and
// TextLength are set if and only if ProcessingStatus is StatusCompleted.
type Document struct {
	ID               string    `firestore:"-"`
	ProjectID        string    `firestore:"projectId,omitempty"`
	OwnerID          string    `firestore:"ownerId,omitempty"`
	StoragePath      string    `firestore:"storagePath,omitempty"`
	OriginalFilename string    `firestore:"originalFilename,omitempty"`
	MimeType         string    `firestore:"mimeType,omitempty"`
	ByteSize         int64     `firestore:"byteSize,omitempty"`
	AccessURL        string    `firestore:"accessUrl,omitempty"`
	FileHash         string    `firestore:"fileHash,omitempty"`
	ExtractedText    string    `firestore:"extractedText,omitempty"`
	TextLength       int       `firestore:"textLength,omitempty"`
	ProcessingStatus string    `firestore:"processingStatus,omitempty"`
	ProcessingError  string    `firestore:"processingError,omitempty"`
	ProcessingNotes  string    `firestore:"processingNotes,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty"`
}

// Project is the Firestore record aggregating the documents that feed one
// knowledge base. KnowledgeBase and TotalCharacters are derived values,
// rewritten in full after every successful document extraction.
type Project struct {
	ID              string    `firestore:"-"`
	OwnerID         string    `firestore:"ownerId,omitempty"`
	KnowledgeBase   string    `firestore:"knowledgeBase,omitempty"`
	TotalCharacters int       `firestore:"totalCharacters,omitempty"`
	DocumentCount   int       `firestore:"documentCount,omitempty"`
	UpdatedAt       time.Time `firestore:"updatedAt,omitempty"`
}
