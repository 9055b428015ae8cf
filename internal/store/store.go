// Package store is the metadata-store boundary: row-oriented persistence for
// documents and projects. The extraction services depend on the interface;
// production wires the Firestore implementation.
package store

import (
	"context"
	"errors"

	"github.com/Lllllllleong/knowledgeflow/internal/models"
)

// ErrNotFound is returned when a document or project row does not exist.
var ErrNotFound = errors.New("not found")

// DocumentStore persists Document and Project rows.
type DocumentStore interface {
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
	CreateDocument(ctx context.Context, doc *models.Document) (string, error)
	FindDocumentByHash(ctx context.Context, fileHash string) (string, bool, error)

	// Lifecycle transitions. SetProcessing clears any prior outcome so a
	// re-submission starts from a clean slate; last successful run wins.
	SetProcessing(ctx context.Context, documentID string) error
	SetCompleted(ctx context.Context, documentID, extractedText, notes string) error
	SetFailed(ctx context.Context, documentID, reason string) error

	ListCompletedDocuments(ctx context.Context, projectID string) ([]models.Document, error)
	ListDocumentsByStatus(ctx context.Context, projectID string, statuses []string) ([]models.Document, error)

	UpdateProjectKnowledge(ctx context.Context, projectID, knowledgeBase string, documentCount int) error
}
