package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/knowledgeflow/internal/models"
)

// Firestore implements DocumentStore on top of Cloud Firestore.
type Firestore struct {
	client    *firestore.Client
	documents string
	projects  string
}

// NewFirestore wraps an existing client with the collection names to use.
func NewFirestore(client *firestore.Client, documentsCollection, projectsCollection string) *Firestore {
	if documentsCollection == "" {
		documentsCollection = "documents"
	}
	if projectsCollection == "" {
		projectsCollection = "projects"
	}
	return &Firestore{
		client:    client,
		documents: documentsCollection,
		projects:  projectsCollection,
	}
}

func (f *Firestore) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	snap, err := f.client.Collection(f.documents).Doc(documentID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", documentID, err)
	}

	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", documentID, err)
	}
	doc.ID = snap.Ref.ID
	return &doc, nil
}

func (f *Firestore) CreateDocument(ctx context.Context, doc *models.Document) (string, error) {
	ref, _, err := f.client.Collection(f.documents).Add(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to create document row: %w", err)
	}
	return ref.ID, nil
}

func (f *Firestore) FindDocumentByHash(ctx context.Context, fileHash string) (string, bool, error) {
	docs, err := f.client.Collection(f.documents).
		Where("fileHash", "==", fileHash).
		Limit(1).
		Documents(ctx).
		GetAll()
	if err != nil {
		return "", false, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) > 0 {
		return docs[0].Ref.ID, true, nil
	}
	return "", false, nil
}

func (f *Firestore) SetProcessing(ctx context.Context, documentID string) error {
	// Re-submission starts from a clean slate: the output of any prior
	// completed run is removed so extractedText/textLength exist only on
	// documents whose current status is completed.
	return f.update(ctx, documentID, []firestore.Update{
		{Path: "processingStatus", Value: models.StatusProcessing},
		{Path: "extractedText", Value: firestore.Delete},
		{Path: "textLength", Value: firestore.Delete},
		{Path: "processingError", Value: firestore.Delete},
		{Path: "processingNotes", Value: firestore.Delete},
	})
}

func (f *Firestore) SetCompleted(ctx context.Context, documentID, extractedText, notes string) error {
	return f.update(ctx, documentID, []firestore.Update{
		{Path: "processingStatus", Value: models.StatusCompleted},
		{Path: "extractedText", Value: extractedText},
		{Path: "textLength", Value: len(extractedText)},
		{Path: "processingNotes", Value: notes},
		{Path: "processingError", Value: firestore.Delete},
	})
}

func (f *Firestore) SetFailed(ctx context.Context, documentID, reason string) error {
	return f.update(ctx, documentID, []firestore.Update{
		{Path: "processingStatus", Value: models.StatusFailed},
		{Path: "processingError", Value: reason},
		{Path: "extractedText", Value: firestore.Delete},
		{Path: "textLength", Value: firestore.Delete},
	})
}

func (f *Firestore) update(ctx context.Context, documentID string, updates []firestore.Update) error {
	_, err := f.client.Collection(f.documents).Doc(documentID).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", documentID, err)
	}
	return nil
}

func (f *Firestore) ListCompletedDocuments(ctx context.Context, projectID string) ([]models.Document, error) {
	return f.ListDocumentsByStatus(ctx, projectID, []string{models.StatusCompleted})
}

func (f *Firestore) ListDocumentsByStatus(ctx context.Context, projectID string, statuses []string) ([]models.Document, error) {
	snaps, err := f.client.Collection(f.documents).
		Where("projectId", "==", projectID).
		Where("processingStatus", "in", statuses).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents for project %s: %w", projectID, err)
	}

	docs := make([]models.Document, 0, len(snaps))
	for _, snap := range snaps {
		var doc models.Document
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", snap.Ref.ID, err)
		}
		doc.ID = snap.Ref.ID
		docs = append(docs, doc)
	}
	return docs, nil
}

func (f *Firestore) UpdateProjectKnowledge(ctx context.Context, projectID, knowledgeBase string, documentCount int) error {
	// Set with merge so a first-time rebuild creates the project row.
	_, err := f.client.Collection(f.projects).Doc(projectID).Set(ctx, map[string]any{
		"knowledgeBase":   knowledgeBase,
		"totalCharacters": len(knowledgeBase),
		"documentCount":   documentCount,
		"updatedAt":       time.Now(),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update project %s knowledge base: %w", projectID, err)
	}
	return nil
}
