package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Lllllllleong/knowledgeflow/internal/models"
	"github.com/Lllllllleong/knowledgeflow/internal/store"
)

// SnapshotWriter persists the rebuilt knowledge-base text to the blob store.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, objectName, content string) error
}

// KnowledgeAggregator recomputes a project's concatenated knowledge base
// from its completed documents. Rebuilds are full and idempotent: the same
// document set always reproduces byte-identical output. Failed and pending
// documents are silently excluded, never retried here.
type KnowledgeAggregator struct {
	store     store.DocumentStore
	snapshots SnapshotWriter

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKnowledgeAggregator creates an aggregator. snapshots may be nil when no
// snapshot bucket is configured.
func NewKnowledgeAggregator(docStore store.DocumentStore, snapshots SnapshotWriter) *KnowledgeAggregator {
	return &KnowledgeAggregator{
		store:     docStore,
		snapshots: snapshots,
		locks:     make(map[string]*sync.Mutex),
	}
}

// BuildKnowledgeBase concatenates the completed documents in a stable order:
// original filename ascending, document id as tie-break. Each document gets
// a header block; blocks are joined with a blank line.
func BuildKnowledgeBase(docs []models.Document) string {
	completed := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.ProcessingStatus == models.StatusCompleted {
			completed = append(completed, doc)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		if completed[i].OriginalFilename != completed[j].OriginalFilename {
			return completed[i].OriginalFilename < completed[j].OriginalFilename
		}
		return completed[i].ID < completed[j].ID
	})

	blocks := make([]string, 0, len(completed))
	for _, doc := range completed {
		blocks = append(blocks, fmt.Sprintf("--- Document: %s ---\n%s", doc.OriginalFilename, doc.ExtractedText))
	}
	return strings.Join(blocks, "\n\n")
}

// Rebuild recomputes one project's knowledge base. Rebuilds for the same
// project are serialized: two documents completing concurrently would
// otherwise race on the read-then-write cycle and the later, stale write
// would win.
func (a *KnowledgeAggregator) Rebuild(ctx context.Context, projectID string) error {
	lock := a.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	docs, err := a.store.ListCompletedDocuments(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list completed documents for project %s: %w", projectID, err)
	}

	knowledgeBase := BuildKnowledgeBase(docs)
	if err := a.store.UpdateProjectKnowledge(ctx, projectID, knowledgeBase, len(docs)); err != nil {
		return err
	}
	slog.Info("Knowledge base rebuilt.", "projectId", projectID, "documentCount", len(docs), "totalCharacters", len(knowledgeBase))

	if a.snapshots != nil {
		objectName := fmt.Sprintf("%s/knowledge-base.txt", projectID)
		if err := a.snapshots.SaveSnapshot(ctx, objectName, knowledgeBase); err != nil {
			// The snapshot is a convenience copy; Firestore stays authoritative.
			slog.Warn("Knowledge snapshot write failed.", "projectId", projectID, "error", err)
		}
	}
	return nil
}

func (a *KnowledgeAggregator) projectLock(projectID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[projectID] = lock
	}
	return lock
}
