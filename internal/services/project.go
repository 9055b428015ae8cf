package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/knowledgeflow/internal/apperr"
	"github.com/Lllllllleong/knowledgeflow/internal/models"
)

// ProcessProject re-runs extraction for every pending or failed document in
// a project, with bounded concurrency. Per-document failures are counted,
// not propagated: a batch run always reports how far it got.
func (s *Extractor) ProcessProject(ctx context.Context, callerID string, req *models.ProjectProcessRequest) (*models.ProjectProcessResponse, error) {
	if req.ProjectID == "" {
		return nil, apperr.Validationf("missing required field: projectId")
	}
	logCtx := slog.With("projectId", req.ProjectID, "caller", callerID)

	docs, err := s.store.ListDocumentsByStatus(ctx, req.ProjectID, []string{models.StatusPending, models.StatusFailed})
	if err != nil {
		return nil, &apperr.PersistenceError{Err: fmt.Errorf("list documents for project %s: %w", req.ProjectID, err)}
	}
	logCtx.Info("Starting batch extraction.", "documentCount", len(docs))

	var processed, failed atomic.Int64
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.config.BatchConcurrency)

	for _, doc := range docs {
		eg.Go(func() error {
			extractReq := &models.ExtractRequest{
				DocumentID: doc.ID,
				ProjectID:  doc.ProjectID,
				FileURL:    doc.AccessURL,
				FileName:   doc.OriginalFilename,
				FileType:   doc.MimeType,
			}
			if _, err := s.Process(gctx, callerID, extractReq); err != nil {
				failed.Add(1)
				logCtx.Warn("Batch document failed.", "documentId", doc.ID, "error", err)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	_ = eg.Wait()

	logCtx.Info("Batch extraction finished.", "processed", processed.Load(), "failed", failed.Load())
	return &models.ProjectProcessResponse{
		Success:   true,
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
		Message:   fmt.Sprintf("Processed %d of %d documents.", processed.Load(), len(docs)),
	}, nil
}
