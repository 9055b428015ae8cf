package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/knowledgeflow/internal/gcp"
	"github.com/Lllllllleong/knowledgeflow/internal/models"
	"github.com/Lllllllleong/knowledgeflow/internal/store"
)

// RegistrarConfig holds configuration for the upload registrar.
type RegistrarConfig struct {
	ProjectID           string
	DocumentsCollection string
	ProjectsCollection  string
	WorkflowID          string
	WorkflowLocation    string
}

// ObjectHasher computes the content hash and size of a stored object,
// satisfied by *gcp.BlobStore.
type ObjectHasher interface {
	HashObject(ctx context.Context, bucket, object string) (string, int64, error)
}

// UploadRegistrar consumes GCS object-finalize events for the uploads bucket
// and creates the pending Document row that the extraction endpoint later
// processes. Uploads are deduplicated by content hash. When a workflow id is
// configured, each registration also triggers a Workflows execution that
// drives extraction for the new document.
type UploadRegistrar struct {
	store            store.DocumentStore
	blobs            ObjectHasher
	executionsClient *executions.Client
	config           RegistrarConfig
}

// GCSEvent is the payload of a storage object CloudEvent.
type GCSEvent struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// NewUploadRegistrar creates a new UploadRegistrar instance.
func NewUploadRegistrar(ctx context.Context) (*UploadRegistrar, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := RegistrarConfig{
		ProjectID:           projectID,
		DocumentsCollection: gcp.GetEnv("FIRESTORE_DOCUMENTS_COLLECTION", "documents"),
		ProjectsCollection:  gcp.GetEnv("FIRESTORE_PROJECTS_COLLECTION", "projects"),
		WorkflowLocation:    gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:          gcp.GetEnv("WORKFLOW_ID", ""),
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	blobStore, err := gcp.NewBlobStore(ctx, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}

	var executionsClient *executions.Client
	if config.WorkflowID != "" {
		executionsClient, err = executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
	}

	r := &UploadRegistrar{
		store:            store.NewFirestore(firestoreClient, config.DocumentsCollection, config.ProjectsCollection),
		blobs:            blobStore,
		executionsClient: executionsClient,
		config:           config,
	}
	slog.Info("Upload registrar initialized.", "workflowId", config.WorkflowID)
	return r, nil
}

// Process registers one uploaded object. The object path encodes ownership
// as <projectId>/<filename>; anything else is skipped.
func (r *UploadRegistrar) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Registering uploaded object.")

	projectID, filename, ok := parseUploadPath(e.Name)
	if !ok {
		logCtx.Warn("Object path does not match <projectId>/<filename>. Skipping.")
		return nil
	}

	fileHash, byteSize, err := r.blobs.HashObject(ctx, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to hash uploaded object", "error", err)
		return err
	}
	logCtx = logCtx.With("fileHash", fileHash)

	existingID, duplicate, err := r.store.FindDocumentByHash(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if duplicate {
		logCtx.Info("Duplicate upload detected. Skipping.", "existingDocId", existingID)
		return nil
	}

	doc := &models.Document{
		ProjectID:        projectID,
		StoragePath:      e.Name,
		OriginalFilename: filename,
		MimeType:         e.ContentType,
		ByteSize:         byteSize,
		AccessURL:        fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name),
		FileHash:         fileHash,
		ProcessingStatus: models.StatusPending,
		CreatedAt:        time.Now(),
	}
	documentID, err := r.store.CreateDocument(ctx, doc)
	if err != nil {
		logCtx.Error("Failed to create document row", "error", err)
		return err
	}
	logCtx = logCtx.With("documentId", documentID)
	logCtx.Info("Created pending document.")

	if r.executionsClient != nil {
		if err := r.triggerWorkflow(ctx, logCtx, documentID, projectID); err != nil {
			return err
		}
	}
	return nil
}

// parseUploadPath splits "<projectId>/<filename>". Nested paths are not
// registered; the web tier owns any other layout.
func parseUploadPath(object string) (projectID, filename string, ok bool) {
	projectID, filename, found := strings.Cut(object, "/")
	if !found || projectID == "" || filename == "" || strings.Contains(filename, "/") {
		return "", "", false
	}
	return projectID, filename, true
}

func (r *UploadRegistrar) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, documentID, projectID string) error {
	payload, err := json.Marshal(map[string]any{
		"documentId": documentID,
		"projectId":  projectID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}

	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", r.config.ProjectID, r.config.WorkflowLocation, r.config.WorkflowID),
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	}
	if _, err := r.executionsClient.CreateExecution(ctx, req); err != nil {
		logCtx.Error("Failed to trigger extraction workflow", "error", err)
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	logCtx.Info("Extraction workflow triggered.", "workflowId", r.config.WorkflowID)
	return nil
}
