package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/knowledgeflow/internal/apperr"
	"github.com/Lllllllleong/knowledgeflow/internal/extraction"
	"github.com/Lllllllleong/knowledgeflow/internal/gcp"
	"github.com/Lllllllleong/knowledgeflow/internal/models"
	"github.com/Lllllllleong/knowledgeflow/internal/store"
)

// ExtractorConfig holds all configuration for the extraction service.
type ExtractorConfig struct {
	ProjectID           string
	VertexAIRegion      string
	ParserModel         string
	ParserDisabled      bool
	MistralAPIKey       string
	OCRModel            string
	DocumentsCollection string
	ProjectsCollection  string
	UploadsBucket       string
	SnapshotBucket      string
	SignedURLTTL        time.Duration
	MinResultLength     int
	BatchConcurrency    int
}

// loadExtractorConfig loads and validates the environment for this service.
func loadExtractorConfig() (*ExtractorConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	return &ExtractorConfig{
		ProjectID:           projectID,
		VertexAIRegion:      gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ParserModel:         gcp.GetEnv("DOCUMENT_PARSER_MODEL", "gemini-1.5-pro"),
		ParserDisabled:      gcp.GetEnv("DOCUMENT_PARSER_DISABLED", "") == "true",
		MistralAPIKey:       gcp.GetEnv("MISTRAL_API_KEY", ""),
		OCRModel:            gcp.GetEnv("MISTRAL_OCR_MODEL", ""),
		DocumentsCollection: gcp.GetEnv("FIRESTORE_DOCUMENTS_COLLECTION", "documents"),
		ProjectsCollection:  gcp.GetEnv("FIRESTORE_PROJECTS_COLLECTION", "projects"),
		UploadsBucket:       gcp.GetEnv("UPLOADS_BUCKET", ""),
		SnapshotBucket:      gcp.GetEnv("KNOWLEDGE_SNAPSHOT_BUCKET", ""),
		SignedURLTTL:        time.Duration(envInt("SIGNED_URL_TTL_SECONDS", 900)) * time.Second,
		MinResultLength:     envInt("MIN_RESULT_LENGTH", extraction.DefaultMinResultLength),
		BatchConcurrency:    envInt("BATCH_CONCURRENCY", 4),
	}, nil
}

func envInt(key string, fallback int) int {
	value, err := strconv.Atoi(gcp.GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

// URLSigner issues a short-lived download URL for an uploaded object.
type URLSigner interface {
	SignedDownloadURL(objectName string, ttl time.Duration) (string, error)
}

// orchestrator is the strategy-pipeline boundary, satisfied by
// *extraction.Orchestrator.
type orchestrator interface {
	Run(ctx context.Context, src extraction.Source) (string, string, error)
}

// Extractor drives a document's processing lifecycle: request validation,
// the pending->processing->completed/failed state machine, strategy
// orchestration, and the knowledge-base rebuild on success.
type Extractor struct {
	store        store.DocumentStore
	signer       URLSigner
	orchestrator orchestrator
	knowledge    *KnowledgeAggregator
	config       ExtractorConfig
}

// NewExtractor wires the production dependencies from the environment.
func NewExtractor(ctx context.Context) (*Extractor, error) {
	config, err := loadExtractorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	blobStore, err := gcp.NewBlobStore(ctx, config.UploadsBucket, config.SnapshotBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}
	docStore := store.NewFirestore(firestoreClient, config.DocumentsCollection, config.ProjectsCollection)

	var parser extraction.Strategy
	if !config.ParserDisabled {
		vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.ParserModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		parser = extraction.NewGeminiParser(vertexClient)
	}

	var ocr extraction.Strategy
	if config.MistralAPIKey != "" {
		ocr = extraction.NewMistralOCR(config.MistralAPIKey, config.OCRModel)
	}

	orch := extraction.NewOrchestrator(extraction.Options{
		Parser:          parser,
		OCR:             ocr,
		Vision:          visionProvidersFromEnv(),
		PDFText:         extraction.NewPDFText(),
		PlainText:       extraction.NewPlainText(),
		MinResultLength: config.MinResultLength,
	})

	var snapshots SnapshotWriter
	if config.SnapshotBucket != "" {
		snapshots = blobStore
	}

	e := &Extractor{
		store:        docStore,
		signer:       blobStore,
		orchestrator: orch,
		knowledge:    NewKnowledgeAggregator(docStore, snapshots),
		config:       *config,
	}
	slog.Info("Extraction service initialized.", "parserEnabled", parser != nil, "ocrEnabled", ocr != nil)
	return e, nil
}

// visionProvidersFromEnv builds the ordered vision provider sub-list. The
// order here is the fallback priority for deployments without the
// structured parser.
func visionProvidersFromEnv() []extraction.Strategy {
	var providers []extraction.Strategy
	if key := gcp.GetEnv("OPENAI_API_KEY", ""); key != "" {
		providers = append(providers, extraction.NewVisionExtractor(extraction.VisionProvider{
			Name:    "openai",
			BaseURL: gcp.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  key,
			Model:   gcp.GetEnv("OPENAI_VISION_MODEL", "gpt-4o-mini"),
		}))
	}
	if key := gcp.GetEnv("OPENROUTER_API_KEY", ""); key != "" {
		providers = append(providers, extraction.NewVisionExtractor(extraction.VisionProvider{
			Name:    "openrouter",
			BaseURL: gcp.GetEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			APIKey:  key,
			Model:   gcp.GetEnv("OPENROUTER_VISION_MODEL", "google/gemini-flash-1.5"),
		}))
	}
	return providers
}

// Process handles one extraction request end to end.
func (s *Extractor) Process(ctx context.Context, callerID string, req *models.ExtractRequest) (*models.ExtractResponse, error) {
	executionID := uuid.NewString()
	logCtx := slog.With("documentId", req.DocumentID, "projectId", req.ProjectID, "caller", callerID, "executionId", executionID)

	if err := validateRequest(req); err != nil {
		// A malformed request still gets recorded on the document when one
		// is identifiable.
		if req.DocumentID != "" {
			if ferr := s.store.SetFailed(ctx, req.DocumentID, err.Error()); ferr != nil {
				logCtx.Error("Failed to record validation failure.", "error", ferr)
			}
		}
		return nil, err
	}

	if !extraction.Supported(req.FileType) {
		reason := fmt.Sprintf("unsupported file type %q", req.FileType)
		logCtx.Warn("Rejecting unsupported file type.", "fileType", req.FileType)
		if err := s.store.SetFailed(ctx, req.DocumentID, reason); err != nil {
			logCtx.Error("Failed to record validation failure.", "error", err)
		}
		return nil, apperr.Validationf("%s", reason)
	}

	if err := s.store.SetProcessing(ctx, req.DocumentID); err != nil {
		return nil, &apperr.PersistenceError{Err: fmt.Errorf("mark processing: %w", err)}
	}
	logCtx.Info("Document marked processing.")

	src := extraction.Source{
		URL:      req.FileURL,
		Filename: req.FileName,
		MIMEType: req.FileType,
	}
	s.resolveSource(ctx, logCtx, req, &src)

	text, method, err := s.orchestrator.Run(ctx, src)
	if err != nil {
		logCtx.Warn("Extraction failed.", "error", err)
		if ferr := s.store.SetFailed(ctx, req.DocumentID, err.Error()); ferr != nil {
			logCtx.Error("CRITICAL: Failed to update status to failed after a processing error.", "updateError", ferr)
		}
		return nil, err
	}

	notes := fmt.Sprintf("extracted via %s", method)
	if err := s.store.SetCompleted(ctx, req.DocumentID, text, notes); err != nil {
		logCtx.Error("Extraction succeeded but persistence failed. Caller must retry.", "error", err)
		return nil, &apperr.PersistenceError{Err: fmt.Errorf("persist extraction result: %w", err)}
	}
	logCtx.Info("Extraction complete.", "method", method, "textLength", len(text))

	if err := s.knowledge.Rebuild(ctx, req.ProjectID); err != nil {
		logCtx.Error("Knowledge base rebuild failed.", "error", err)
		return nil, &apperr.PersistenceError{Err: fmt.Errorf("rebuild knowledge base: %w", err)}
	}

	return &models.ExtractResponse{
		Success:          true,
		TextLength:       len(text),
		ExtractionMethod: method,
		Message:          fmt.Sprintf("Document %s processed successfully.", req.FileName),
	}, nil
}

func validateRequest(req *models.ExtractRequest) error {
	fields := []struct {
		name  string
		value string
	}{
		{"documentId", req.DocumentID},
		{"projectId", req.ProjectID},
		{"fileUrl", req.FileURL},
		{"fileName", req.FileName},
		{"fileType", req.FileType},
	}
	var missing []string
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return apperr.Validationf("missing required field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// resolveSource asks the blob store for a time-limited signed URL and fills
// in metadata from the stored row, falling back to the caller-supplied URL
// when signing is unavailable.
func (s *Extractor) resolveSource(ctx context.Context, logCtx *slog.Logger, req *models.ExtractRequest, src *extraction.Source) {
	doc, err := s.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		logCtx.Warn("Could not load document row for signing. Using supplied URL.", "error", err)
		return
	}
	src.ByteSize = doc.ByteSize
	if doc.StoragePath == "" {
		return
	}
	signed, err := s.signer.SignedDownloadURL(doc.StoragePath, s.config.SignedURLTTL)
	if err != nil {
		logCtx.Warn("Signed URL issuance failed. Using supplied URL.", "error", err)
		return
	}
	src.URL = signed
}
