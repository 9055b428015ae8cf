package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/joho/godotenv"

	"github.com/Lllllllleong/knowledgeflow/internal/apperr"
	"github.com/Lllllllleong/knowledgeflow/internal/auth"
	"github.com/Lllllllleong/knowledgeflow/internal/gcp"
	"github.com/Lllllllleong/knowledgeflow/internal/models"
	"github.com/Lllllllleong/knowledgeflow/internal/services"
)

var (
	extractorInstance *services.Extractor
	verifier          auth.Verifier
	limiter           auth.Limiter
	once              sync.Once
	initErr           error
)

func init() {
	// Register the HTTP function with the framework.
	functions.HTTP("HandleExtractDocument", handleExtractDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func initialize() {
	// Local runs pick up a .env file; in GCP this is a no-op.
	_ = godotenv.Load()

	verifier = newVerifierFromEnv()
	limiter = auth.NewTokenBucketLimiter(envInt("RATE_LIMIT_PER_MINUTE", 60), envInt("RATE_LIMIT_BURST", 10))
	extractorInstance, initErr = services.NewExtractor(context.Background())
}

func newVerifierFromEnv() auth.Verifier {
	if secret := gcp.GetEnv("EXTRACTION_SHARED_SECRET", ""); secret != "" {
		return auth.NewStaticVerifier(secret, gcp.GetEnv("EXTRACTION_SHARED_SECRET_CALLER", ""))
	}
	return auth.NewIDTokenVerifier(gcp.GetEnv("AUTH_AUDIENCE", ""))
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(gcp.GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// handleExtractDocument is the HTTP handler for one document extraction.
func handleExtractDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(initialize)
	if initErr != nil {
		slog.Error("CRITICAL: Extraction service initialization failed.", "error", initErr)
		writeError(w, http.StatusInternalServerError, "failed to initialize service", "")
		return
	}

	callerID, err := auth.Authenticate(r, verifier, limiter)
	if err != nil {
		writeError(w, apperr.HTTPStatus(err), err.Error(), "")
		return
	}

	var req models.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse JSON body", "")
		return
	}

	resp, err := extractorInstance.Process(r.Context(), callerID, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps the service error taxonomy onto the wire format.
func writeServiceError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)

	var exhausted *apperr.ExhaustedError
	if errors.As(err, &exhausted) {
		writeError(w, status, "extraction failed", exhausted.Error())
		return
	}
	var persistence *apperr.PersistenceError
	if errors.As(err, &persistence) {
		writeError(w, status, "persistence failure", persistence.Error())
		return
	}
	writeError(w, status, err.Error(), "")
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, models.ErrorResponse{Error: message, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}
