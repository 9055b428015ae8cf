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
	functions.HTTP("HandleProcessProject", handleProcessProject)
}

// main is required by the Go Functions Framework.
func main() {}

func initialize() {
	_ = godotenv.Load()

	if secret := gcp.GetEnv("EXTRACTION_SHARED_SECRET", ""); secret != "" {
		verifier = auth.NewStaticVerifier(secret, gcp.GetEnv("EXTRACTION_SHARED_SECRET_CALLER", ""))
	} else {
		verifier = auth.NewIDTokenVerifier(gcp.GetEnv("AUTH_AUDIENCE", ""))
	}
	limiter = auth.NewTokenBucketLimiter(envInt("RATE_LIMIT_PER_MINUTE", 60), envInt("RATE_LIMIT_BURST", 10))
	extractorInstance, initErr = services.NewExtractor(context.Background())
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(gcp.GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// handleProcessProject re-runs extraction for a whole project.
func handleProcessProject(w http.ResponseWriter, r *http.Request) {
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

	var req models.ProjectProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse JSON body", "")
		return
	}

	resp, err := extractorInstance.ProcessProject(r.Context(), callerID, &req)
	if err != nil {
		var validation *apperr.ValidationError
		if errors.As(err, &validation) {
			writeError(w, http.StatusBadRequest, validation.Error(), "")
			return
		}
		writeError(w, http.StatusInternalServerError, "batch processing failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
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
