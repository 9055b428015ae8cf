package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/joho/godotenv"

	"github.com/Lllllllleong/knowledgeflow/internal/services"
)

var (
	registrarInstance *services.UploadRegistrar
	once              sync.Once
	initErr           error
)

func init() {
	// Triggered by google.cloud.storage.object.v1.finalized events on the
	// uploads bucket.
	functions.CloudEvent("HandleUploadFinalized", handleUploadFinalized)
}

// main is required by the Go Functions Framework.
func main() {}

func handleUploadFinalized(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		_ = godotenv.Load()
		registrarInstance, initErr = services.NewUploadRegistrar(context.Background())
	})
	if initErr != nil {
		slog.Error("CRITICAL: Upload registrar initialization failed.", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := e.DataAs(&gcsEvent); err != nil {
		return fmt.Errorf("failed to decode GCS event data: %w", err)
	}
	return registrarInstance.Process(ctx, gcsEvent)
}
