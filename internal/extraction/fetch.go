package extraction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxFetchBytes caps how much of a source document a strategy will download.
const maxFetchBytes = 50 << 20

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}

// fetchBytes downloads the source document. The per-attempt deadline set by
// the orchestrator travels in ctx, so an expired attempt aborts the request.
func fetchBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch source: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source body: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("source exceeds %d byte fetch limit", maxFetchBytes)
	}
	return data, nil
}
