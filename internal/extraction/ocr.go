package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultMistralOCRBaseURL = "https://api.mistral.ai/v1/ocr"

// MistralOCR is the OCR strategy, specialized for scanned and low-quality
// images. It sends the document URL to the Mistral OCR API and receives
// per-page markdown back.
type MistralOCR struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewMistralOCR builds the OCR strategy. The model defaults to
// mistral-ocr-latest and the base URL to the public Mistral API.
func NewMistralOCR(apiKey, model string) *MistralOCR {
	if model == "" {
		model = "mistral-ocr-latest"
	}
	return &MistralOCR{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultMistralOCRBaseURL,
		model:      model,
		httpClient: defaultHTTPClient(),
	}
}

func (m *MistralOCR) Name() string { return "mistral-ocr" }

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

func (m *MistralOCR) Extract(ctx context.Context, src Source) (any, error) {
	doc := ocrDocument{Type: "document_url", DocumentURL: src.URL}
	if src.IsImage() {
		doc = ocrDocument{Type: "image_url", ImageURL: src.URL}
	}

	payload, err := json.Marshal(ocrRequest{Model: m.model, Document: doc})
	if err != nil {
		return nil, fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ocr api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("ocr api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}

	pages := make([]string, 0, len(parsed.Pages))
	for _, page := range parsed.Pages {
		pages = append(pages, page.Markdown)
	}
	return strings.Join(pages, "\n\n"), nil
}
