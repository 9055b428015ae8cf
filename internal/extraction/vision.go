package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const visionExtractionPrompt = "Extract the complete textual content of the provided document. Preserve structure, lists and tables as markdown. Return only the extracted text with no commentary."

// VisionProvider describes one OpenAI-compatible chat-completions backend.
// Providers of the same capability class are interchangeable; the
// orchestrator tries them in the configured priority order.
type VisionProvider struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
}

// VisionExtractor is the general-purpose vision/text AI strategy. For
// text-bearing inputs the raw text travels in the prompt; images and PDFs
// are sent as base64 data URLs.
type VisionExtractor struct {
	provider   VisionProvider
	httpClient *http.Client
}

// NewVisionExtractor builds one strategy instance per provider.
func NewVisionExtractor(provider VisionProvider) *VisionExtractor {
	provider.BaseURL = strings.TrimRight(strings.TrimSpace(provider.BaseURL), "/")
	return &VisionExtractor{
		provider:   provider,
		httpClient: defaultHTTPClient(),
	}
}

func (v *VisionExtractor) Name() string { return "vision-" + v.provider.Name }

type chatContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (v *VisionExtractor) Extract(ctx context.Context, src Source) (any, error) {
	data, err := fetchBytes(ctx, v.httpClient, src.URL)
	if err != nil {
		return nil, err
	}

	var content any
	if src.IsPlainText() {
		content = visionExtractionPrompt + "\n\n" + string(data)
	} else {
		dataURL := fmt.Sprintf("data:%s;base64,%s", NormalizeMIMEType(src.MIMEType), base64.StdEncoding.EncodeToString(data))
		imagePart := chatContentPart{Type: "image_url"}
		imagePart.ImageURL = &struct {
			URL string `json:"url"`
		}{URL: dataURL}
		content = []chatContentPart{
			{Type: "text", Text: visionExtractionPrompt},
			imagePart,
		}
	}

	payload, err := json.Marshal(chatRequest{
		Model:    v.provider.Model,
		Messages: []chatMessage{{Role: "user", Content: content}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.provider.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.provider.APIKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", v.provider.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%s returned status %d: %s", v.provider.Name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", v.provider.Name, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s error: %s", v.provider.Name, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", v.provider.Name)
	}

	answer := parsed.Choices[0].Message.Content
	if err := checkRefusal(answer); err != nil {
		return nil, err
	}
	return answer, nil
}
