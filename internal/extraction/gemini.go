package extraction

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/knowledgeflow/internal/gcp"
)

// GeminiParser is the structured document parser strategy. It is the
// preferred first choice for PDFs and images: the model handles complex
// layouts mixing text, tables and embedded images.
type GeminiParser struct {
	model      *genai.GenerativeModel
	httpClient *http.Client
}

// NewGeminiParser wraps the pre-configured document parser model.
func NewGeminiParser(client *gcp.VertexClient) *GeminiParser {
	return &GeminiParser{
		model:      client.DocumentParserModel,
		httpClient: defaultHTTPClient(),
	}
}

func (p *GeminiParser) Name() string { return "gemini-document-parser" }

func (p *GeminiParser) Extract(ctx context.Context, src Source) (any, error) {
	mimeType := NormalizeMIMEType(src.MIMEType)
	prompt := genai.Text(gcp.DocumentParserUserPrompt)

	// gs:// objects are passed by reference; anything else is fetched and
	// sent inline.
	var filePart genai.Part
	if strings.HasPrefix(src.URL, "gs://") {
		filePart = genai.FileData{MIMEType: mimeType, FileURI: src.URL}
	} else {
		data, err := fetchBytes(ctx, p.httpClient, src.URL)
		if err != nil {
			return nil, err
		}
		filePart = genai.Blob{MIMEType: mimeType, Data: data}
	}

	resp, err := p.model.GenerateContent(ctx, filePart, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	content := responseText(resp)
	if err := checkRefusal(content); err != nil {
		return nil, err
	}
	return content, nil
}

// refusalPhrases flag model responses that decline instead of extracting.
// A refusal must fail the attempt so the orchestrator can fall back.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

func checkRefusal(content string) error {
	lower := strings.ToLower(content)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("model response indicates refusal")
		}
	}
	return nil
}

// responseText concatenates the text parts of the first candidate and strips
// any backtick fences the model wrapped around the output.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}

	content := strings.TrimSpace(b.String())
	content = strings.TrimPrefix(content, "```markdown")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
