package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Document Parser Model Prompts ---
const DocumentParserSystemPrompt = "You are a structured document parser. Your task is to extract the complete textual content of a document (PDF or image) and return it as markdown. Accuracy, detail, and information preservation are of utmost importance."
const DocumentParserUserPrompt = `You will be provided with a document (PDF or image):

Follow these instructions to extract its content as markdown:

Text: Extract all text content directly into markdown text.
Lists: Extract all lists into markdown lists, maintaining the original structure and formatting.
Images: Replace each embedded image with a descriptive text that accurately describes the image's content.
Tables: Extract all tables into markdown tables. If a table contains merged cells, normalize the table by copying the content from the parent cells into the normalized child cells so that no information is lost.
Headers and Footers: Ignore irrelevant content in the header and footer, such as the publishing company's name, logo, address, or page numbers. Focus on preserving the core content of the document.

Your primary goal is to preserve the integrity and completeness of the document's content in the output. Return ONLY the extracted markdown. Do not include any preamble and do not surround the output with backtick fences unless the content itself is a code block.`

// VertexClient holds the pre-configured generative model used by the
// structured document parser strategy.
type VertexClient struct {
	DocumentParserModel *genai.GenerativeModel
	baseClient          *genai.Client
}

// NewVertexClient creates a client with the document parser model configured.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	parserModel := baseClient.GenerativeModel(modelName)
	parserModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(DocumentParserSystemPrompt)},
	}
	parserModel.GenerationConfig = genai.GenerationConfig{
		// Low temperature for deterministic extraction output.
		Temperature: genai.Ptr[float32](0.0),
	}
	parserModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		DocumentParserModel: parserModel,
		baseClient:          baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
