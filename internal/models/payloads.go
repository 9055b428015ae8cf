package models

// These structs define the JSON payloads for HTTP requests and responses
// handled by the extraction Cloud Functions.

// ExtractRequest is the input for the extract-document function.
type ExtractRequest struct {
	DocumentID string `json:"documentId"`
	ProjectID  string `json:"projectId"`
	FileURL    string `json:"fileUrl"`
	FileName   string `json:"fileName"`
	FileType   string `json:"fileType"`
}

// ExtractResponse is the output of the extract-document function on success.
type ExtractResponse struct {
	Success          bool   `json:"success"`
	TextLength       int    `json:"textLength"`
	ExtractionMethod string `json:"extractionMethod"`
	Message          string `json:"message"`
}

// ErrorResponse is the body returned for any failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ProjectProcessRequest is the input for the process-project function.
type ProjectProcessRequest struct {
	ProjectID string `json:"projectId"`
}

// ProjectProcessResponse summarizes a batch run over a project's documents.
type ProjectProcessResponse struct {
	Success   bool   `json:"success"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Message   string `json:"message"`
}
