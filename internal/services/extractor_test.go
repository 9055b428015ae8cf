package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/knowledgeflow/internal/apperr"
	"github.com/Lllllllleong/knowledgeflow/internal/extraction"
	"github.com/Lllllllleong/knowledgeflow/internal/models"
)

type fakeSigner struct {
	signed string
	err    error
	object string
}

func (f *fakeSigner) SignedDownloadURL(objectName string, _ time.Duration) (string, error) {
	f.object = objectName
	if f.err != nil {
		return "", f.err
	}
	return f.signed, nil
}

type stubOrchestrator struct {
	text   string
	method string
	err    error
	calls  int
	src    extraction.Source
}

func (s *stubOrchestrator) Run(_ context.Context, src extraction.Source) (string, string, error) {
	s.calls++
	s.src = src
	if s.err != nil {
		return "", "", s.err
	}
	return s.text, s.method, nil
}

func newTestExtractor(fs *fakeStore, signer URLSigner, orch orchestrator) *Extractor {
	return &Extractor{
		store:        fs,
		signer:       signer,
		orchestrator: orch,
		knowledge:    NewKnowledgeAggregator(fs, nil),
		config:       ExtractorConfig{SignedURLTTL: 15 * time.Minute, BatchConcurrency: 2},
	}
}

func validRequest() *models.ExtractRequest {
	return &models.ExtractRequest{
		DocumentID: "doc-1",
		ProjectID:  "proj-1",
		FileURL:    "https://example.com/doc-1",
		FileName:   "notes.txt",
		FileType:   "text/plain",
	}
}

func TestProcessHappyPath(t *testing.T) {
	fs := newFakeStore()
	fs.docs["doc-1"] = &models.Document{ID: "doc-1", ProjectID: "proj-1", OriginalFilename: "notes.txt", StoragePath: "proj-1/notes.txt", ByteSize: 11}
	signer := &fakeSigner{signed: "https://signed.example.com/notes.txt"}
	orch := &stubOrchestrator{text: "hello world", method: "plain-text"}
	e := newTestExtractor(fs, signer, orch)

	resp, err := e.Process(context.Background(), "tester", validRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 11, resp.TextLength)
	assert.Equal(t, "plain-text", resp.ExtractionMethod)

	doc := fs.docs["doc-1"]
	assert.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
	assert.Equal(t, "hello world", doc.ExtractedText)
	assert.Equal(t, 11, doc.TextLength)
	assert.Equal(t, "extracted via plain-text", doc.ProcessingNotes)
	assert.Empty(t, doc.ProcessingError)

	// The orchestrator must be given the signed URL, not the caller's.
	assert.Equal(t, "https://signed.example.com/notes.txt", orch.src.URL)
	assert.Equal(t, "proj-1/notes.txt", signer.object)
	assert.Equal(t, int64(11), orch.src.ByteSize)

	// A successful extraction triggers the knowledge-base rebuild.
	project := fs.projects["proj-1"]
	require.NotNil(t, project)
	assert.Contains(t, project.KnowledgeBase, "--- Document: notes.txt ---\nhello world")
}

func TestProcessSignedURLFallback(t *testing.T) {
	fs := newFakeStore()
	fs.docs["doc-1"] = &models.Document{ID: "doc-1", ProjectID: "proj-1", StoragePath: "proj-1/notes.txt"}
	signer := &fakeSigner{err: errors.New("signing unavailable")}
	orch := &stubOrchestrator{text: "hello world", method: "plain-text"}
	e := newTestExtractor(fs, signer, orch)

	_, err := e.Process(context.Background(), "tester", validRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/doc-1", orch.src.URL)
}

func TestProcessMissingFields(t *testing.T) {
	e := newTestExtractor(newFakeStore(), &fakeSigner{}, &stubOrchestrator{})

	req := validRequest()
	req.ProjectID = ""
	req.FileType = ""
	_, err := e.Process(context.Background(), "tester", req)

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "missing required field(s): projectId, fileType", verr.Reason)
}

func TestProcessMissingFieldsMarksIdentifiableDocumentFailed(t *testing.T) {
	fs := newFakeStore()
	fs.docs["doc-1"] = &models.Document{ID: "doc-1", ProjectID: "proj-1"}
	e := newTestExtractor(fs, &fakeSigner{}, &stubOrchestrator{})

	req := validRequest()
	req.FileURL = ""
	_, err := e.Process(context.Background(), "tester", req)

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, models.StatusFailed, fs.docs["doc-1"].ProcessingStatus)
	assert.Contains(t, fs.docs["doc-1"].ProcessingError, "fileUrl")

	t.Run("no document id, nothing to record", func(t *testing.T) {
		fs := newFakeStore()
		e := newTestExtractor(fs, &fakeSigner{}, &stubOrchestrator{})
		req := validRequest()
		req.DocumentID = ""
		_, err := e.Process(context.Background(), "tester", req)
		require.ErrorAs(t, err, &verr)
		assert.Empty(t, fs.setFailedCalls)
	})
}

func TestProcessUnsupportedFileType(t *testing.T) {
	fs := newFakeStore()
	orch := &stubOrchestrator{}
	e := newTestExtractor(fs, &fakeSigner{}, orch)

	req := validRequest()
	req.FileType = "application/zip"
	_, err := e.Process(context.Background(), "tester", req)

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, orch.calls, "no strategy should run for an unsupported type")
	assert.Equal(t, models.StatusFailed, fs.docs["doc-1"].ProcessingStatus)
	assert.Contains(t, fs.docs["doc-1"].ProcessingError, "application/zip")
}

func TestProcessExhaustionMarksFailed(t *testing.T) {
	fs := newFakeStore()
	fs.docs["doc-1"] = &models.Document{ID: "doc-1", ProjectID: "proj-1"}
	exhausted := &apperr.ExhaustedError{LastStrategy: "mistral-ocr", LastErr: errors.New("upstream 503")}
	e := newTestExtractor(fs, &fakeSigner{}, &stubOrchestrator{err: exhausted})

	_, err := e.Process(context.Background(), "tester", validRequest())

	var got *apperr.ExhaustedError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, models.StatusFailed, fs.docs["doc-1"].ProcessingStatus)
	assert.Empty(t, fs.docs["doc-1"].ExtractedText)
	assert.Nil(t, fs.projects["proj-1"], "failed extraction must not touch the knowledge base")
}

// A completed document that is re-submitted and then exhausts all strategies
// must not keep the output of the earlier successful run: extractedText and
// textLength exist only while the status is completed.
func TestProcessFailedReSubmissionClearsPriorOutput(t *testing.T) {
	fs := newFakeStore()
	fs.docs["doc-1"] = &models.Document{
		ID:               "doc-1",
		ProjectID:        "proj-1",
		OriginalFilename: "notes.txt",
		ProcessingStatus: models.StatusCompleted,
		ExtractedText:    "old successful text",
		TextLength:       19,
		ProcessingNotes:  "extracted via plain-text",
	}
	exhausted := &apperr.ExhaustedError{LastStrategy: "plain-text", LastErr: errors.New("source gone")}
	e := newTestExtractor(fs, &fakeSigner{}, &stubOrchestrator{err: exhausted})

	_, err := e.Process(context.Background(), "tester", validRequest())
	require.Error(t, err)

	doc := fs.docs["doc-1"]
	assert.Equal(t, models.StatusFailed, doc.ProcessingStatus)
	assert.Empty(t, doc.ExtractedText)
	assert.Zero(t, doc.TextLength)
	assert.Empty(t, doc.ProcessingNotes)
}

func TestProcessPersistenceFailureAfterSuccess(t *testing.T) {
	fs := newFakeStore()
	fs.docs["doc-1"] = &models.Document{ID: "doc-1", ProjectID: "proj-1"}
	fs.failCompletion = true
	e := newTestExtractor(fs, &fakeSigner{}, &stubOrchestrator{text: "hello world", method: "plain-text"})

	_, err := e.Process(context.Background(), "tester", validRequest())

	var perr *apperr.PersistenceError
	require.ErrorAs(t, err, &perr)
}

func TestProcessReSubmissionLastRunWins(t *testing.T) {
	fs := newFakeStore()
	fs.docs["doc-1"] = &models.Document{
		ID:               "doc-1",
		ProjectID:        "proj-1",
		OriginalFilename: "notes.txt",
		ProcessingStatus: models.StatusFailed,
		ProcessingError:  "all extraction strategies exhausted",
	}
	e := newTestExtractor(fs, &fakeSigner{}, &stubOrchestrator{text: "recovered text here", method: "mistral-ocr"})

	_, err := e.Process(context.Background(), "tester", validRequest())
	require.NoError(t, err)

	doc := fs.docs["doc-1"]
	assert.Equal(t, models.StatusCompleted, doc.ProcessingStatus)
	assert.Equal(t, "recovered text here", doc.ExtractedText)
	assert.Empty(t, doc.ProcessingError, "a successful re-run clears the prior failure")
}

// End-to-end through the real orchestrator: a text/plain document is fetched
// over HTTP by the plain-text reader and lands completed in the store.
func TestProcessPlainTextRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello world"))
	}))
	defer server.Close()

	fs := newFakeStore()
	fs.docs["doc-1"] = &models.Document{ID: "doc-1", ProjectID: "proj-1", OriginalFilename: "notes.txt"}
	// No MinResultLength override: the default threshold must accept a short
	// but legitimate text file.
	orch := extraction.NewOrchestrator(extraction.Options{
		PlainText: extraction.NewPlainText(),
	})
	e := newTestExtractor(fs, &fakeSigner{}, orch)

	req := validRequest()
	req.FileURL = server.URL
	resp, err := e.Process(context.Background(), "tester", req)
	require.NoError(t, err)

	assert.Equal(t, "plain-text", resp.ExtractionMethod)
	assert.Equal(t, 11, resp.TextLength)
	assert.Equal(t, "hello world", fs.docs["doc-1"].ExtractedText)
}

func TestLoadExtractorConfigDefaults(t *testing.T) {
	t.Setenv("PROJECT_ID", "test-project")
	t.Setenv("MIN_RESULT_LENGTH", "")
	t.Setenv("BATCH_CONCURRENCY", "")
	t.Setenv("SIGNED_URL_TTL_SECONDS", "")

	config, err := loadExtractorConfig()
	require.NoError(t, err)
	assert.Equal(t, extraction.DefaultMinResultLength, config.MinResultLength,
		"the shipped threshold must accept short plain-text documents")
	assert.Equal(t, 4, config.BatchConcurrency)
	assert.Equal(t, 15*time.Minute, config.SignedURLTTL)
}

func TestProcessProject(t *testing.T) {
	fs := newFakeStore()
	fs.docs["d1"] = &models.Document{ID: "d1", ProjectID: "p1", OriginalFilename: "a.txt", MimeType: "text/plain", AccessURL: "https://example.com/a", ProcessingStatus: models.StatusPending}
	fs.docs["d2"] = &models.Document{ID: "d2", ProjectID: "p1", OriginalFilename: "b.txt", MimeType: "text/plain", AccessURL: "https://example.com/b", ProcessingStatus: models.StatusFailed}
	fs.docs["d3"] = &models.Document{ID: "d3", ProjectID: "p1", OriginalFilename: "c.txt", MimeType: "text/plain", ProcessingStatus: models.StatusCompleted, ExtractedText: "done already"}
	fs.docs["d4"] = &models.Document{ID: "d4", ProjectID: "other", MimeType: "text/plain", AccessURL: "https://example.com/d", ProcessingStatus: models.StatusPending}

	e := newTestExtractor(fs, &fakeSigner{}, &stubOrchestrator{text: "fresh extraction text", method: "plain-text"})

	resp, err := e.ProcessProject(context.Background(), "tester", &models.ProjectProcessRequest{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Processed)
	assert.Equal(t, 0, resp.Failed)

	assert.Equal(t, models.StatusCompleted, fs.docs["d1"].ProcessingStatus)
	assert.Equal(t, models.StatusCompleted, fs.docs["d2"].ProcessingStatus)
	assert.Equal(t, models.StatusPending, fs.docs["d4"].ProcessingStatus, "other projects are untouched")
}

func TestProcessProjectCountsFailures(t *testing.T) {
	fs := newFakeStore()
	fs.docs["d1"] = &models.Document{ID: "d1", ProjectID: "p1", OriginalFilename: "a.txt", MimeType: "text/plain", AccessURL: "https://example.com/a", ProcessingStatus: models.StatusPending}
	fs.docs["d2"] = &models.Document{ID: "d2", ProjectID: "p1", OriginalFilename: "b.zip", MimeType: "application/zip", AccessURL: "https://example.com/b", ProcessingStatus: models.StatusPending}

	e := newTestExtractor(fs, &fakeSigner{}, &stubOrchestrator{text: "fresh extraction text", method: "plain-text"})

	resp, err := e.ProcessProject(context.Background(), "tester", &models.ProjectProcessRequest{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Processed)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, models.StatusFailed, fs.docs["d2"].ProcessingStatus)
}

func TestProcessProjectRequiresProjectID(t *testing.T) {
	e := newTestExtractor(newFakeStore(), &fakeSigner{}, &stubOrchestrator{})
	_, err := e.ProcessProject(context.Background(), "tester", &models.ProjectProcessRequest{})

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
}
