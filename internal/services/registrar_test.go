package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/knowledgeflow/internal/models"
)

type fakeHasher struct {
	hash string
	size int64
}

func (f *fakeHasher) HashObject(_ context.Context, _, _ string) (string, int64, error) {
	return f.hash, f.size, nil
}

func TestParseUploadPath(t *testing.T) {
	tests := []struct {
		object        string
		wantProjectID string
		wantFilename  string
		wantOK        bool
	}{
		{"proj-1/report.pdf", "proj-1", "report.pdf", true},
		{"proj-1/nested/report.pdf", "", "", false},
		{"report.pdf", "", "", false},
		{"/report.pdf", "", "", false},
		{"proj-1/", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.object, func(t *testing.T) {
			projectID, filename, ok := parseUploadPath(tt.object)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantProjectID, projectID)
			assert.Equal(t, tt.wantFilename, filename)
		})
	}
}

func TestRegistrarCreatesPendingDocument(t *testing.T) {
	fs := newFakeStore()
	r := &UploadRegistrar{
		store: fs,
		blobs: &fakeHasher{hash: "abc123", size: 2048},
	}

	err := r.Process(context.Background(), GCSEvent{
		Bucket:      "uploads",
		Name:        "proj-1/report.pdf",
		ContentType: "application/pdf",
	})
	require.NoError(t, err)

	require.Len(t, fs.docs, 1)
	var doc *models.Document
	for _, d := range fs.docs {
		doc = d
	}
	assert.Equal(t, "proj-1", doc.ProjectID)
	assert.Equal(t, "report.pdf", doc.OriginalFilename)
	assert.Equal(t, "proj-1/report.pdf", doc.StoragePath)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.Equal(t, int64(2048), doc.ByteSize)
	assert.Equal(t, "gs://uploads/proj-1/report.pdf", doc.AccessURL)
	assert.Equal(t, "abc123", doc.FileHash)
	assert.Equal(t, models.StatusPending, doc.ProcessingStatus)
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestRegistrarSkipsDuplicateHash(t *testing.T) {
	fs := newFakeStore()
	fs.docs["existing"] = &models.Document{ID: "existing", FileHash: "abc123"}
	r := &UploadRegistrar{
		store: fs,
		blobs: &fakeHasher{hash: "abc123", size: 2048},
	}

	err := r.Process(context.Background(), GCSEvent{
		Bucket: "uploads",
		Name:   "proj-1/copy-of-report.pdf",
	})
	require.NoError(t, err)
	assert.Len(t, fs.docs, 1, "duplicate content must not create a second row")
}

func TestRegistrarSkipsMalformedPaths(t *testing.T) {
	fs := newFakeStore()
	r := &UploadRegistrar{
		store: fs,
		blobs: &fakeHasher{hash: "abc123"},
	}

	err := r.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "stray.tmp"})
	require.NoError(t, err)
	assert.Empty(t, fs.docs)
}
