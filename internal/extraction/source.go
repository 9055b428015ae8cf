package extraction

import "strings"

// Source describes one document to extract, as classified from the request:
// an accessible URL (signed when possible) plus the declared file metadata.
type Source struct {
	URL      string
	Filename string
	MIMEType string
	ByteSize int64
}

// The fixed allow-list of declared file types. Anything else is rejected
// before any strategy is invoked.
var (
	imageTypes = map[string]bool{
		"image/png":  true,
		"image/jpeg": true,
		"image/jpg":  true,
		"image/gif":  true,
		"image/webp": true,
	}
	plainTextTypes = map[string]bool{
		"text/plain":    true,
		"text/markdown": true,
		"text/csv":      true,
	}
)

// NormalizeMIMEType lowercases a declared content type and strips parameters
// such as "; charset=utf-8".
func NormalizeMIMEType(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func (s Source) IsPDF() bool { return NormalizeMIMEType(s.MIMEType) == "application/pdf" }

func (s Source) IsImage() bool { return imageTypes[NormalizeMIMEType(s.MIMEType)] }

func (s Source) IsPlainText() bool { return plainTextTypes[NormalizeMIMEType(s.MIMEType)] }

// Supported reports whether the declared type is on the extraction
// allow-list.
func Supported(mimeType string) bool {
	src := Source{MIMEType: mimeType}
	return src.IsPDF() || src.IsImage() || src.IsPlainText()
}
