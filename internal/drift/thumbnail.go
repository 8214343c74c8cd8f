package drift

import (
	"context"
	"strings"
)

// Thumbnailer produces a small preview image for a payload, encoded as a
// data URI. Generation is best-effort: missing codecs, empty input, or tool
// failures yield an empty string, never an error that callers must handle.
type Thumbnailer interface {
	// Eligible reports whether the mime type can have a thumbnail at all.
	Eligible(mimeType string) bool
	// Generate returns a data URI, or "" when no thumbnail could be made.
	Generate(ctx context.Context, data []byte, mimeType string) string
}

// ThumbnailEligible is the canonical mime eligibility rule: raster images,
// video (first frame), PDF (first page), and plain text (rendered preview).
func ThumbnailEligible(mimeType string) bool {
	switch {
	case mimeType == "":
		return false
	case strings.HasPrefix(mimeType, "image/"):
		// SVG is vector markup, not decodable by the raster codecs.
		return mimeType != "image/svg+xml"
	case strings.HasPrefix(mimeType, "video/"):
		return true
	case mimeType == "application/pdf":
		return true
	case mimeType == "text/plain":
		return true
	}
	return false
}

// TextExtractor turns a payload into plain text for search indexing.
type TextExtractor interface {
	// Extract returns the text for the mime type. Mime types with no
	// extractable content yield "" with a nil error so the file is
	// marked indexed and not re-queued.
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}
