// Package extract derives searchable plain text from stored file bytes.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"driftfs/internal/drift"
)

// maxTextBytes caps extracted text so a single huge document cannot bloat
// the metadata database.
const maxTextBytes = 512 * 1024

// Extractor implements drift.TextExtractor by dispatching on mime type.
// Mime types with no extraction strategy yield an empty string and no
// error; callers persist the empty result to mark the file as processed.
type Extractor struct{}

var _ drift.TextExtractor = (*Extractor)(nil)

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := mimeType
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}

	var (
		text string
		err  error
	)
	switch {
	case base == "application/json":
		text, err = extractJSON(data)
	case base == "text/html" || base == "application/xhtml+xml":
		text, err = extractHTML(data)
	case base == "application/xml" || base == "text/xml":
		// The html parser is lenient enough to pull text out of XML too.
		text, err = extractHTML(data)
	case base == "application/pdf":
		text, err = extractPDF(data)
	case strings.HasPrefix(base, "text/"), isTextualApplication(base):
		text = sanitizeText(string(data))
	default:
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", base, err)
	}
	return truncateText(text), nil
}

// isTextualApplication reports whether an application/* mime type carries
// plain source text that can be indexed as-is.
func isTextualApplication(base string) bool {
	switch base {
	case "application/javascript", "application/typescript", "application/ecmascript":
		return true
	}
	return false
}

// extractJSON re-serializes the document so keys and values become
// searchable without JSON punctuation noise dominating the text.
func extractJSON(data []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing json: %w", err)
	}
	var sb strings.Builder
	flattenJSON(doc, &sb)
	return strings.TrimSpace(sb.String()), nil
}

func flattenJSON(v any, sb *strings.Builder) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			sb.WriteString(k)
			sb.WriteByte(' ')
			flattenJSON(val, sb)
		}
	case []any:
		for _, val := range t {
			flattenJSON(val, sb)
		}
	case string:
		sb.WriteString(t)
		sb.WriteByte(' ')
	case float64:
		fmt.Fprintf(sb, "%v ", t)
	case bool:
		fmt.Fprintf(sb, "%v ", t)
	}
}

// sanitizeText drops NUL bytes and invalid UTF-8 sequences.
func sanitizeText(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, 0) {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		if r == 0 || r == utf8.RuneError {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// truncateText caps text at maxTextBytes on a rune boundary.
func truncateText(s string) string {
	if len(s) <= maxTextBytes {
		return s
	}
	cut := maxTextBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
