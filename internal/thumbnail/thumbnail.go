// Package thumbnail renders small PNG previews for stored files.
package thumbnail

import (
	"context"
	"os/exec"
	"strings"

	"driftfs/internal/config"
	"driftfs/internal/drift"
)

// ThumbnailSize is the bounding box previews are scaled to fit.
const ThumbnailSize = 256

// Generator implements drift.Thumbnailer. Capabilities are probed once at
// construction: video previews need an ffmpeg binary, PDF previews need a
// text extractor. Generation never returns an error; any failure yields an
// empty string.
type Generator struct {
	enabled    bool
	ffmpegPath string
	extractor  drift.TextExtractor
	logger     drift.Logger
}

var _ drift.Thumbnailer = (*Generator)(nil)

// New probes available tooling and returns a Generator.
func New(cfg config.ThumbnailConfig, extractor drift.TextExtractor, logger drift.Logger) *Generator {
	if logger == nil {
		logger = &drift.NopLogger{}
	}

	ffmpegPath := cfg.FFmpegPath
	if cfg.Enabled && ffmpegPath == "" {
		if p, err := exec.LookPath("ffmpeg"); err == nil {
			ffmpegPath = p
		}
	}

	g := &Generator{
		enabled:    cfg.Enabled,
		ffmpegPath: ffmpegPath,
		extractor:  extractor,
		logger:     logger,
	}
	if cfg.Enabled && ffmpegPath == "" {
		logger.Info("ffmpeg not found, video thumbnails disabled")
	}
	return g
}

// Eligible reports whether this generator can attempt a preview for the
// mime type, given the capabilities probed at construction.
func (g *Generator) Eligible(mimeType string) bool {
	if !g.enabled || !drift.ThumbnailEligible(mimeType) {
		return false
	}
	if strings.HasPrefix(mimeType, "video/") && g.ffmpegPath == "" {
		return false
	}
	if mimeType == "application/pdf" && g.extractor == nil {
		return false
	}
	return true
}

// Generate returns a PNG data URI, or "" when no preview could be made.
func (g *Generator) Generate(ctx context.Context, data []byte, mimeType string) string {
	if !g.Eligible(mimeType) || len(data) == 0 {
		return ""
	}

	var (
		uri string
		err error
	)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		uri, err = g.imageThumbnail(data)
	case strings.HasPrefix(mimeType, "video/"):
		uri, err = g.videoThumbnail(ctx, data)
	case mimeType == "application/pdf":
		uri, err = g.pdfThumbnail(ctx, data)
	case mimeType == "text/plain":
		uri, err = g.textThumbnail(string(data))
	}
	if err != nil {
		g.logger.Debug("thumbnail generation failed", "mime_type", mimeType, "error", err)
		return ""
	}
	return uri
}

// pdfThumbnail renders the opening text of the document as a preview card.
func (g *Generator) pdfThumbnail(ctx context.Context, data []byte) (string, error) {
	text, err := g.extractor.Extract(ctx, data, "application/pdf")
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", nil
	}
	return g.textThumbnail(text)
}
