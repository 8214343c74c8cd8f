package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const ffmpegTimeout = 30 * time.Second

// videoThumbnail extracts the first frame with ffmpeg and scales it.
// The payload goes through a temp file; ffmpeg needs seekable input for
// most container formats.
func (g *Generator) videoThumbnail(ctx context.Context, data []byte) (string, error) {
	tmpDir, err := os.MkdirTemp("", "driftfs-thumb-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inPath := filepath.Join(tmpDir, "input")
	if err := os.WriteFile(inPath, data, 0600); err != nil {
		return "", fmt.Errorf("writing temp video: %w", err)
	}
	outPath := filepath.Join(tmpDir, "frame.png")

	ctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, g.ffmpegPath,
		"-i", inPath,
		"-frames:v", "1",
		"-f", "image2",
		"-y", outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running ffmpeg: %w (%s)", err, stderr.String())
	}

	frame, err := os.ReadFile(outPath)
	if err != nil {
		return "", fmt.Errorf("reading extracted frame: %w", err)
	}

	src, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return "", fmt.Errorf("decoding extracted frame: %w", err)
	}
	return encodeDataURI(scaleToSquare(src))
}
