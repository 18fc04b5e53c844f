package walk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Artifact is a file written by the walkthrough.
type Artifact struct {
	Path  string `json:"path" yaml:"path"`
	Bytes int    `json:"bytes" yaml:"bytes"`
	MIME  string `json:"mime" yaml:"mime"`

	detected *mimetype.MIME
}

// ScreenshotName returns the file name used for a session's screenshot
func ScreenshotName(sessionID, format string) string {
	ext := strings.ToLower(strings.TrimPrefix(format, "."))
	if ext == "" {
		ext = "png"
	}
	return fmt.Sprintf("screenshot_%s.%s", sessionID, ext)
}

// WriteScreenshot stores data under dir. The file is fully written and closed
// before it returns; a short write is an error.
func WriteScreenshot(dir, sessionID, format string, data []byte) (*Artifact, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, ScreenshotName(sessionID, format))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create screenshot file: %w", err)
	}
	n, err := f.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write screenshot file %s: %w", path, err)
	}

	detected := mimetype.Detect(data)
	return &Artifact{
		Path:     path,
		Bytes:    n,
		MIME:     detected.String(),
		detected: detected,
	}, nil
}

// matchesFormat reports whether the detected MIME type fits the requested
// image format
func (a *Artifact) matchesFormat(format string) bool {
	m := a.detected
	if m == nil {
		return false
	}
	switch strings.ToLower(format) {
	case "", "png":
		return m.Is("image/png")
	case "jpg", "jpeg":
		return m.Is("image/jpeg")
	case "webp":
		return m.Is("image/webp")
	default:
		return true
	}
}
