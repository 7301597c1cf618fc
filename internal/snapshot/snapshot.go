// Package snapshot writes a delivered frame to an image file.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// timeLayout is MM-DD-YYYY_HH-MM-SSAM in 12-hour time.
const timeLayout = "01-02-2006_03-04-05PM"

const jpegQuality = 95

var (
	// ErrNoFrame is returned when there is nothing to export.
	ErrNoFrame = errors.New("snapshot: no frame available")
	// ErrInvalidPath is returned for a target that would leave the snapshot directory.
	ErrInvalidPath = errors.New("snapshot: path must be relative to the snapshot directory")
)

var unsafeNameChars = strings.NewReplacer("/", "_", `\`, "_", ":", "_", " ", "_")

// FileName returns <name>_<timestamp>.png with path separators removed from name.
func FileName(name string, now time.Time) string {
	name = unsafeNameChars.Replace(strings.TrimSpace(name))
	if name == "" {
		name = "snapshot"
	}
	return fmt.Sprintf("%s_%s.png", name, now.Format(timeLayout))
}

// Resolve picks the output path inside dir. An empty target yields
// dir/FileName; any other target must be a local relative path and gets .png
// appended when it lacks an image extension.
func Resolve(dir, target, name string, now time.Time) (string, error) {
	if target == "" {
		return filepath.Join(dir, FileName(name, now)), nil
	}
	if !filepath.IsLocal(target) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, target)
	}
	switch strings.ToLower(filepath.Ext(target)) {
	case ".png", ".jpg", ".jpeg":
	default:
		target += ".png"
	}
	return filepath.Join(dir, target), nil
}

// Export encodes img as JPEG for .jpg/.jpeg paths and PNG otherwise. The file
// is written next to its final name and renamed into place.
func Export(img image.Image, path string) error {
	if img == nil || img.Bounds().Empty() {
		return ErrNoFrame
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(tmp, img, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(tmp, img)
	}
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
