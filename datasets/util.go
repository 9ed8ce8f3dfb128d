package datasets

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// parseIndexPair parses a "<image_index> <label_index>" manifest line.
func parseIndexPair(line string) (imageID, label int, err error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected 2 fields, got %d", len(fields))
	}
	imageID, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("image index %q: %w", fields[0], err)
	}
	if imageID < 0 {
		return 0, 0, fmt.Errorf("negative image index %d", imageID)
	}
	label, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("label index %q: %w", fields[1], err)
	}
	return imageID, label, nil
}

// imageFileName returns the zero-padded file name of an image.
func imageFileName(imageID int, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%04d%s", imageID, ext)
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// DefaultExtensions are the image file extensions reported as supported.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".ppm", ".bmp", ".pgm", ".tif", ".tiff", ".webp"}

// IsImageFile reports whether name ends with one of extensions, ignoring case.
func IsImageFile(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
