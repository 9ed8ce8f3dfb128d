package datasets

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// writeLines writes lines to path, one per line.
func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// classNames returns n distinct class names.
func classNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("class_%03d", i)
	}
	return names
}

// writeImage saves a small solid image whose color depends on seed.
func writeImage(t *testing.T, path string, w, h, seed int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(seed * 40), G: uint8(x * 10), B: uint8(y * 10), A: 0xff})
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

// fixture describes a dataset written to a temporary root.
type fixture struct {
	numClasses int
	noisy      []string // lines of training_labels_noise_80.txt
	clean      []string // lines of test_labels.txt
	trainClean []string // optional clean manifest for the train split
	imageExt   string
	imageSize  int
}

// build writes the fixture and returns its root. Images are written for
// every image index listed in any manifest.
func (f fixture) build(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if f.numClasses == 0 {
		f.numClasses = DefaultNumClasses
	}
	if f.imageExt == "" {
		f.imageExt = ".png"
	}
	if f.imageSize == 0 {
		f.imageSize = 4
	}
	writeLines(t, filepath.Join(root, DefaultClassFile), classNames(f.numClasses))
	if f.noisy != nil {
		writeLines(t, filepath.Join(root, NoisyTrainManifest), f.noisy)
	}
	if f.clean != nil {
		writeLines(t, filepath.Join(root, CleanTestManifest), f.clean)
	}
	if f.trainClean != nil {
		writeLines(t, filepath.Join(root, "training_labels_clean.txt"), f.trainClean)
	}

	writeImages := func(dir string, lines []string) {
		for _, line := range lines {
			id, _, err := parseIndexPair(line)
			require.NoError(t, err)
			writeImage(t, filepath.Join(root, dir, imageFileName(id, f.imageExt)), f.imageSize, f.imageSize, id)
		}
	}
	writeImages("train", f.noisy)
	writeImages("train", f.trainClean)
	writeImages("test", f.clean)
	return root
}
