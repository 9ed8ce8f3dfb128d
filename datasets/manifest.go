package datasets

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Manifest file names of the released dataset.
const (
	NoisyTrainManifest = "training_labels_noise_80.txt"
	CleanTestManifest  = "test_labels.txt"
	DefaultImageExt    = ".jpg"
)

// Layout tells where the manifests and images of a split live, relative to
// the dataset root. An empty manifest name means that label source is absent.
type Layout struct {
	NoisyManifest string `mapstructure:"noisy_manifest" yaml:"noisy_manifest"`
	CleanManifest string `mapstructure:"clean_manifest" yaml:"clean_manifest"`
	ImageDir      string `mapstructure:"image_dir" yaml:"image_dir"`
	ImageExt      string `mapstructure:"image_ext" yaml:"image_ext"`
}

// DefaultLayout returns the routing of the released dataset: train reads the
// noisy manifest and the train/ images; val and test read the clean manifest
// and the test/ images.
func DefaultLayout(split Split) Layout {
	switch split {
	case SplitTrain:
		return Layout{NoisyManifest: NoisyTrainManifest, ImageDir: "train", ImageExt: DefaultImageExt}
	default:
		return Layout{CleanManifest: CleanTestManifest, ImageDir: "test", ImageExt: DefaultImageExt}
	}
}

// Merge returns l with empty fields filled from def. The manifests are taken
// from def only when l names neither of them.
func (l Layout) Merge(def Layout) Layout {
	if l.NoisyManifest == "" && l.CleanManifest == "" {
		l.NoisyManifest, l.CleanManifest = def.NoisyManifest, def.CleanManifest
	}
	if l.ImageDir == "" {
		l.ImageDir = def.ImageDir
	}
	if l.ImageExt == "" {
		l.ImageExt = def.ImageExt
	}
	return l
}

// ManifestEntry is one parsed manifest line. Label is already 0-based.
type ManifestEntry struct {
	ImageID int
	Label   int
	Path    string
}

// ParseManifest reads "<image_index> <label_index>" lines from r, in order.
// Labels in the file are 1-based and must not exceed numClasses; a
// non-positive numClasses disables the upper bound check. Paths are built as
// imageDir/<image_index as %04d><ext>.
func ParseManifest(r io.Reader, imageDir, ext string, numClasses int) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		imageID, label, err := parseIndexPair(line)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedManifest, "line %d (%q): %v", lineNum, line, err)
		}
		if label < 1 || (numClasses > 0 && label > numClasses) {
			return nil, errors.Wrapf(ErrMalformedManifest, "line %d: label %d outside [1, %d]", lineNum, label, numClasses)
		}
		entries = append(entries, ManifestEntry{
			ImageID: imageID,
			Label:   label - 1,
			Path:    filepath.Join(imageDir, imageFileName(imageID, ext)),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	return entries, nil
}

// LoadManifest opens root/name and parses it with images under root/imageDir.
func LoadManifest(root, name, imageDir, ext string, numClasses int) ([]ManifestEntry, error) {
	path := filepath.Join(root, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open manifest %s", path)
	}
	defer f.Close()

	entries, err := ParseManifest(f, filepath.Join(root, imageDir), ext, numClasses)
	if err != nil {
		return nil, errors.WithMessagef(err, "manifest %s", path)
	}
	return entries, nil
}

// LoadSplit parses the manifests of a split and merges them into samples.
//
// The primary manifest (noisy on train, clean on evaluation splits) gives the
// sample order, one sample per line. The other manifest, when configured,
// labels the first sample with the same image index; its unmatched entries
// are appended in file order.
func LoadSplit(root string, split Split, layout Layout, numClasses int) ([]Sample, error) {
	root = expandHome(root)
	layout = layout.Merge(DefaultLayout(split))

	load := func(name string) ([]ManifestEntry, error) {
		if name == "" {
			return nil, nil
		}
		return LoadManifest(root, name, layout.ImageDir, layout.ImageExt, numClasses)
	}
	noisy, err := load(layout.NoisyManifest)
	if err != nil {
		return nil, err
	}
	clean, err := load(layout.CleanManifest)
	if err != nil {
		return nil, err
	}

	primary, primaryIsClean := noisy, false
	secondary := clean
	if split.IsEvaluation() && layout.CleanManifest != "" {
		primary, primaryIsClean = clean, true
		secondary = noisy
	} else if layout.NoisyManifest == "" {
		primary, primaryIsClean = clean, true
		secondary = nil
	}

	samples := make([]Sample, 0, len(primary)+len(secondary))
	firstByID := make(map[int]int, len(primary))
	for _, e := range primary {
		s := Sample{Path: e.Path, ImageID: e.ImageID}
		if primaryIsClean {
			s.Clean = SomeLabel(e.Label)
		} else {
			s.Noisy = SomeLabel(e.Label)
		}
		if _, seen := firstByID[e.ImageID]; !seen {
			firstByID[e.ImageID] = len(samples)
		}
		samples = append(samples, s)
	}

	secondarySeen := make(map[int]bool, len(secondary))
	duplicates := 0
	for _, e := range secondary {
		if secondarySeen[e.ImageID] {
			duplicates++
		}
		secondarySeen[e.ImageID] = true
		idx, ok := firstByID[e.ImageID]
		if !ok {
			idx = len(samples)
			firstByID[e.ImageID] = idx
			samples = append(samples, Sample{Path: e.Path, ImageID: e.ImageID})
		}
		if primaryIsClean {
			samples[idx].Noisy = SomeLabel(e.Label)
		} else {
			samples[idx].Clean = SomeLabel(e.Label)
		}
	}
	if duplicates > 0 {
		name := layout.CleanManifest
		if primaryIsClean {
			name = layout.NoisyManifest
		}
		klog.Warningf("%d duplicate image indices in %s, the last label of each wins", duplicates, name)
	}
	return samples, nil
}
