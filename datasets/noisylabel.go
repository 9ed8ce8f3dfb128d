package datasets

import (
	"image"
	"io"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Options configures NewNoisyLabelDataset. Only Root is required.
type Options struct {
	// Root of the dataset: classes.txt, the manifests and the image directories.
	Root string

	// Split selects the manifests and image directory. Defaults to SplitTrain.
	Split Split

	// UseCache decodes every image once at construction and serves Get from memory.
	UseCache bool

	// ShowProgress draws a progress bar on ProgressWriter while caching.
	ShowProgress   bool
	ProgressWriter io.Writer

	// Transform and TargetTransform are applied by Get, in that order. Optional.
	Transform       Transform
	TargetTransform TargetTransform

	// Loader decodes images. Defaults to RGBLoader.
	Loader Loader

	// Extensions are listed in the error returned for an empty dataset.
	// Defaults to DefaultExtensions.
	Extensions []string

	// NumClasses is the expected number of lines in the class file. Defaults to 200.
	NumClasses int

	// ClassFile name under Root. Defaults to classes.txt.
	ClassFile string

	// Layout overrides the manifest routing of Split; see DefaultLayout.
	Layout Layout
}

// Item is what Get returns for one index.
type Item struct {
	Index  int
	Image  image.Image
	Target int
}

// NoisyLabelDataset maps a directory of images with clean and noisy label
// manifests into indexable (image, target) pairs.
//
// It is immutable after construction, so Get and the index queries can be
// called from several goroutines.
type NoisyLabelDataset struct {
	root       string
	split      Split
	classes    *ClassTable
	samples    []Sample
	extensions []string

	loader          Loader
	transform       Transform
	targetTransform TargetTransform

	// missingClean counts samples without a clean label on evaluation splits.
	missingClean int

	// cache is index-aligned with samples, nil unless UseCache was set.
	cache []image.Image
}

// NewNoisyLabelDataset reads the class table and the split manifests under
// opts.Root and, if opts.UseCache is set, decodes every image.
func NewNoisyLabelDataset(opts Options) (*NoisyLabelDataset, error) {
	if opts.Split == "" {
		opts.Split = SplitTrain
	}
	split, err := ParseSplit(string(opts.Split))
	if err != nil {
		return nil, err
	}
	if opts.NumClasses <= 0 {
		opts.NumClasses = DefaultNumClasses
	}
	if opts.Loader == nil {
		opts.Loader = RGBLoader
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	root := expandHome(opts.Root)
	ext := opts.Layout.Merge(DefaultLayout(split)).ImageExt
	if !IsImageFile(imageFileName(0, ext), opts.Extensions) {
		return nil, errors.Wrapf(ErrConfiguration, "image extension %q is not one of %s",
			ext, strings.Join(opts.Extensions, ","))
	}

	classes, err := LoadClassTable(root, opts.ClassFile, opts.NumClasses)
	if err != nil {
		return nil, err
	}

	samples, err := LoadSplit(root, split, opts.Layout, classes.Len())
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.Wrapf(ErrEmptyDataset, "found 0 files in subfolders of %s, supported extensions are: %s",
			root, strings.Join(opts.Extensions, ","))
	}

	ds := &NoisyLabelDataset{
		root:            root,
		split:           split,
		classes:         classes,
		samples:         samples,
		extensions:      opts.Extensions,
		loader:          opts.Loader,
		transform:       opts.Transform,
		targetTransform: opts.TargetTransform,
	}

	if split.IsEvaluation() {
		for _, s := range samples {
			if !s.Clean.Valid {
				ds.missingClean++
			}
		}
		if ds.missingClean > 0 {
			klog.Warningf("%d of %d samples in %s split of %s have no clean label, targets are unavailable",
				ds.missingClean, len(samples), split, root)
		}
	}

	counts := ds.CategoryCounts()
	if n := counts[CategoryUnlabeled]; n > 0 {
		klog.Warningf("%d of %d samples in %s split of %s have neither a clean nor a noisy label",
			n, len(samples), split, root)
	}
	klog.V(1).Infof("loaded %s split of %s: %d samples (clean_only=%d noisy_only=%d verification=%d)",
		split, root, len(samples), counts[CategoryCleanOnly], counts[CategoryNoisyOnly], counts[CategoryVerification])

	if opts.UseCache {
		w := opts.ProgressWriter
		if w == nil {
			w = os.Stderr
		}
		if err := ds.preload(opts.ShowProgress, w); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// preload decodes every sample once, in order.
func (d *NoisyLabelDataset) preload(showProgress bool, w io.Writer) error {
	start := time.Now()
	var pBar *progressbar.ProgressBar
	if showProgress {
		pBar = progressbar.NewOptions(len(d.samples),
			progressbar.OptionSetDescription("caching samples"),
			progressbar.OptionSetWriter(w),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
	}

	cache := make([]image.Image, 0, len(d.samples))
	for _, s := range d.samples {
		img, err := d.loader(s.Path)
		if err != nil {
			return errors.Wrapf(err, "while caching sample %d of %d", len(cache), len(d.samples))
		}
		cache = append(cache, img)
		if pBar != nil {
			_ = pBar.Add(1)
		}
	}
	if pBar != nil {
		_ = pBar.Finish()
	}
	if len(cache) != len(d.samples) {
		return errors.Wrapf(ErrInternalConsistency, "cached %d images for %d samples", len(cache), len(d.samples))
	}
	d.cache = cache
	klog.V(1).Infof("cached %d images in %s", len(cache), time.Since(start))
	return nil
}

// Len returns the number of samples.
func (d *NoisyLabelDataset) Len() int {
	return len(d.samples)
}

// Get returns the image and effective target of sample index, after the
// configured transforms. On an evaluation split where any sample lacks a
// clean label it fails with ErrMissingLabel for every index.
func (d *NoisyLabelDataset) Get(index int) (Item, error) {
	if err := d.checkIndex(index); err != nil {
		return Item{}, err
	}
	if err := d.checkCleanLabels(); err != nil {
		return Item{}, err
	}
	target, err := d.samples[index].Target(d.split)
	if err != nil {
		return Item{}, err
	}
	img, err := d.Image(index)
	if err != nil {
		return Item{}, err
	}
	if target == Unlabeled {
		klog.V(2).Infof("sample %d (%s) has no label", index, d.samples[index].Path)
	}

	if d.transform != nil {
		if img, err = d.transform(img); err != nil {
			return Item{}, errors.Wrapf(err, "transform of sample %d", index)
		}
	}
	if d.targetTransform != nil {
		if target, err = d.targetTransform(target); err != nil {
			return Item{}, errors.Wrapf(err, "target transform of sample %d", index)
		}
	}
	return Item{Index: index, Image: img, Target: target}, nil
}

// Image returns the untransformed image of sample index. When preloading was
// enabled it is a copy of the cached image, so callers may modify it.
func (d *NoisyLabelDataset) Image(index int) (image.Image, error) {
	if err := d.checkIndex(index); err != nil {
		return nil, err
	}
	if d.cache != nil {
		if len(d.cache) != len(d.samples) {
			return nil, errors.Wrapf(ErrInternalConsistency, "%d cached images for %d samples", len(d.cache), len(d.samples))
		}
		return imaging.Clone(d.cache[index]), nil
	}
	return d.loader(d.samples[index].Path)
}

// checkCleanLabels fails if the split is an evaluation split and any of its
// samples lacks a clean label.
func (d *NoisyLabelDataset) checkCleanLabels() error {
	if d.missingClean > 0 {
		return errors.Wrapf(ErrMissingLabel, "%d of %d samples in %s split have no clean label",
			d.missingClean, len(d.samples), d.split)
	}
	return nil
}

func (d *NoisyLabelDataset) checkIndex(index int) error {
	if index < 0 || index >= len(d.samples) {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d not in [0, %d)", index, len(d.samples))
	}
	return nil
}

// Sample returns the sample at index.
func (d *NoisyLabelDataset) Sample(index int) (Sample, error) {
	if err := d.checkIndex(index); err != nil {
		return Sample{}, err
	}
	return d.samples[index], nil
}

// Samples returns a copy of all samples in manifest order.
func (d *NoisyLabelDataset) Samples() []Sample {
	out := make([]Sample, len(d.samples))
	copy(out, d.samples)
	return out
}

// Classes returns the class table.
func (d *NoisyLabelDataset) Classes() *ClassTable { return d.classes }

// Split returns the split the dataset was built for.
func (d *NoisyLabelDataset) Split() Split { return d.split }

// Root returns the dataset root directory.
func (d *NoisyLabelDataset) Root() string { return d.root }

// Cached reports whether images were preloaded.
func (d *NoisyLabelDataset) Cached() bool { return d.cache != nil }

// Name returns a short description, e.g. "noisylabeln/train".
func (d *NoisyLabelDataset) Name() string {
	return "noisylabeln/" + string(d.split)
}

// Targets returns the effective target of every sample. On evaluation splits
// every sample must carry a clean label, otherwise ErrMissingLabel is
// returned and no targets.
func (d *NoisyLabelDataset) Targets() ([]int, error) {
	if err := d.checkCleanLabels(); err != nil {
		return nil, err
	}
	targets := make([]int, len(d.samples))
	for i, s := range d.samples {
		// Cannot fail: evaluation splits were checked above.
		targets[i], _ = s.Target(d.split)
	}
	return targets, nil
}

// VerificationIndices returns the indices of samples with both labels.
func (d *NoisyLabelDataset) VerificationIndices() []int {
	return d.indicesWhere(func(s Sample) bool { return s.Clean.Valid && s.Noisy.Valid })
}

// CleanIndices returns the indices of samples with a clean label.
func (d *NoisyLabelDataset) CleanIndices() []int {
	return d.indicesWhere(func(s Sample) bool { return s.Clean.Valid })
}

// NoisyIndices returns the indices of samples with a noisy label.
func (d *NoisyLabelDataset) NoisyIndices() []int {
	return d.indicesWhere(func(s Sample) bool { return s.Noisy.Valid })
}

func (d *NoisyLabelDataset) indicesWhere(pred func(Sample) bool) []int {
	var out []int
	for i, s := range d.samples {
		if pred(s) {
			out = append(out, i)
		}
	}
	return out
}

// CategoryCounts returns how many samples fall in each category.
func (d *NoisyLabelDataset) CategoryCounts() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}
	for _, s := range d.samples {
		counts[s.Category()]++
	}
	return counts
}
