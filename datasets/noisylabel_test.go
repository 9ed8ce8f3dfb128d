package datasets

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoisyLabelDataset_ManifestScenario(t *testing.T) {
	root := fixture{noisy: []string{"12 5"}, imageExt: ".jpg"}.build(t)

	ds, err := NewNoisyLabelDataset(Options{Root: root, Split: SplitTrain})
	require.NoError(t, err)
	require.Equal(t, 1, ds.Len())

	s, err := ds.Sample(0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "train", "0012.jpg"), s.Path)

	item, err := ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Index)
	assert.Equal(t, 4, item.Target)
	require.NotNil(t, item.Image)
	assert.Equal(t, image.Pt(4, 4), item.Image.Bounds().Size())
}

func TestNoisyLabelDataset_LenMatchesManifest(t *testing.T) {
	lines := []string{"1 1", "2 2", "3 3", "4 200", "5 100"}
	root := fixture{noisy: lines}.build(t)

	ds, err := NewNoisyLabelDataset(Options{Root: root, Layout: Layout{ImageExt: ".png"}})
	require.NoError(t, err)
	assert.Equal(t, len(lines), ds.Len())
	assert.Equal(t, SplitTrain, ds.Split())
	assert.Equal(t, "noisylabeln/train", ds.Name())
	assert.Equal(t, DefaultNumClasses, ds.Classes().Len())

	targets, err := ds.Targets()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 199, 99}, targets)
	for _, target := range targets {
		assert.GreaterOrEqual(t, target, 0)
		assert.Less(t, target, DefaultNumClasses)
	}
}

func TestNoisyLabelDataset_IndexOutOfRange(t *testing.T) {
	root := fixture{noisy: []string{"1 1", "2 2"}}.build(t)
	ds, err := NewNoisyLabelDataset(Options{Root: root, Layout: Layout{ImageExt: ".png"}})
	require.NoError(t, err)

	for _, idx := range []int{-1, ds.Len(), ds.Len() + 10} {
		_, err := ds.Get(idx)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange), "index %d: got %v", idx, err)
		_, err = ds.Sample(idx)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange), "index %d: got %v", idx, err)
	}
}

func TestNoisyLabelDataset_ConstructionErrors(t *testing.T) {
	t.Run("empty manifest", func(t *testing.T) {
		root := fixture{noisy: []string{}}.build(t)
		_, err := NewNoisyLabelDataset(Options{Root: root})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrEmptyDataset), "got %v", err)
		assert.Contains(t, err.Error(), ".webp")
	})

	t.Run("199 classes", func(t *testing.T) {
		root := fixture{noisy: []string{"1 1"}, numClasses: 199}.build(t)
		_, err := NewNoisyLabelDataset(Options{Root: root})
		assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
	})

	t.Run("invalid split", func(t *testing.T) {
		root := fixture{noisy: []string{"1 1"}}.build(t)
		_, err := NewNoisyLabelDataset(Options{Root: root, Split: "holdout"})
		assert.True(t, errors.Is(err, ErrInvalidSplit), "got %v", err)
	})

	t.Run("missing image while caching", func(t *testing.T) {
		root := fixture{noisy: []string{"1 1", "2 2"}}.build(t)
		require.NoError(t, os.Remove(filepath.Join(root, "train", "0002.png")))
		_, err := NewNoisyLabelDataset(Options{Root: root, UseCache: true, Layout: Layout{ImageExt: ".png"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "0002.png")
	})
}

func TestNoisyLabelDataset_CacheDoesNotChangeOutputs(t *testing.T) {
	root := fixture{noisy: []string{"1 1", "2 2", "3 3", "1 4"}, trainClean: []string{"3 9"}}.build(t)
	layout := Layout{NoisyManifest: NoisyTrainManifest, CleanManifest: "training_labels_clean.txt", ImageExt: ".png"}

	var progress bytes.Buffer
	cached, err := NewNoisyLabelDataset(Options{
		Root: root, Layout: layout, UseCache: true, ShowProgress: true, ProgressWriter: &progress,
	})
	require.NoError(t, err)
	lazy, err := NewNoisyLabelDataset(Options{Root: root, Layout: layout})
	require.NoError(t, err)

	assert.True(t, cached.Cached())
	assert.False(t, lazy.Cached())
	assert.NotZero(t, progress.Len())
	require.Equal(t, lazy.Len(), cached.Len())

	for i := 0; i < lazy.Len(); i++ {
		a, err := cached.Get(i)
		require.NoError(t, err)
		b, err := lazy.Get(i)
		require.NoError(t, err)
		assert.Equal(t, b, a, "index %d", i)
	}
}

func TestNoisyLabelDataset_VerificationSamples(t *testing.T) {
	root := fixture{
		noisy:      []string{"1 5", "2 6", "3 7", "4 8"},
		trainClean: []string{"2 16", "4 8", "9 1"},
	}.build(t)
	layout := Layout{NoisyManifest: NoisyTrainManifest, CleanManifest: "training_labels_clean.txt", ImageExt: ".png"}
	ds, err := NewNoisyLabelDataset(Options{Root: root, Layout: layout})
	require.NoError(t, err)
	require.Equal(t, 5, ds.Len())

	verification := ds.VerificationIndices()
	clean := ds.CleanIndices()
	noisy := ds.NoisyIndices()
	assert.Equal(t, []int{1, 3}, verification)
	assert.Equal(t, []int{1, 3, 4}, clean)
	assert.Equal(t, []int{0, 1, 2, 3}, noisy)

	var intersection []int
	inClean := make(map[int]bool)
	for _, i := range clean {
		inClean[i] = true
	}
	for _, i := range noisy {
		if inClean[i] {
			intersection = append(intersection, i)
		}
	}
	assert.Equal(t, intersection, verification)

	for _, idx := range verification {
		s, err := ds.Sample(idx)
		require.NoError(t, err)
		item, err := ds.Get(idx)
		require.NoError(t, err)
		assert.Equal(t, s.Noisy.Index, item.Target, "index %d", idx)
	}
	// Index 1: clean label 15, noisy 5. Training uses the noisy one.
	item, err := ds.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Target)

	// Clean only sample trains on its clean label.
	item, err = ds.Get(4)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Target)

	counts := ds.CategoryCounts()
	assert.Equal(t, 2, counts[CategoryNoisyOnly])
	assert.Equal(t, 2, counts[CategoryVerification])
	assert.Equal(t, 1, counts[CategoryCleanOnly])
	assert.Equal(t, 0, counts[CategoryUnlabeled])
}

func TestNoisyLabelDataset_EvaluationTargets(t *testing.T) {
	root := fixture{noisy: []string{"1 3"}, clean: []string{"5 2", "6 4"}}.build(t)

	ds, err := NewNoisyLabelDataset(Options{Root: root, Split: SplitTest, Layout: Layout{ImageExt: ".png"}})
	require.NoError(t, err)
	targets, err := ds.Targets()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, targets)

	val, err := NewNoisyLabelDataset(Options{Root: root, Split: SplitVal, Layout: Layout{ImageExt: ".png"}})
	require.NoError(t, err)
	assert.Equal(t, ds.Samples(), val.Samples())

	// An evaluation split routed to noisy labels only has no clean labels.
	noisyEval, err := NewNoisyLabelDataset(Options{
		Root:   root,
		Split:  SplitTest,
		Layout: Layout{NoisyManifest: NoisyTrainManifest, ImageDir: "train", ImageExt: ".png"},
	})
	require.NoError(t, err, "missing clean labels are reported on query, not at construction")
	_, err = noisyEval.Targets()
	assert.True(t, errors.Is(err, ErrMissingLabel), "got %v", err)
	_, err = noisyEval.Get(0)
	assert.True(t, errors.Is(err, ErrMissingLabel), "got %v", err)
}

func TestNoisyLabelDataset_Transforms(t *testing.T) {
	root := fixture{noisy: []string{"1 3", "2 4"}, imageSize: 6}.build(t)

	var loaded []string
	loader := func(path string) (image.Image, error) {
		loaded = append(loaded, filepath.Base(path))
		return RGBLoader(path)
	}
	ds, err := NewNoisyLabelDataset(Options{
		Root:            root,
		Layout:          Layout{ImageExt: ".png"},
		Loader:          loader,
		Transform:       Compose(Resize(3, 2), nil, FlipHorizontal()),
		TargetTransform: OffsetTarget(10),
	})
	require.NoError(t, err)
	assert.Empty(t, loaded, "images are not decoded without caching")

	item, err := ds.Get(1)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(3, 2), item.Image.Bounds().Size())
	assert.Equal(t, 13, item.Target)
	assert.Equal(t, []string{"0002.png"}, loaded)

	// The untransformed image is still available.
	raw, err := ds.Image(1)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(6, 6), raw.Bounds().Size())
}

func TestNoisyLabelDataset_TransformErrors(t *testing.T) {
	root := fixture{noisy: []string{"1 3"}}.build(t)
	ds, err := NewNoisyLabelDataset(Options{
		Root:            root,
		Layout:          Layout{ImageExt: ".png"},
		TargetTransform: RemapTargets(map[int]int{0: 1}),
	})
	require.NoError(t, err)
	_, err = ds.Get(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target 2 has no mapping")
}

func TestRGBLoaderDropsAlpha(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Pix[0], img.Pix[3] = 200, 10
	require.NoError(t, imaging.Save(img, path))

	got, err := RGBLoader(path)
	require.NoError(t, err)
	nrgba, ok := got.(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, uint8(200), nrgba.Pix[0])
	for i := 3; i < len(nrgba.Pix); i += 4 {
		assert.Equal(t, uint8(0xff), nrgba.Pix[i])
	}
}

func TestNoisyLabelDataset_EvaluationSplitPartlyUnlabeled(t *testing.T) {
	root := fixture{clean: []string{"5 2", "6 4"}}.build(t)
	writeLines(t, filepath.Join(root, "noisy_eval.txt"), []string{"1 3"})

	ds, err := NewNoisyLabelDataset(Options{
		Root:  root,
		Split: SplitTest,
		Layout: Layout{
			CleanManifest: CleanTestManifest,
			NoisyManifest: "noisy_eval.txt",
			ImageExt:      ".png",
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())
	assert.Equal(t, []int{2}, ds.NoisyIndices())

	_, err = ds.Targets()
	assert.True(t, errors.Is(err, ErrMissingLabel), "got %v", err)
	// Sample 0 has a clean label, but the split as a whole does not.
	for i := 0; i < ds.Len(); i++ {
		_, err = ds.Get(i)
		assert.True(t, errors.Is(err, ErrMissingLabel), "index %d: got %v", i, err)
	}

	td, err := NewTrainDataset(ds, 2, nil)
	require.NoError(t, err)
	_, _, _, err = td.Yield()
	assert.True(t, errors.Is(err, ErrMissingLabel), "got %v", err)

	s, err := ds.Sample(0)
	require.NoError(t, err)
	assert.Equal(t, SomeLabel(1), s.Clean)
}

func TestNoisyLabelDataset_UnsupportedImageExtension(t *testing.T) {
	root := fixture{noisy: []string{"1 1"}}.build(t)
	_, err := NewNoisyLabelDataset(Options{Root: root, Layout: Layout{ImageExt: ".txt"}})
	assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)

	_, err = NewNoisyLabelDataset(Options{Root: root, Layout: Layout{ImageExt: "PNG"}})
	assert.NoError(t, err, "extensions match without the dot and ignoring case")
}

func TestNoisyLabelDataset_CachedImagesAreCopies(t *testing.T) {
	root := fixture{noisy: []string{"1 1"}}.build(t)
	ds, err := NewNoisyLabelDataset(Options{Root: root, UseCache: true, Layout: Layout{ImageExt: ".png"}})
	require.NoError(t, err)

	first, err := ds.Image(0)
	require.NoError(t, err)
	want := imaging.Clone(first)
	nrgba, ok := first.(*image.NRGBA)
	require.True(t, ok)
	for i := range nrgba.Pix {
		nrgba.Pix[i] = 0
	}

	again, err := ds.Get(0)
	require.NoError(t, err)
	assert.Equal(t, want, again.Image)
}
