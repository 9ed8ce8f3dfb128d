// Package datasets maps a directory-based image dataset with clean and noisy
// label manifests into indexable (image, target) pairs for a training loop.
//
// Layout expected under the dataset root:
//
//	classes.txt                    one class name per line (200 by default)
//	training_labels_noise_80.txt   "<image_index> <label_1_based>" per line, noisy labels
//	test_labels.txt                same format, clean labels
//	train/0012.jpg, test/0007.jpg  images, index zero-padded to 4 digits
//
// The train split trains on noisy labels. Samples that also carry a clean
// label ("verification" samples) still train on the noisy one; the clean
// label is only used to measure noise. The val and test splits use clean
// labels and require one for every sample.
//
// Images are decoded on demand, or once at construction when caching is
// enabled. Batches can be converted to gomlx tensors, and TrainDataset plugs
// the dataset into a gomlx train.Loop.
package datasets

// Source is the read-only view of a dataset used by the batching adapter
// and by consumers that only need index-based access.
type Source interface {
	Name() string
	Len() int
	Get(index int) (Item, error)
}

// LabelSource exposes the per-sample labels without decoding images.
type LabelSource interface {
	Len() int
	Split() Split
	Classes() *ClassTable
	Samples() []Sample
}

var (
	_ Source      = (*NoisyLabelDataset)(nil)
	_ LabelSource = (*NoisyLabelDataset)(nil)
)
