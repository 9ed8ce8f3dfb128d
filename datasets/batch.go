package datasets

import (
	"image"
	"io"
	"math/rand"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	timage "github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Batch reads several items. All indices are checked before any image is
// decoded.
func Batch(src Source, indices []int) (images []image.Image, targets []int, err error) {
	n := src.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, nil, errors.Wrapf(ErrIndexOutOfRange, "batch index %d not in [0, %d)", idx, n)
		}
	}
	images = make([]image.Image, len(indices))
	targets = make([]int, len(indices))
	for i, idx := range indices {
		item, err := src.Get(idx)
		if err != nil {
			return nil, nil, err
		}
		images[i] = item.Image
		targets[i] = item.Target
	}
	return images, targets, nil
}

// Batch reads the items at indices; see the package level Batch.
func (d *NoisyLabelDataset) Batch(indices []int) ([]image.Image, []int, error) {
	return Batch(d, indices)
}

// ImageBatch holds a batch of equally sized images and their targets.
type ImageBatch struct {
	Images  []image.Image
	Targets []int32
	Indices []int32
	Width   int
	Height  int
}

// MakeImageBatch checks that images and targets line up and that all images
// share the same size. indices may be nil.
func MakeImageBatch(images []image.Image, targets []int, indices []int) (*ImageBatch, error) {
	if len(images) != len(targets) {
		return nil, errors.Errorf("images and targets batch sizes don't match: %d != %d", len(images), len(targets))
	}
	if indices != nil && len(indices) != len(images) {
		return nil, errors.Errorf("images and indices batch sizes don't match: %d != %d", len(images), len(indices))
	}
	b := &ImageBatch{
		Images:  images,
		Targets: make([]int32, len(targets)),
		Indices: make([]int32, len(images)),
	}
	for i, t := range targets {
		b.Targets[i] = int32(t)
	}
	for i := range b.Indices {
		if indices != nil {
			b.Indices[i] = int32(indices[i])
		} else {
			b.Indices[i] = int32(i)
		}
	}
	if len(images) == 0 {
		return b, nil
	}

	size := images[0].Bounds().Size()
	b.Width, b.Height = size.X, size.Y
	for i, img := range images[1:] {
		if s := img.Bounds().Size(); s != size {
			return nil, errors.Wrapf(ErrShapeMismatch, "image %d is %dx%d, expected %dx%d (add a Resize transform)",
				i+1, s.X, s.Y, size.X, size.Y)
		}
	}
	return b, nil
}

// Len returns the batch size.
func (b *ImageBatch) Len() int {
	return len(b.Images)
}

// ToGomlxTensors converts the batch to tensors: images shaped
// [batch, height, width, 3] of dtype, and targets and indices shaped [batch]
// as int32.
func (b *ImageBatch) ToGomlxTensors(dtype dtypes.DType) (images, targets, indices *tensors.Tensor, err error) {
	if b.Len() == 0 {
		return nil, nil, nil, errors.New("cannot convert an empty batch to tensors")
	}
	images = timage.ToTensor(dtype).Batch(b.Images)
	targets = tensors.FromValue(b.Targets)
	indices = tensors.FromValue(b.Indices)
	return images, targets, indices, nil
}

// TrainDataset adapts a Source to gomlx's train.Dataset. It walks the
// source once per epoch, optionally shuffled, and returns io.EOF at the end
// of the epoch until Reset is called.
type TrainDataset struct {
	src       Source
	name      string
	batchSize int
	dtype     dtypes.DType
	dropLast  bool
	shuffle   *rand.Rand

	// mu protects order and pos.
	mu    sync.Mutex
	order []int
	pos   int
}

var _ train.Dataset = (*TrainDataset)(nil)

// NewTrainDataset creates the adapter. If shuffle is not nil, every epoch
// visits the samples in a new random order drawn from it.
func NewTrainDataset(src Source, batchSize int, shuffle *rand.Rand) (*TrainDataset, error) {
	if src == nil {
		return nil, errors.New("source cannot be nil")
	}
	if batchSize < 1 {
		return nil, errors.Errorf("batch size must be >= 1, got %d", batchSize)
	}
	ds := &TrainDataset{
		src:       src,
		name:      src.Name(),
		batchSize: batchSize,
		dtype:     dtypes.Float32,
		shuffle:   shuffle,
	}
	ds.Reset()
	return ds, nil
}

// WithDType sets the dtype of the image tensors. Returns itself.
func (ds *TrainDataset) WithDType(dtype dtypes.DType) *TrainDataset {
	ds.dtype = dtype
	return ds
}

// WithDropIncomplete skips the last batch of an epoch if it is smaller than
// the batch size. Returns itself.
func (ds *TrainDataset) WithDropIncomplete(drop bool) *TrainDataset {
	ds.dropLast = drop
	return ds
}

// Name implements train.Dataset.
func (ds *TrainDataset) Name() string { return ds.name }

// Reset implements train.Dataset. It restarts the epoch and reshuffles.
func (ds *TrainDataset) Reset() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	n := ds.src.Len()
	if len(ds.order) != n {
		ds.order = make([]int, n)
	}
	for i := range ds.order {
		ds.order[i] = i
	}
	if ds.shuffle != nil {
		ds.shuffle.Shuffle(n, func(i, j int) {
			ds.order[i], ds.order[j] = ds.order[j], ds.order[i]
		})
	}
	ds.pos = 0
}

// nextIndices reserves the indices of the next batch.
func (ds *TrainDataset) nextIndices() ([]int, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	remaining := len(ds.order) - ds.pos
	if remaining <= 0 || (ds.dropLast && remaining < ds.batchSize) {
		return nil, io.EOF
	}
	n := min(ds.batchSize, remaining)
	indices := make([]int, n)
	copy(indices, ds.order[ds.pos:ds.pos+n])
	ds.pos += n
	return indices, nil
}

// Yield implements train.Dataset. It returns:
//
//   - spec: the TrainDataset itself.
//   - inputs: the images, shaped [batch, height, width, 3], and the sample
//     indices as int32, shaped [batch].
//   - labels: the effective targets as int32, shaped [batch].
func (ds *TrainDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	indices, err := ds.nextIndices()
	if err != nil {
		return nil, nil, nil, err
	}
	images, targets, err := Batch(ds.src, indices)
	if err != nil {
		return nil, nil, nil, err
	}
	batch, err := MakeImageBatch(images, targets, indices)
	if err != nil {
		return nil, nil, nil, err
	}
	imgT, targetT, idxT, err := batch.ToGomlxTensors(ds.dtype)
	if err != nil {
		return nil, nil, nil, err
	}
	return ds, []*tensors.Tensor{imgT, idxT}, []*tensors.Tensor{targetT}, nil
}
