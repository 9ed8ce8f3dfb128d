package datasets

import "github.com/pkg/errors"

// Errors returned by the dataset. They are always wrapped with context, so
// compare with errors.Is.
var (
	// ErrConfiguration is returned when the class table does not have the
	// expected cardinality or contains duplicate names.
	ErrConfiguration = errors.New("dataset configuration error")

	// ErrEmptyDataset is returned when the manifests of a split yield no samples.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrMissingLabel is returned when an evaluation split has samples
	// without a clean label.
	ErrMissingLabel = errors.New("missing clean label")

	// ErrIndexOutOfRange is returned by Get and Batch for indices outside [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInternalConsistency signals a bug: the preloaded images are not
	// aligned with the samples.
	ErrInternalConsistency = errors.New("internal consistency error")

	// ErrMalformedManifest is returned for manifest lines that cannot be parsed.
	ErrMalformedManifest = errors.New("malformed manifest")

	// ErrInvalidSplit is returned for unknown split names.
	ErrInvalidSplit = errors.New("invalid split")

	// ErrShapeMismatch is returned when images in a batch have different sizes.
	ErrShapeMismatch = errors.New("image shape mismatch")
)
