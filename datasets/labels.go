package datasets

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Unlabeled is the target reported for a sample that has neither a clean nor
// a noisy label.
const Unlabeled = -1

// Label is an optional class index. The zero value is "no label".
type Label struct {
	Index int
	Valid bool
}

// NoLabel is the absent label.
var NoLabel = Label{}

// SomeLabel returns a present label with class index i.
func SomeLabel(i int) Label {
	return Label{Index: i, Valid: true}
}

// Get returns the class index and whether the label is present.
func (l Label) Get() (int, bool) {
	return l.Index, l.Valid
}

func (l Label) String() string {
	if !l.Valid {
		return "none"
	}
	return fmt.Sprintf("%d", l.Index)
}

// Category classifies a sample by which labels it carries.
type Category int

const (
	CategoryUnlabeled Category = iota
	CategoryCleanOnly
	CategoryNoisyOnly
	CategoryVerification
)

// Categories lists all categories in display order.
var Categories = []Category{CategoryCleanOnly, CategoryNoisyOnly, CategoryVerification, CategoryUnlabeled}

func (c Category) String() string {
	switch c {
	case CategoryCleanOnly:
		return "clean_only"
	case CategoryNoisyOnly:
		return "noisy_only"
	case CategoryVerification:
		return "verification"
	}
	return "unlabeled"
}

// MarshalText lets categories be used as map keys in YAML/JSON output.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Split names a partition of the dataset.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// ParseSplit accepts "train", "val" and "test", case-insensitively.
func ParseSplit(s string) (Split, error) {
	switch sp := Split(strings.ToLower(strings.TrimSpace(s))); sp {
	case SplitTrain, SplitVal, SplitTest:
		return sp, nil
	}
	return "", errors.Wrapf(ErrInvalidSplit, "split %q, expected one of train / val / test", s)
}

// IsEvaluation reports whether targets on this split come from clean labels.
func (s Split) IsEvaluation() bool {
	return s == SplitVal || s == SplitTest
}

// Sample is one entry of the dataset.
type Sample struct {
	// Path of the image file.
	Path string

	// ImageID is the numeric image index read from the manifest.
	ImageID int

	// Clean is the human-verified label, if any.
	Clean Label

	// Noisy is the weak label, if any.
	Noisy Label
}

// Category of the sample.
func (s Sample) Category() Category {
	switch {
	case s.Clean.Valid && s.Noisy.Valid:
		return CategoryVerification
	case s.Clean.Valid:
		return CategoryCleanOnly
	case s.Noisy.Valid:
		return CategoryNoisyOnly
	}
	return CategoryUnlabeled
}

// EffectiveTarget reconciles the two label sources into the label used for
// training. Verification samples train on the noisy label; the clean one is
// kept for measuring noise only.
func EffectiveTarget(clean, noisy Label) Label {
	if noisy.Valid {
		return noisy
	}
	return clean
}

// Target returns the effective target of the sample for the given split.
// Evaluation splits require the clean label. On the training split a sample
// with no labels yields Unlabeled and no error.
func (s Sample) Target(split Split) (int, error) {
	if split.IsEvaluation() {
		if !s.Clean.Valid {
			return Unlabeled, errors.Wrapf(ErrMissingLabel, "sample %q in %s split", s.Path, split)
		}
		return s.Clean.Index, nil
	}
	if t := EffectiveTarget(s.Clean, s.Noisy); t.Valid {
		return t.Index, nil
	}
	return Unlabeled, nil
}
