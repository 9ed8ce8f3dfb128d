package datasets

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Transform maps a decoded image to the sample handed to the training loop.
// Transforms must not keep references to dataset state.
type Transform func(img image.Image) (image.Image, error)

// TargetTransform maps an effective target.
type TargetTransform func(target int) (int, error)

// Compose chains transforms left to right. Nil entries are skipped.
func Compose(transforms ...Transform) Transform {
	return func(img image.Image) (image.Image, error) {
		var err error
		for _, t := range transforms {
			if t == nil {
				continue
			}
			if img, err = t(img); err != nil {
				return nil, err
			}
		}
		return img, nil
	}
}

// Resize scales to exactly width x height, ignoring the aspect ratio.
func Resize(width, height int) Transform {
	return func(img image.Image) (image.Image, error) {
		if width <= 0 || height <= 0 {
			return nil, errors.Errorf("invalid resize target %dx%d", width, height)
		}
		return imaging.Resize(img, width, height, imaging.Lanczos), nil
	}
}

// CenterCrop scales the image to fill width x height and crops the center.
func CenterCrop(width, height int) Transform {
	return func(img image.Image) (image.Image, error) {
		if width <= 0 || height <= 0 {
			return nil, errors.Errorf("invalid crop target %dx%d", width, height)
		}
		return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos), nil
	}
}

// ResizeWithPadding fits the image inside width x height keeping its aspect
// ratio, and pads the rest with opaque black.
func ResizeWithPadding(width, height int) Transform {
	return func(img image.Image) (image.Image, error) {
		if width <= 0 || height <= 0 {
			return nil, errors.Errorf("invalid resize target %dx%d", width, height)
		}
		fitted := imaging.Fit(img, width, height, imaging.Lanczos)
		if b := fitted.Bounds(); b.Dx() == width && b.Dy() == height {
			return fitted, nil
		}
		bg := imaging.New(width, height, color.NRGBA{A: 0xff})
		return imaging.PasteCenter(bg, fitted), nil
	}
}

// FlipHorizontal mirrors the image left to right.
func FlipHorizontal() Transform {
	return func(img image.Image) (image.Image, error) {
		return imaging.FlipH(img), nil
	}
}

// Grayscale desaturates the image, keeping three identical channels.
func Grayscale() Transform {
	return func(img image.Image) (image.Image, error) {
		return imaging.Grayscale(img), nil
	}
}

// OffsetTarget adds k to every target.
func OffsetTarget(k int) TargetTransform {
	return func(target int) (int, error) {
		return target + k, nil
	}
}

// RemapTargets replaces targets through m. Targets missing from m are an error.
func RemapTargets(m map[int]int) TargetTransform {
	return func(target int) (int, error) {
		v, ok := m[target]
		if !ok {
			return 0, errors.Errorf("target %d has no mapping", target)
		}
		return v, nil
	}
}

// ToCHW resizes img to size x size and returns its RGB channels as planar
// float32 values in [0, 1], channel-major.
func ToCHW(img image.Image, size int) ([]float32, error) {
	if size <= 0 {
		return nil, errors.Errorf("invalid size %d", size)
	}
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)
	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	out := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*width + x
			out[i] = float32(r) / 65535.0
			out[plane+i] = float32(g) / 65535.0
			out[2*plane+i] = float32(b) / 65535.0
		}
	}
	return out, nil
}
