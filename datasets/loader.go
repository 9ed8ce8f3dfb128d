package datasets

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	// imaging registers jpeg, png, gif, bmp and tiff.
	_ "golang.org/x/image/webp"
)

// Loader decodes the image stored at path.
type Loader func(path string) (image.Image, error)

// RGBLoader is the default Loader: it decodes the file, applies the EXIF
// orientation and drops any alpha channel, returning an opaque *image.NRGBA.
func RGBLoader(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load image %s", path)
	}
	return toRGB(img), nil
}

// toRGB copies img into a fully opaque NRGBA image.
func toRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
