// Package preview turns the PNG rendition of a hillshade into a displayable image.
package preview

import (
	"image"
	"image/png"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// DefaultMaxSize is the longest side of a preview, in pixels.
const DefaultMaxSize = 750

// Load decodes the PNG at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open preview %s", path)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode preview %s", path)
	}

	return img, nil
}

// FitSize scales width and height so the longest side is at most maxSize, keeping the aspect
// ratio. Sizes already within bounds are returned unchanged.
func FitSize(width, height, maxSize int) (int, int) {
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return width, height
	}

	if width >= height {
		h := max(1, height*maxSize/width)

		return maxSize, h
	}

	w := max(1, width*maxSize/height)

	return w, maxSize
}

// Fit resizes img with Catmull-Rom resampling so its longest side is at most maxSize.
func Fit(img image.Image, maxSize int) image.Image {
	b := img.Bounds()

	w, h := FitSize(b.Dx(), b.Dy(), maxSize)
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	return dst
}

// Save encodes img as PNG at path.
func Save(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", path)
	}

	err = png.Encode(f, img)
	if err != nil {
		_ = f.Close()

		return errors.Wrapf(err, "unable to encode %s", path)
	}

	return errors.Wrapf(f.Close(), "unable to write %s", path)
}
