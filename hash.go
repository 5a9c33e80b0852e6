package imgcache

import (
	"image"
	"image/draw"
	"log/slog"
	"os"

	"github.com/corona10/goimagehash"
)

// hashImageFile computes a difference-hash fingerprint for the image at
// path. The image is redrawn into RGBA first so that paletted, grayscale
// and alpha variants of the same picture hash consistently. Returns nil on
// any decode or hash failure; callers must drop unhashable candidates from
// similarity clustering.
func hashImageFile(path string) *goimagehash.ImageHash {
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("imgcache: hash open failed", "path", path, "error", err.Error())
		return nil
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		slog.Warn("imgcache: hash decode failed", "path", path, "error", err.Error())
		return nil
	}

	hash, err := goimagehash.DifferenceHash(toRGBA(img))
	if err != nil {
		slog.Warn("imgcache: hash computation failed", "path", path, "error", err.Error())
		return nil
	}
	return hash
}

// hashDistance returns the Hamming distance between two fingerprints;
// lower means more similar. A failed comparison counts as maximally
// distant so the images land in separate clusters.
func hashDistance(a, b *goimagehash.ImageHash) int {
	dist, err := a.Distance(b)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return dist
}

// toRGBA normalizes any decoded image to *image.RGBA.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
