package imgcache

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/chai2010/webp"
)

const (
	jpegQualityMin      = 30
	jpegQualityMax      = 95
	jpegFallbackQuality = 75
)

// webpQualitySteps is the fixed descending scan for the WebP pass.
var webpQualitySteps = []int{80, 70, 60, 50}

// CompressToTarget encodes img into at most targetBytes when achievable and
// returns the encoded bytes with the chosen file extension.
//
// Two independent passes are composed by "smaller wins": a binary search
// over JPEG quality [30,95] converging on the highest quality that still
// fits, then a fixed-step WebP scan whose result is adopted only when it
// both fits the target and is strictly smaller than the best JPEG. If no
// attempt fits, the output is JPEG at quality 75 with no size guarantee,
// so the pipeline always produces a decodable image.
func CompressToTarget(img image.Image, targetBytes int) ([]byte, string) {
	img = flattenToWhite(img)

	var best []byte
	bestExt := ""

	low, high := jpegQualityMin, jpegQualityMax
	for low <= high {
		quality := (low + high) / 2
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			break
		}
		if buf.Len() <= targetBytes {
			best = buf.Bytes()
			bestExt = ".jpg"
			low = quality + 1
		} else {
			high = quality - 1
		}
	}

	for _, quality := range webpQualitySteps {
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			break
		}
		if buf.Len() <= targetBytes && (best == nil || buf.Len() < len(best)) {
			best = buf.Bytes()
			bestExt = ".webp"
			break
		}
	}

	if best != nil {
		return best, bestExt
	}

	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegFallbackQuality})
	return buf.Bytes(), ".jpg"
}

// flattenToWhite composites img over an opaque white background, collapsing
// transparency and palette modes so every codec sees plain RGB.
func flattenToWhite(img image.Image) *image.RGBA {
	b := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, b.Min, draw.Over)
	return flat
}
