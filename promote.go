package imgcache

import (
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"os"

	"github.com/nfnt/resize"
)

// promote resizes, compresses, and writes the selected candidates into the
// final store, one slot per path starting at slot 1. Returns the paths
// successfully written and re-validated; per-item failures are logged and
// skipped so a single bad candidate never aborts the batch.
func (s *Service) promote(key string, selected []string) []string {
	var saved []string

	for idx, src := range selected {
		slot := idx + 1

		img, err := decodeFile(src)
		if err != nil {
			slog.Error("imgcache: candidate decode failed", "path", src, "error", err.Error())
			continue
		}

		framed := frameOnCanvas(img, finalWidth, finalHeight)
		data, ext := CompressToTarget(framed, s.cfg.TargetBytes)

		base := s.cfg.Finals.slotBase(key, slot)
		// One file per slot: drop every stale extension before writing.
		for _, oldExt := range SupportedExtensions {
			if err := os.Remove(base + oldExt); err != nil && !os.IsNotExist(err) {
				slog.Warn("imgcache: stale final removal failed", "path", base+oldExt, "error", err.Error())
			}
		}

		finalPath := base + ext
		if err := os.WriteFile(finalPath, data, 0o644); err != nil {
			slog.Error("imgcache: final write failed", "path", finalPath, "error", err.Error())
			continue
		}

		if !IsImageFile(finalPath) {
			slog.Error("imgcache: promoted file failed validation", "path", finalPath)
			continue
		}

		saved = append(saved, finalPath)
		slog.Info("imgcache: saved optimized image", "file", finalPath, "size_kb", len(data)/1024)
	}

	return saved
}

// frameOnCanvas scales img down to fit within width x height (Lanczos,
// aspect preserved, never upscaled) and centers it on an opaque white
// canvas of exactly that size.
func frameOnCanvas(img image.Image, width, height int) *image.RGBA {
	fitted := resize.Thumbnail(uint(width), uint(height), img, resize.Lanczos3)

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	fb := fitted.Bounds()
	x := (width - fb.Dx()) / 2
	y := (height - fb.Dy()) / 2
	target := image.Rect(x, y, x+fb.Dx(), y+fb.Dy())
	draw.Draw(canvas, target, fitted, fb.Min, draw.Over)

	return canvas
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}
