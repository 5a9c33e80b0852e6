package imgcache

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// IsImageFile reports whether path holds a genuine, fully decodable image.
// It checks, in order: the file exists, is non-empty, its header parses
// (integrity pass), and its pixel data decodes completely (load pass).
// A truncated download typically passes the header check and fails the
// full decode, so both passes are required. This is the sole gate keeping
// corrupt entries out of the cache.
func IsImageFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		return false
	}
	if _, err := f.Seek(0, 0); err != nil {
		return false
	}
	if _, _, err := image.Decode(f); err != nil {
		return false
	}
	return true
}

// ResolveSavedPath finds the on-disk file for a base path whose extension
// was chosen by the compressor and is unknown to the caller. It returns the
// bare path if it exists, otherwise the first base+ext match over
// SupportedExtensions in order, otherwise ok=false.
func ResolveSavedPath(baseWithoutExt string) (string, bool) {
	if _, err := os.Stat(baseWithoutExt); err == nil {
		return baseWithoutExt, true
	}
	for _, ext := range SupportedExtensions {
		candidate := baseWithoutExt + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
