package imgcache

import (
	"fmt"
	"path/filepath"
)

// FinalStore owns the served-images directory. Final images are named
// {keywordKey}_{slot}{ext} with exactly one recognized extension per slot;
// promotion removes stale extensions before writing a new one. Files
// persist indefinitely and are only replaced by a later promotion.
type FinalStore struct {
	Dir string
}

// slotBase returns the extension-less path for a (key, slot) pair.
func (s *FinalStore) slotBase(key string, slot int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%d", key, slot))
}

// AllCached reports whether every slot 1..count resolves to an existing
// file that passes image validation. A corrupt final file is a cache miss,
// which forces the pipeline to re-fetch and overwrite it.
func (s *FinalStore) AllCached(key string, count int) bool {
	for slot := 1; slot <= count; slot++ {
		path, ok := ResolveSavedPath(s.slotBase(key, slot))
		if !ok || !IsImageFile(path) {
			return false
		}
	}
	return true
}

// Images returns servable records for the resolved slots of key, in slot
// order. Slots that do not resolve are skipped.
func (s *FinalStore) Images(key string, count int) []ImageRecord {
	records := make([]ImageRecord, 0, count)
	for slot := 1; slot <= count; slot++ {
		path, ok := ResolveSavedPath(s.slotBase(key, slot))
		if !ok {
			continue
		}
		name := filepath.Base(path)
		records = append(records, ImageRecord{
			URL:       "/image/" + name,
			Thumbnail: "/image/" + name,
			Title:     fmt.Sprintf("Image %d", slot),
			Source:    "Cached",
		})
	}
	return records
}
