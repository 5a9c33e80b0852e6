package imgcache

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// CandidateStore owns the per-keyword scratch directories holding
// downloaded-but-not-yet-promoted images. Entries are ephemeral: deleted
// after a successful promotion, or left in place for reuse by a later
// search. Access is uncoordinated; concurrent searches for the same
// keyword may race on these directories (last writer wins).
type CandidateStore struct {
	Dir string
}

// KeywordDir returns the scratch directory for a keyword key.
func (s *CandidateStore) KeywordDir(key string) string {
	return filepath.Join(s.Dir, key)
}

// ListValid returns every validated candidate for key with its byte size.
// Files with unsupported extensions and files that fail image validation
// are skipped silently. A missing directory yields an empty list.
func (s *CandidateStore) ListValid(key string) []Candidate {
	dir := s.KeywordDir(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var valid []Candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExtension(ext) {
			continue
		}
		if !IsImageFile(path) {
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		valid = append(valid, Candidate{Path: path, Size: size})
	}
	return valid
}

// Delete removes the keyword's entire scratch directory. Best-effort:
// filesystem errors are logged and swallowed.
func (s *CandidateStore) Delete(key string) {
	dir := s.KeywordDir(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			removed++
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("imgcache: cache cleanup failed", "keyword_base", key, "error", err.Error())
		return
	}
	slog.Info("imgcache: cache cleanup",
		"keyword_base", key, "candidates_deleted", removed, "action", "delete_candidates")
}

func supportedExtension(ext string) bool {
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
