package imgcache

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Service is the image search orchestrator. One Search call walks three
// phases in strict order, each success short-circuiting the rest:
//
//  1. Final-cache check: all slots present and valid → serve immediately,
//     zero network calls, no credentials needed.
//  2. Candidate reuse: enough leftover candidates from a prior incomplete
//     run → select, promote, and serve without touching the API.
//  3. Fetch: query the search API, download candidates, select diverse
//     winners, promote them, and serve.
//
// No error crosses Search's boundary: every failure mode degrades to a
// shorter (possibly empty) result so the caller can always render a page.
type Service struct {
	cfg Config
}

// NewService builds a Service around cfg, filling defaulted fields and
// creating the store root directories. Finals and Candidates stores are
// required.
func NewService(cfg Config) *Service {
	cfg.defaults()
	if cfg.Finals != nil {
		if err := os.MkdirAll(cfg.Finals.Dir, 0o755); err != nil {
			slog.Warn("imgcache: final dir create failed", "dir", cfg.Finals.Dir, "error", err.Error())
		}
	}
	if cfg.Candidates != nil {
		if err := os.MkdirAll(cfg.Candidates.Dir, 0o755); err != nil {
			slog.Warn("imgcache: candidates dir create failed", "dir", cfg.Candidates.Dir, "error", err.Error())
		}
	}
	return &Service{cfg: cfg}
}

// KeywordCached is the cheap cache-hit probe used by the web layer to pick
// between synchronous and background response paths. keywordKey must
// already be sanitized.
func (s *Service) KeywordCached(keywordKey string, count int) bool {
	if count <= 0 {
		count = DefaultCount
	}
	return s.cfg.Finals.AllCached(keywordKey, count)
}

// Search returns up to count servable image records for keyword. An empty
// slice is the uniform failure signal; callers treat it as "no images for
// this slot", never as an error condition.
func (s *Service) Search(ctx context.Context, keyword string, count int) []ImageRecord {
	if count <= 0 {
		count = DefaultCount
	}
	key := SanitizeKeyword(keyword)

	// Phase 1: serve from the final cache. Works without credentials.
	if s.cfg.Finals.AllCached(key, count) {
		slog.Info("imgcache: cache hit, all images exist", "keyword", keyword)
		return s.cfg.Finals.Images(key, count)
	}

	// A cache miss forces a fetch path, which needs API credentials.
	if !s.cfg.Primary.Configured() {
		slog.Error("imgcache: API credentials not configured, cannot fetch new images",
			"keyword", keyword)
		return nil
	}

	// Phase 2: reuse candidates a prior incomplete run left behind.
	if existing := s.cfg.Candidates.ListValid(key); len(existing) >= count {
		slog.Info("imgcache: candidate reuse", "keyword", keyword, "candidates", len(existing))
		selected := SelectDiverse(existing, count)
		if saved := s.promote(key, selected); len(saved) == count {
			s.cfg.Candidates.Delete(key)
			return s.cfg.Finals.Images(key, count)
		}
	}

	// Phase 3: download new candidates from the API.
	slog.Info("imgcache: API call needed, downloading candidates", "keyword", keyword)
	return s.fetchAndSelect(ctx, keyword, key, count)
}

// fetchAndSelect is Phase 3: fetch URLs, download candidates into the
// scratch directory, and run selection/promotion over the merged pool of
// new and surviving prior candidates.
func (s *Service) fetchAndSelect(ctx context.Context, keyword, key string, count int) []ImageRecord {
	requestNum := count
	if requestNum < 10 {
		// Oversample so the diversity selector has a real pool to cluster.
		requestNum = 10
	}

	urls, err := s.fetchCandidateURLs(ctx, keyword, requestNum)
	if err != nil {
		slog.Error("imgcache: candidate fetch failed", "keyword", keyword, "error", err.Error())
		return nil
	}
	if len(urls) == 0 {
		slog.Warn("imgcache: search API returned no results",
			"keyword", keyword, "requested", requestNum)
		return nil
	}

	downloaded := s.downloadCandidates(ctx, key, urls)

	// The scratch directory now holds both the new downloads and whatever
	// valid candidates a prior run left; list it once for the merged pool.
	merged := s.cfg.Candidates.ListValid(key)

	slog.Info("imgcache: candidate processing",
		"keyword", keyword,
		"downloaded_new", len(downloaded),
		"total_candidates", len(merged),
		"download_failures", len(urls)-len(downloaded))

	if len(merged) < count {
		slog.Error("imgcache: insufficient candidates",
			"keyword", keyword, "available", len(merged), "required", count)
		return nil
	}

	selectStart := time.Now()
	selected := SelectDiverse(merged, count)
	selectionTime := time.Since(selectStart)

	compressStart := time.Now()
	saved := s.promote(key, selected)
	compressionTime := time.Since(compressStart)

	slog.Info("imgcache: image processing",
		"keyword", keyword,
		"selection_time", selectionTime.Seconds(),
		"compression_time", compressionTime.Seconds(),
		"final_images", len(saved))

	if len(saved) < count {
		// Leave the candidates cached so a retry can finish the job.
		slog.Error("imgcache: failed to save enough images",
			"keyword", keyword, "saved", len(saved), "required", count)
		return nil
	}

	s.cfg.Candidates.Delete(key)
	slog.Info("imgcache: selection complete",
		"keyword", keyword, "saved", len(saved), "pool", len(merged))
	return s.cfg.Finals.Images(key, count)
}
