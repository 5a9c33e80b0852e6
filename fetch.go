package imgcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// maxCandidateBytes caps a single candidate download.
const maxCandidateBytes = 10 * 1024 * 1024

// errQuotaExhausted marks a 429-class response from the search API.
var errQuotaExhausted = errors.New("search API quota exhausted")

// searchResponse mirrors the image-search endpoint's JSON envelope.
type searchResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
}

// extensionByContentType is the closed mapping from normalized content type
// to candidate file extension. Unlisted types are rejected outright rather
// than guessed at, so only decodable formats ever reach the cache.
var extensionByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
}

// fetchCandidateURLs queries the image-search API for keyword and returns
// candidate image URLs. The primary credentials are tried first; a quota
// error falls back to the backup credentials exactly once when configured,
// otherwise the quota failure propagates.
func (s *Service) fetchCandidateURLs(ctx context.Context, keyword string, num int) ([]string, error) {
	urls, err := s.querySearchAPI(ctx, keyword, num, s.cfg.Primary, "primary")
	if err == nil {
		return urls, nil
	}
	if !errors.Is(err, errQuotaExhausted) {
		return nil, err
	}

	slog.Warn("imgcache: primary API rate limit", "keyword", keyword)
	if !s.cfg.Backup.Configured() {
		slog.Error("imgcache: backup API not configured", "keyword", keyword)
		return nil, err
	}
	return s.querySearchAPI(ctx, keyword, num, s.cfg.Backup, "backup")
}

// querySearchAPI performs one search request with the given credentials.
func (s *Service) querySearchAPI(ctx context.Context, keyword string, num int, creds Credentials, label string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("key", creds.APIKey)
	params.Set("cx", creds.SearchEngineID)
	params.Set("q", keyword)
	params.Set("searchType", "image")
	params.Set("num", strconv.Itoa(num))
	params.Set("safe", "active")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.SearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	start := time.Now()
	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errQuotaExhausted
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search API decode: %w", err)
	}

	urls := make([]string, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Link != "" {
			urls = append(urls, item.Link)
		}
	}

	slog.Info("imgcache: search API call",
		"keyword", keyword, "requested", num, "urls_received", len(urls),
		"response_time", time.Since(start).Seconds(), "quota_usage", 1,
		"status_code", resp.StatusCode, "api", label)
	return urls, nil
}

// downloadCandidates fetches each URL into the keyword's scratch directory
// as candidate_{n} and returns the candidates that downloaded, mapped to a
// known content type, and validated. Every failure is per-item: logged,
// dropped, and processing continues.
func (s *Service) downloadCandidates(ctx context.Context, key string, urls []string) []Candidate {
	dir := s.cfg.Candidates.KeywordDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("imgcache: candidate dir create failed", "dir", dir, "error", err.Error())
		return nil
	}

	var downloaded []Candidate
	for idx, rawURL := range urls {
		if isNonContentURL(strings.ToLower(rawURL)) {
			slog.Debug("imgcache: skipped non-content URL", "url", rawURL)
			continue
		}

		base := filepath.Join(dir, fmt.Sprintf("candidate_%d", idx+1))
		path, ok := s.downloadCandidate(ctx, rawURL, base)
		if !ok {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		downloaded = append(downloaded, Candidate{Path: path, Size: info.Size()})
	}
	return downloaded
}

// downloadCandidate streams one image URL to destBase plus the extension
// derived from the response content type. Tries the stealth client first
// when configured, then the plain client, since some hosts reject default
// Go TLS fingerprints. Returns ok=false on any download, content-type,
// stock-metadata, or validation failure.
func (s *Service) downloadCandidate(ctx context.Context, rawURL, destBase string) (string, bool) {
	if s.cfg.StealthClient != nil {
		if path, ok := s.fetchCandidateBody(ctx, s.cfg.StealthClient, rawURL, destBase); ok {
			return path, true
		}
	}
	return s.fetchCandidateBody(ctx, s.cfg.HTTPClient, rawURL, destBase)
}

func (s *Service) fetchCandidateBody(ctx context.Context, client *http.Client, rawURL, destBase string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("imgcache: download failed", "url", rawURL, "error", err.Error())
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("imgcache: download status", "url", rawURL, "status", resp.StatusCode)
		return "", false
	}

	ext, ok := extensionByContentType[normalizeContentType(resp.Header.Get("Content-Type"))]
	if !ok {
		slog.Warn("imgcache: unrecognized content type", "url", rawURL,
			"content_type", resp.Header.Get("Content-Type"))
		return "", false
	}

	path := destBase + ext
	f, err := os.Create(path)
	if err != nil {
		return "", false
	}
	_, copyErr := io.Copy(f, io.LimitReader(resp.Body, maxCandidateBytes))
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		return "", false
	}

	if !IsImageFile(path) {
		slog.Warn("imgcache: downloaded candidate failed validation", "url", rawURL)
		_ = os.Remove(path)
		return "", false
	}

	if data, err := os.ReadFile(path); err == nil && isStockTagged(data) {
		slog.Info("imgcache: rejected stock-tagged candidate", "url", rawURL)
		_ = os.Remove(path)
		return "", false
	}

	return path, true
}

// normalizeContentType lowercases and strips MIME parameters:
// "image/JPEG; charset=utf-8" → "image/jpeg".
func normalizeContentType(ct string) string {
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
