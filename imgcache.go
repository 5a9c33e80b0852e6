// Package imgcache turns a search keyword into a small set of visually
// diverse, size-optimized images backed by a durable two-tier file cache.
//
// The pipeline runs in three phases: a final-cache check (zero network),
// reuse of previously downloaded candidates, and finally a remote image
// search with download, perceptual-hash diversity selection, compression
// to a byte budget, and promotion into the final cache.
package imgcache

import (
	"net/http"
	"time"
)

const (
	// TargetFileSize is the byte budget for a promoted final image.
	TargetFileSize = 25 * 1024

	// CacheTTL is exported for external eviction policy. Nothing in this
	// package enforces it; final images persist until overwritten.
	CacheTTL = 2400 * time.Hour

	// DefaultCount is the number of final images per keyword.
	DefaultCount = 3

	// similarityThreshold is the maximum Hamming distance between two
	// difference hashes for images to be considered near-duplicates.
	similarityThreshold = 10

	// Final image canvas, 16:9.
	finalWidth  = 480
	finalHeight = 270

	searchTimeout   = 20 * time.Second
	downloadTimeout = 30 * time.Second
)

// SupportedExtensions is the fixed, ordered extension list used by the
// extension resolver and the candidate listing filter.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".bmp"}

// ImageRecord is the servable projection of a final image returned to the
// web layer. URL and Thumbnail are relative paths of the form
// /image/{filename}.
type ImageRecord struct {
	URL       string
	Thumbnail string
	Title     string
	Source    string
}

// Candidate is a downloaded-but-not-yet-finalized image on disk.
type Candidate struct {
	Path string
	Size int64
}

// Credentials identifies one API key / search engine pair for the remote
// image-search endpoint.
type Credentials struct {
	APIKey         string
	SearchEngineID string
}

// Configured reports whether both fields are set.
func (c Credentials) Configured() bool {
	return c.APIKey != "" && c.SearchEngineID != ""
}

// Config holds all dependencies injected by the consumer.
type Config struct {
	Finals     *FinalStore     // required: served-images directory
	Candidates *CandidateStore // required: per-keyword scratch directories

	Primary Credentials // search API credentials; empty = cache-only operation
	Backup  Credentials // optional: retried once on quota exhaustion

	// SearchURL overrides the image-search endpoint (tests, proxies).
	// Default: Google Custom Search.
	SearchURL string

	HTTPClient *http.Client // default: http.DefaultClient
	// StealthClient, when set, is tried first for candidate downloads and
	// the plain client used as fallback. Callers supply a TLS-fingerprinted
	// client here; this package treats it as an opaque *http.Client.
	StealthClient *http.Client

	UserAgent string // default: desktop Chrome UA

	// TargetBytes overrides TargetFileSize for promoted images.
	TargetBytes int
}

// defaults fills zero-value fields in place.
func (c *Config) defaults() {
	if c.SearchURL == "" {
		c.SearchURL = "https://www.googleapis.com/customsearch/v1"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	}
	if c.TargetBytes <= 0 {
		c.TargetBytes = TargetFileSize
	}
}
