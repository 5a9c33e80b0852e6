package imgcache

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
)

// blockedTransport fails every request and counts attempts, proving a
// code path made zero network calls.
type blockedTransport struct {
	calls atomic.Int32
}

func (bt *blockedTransport) RoundTrip(*http.Request) (*http.Response, error) {
	bt.calls.Add(1)
	return nil, errors.New("network disabled in this test")
}

// newOfflineService builds a Service whose HTTP client can never succeed.
func newOfflineService(t *testing.T, creds Credentials) (*Service, *blockedTransport) {
	t.Helper()
	bt := &blockedTransport{}
	svc := NewService(Config{
		Finals:     &FinalStore{Dir: t.TempDir()},
		Candidates: &CandidateStore{Dir: t.TempDir()},
		Primary:    creds,
		HTTPClient: &http.Client{Transport: bt},
	})
	return svc, bt
}

// searchItemsJSON writes a search API response listing the given links.
func searchItemsJSON(w http.ResponseWriter, links []string) {
	items := make([]map[string]string, 0, len(links))
	for _, l := range links {
		items = append(items, map[string]string{"link": l})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
}

// newImageServer serves a valid JPEG for every path.
func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	payload := encodeJPEG(t, gradientImage(96, 54))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchPhase1HitNeedsNoNetworkOrCredentials(t *testing.T) {
	t.Parallel()
	svc, bt := newOfflineService(t, Credentials{}) // no credentials at all
	populateFinals(t, svc.cfg.Finals, "trending", 3)

	records := svc.Search(context.Background(), "trending", 3)

	if len(records) != 3 {
		t.Fatalf("Search returned %d records, want 3", len(records))
	}
	urlRe := regexp.MustCompile(`^/image/trending_[123]\.(jpg|jpeg|png|webp|gif|bmp)$`)
	for i, rec := range records {
		if !urlRe.MatchString(rec.URL) {
			t.Errorf("record %d URL = %q, want match %s", i, rec.URL, urlRe)
		}
	}
	if n := bt.calls.Load(); n != 0 {
		t.Errorf("Phase 1 hit made %d network calls, want 0", n)
	}
}

func TestSearchMissWithoutCredentialsReturnsEmpty(t *testing.T) {
	t.Parallel()
	svc, bt := newOfflineService(t, Credentials{})

	if records := svc.Search(context.Background(), "anything", 3); len(records) != 0 {
		t.Errorf("Search without credentials = %v, want empty", records)
	}
	if n := bt.calls.Load(); n != 0 {
		t.Errorf("credential-less miss made %d network calls, want 0", n)
	}
}

func TestSearchPhase2ReusesStoredCandidates(t *testing.T) {
	t.Parallel()
	svc, bt := newOfflineService(t, Credentials{APIKey: "k", SearchEngineID: "cx"})

	dir := svc.cfg.Candidates.KeywordDir("gaming_laptops")
	writeJPEG(t, filepath.Join(dir, "candidate_1.jpg"), gradientImage(96, 54))
	writeJPEG(t, filepath.Join(dir, "candidate_2.jpg"), uniformImage(96, 54, nil))
	writeJPEG(t, filepath.Join(dir, "candidate_3.jpg"), noiseImage(96, 54))

	records := svc.Search(context.Background(), "Gaming Laptops!", 3)

	if len(records) != 3 {
		t.Fatalf("Search returned %d records, want 3", len(records))
	}
	if n := bt.calls.Load(); n != 0 {
		t.Errorf("candidate reuse made %d network calls, want 0", n)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("candidate dir not cleared after successful promotion")
	}
	if !svc.cfg.Finals.AllCached("gaming_laptops", 3) {
		t.Error("final cache incomplete after Phase 2 promotion")
	}
}

func TestSearchPhase3InsufficientPoolFailsFast(t *testing.T) {
	t.Parallel()

	imgSrv := newImageServer(t)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		searchItemsJSON(w, []string{imgSrv.URL + "/photo.jpg"}) // 1 when 3 needed
	}))
	t.Cleanup(apiSrv.Close)

	finalsDir := t.TempDir()
	svc := NewService(Config{
		Finals:     &FinalStore{Dir: finalsDir},
		Candidates: &CandidateStore{Dir: t.TempDir()},
		Primary:    Credentials{APIKey: "k", SearchEngineID: "cx"},
		SearchURL:  apiSrv.URL,
	})

	if records := svc.Search(context.Background(), "rare thing", 3); len(records) != 0 {
		t.Errorf("insufficient pool returned %v, want empty", records)
	}

	entries, err := os.ReadDir(finalsDir)
	if err != nil {
		t.Fatalf("read finals dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("final cache touched on failure: %d entries, want 0", len(entries))
	}

	// The lone downloaded candidate stays cached for a future retry.
	if got := svc.cfg.Candidates.ListValid("rare_thing"); len(got) != 1 {
		t.Errorf("candidates after failed Phase 3 = %d, want 1 retained", len(got))
	}
}

func TestSearchPhase3DownloadsSelectsAndPromotes(t *testing.T) {
	t.Parallel()

	imgSrv := newImageServer(t)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		searchItemsJSON(w, []string{
			imgSrv.URL + "/photo1.jpg",
			imgSrv.URL + "/photo2.jpg",
			imgSrv.URL + "/photo3.jpg",
		})
	}))
	t.Cleanup(apiSrv.Close)

	svc := NewService(Config{
		Finals:     &FinalStore{Dir: t.TempDir()},
		Candidates: &CandidateStore{Dir: t.TempDir()},
		Primary:    Credentials{APIKey: "k", SearchEngineID: "cx"},
		SearchURL:  apiSrv.URL,
	})

	records := svc.Search(context.Background(), "mechanical keyboards", 3)

	if len(records) != 3 {
		t.Fatalf("Search returned %d records, want 3", len(records))
	}
	if !svc.cfg.Finals.AllCached("mechanical_keyboards", 3) {
		t.Error("final cache incomplete after Phase 3")
	}
	if dir := svc.cfg.Candidates.KeywordDir("mechanical_keyboards"); dirExists(dir) {
		t.Error("candidate dir not cleared after successful Phase 3")
	}

	// A second request is now a pure Phase-1 hit for the probe too.
	if !svc.KeywordCached("mechanical_keyboards", 3) {
		t.Error("KeywordCached = false after successful Phase 3, want true")
	}
}

func TestPromoteRemovesStaleExtensionBeforeWriting(t *testing.T) {
	t.Parallel()
	svc, _ := newOfflineService(t, Credentials{})

	// Stale .png occupies slot 1 from an earlier promotion.
	stale := svc.cfg.Finals.slotBase("trending", 1) + ".png"
	writePNG(t, stale, uniformImage(8, 8, nil))

	src := filepath.Join(t.TempDir(), "candidate_1.jpg")
	writeJPEG(t, src, gradientImage(96, 54))

	saved := svc.promote("trending", []string{src})
	if len(saved) != 1 {
		t.Fatalf("promote saved %d files, want 1", len(saved))
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale %q still exists after promotion chose a new extension", stale)
	}
	resolved, ok := ResolveSavedPath(svc.cfg.Finals.slotBase("trending", 1))
	if !ok {
		t.Fatal("no final image resolved for slot 1 after promotion")
	}
	if resolved == stale {
		t.Errorf("resolved path %q is the stale extension", resolved)
	}
	if !IsImageFile(resolved) {
		t.Errorf("promoted file %q fails validation", resolved)
	}
}

func TestPromoteSkipsUndecodableCandidate(t *testing.T) {
	t.Parallel()
	svc, _ := newOfflineService(t, Credentials{})

	good := filepath.Join(t.TempDir(), "good.jpg")
	bad := filepath.Join(t.TempDir(), "bad.jpg")
	writeJPEG(t, good, gradientImage(96, 54))
	writeFile(t, bad, []byte("not an image"))

	saved := svc.promote("mixed", []string{bad, good})

	if len(saved) != 1 {
		t.Fatalf("promote saved %d files, want 1 (bad candidate skipped)", len(saved))
	}
	// The good candidate was second in line, so it lands in slot 2.
	if base := svc.cfg.Finals.slotBase("mixed", 2); !strings.HasPrefix(saved[0], base+".") {
		t.Errorf("saved path = %q, want slot 2 base %q", saved[0], base)
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
