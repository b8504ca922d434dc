package httpd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"glossa/internal/api"
	"glossa/internal/cachestore"
	"glossa/internal/config"
	"glossa/internal/logging"
	"glossa/internal/services/llm"
	"glossa/internal/testsupport"
	"glossa/internal/textutil"
	"glossa/internal/translation"
	"glossa/internal/translator"
)

type stubGateway struct {
	mu    sync.Mutex
	calls int
	fn    func(req llm.Request) (llm.Result, error)
}

func (g *stubGateway) Translate(_ context.Context, req llm.Request) (llm.Result, error) {
	g.mu.Lock()
	g.calls++
	fn := g.fn
	g.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return llm.Result{TranslatedText: "FR:" + req.Text, InputTokens: 10, OutputTokens: 8, EstimatedCostUSD: 0.001}, nil
}

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) (*httptest.Server, *stubGateway, *translation.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	cache := cachestore.New(store.DB(), cfg.Cache)
	gateway := &stubGateway{}
	svc := translator.New(cfg, store, cache, gateway, logging.NewNop())
	server := New(cfg, svc, store, cache, logging.NewNop())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, gateway, store, cfg
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func doRequest(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func translateBody(text string) api.TranslateRequest {
	return api.TranslateRequest{
		Text:       text,
		SourceLang: "en",
		TargetLang: "fr",
		UserID:     "user-1",
		SessionID:  "session-1",
	}
}

func TestHealthSkipsAuthentication(t *testing.T) {
	ts, _, _, _ := newTestServer(t, testsupport.WithAPIToken("secret"))
	resp := doRequest(t, http.MethodGet, ts.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestTranslateRequiresBearerToken(t *testing.T) {
	ts, gateway, _, _ := newTestServer(t, testsupport.WithAPIToken("secret"))

	resp := postJSON(t, ts.URL+"/translation/", "", translateBody("Hello world."))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/translation/", "wrong", translateBody("Hello world."))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", resp.StatusCode)
	}
	if gateway.calls != 0 {
		t.Fatalf("unauthorized requests must not reach the gateway, got %d calls", gateway.calls)
	}

	resp = postJSON(t, ts.URL+"/translation/", "secret", translateBody("Hello world."))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", resp.StatusCode)
	}
}

func TestTranslateValidationErrors(t *testing.T) {
	ts, gateway, _, _ := newTestServer(t)

	body := translateBody("Hello world.")
	body.Text = ""
	resp := postJSON(t, ts.URL+"/translation/", "", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	envelope := decodeBody[api.ErrorResponse](t, resp)
	if envelope.Field != "text" || envelope.Kind != string(translation.KindValidation) {
		t.Fatalf("unexpected error envelope: %+v", envelope)
	}
	if gateway.calls != 0 {
		t.Fatal("invalid request must not reach the gateway")
	}
}

func TestTranslateRoundTrip(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/translation/", "", translateBody("Hello world."))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	result := decodeBody[api.TranslateResponse](t, resp)
	if result.Status != "completed" || result.Cached {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.TranslatedText != "FR:Hello world." {
		t.Fatalf("unexpected text: %q", result.TranslatedText)
	}
	if result.JobID == "" || len(result.Chunks) != 1 {
		t.Fatalf("unexpected job shape: %+v", result)
	}

	// The job endpoint reports the persisted record.
	jobResp := doRequest(t, http.MethodGet, ts.URL+"/translation/"+result.JobID, "")
	if jobResp.StatusCode != http.StatusOK {
		t.Fatalf("job fetch: expected 200, got %d", jobResp.StatusCode)
	}
	job := decodeBody[api.TranslateResponse](t, jobResp)
	if job.TranslatedText != result.TranslatedText || job.Status != "completed" {
		t.Fatalf("unexpected persisted job: %+v", job)
	}

	// History lists it under the requesting user.
	histResp := doRequest(t, http.MethodGet, ts.URL+"/translation/history?user_id=user-1", "")
	if histResp.StatusCode != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", histResp.StatusCode)
	}
	history := decodeBody[api.HistoryResponse](t, histResp)
	if history.Total != 1 || len(history.Jobs) != 1 || history.Jobs[0].JobID != result.JobID {
		t.Fatalf("unexpected history: %+v", history)
	}

	// Unknown jobs are 404.
	missing := doRequest(t, http.MethodGet, ts.URL+"/translation/nope", "")
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.StatusCode)
	}
}

func TestFeedbackAdjustsCache(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/translation/", "", translateBody("Hello world."))
	result := decodeBody[api.TranslateResponse](t, resp)

	// Positive feedback keeps the entry and promotes its TTL tier.
	fb := postJSON(t, ts.URL+"/translation/"+result.JobID+"/feedback", "", api.FeedbackRequest{Rating: 1})
	fb.Body.Close()
	if fb.StatusCode != http.StatusOK {
		t.Fatalf("feedback: expected 200, got %d", fb.StatusCode)
	}
	statsResp := doRequest(t, http.MethodGet, ts.URL+"/translation/cache/stats", "")
	stats := decodeBody[api.CacheStatsResponse](t, statsResp)
	if stats.Entries != 1 {
		t.Fatalf("expected 1 cache entry after positive feedback, got %d", stats.Entries)
	}

	// Negative feedback evicts the entry.
	fb = postJSON(t, ts.URL+"/translation/"+result.JobID+"/feedback", "", api.FeedbackRequest{Rating: -1, Comment: "too literal"})
	fb.Body.Close()
	if fb.StatusCode != http.StatusOK {
		t.Fatalf("negative feedback: expected 200, got %d", fb.StatusCode)
	}
	statsResp = doRequest(t, http.MethodGet, ts.URL+"/translation/cache/stats", "")
	stats = decodeBody[api.CacheStatsResponse](t, statsResp)
	if stats.Entries != 0 {
		t.Fatalf("expected eviction after negative feedback, got %d entries", stats.Entries)
	}

	// Ratings outside -1/+1 are rejected.
	fb = postJSON(t, ts.URL+"/translation/"+result.JobID+"/feedback", "", map[string]int{"rating": 3})
	fb.Body.Close()
	if fb.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad rating, got %d", fb.StatusCode)
	}
}

func TestCacheInvalidateByContentHash(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/translation/", "", translateBody("Hello world."))
	resp.Body.Close()

	contentHash := textutil.ContentHash("Hello world.")
	url := fmt.Sprintf("%s/translation/cache/%s?source_lang=en&target_lang=fr", ts.URL, contentHash)
	del := doRequest(t, http.MethodDelete, url, "")
	if del.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", del.StatusCode)
	}
	deleted := decodeBody[api.DeletedResponse](t, del)
	if deleted.Deleted != 1 {
		t.Fatalf("expected 1 deleted entry, got %d", deleted.Deleted)
	}
}

func TestStreamEmitsEventFrames(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	body := translateBody("Hello world.")
	body.Stream = true
	resp := postJSON(t, ts.URL+"/translation/", "", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", ct)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	payload := string(raw)
	if !strings.Contains(payload, `"type":"done"`) {
		t.Fatalf("expected a done event, got:\n%s", payload)
	}
	if !strings.HasSuffix(payload, "data: [DONE]\n\n") {
		t.Fatalf("expected [DONE] sentinel, got:\n%s", payload)
	}
	for _, line := range strings.Split(payload, "\n") {
		if line != "" && !strings.HasPrefix(line, "data: ") {
			t.Fatalf("non-SSE line in stream: %q", line)
		}
	}
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/translation/", "", translateBody("Hello world."))
	resp.Body.Close()

	metricsResp := doRequest(t, http.MethodGet, ts.URL+"/metrics", "")
	defer metricsResp.Body.Close()
	if metricsResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", metricsResp.StatusCode)
	}
	raw, err := io.ReadAll(metricsResp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, "glossa_translate_requests_total") {
		t.Fatal("expected request counter in metrics output")
	}
	if !strings.Contains(body, `status="completed"`) {
		t.Fatal("expected completed label after a successful job")
	}
}

func TestCancelUnknownJobReturnsNotFound(t *testing.T) {
	ts, _, _, _ := newTestServer(t)
	resp := doRequest(t, http.MethodDelete, ts.URL+"/translation/nope", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCacheInvalidateByURLHonorsLanguageFilters(t *testing.T) {
	ts, _, _, _ := newTestServer(t)

	body := translateBody("Hello world.")
	body.PageURL = "https://example.com/article"
	resp := postJSON(t, ts.URL+"/translation/", "", body)
	resp.Body.Close()

	// Wrong pair: the filter must protect the entry.
	url := ts.URL + "/translation/cache?url=https%3A%2F%2Fexample.com%2Farticle&source_lang=en&target_lang=de"
	del := doRequest(t, http.MethodDelete, url, "")
	if got := decodeBody[api.DeletedResponse](t, del); got.Deleted != 0 {
		t.Fatalf("expected 0 deleted for the en/de pair, got %d", got.Deleted)
	}

	url = ts.URL + "/translation/cache?url=https%3A%2F%2Fexample.com%2Farticle&source_lang=en&target_lang=fr"
	del = doRequest(t, http.MethodDelete, url, "")
	if got := decodeBody[api.DeletedResponse](t, del); got.Deleted != 1 {
		t.Fatalf("expected 1 deleted for the en/fr pair, got %d", got.Deleted)
	}
}

func TestWriteErrorStatusByKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"service", &translation.ServiceError{Op: "translate", Err: fmt.Errorf("bad gateway")}, http.StatusBadGateway},
		{"rate limit", &translation.ServiceError{Op: "translate", ErrorKind: translation.KindRateLimit}, http.StatusTooManyRequests},
		{"timeout", &translation.ServiceError{Op: "translate", ErrorKind: translation.KindTimeout}, http.StatusGatewayTimeout},
		{"validation", &translation.ValidationError{Field: "text", Reason: "required"}, http.StatusBadRequest},
		{"not found", translation.ErrNotFound, http.StatusNotFound},
		{"conflict", translation.ErrConflict, http.StatusConflict},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		if rec.Code != tc.want {
			t.Errorf("%s: expected status %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}
