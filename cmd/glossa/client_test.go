package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"glossa/internal/api"
)

func writeDocument(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return path
}

func TestBindToURL(t *testing.T) {
	cases := map[string]string{
		"":                      "http://127.0.0.1:8090",
		":8090":                 "http://127.0.0.1:8090",
		"0.0.0.0:8090":          "http://127.0.0.1:8090",
		"127.0.0.1:8090":        "http://127.0.0.1:8090",
		"http://localhost:9000": "http://localhost:9000",
	}
	for bind, want := range cases {
		if got := bindToURL(bind); got != want {
			t.Errorf("bindToURL(%q) = %q, want %q", bind, got, want)
		}
	}
}

func TestTranslateCommandPrintsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/translation" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req api.TranslateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SourceLang != "en" || req.TargetLang != "fr" {
			t.Errorf("unexpected language pair %s>%s", req.SourceLang, req.TargetLang)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.TranslateResponse{
			JobID:          "job-1",
			Status:         "completed",
			TranslatedText: "Bonjour le monde.",
			Progress:       100,
		})
	}))
	defer server.Close()

	cfgPath := writeTestConfig(t, "")
	doc := writeDocument(t, "Hello world.")

	out, err := runCLI(t, "--config", cfgPath, "--server", server.URL,
		"translate", doc, "-s", "en", "-t", "fr")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	requireContains(t, out, "Bonjour le monde.")
}

func TestTranslateCommandSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.TranslateResponse{Status: "completed", TranslatedText: "ok"})
	}))
	defer server.Close()

	cfgPath := writeTestConfig(t, "sekrit")
	doc := writeDocument(t, "Hello world.")

	if _, err := runCLI(t, "--config", cfgPath, "--server", server.URL,
		"translate", doc, "-s", "en", "-t", "fr"); err != nil {
		t.Fatalf("translate: %v", err)
	}
	if gotAuth != "Bearer sekrit" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
}

func TestTranslateStreamPrintsChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"type":"status","job_id":"job-1","status":"chunk_processing","chunks_total":2}`,
			`{"type":"chunk","job_id":"job-1","chunk_index":0,"progress":50,"text":"Bonjour. "}`,
			`{"type":"chunk","job_id":"job-1","chunk_index":1,"progress":100,"text":"Au revoir."}`,
			`{"type":"done","job_id":"job-1","status":"completed","progress":100,"text":"Bonjour. Au revoir."}`,
		}
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	cfgPath := writeTestConfig(t, "")
	doc := writeDocument(t, "Hello. Goodbye.")

	out, err := runCLI(t, "--config", cfgPath, "--server", server.URL,
		"translate", doc, "-s", "en", "-t", "fr", "--stream")
	if err != nil {
		t.Fatalf("translate --stream: %v", err)
	}
	requireContains(t, out, "Bonjour. Au revoir.")
}

func TestTranslateStreamSurfacesErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":\"gateway unavailable\"}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	cfgPath := writeTestConfig(t, "")
	doc := writeDocument(t, "Hello.")

	_, err := runCLI(t, "--config", cfgPath, "--server", server.URL,
		"translate", doc, "-s", "en", "-t", "fr", "--stream")
	if err == nil {
		t.Fatal("expected stream error to surface")
	}
	requireContains(t, err.Error(), "gateway unavailable")
}

func TestHistoryRendersTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translation/history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("user_id"); got != "user-1" {
			t.Errorf("unexpected user_id %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.HistoryResponse{
			Jobs: []api.JobDTO{{
				JobID:      "job-1",
				Status:     "completed",
				SourceLang: "en",
				TargetLang: "fr",
				Snippet:    "Hello world.",
				CreatedAt:  time.Now(),
			}},
			Total: 1, Limit: 20,
		})
	}))
	defer server.Close()

	cfgPath := writeTestConfig(t, "")

	out, err := runCLI(t, "--config", cfgPath, "--server", server.URL,
		"history", "--user", "user-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "job-1")
	requireContains(t, out, "en>fr")
	requireContains(t, out, "Showing 1 of 1 jobs")
}

func TestHistoryRequiresUser(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	if _, err := runCLI(t, "--config", cfgPath, "history"); err == nil {
		t.Fatal("expected history without --user to fail")
	}
}

func TestCacheInvalidateCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/translation/cache/abc123" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("source_lang"); got != "en" {
			t.Errorf("unexpected source_lang %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.DeletedResponse{Deleted: 2})
	}))
	defer server.Close()

	cfgPath := writeTestConfig(t, "")

	out, err := runCLI(t, "--config", cfgPath, "--server", server.URL,
		"cache", "invalidate", "abc123", "--source", "en")
	if err != nil {
		t.Fatalf("cache invalidate: %v", err)
	}
	requireContains(t, out, "Removed 2 cache entries")
}

func TestErrorEnvelopeSurfacesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "text is required", Kind: "validation", Field: "text"})
	}))
	defer server.Close()

	cfgPath := writeTestConfig(t, "")
	doc := writeDocument(t, "Hello.")

	_, err := runCLI(t, "--config", cfgPath, "--server", server.URL,
		"translate", doc, "-s", "en", "-t", "fr")
	if err == nil {
		t.Fatal("expected error from 400 response")
	}
	requireContains(t, err.Error(), "text is required")
	requireContains(t, err.Error(), "field text")
}
