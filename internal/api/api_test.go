package api

import (
	"errors"
	"testing"

	"glossa/internal/translation"
)

func validTranslateRequest() TranslateRequest {
	return TranslateRequest{
		Text:       "Hello world.",
		SourceLang: "en",
		TargetLang: "fr",
	}
}

func TestValidateTranslateRequest(t *testing.T) {
	if err := Validate(validTranslateRequest()); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*TranslateRequest)
		field  string
	}{
		{"missing text", func(r *TranslateRequest) { r.Text = "" }, "text"},
		{"missing source", func(r *TranslateRequest) { r.SourceLang = "" }, "source_lang"},
		{"missing target", func(r *TranslateRequest) { r.TargetLang = "" }, "target_lang"},
		{"bad url", func(r *TranslateRequest) { r.PageURL = "not a url" }, "page_url"},
		{"temperature too high", func(r *TranslateRequest) { r.Temperature = 3 }, "temperature"},
		{"chunk size too small", func(r *TranslateRequest) { r.ChunkSize = 10 }, "chunk_size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validTranslateRequest()
			tc.mutate(&req)
			err := Validate(req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *translation.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%v)", tc.field, verr.Field, verr)
			}
		})
	}
}

func TestValidateFeedbackRequest(t *testing.T) {
	if err := Validate(FeedbackRequest{Rating: 1}); err != nil {
		t.Fatalf("positive rating rejected: %v", err)
	}
	if err := Validate(FeedbackRequest{Rating: -1, Comment: "too literal"}); err != nil {
		t.Fatalf("negative rating rejected: %v", err)
	}
	if err := Validate(FeedbackRequest{}); err == nil {
		t.Fatal("missing rating must be rejected")
	}
	if err := Validate(FeedbackRequest{Rating: 2}); err == nil {
		t.Fatal("out-of-range rating must be rejected")
	}
}

func TestResolvePrincipal(t *testing.T) {
	principal := ResolvePrincipal("body-user", "", "header-user", "header-session")
	if principal.UserID != "body-user" {
		t.Fatalf("body user must win, got %q", principal.UserID)
	}
	if principal.SessionID != "header-session" {
		t.Fatalf("header session must fill the gap, got %q", principal.SessionID)
	}
}

func TestJobFromDomainUsesSnippet(t *testing.T) {
	job := &translation.Job{
		JobID:        "job-1",
		Status:       translation.JobCompleted,
		SourceLang:   "en",
		TargetLang:   "fr",
		OriginalText: "Hello   world.\nSecond line.",
	}
	dto := JobFromDomain(job)
	if dto.Snippet != "Hello world. Second line." {
		t.Fatalf("unexpected snippet: %q", dto.Snippet)
	}
	if dto.Status != "completed" {
		t.Fatalf("unexpected status: %q", dto.Status)
	}
}
