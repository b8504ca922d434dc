package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"glossa/internal/api"
	"glossa/internal/config"
	"glossa/internal/translator"
)

const streamSentinel = "[DONE]"

// apiClient talks to the glossad HTTP API. Translation requests can run for
// the whole job timeout, so the underlying client carries no deadline;
// callers bound calls through the context instead.
type apiClient struct {
	baseURL string
	token   string
	httpc   *http.Client
}

func newAPIClient(cfg *config.Config, serverOverride string) *apiClient {
	base := strings.TrimSpace(serverOverride)
	if base == "" {
		base = bindToURL(cfg.Paths.APIBind)
	}
	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		httpc:   &http.Client{},
	}
}

// bindToURL turns a listen address like ":8090" or "127.0.0.1:8090" into a
// base URL the client can dial.
func bindToURL(bind string) string {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return "http://127.0.0.1:8090"
	}
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return bind
	}
	if strings.HasPrefix(bind, ":") {
		return "http://127.0.0.1" + bind
	}
	host, port, found := strings.Cut(bind, ":")
	if found && (host == "" || host == "0.0.0.0" || host == "::") {
		return "http://127.0.0.1:" + port
	}
	return "http://" + bind
}

func (c *apiClient) Translate(ctx context.Context, req api.TranslateRequest) (*api.TranslateResponse, error) {
	req.Stream = false
	var resp api.TranslateResponse
	if err := c.do(ctx, http.MethodPost, "/translation", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TranslateStream submits the request in streaming mode and invokes onEvent
// for every server-sent event until the stream ends.
func (c *apiClient) TranslateStream(ctx context.Context, req api.TranslateRequest, onEvent func(translator.Event) error) error {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/translation", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		return wrapTransportError(err, c.baseURL)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return decodeError(httpResp)
	}

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == streamSentinel {
			return nil
		}
		var event translator.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := onEvent(event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

func (c *apiClient) Job(ctx context.Context, jobID string) (*api.TranslateResponse, error) {
	var resp api.TranslateResponse
	if err := c.do(ctx, http.MethodGet, "/translation/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Cancel(ctx context.Context, jobID string) (*api.JobDTO, error) {
	var resp api.JobDTO
	if err := c.do(ctx, http.MethodDelete, "/translation/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Feedback(ctx context.Context, jobID string, rating int, comment string) error {
	req := api.FeedbackRequest{Rating: rating, Comment: comment}
	return c.do(ctx, http.MethodPost, "/translation/"+url.PathEscape(jobID)+"/feedback", req, nil)
}

func (c *apiClient) History(ctx context.Context, userID string, limit, offset int) (*api.HistoryResponse, error) {
	query := url.Values{}
	query.Set("user_id", userID)
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	var resp api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/translation/history?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Stats(ctx context.Context) (*api.StatsResponse, error) {
	var resp api.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/translation/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) CacheStats(ctx context.Context) (*api.CacheStatsResponse, error) {
	var resp api.CacheStatsResponse
	if err := c.do(ctx, http.MethodGet, "/translation/cache/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) InvalidateCache(ctx context.Context, contentHash, sourceLang, targetLang string) (int64, error) {
	query := url.Values{}
	if sourceLang != "" {
		query.Set("source_lang", sourceLang)
	}
	if targetLang != "" {
		query.Set("target_lang", targetLang)
	}
	path := "/translation/cache/" + url.PathEscape(contentHash)
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp api.DeletedResponse
	if err := c.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

func (c *apiClient) InvalidateCacheByURL(ctx context.Context, pageURL, sourceLang, targetLang string) (int64, error) {
	query := url.Values{}
	query.Set("url", pageURL)
	if sourceLang != "" {
		query.Set("source_lang", sourceLang)
	}
	if targetLang != "" {
		query.Set("target_lang", targetLang)
	}
	var resp api.DeletedResponse
	if err := c.do(ctx, http.MethodDelete, "/translation/cache?"+query.Encode(), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

func (c *apiClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return wrapTransportError(err, c.baseURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func decodeError(resp *http.Response) error {
	var envelope api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != "" {
		if envelope.Field != "" {
			return fmt.Errorf("%s: %s (field %s)", resp.Status, envelope.Error, envelope.Field)
		}
		return fmt.Errorf("%s: %s", resp.Status, envelope.Error)
	}
	return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
}

func wrapTransportError(err error, baseURL string) error {
	return fmt.Errorf("connect to daemon at %s: %w (is glossad running?)", baseURL, err)
}

// waitTimeout bounds calls that should return quickly, like health checks.
const waitTimeout = 10 * time.Second
