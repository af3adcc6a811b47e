// Package client talks to a shiftscan server over its JSON API. Error bodies
// are mapped back to the sentinel errors of the server packages so callers can
// use errors.Is the same way on both sides.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shiftscan/database"
	"shiftscan/gate"
	"shiftscan/httpx"
	"shiftscan/ingest"
	"shiftscan/mapping"
	"shiftscan/model"
)

// ErrServerUnreachable wraps transport failures.
var ErrServerUnreachable = errors.New("server unreachable")

// APIError is a non-2xx response that has no matching sentinel.
type APIError struct {
	Status int
	Kind   string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Kind, e.Msg)
}

type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for baseURL. A nil httpClient gets a 15s timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: u, http: httpClient}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = u.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, header http.Header, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), r)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServerUnreachable, err)
	}
	return resp, nil
}

// decode reads a JSON success body into out, or turns an error body into an error.
func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerUnreachable, err)
	}
	if resp.StatusCode >= 300 {
		return errorFromBody(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorFromBody(status int, data []byte) error {
	var body httpx.ErrorBody
	_ = json.Unmarshal(data, &body)
	msg := body.Message
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}

	var sentinel error
	switch body.Error {
	case httpx.KindDuplicateCode:
		sentinel = ingest.ErrDuplicateCode
	case httpx.KindAllDuplicates:
		sentinel = ingest.ErrAllDuplicates
	case httpx.KindEmptyCode:
		sentinel = ingest.ErrEmptyCode
	case httpx.KindInvalidMappingRow:
		sentinel = mapping.ErrInvalidMappingRow
	case httpx.KindStorageUnavailable:
		sentinel = database.ErrStorageUnavailable
	case httpx.KindUnauthorized:
		sentinel = gate.ErrUnauthorized
	}
	if sentinel == nil && status == http.StatusUnauthorized {
		sentinel = gate.ErrUnauthorized
	}
	if sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	return &APIError{Status: status, Kind: body.Error, Msg: msg}
}

func passphraseHeader(passphrase string) http.Header {
	return http.Header{gate.PassphraseHeader: []string{passphrase}}
}

// Submit sends a single manual or scanner code.
func (c *Client) Submit(ctx context.Context, code string) (model.ScanRecord, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/scanned-items", nil, nil,
		map[string]string{"code": code, "source": ingest.SourceScanner})
	if err != nil {
		return model.ScanRecord{}, err
	}
	var rec model.ScanRecord
	err = decode(resp, &rec)
	return rec, err
}

// SubmitBatch sends codes in one request. On ErrAllDuplicates the returned
// result still carries the rejected count.
func (c *Client) SubmitBatch(ctx context.Context, codes []string) (model.BatchResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/scanned-items/batch", nil, nil,
		map[string][]string{"codes": codes})
	if err != nil {
		return model.BatchResult{}, err
	}
	if resp.StatusCode == http.StatusConflict {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		var result model.BatchResult
		_ = json.Unmarshal(data, &result)
		return result, errorFromBody(resp.StatusCode, data)
	}
	var result model.BatchResult
	err = decode(resp, &result)
	return result, err
}

// List returns the server's grouped scans.
func (c *Client) List(ctx context.Context) (model.GroupedScans, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/scanned-items", nil, nil, nil)
	if err != nil {
		return model.GroupedScans{}, err
	}
	var g model.GroupedScans
	err = decode(resp, &g)
	return g, err
}

// Clear deletes every scan on the server.
func (c *Client) Clear(ctx context.Context, passphrase string) (int64, error) {
	resp, err := c.do(ctx, http.MethodDelete, "/api/scanned-items", nil, passphraseHeader(passphrase), nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Deleted int64 `json:"deleted"`
	}
	err = decode(resp, &out)
	return out.Deleted, err
}

// Export streams an xlsx or csv export into w.
func (c *Client) Export(ctx context.Context, format, passphrase string, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/export", url.Values{"format": {format}}, passphraseHeader(passphrase), nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return decode(resp, nil)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: %w", ErrServerUnreachable, err)
	}
	return nil
}

// ReplaceMappings uploads a full mapping set.
func (c *Client) ReplaceMappings(ctx context.Context, entries []model.MappingEntry) error {
	if entries == nil {
		entries = []model.MappingEntry{}
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/mapping-data", nil, nil,
		map[string][]model.MappingEntry{"mappings": entries})
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// Health reports whether the server answers and its store is reachable.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, nil)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}
