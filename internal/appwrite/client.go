// Package appwrite talks to the Document/File Store over its REST API.
//
// Two capability-scoped clients are offered. PublicClient sends the project
// header only and can write documents and upload files. AdminClient adds the
// privileged API key and can additionally manage collections and attributes.
// The privileged key never reaches code holding only a PublicClient.
package appwrite

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

	"github.com/dmitrijs2005/secnexus/internal/common"
)

const defaultTimeout = 30 * time.Second

// Config addresses one Appwrite project.
type Config struct {
	Endpoint string // e.g. https://cloud.appwrite.io/v1
	Project  string
	// HTTPClient overrides the default client (tests, proxies).
	HTTPClient *http.Client
}

type transport struct {
	endpoint string
	project  string
	apiKey   string
	hc       *http.Client
}

func newTransport(cfg Config, apiKey string) *transport {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &transport{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		project:  cfg.Project,
		apiKey:   apiKey,
		hc:       hc,
	}
}

// errorBody is the JSON error envelope returned by the store.
type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

// do sends a request and decodes a JSON answer into out (if non-nil). A non
// 2xx answer becomes a *common.RemoteError tagged with op.
func (t *transport) do(ctx context.Context, op, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &common.RemoteError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		rdr = bytes.NewReader(b)
	}
	req, err := t.newRequest(ctx, method, path, rdr)
	if err != nil {
		return &common.RemoteError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return t.send(req, op, out)
}

func (t *transport) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Appwrite-Project", t.project)
	req.Header.Set("X-Appwrite-Response-Format", "1.5.0")
	if t.apiKey != "" {
		req.Header.Set("X-Appwrite-Key", t.apiKey)
	}
	return req, nil
}

func (t *transport) send(req *http.Request, op string, out any) error {
	resp, err := t.hc.Do(req)
	if err != nil {
		return &common.RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &common.RemoteError{Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		re := &common.RemoteError{Op: op, Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
			re.Message, re.Type = eb.Message, eb.Type
		} else {
			re.Message = strings.TrimSpace(string(raw))
		}
		return re
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &common.RemoteError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func asDataError(err error) error {
	var re *common.RemoteError
	if errors.As(err, &re) {
		return &common.DataError{RemoteError: *re}
	}
	return err
}

func asStorageError(err error) error {
	var re *common.RemoteError
	if errors.As(err, &re) {
		return &common.StorageError{RemoteError: *re}
	}
	return uploadError("", err)
}

func esc(s string) string { return url.PathEscape(s) }
