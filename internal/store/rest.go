package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strings"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
	"github.com/hyperjump/ragstore/pkg/utils"
)

const maxErrorBody = 512

// restClient is a minimal JSON-over-HTTP client for the remote stores.
// It never retries.
type restClient struct {
	service string
	baseURL string
	client  *http.Client
	headers map[string]string
}

// do sends body as JSON and decodes a successful response into out. Statuses
// listed in allow are returned without error and without decoding, so callers
// can treat them as benign. Any other non-2xx status is a backend error.
func (c *restClient) do(ctx context.Context, method, path string, body, out any, allow ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, rserr.Wrap(err, rserr.CodeInputEmptyDocument, "failed to encode request",
				rserr.FieldStore(c.service), rserr.FieldOperation(path))
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return 0, rserr.Wrap(err, rserr.CodeConfigInvalidValue, "invalid endpoint",
			rserr.FieldStore(c.service), rserr.Field("url", c.baseURL))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, rserr.Transport(err, c.service+" request failed",
			rserr.FieldStore(c.service), rserr.FieldOperation(method+" "+path))
	}
	defer resp.Body.Close()

	if slices.Contains(allow, resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, rserr.New(rserr.CodeBackendUnavailable, c.service+" returned "+resp.Status,
			rserr.FieldStore(c.service),
			rserr.FieldOperation(method+" "+path),
			rserr.Field("status", resp.StatusCode),
			rserr.Field("body", utils.Truncate(strings.TrimSpace(string(snippet)), 200)),
		)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		fields := []rserr.Attr{rserr.FieldStore(c.service), rserr.FieldOperation(method + " " + path)}
		if transport := rserr.Transport(err, c.service+" response read failed", fields...); rserr.IsTimeout(transport) {
			return resp.StatusCode, transport
		}
		return resp.StatusCode, rserr.Wrap(err, rserr.CodeBackendResponseInvalid, c.service+" response could not be decoded", fields...)
	}
	return resp.StatusCode, nil
}
