package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// defaultHTTPClient is used by commands that talk to a running server.
var defaultHTTPClient = &http.Client{Timeout: 60 * time.Second}

// apiClient provides HTTP access to a running ragstore server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{baseURL: strings.TrimRight(baseURL, "/"), http: defaultHTTPClient}
}

// do sends body as JSON and decodes a response with status want into out.
// Other statuses become errors carrying the server's message.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any, want int) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return rserr.Wrap(err, rserr.CodeInputUnsupported, "encode request")
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return rserr.Wrap(err, rserr.CodeConfigInvalidValue, "build request", rserr.Field("url", c.baseURL))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return rserr.Transport(err, "request failed", rserr.Field("url", c.baseURL+path))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return rserr.Wrap(err, rserr.CodeBackendResponseInvalid, "decode response")
	}
	return nil
}
