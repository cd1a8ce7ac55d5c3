// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package http talks to the JSON APIs used by the position sources and the geocoder.
package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"runtime"
	"time"

	"github.com/wneessen/taxiwidget/internal/logger"
)

const (
	// DefaultTimeout applies when a Request carries no timeout of its own.
	DefaultTimeout = time.Second * 10

	// MaxResponseSize caps how much of a response body is decoded.
	MaxResponseSize = 1 << 20

	contentTypeJSON = "application/json"
)

var (
	// version is the version of the application (will be set at build time)
	version = "dev"
	// UserAgent is the User-Agent that the HTTP client sends with API requests
	UserAgent = fmt.Sprintf("Mozilla/5.0 (%s; %s) taxiwidget/%s (+https://github.com/wneessen/taxiwidget/)",
		runtime.GOOS,
		runtime.GOARCH,
		version,
	)

	ErrNonPointerTarget = errors.New("target must be a non-nil pointer")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// Request describes one call against a JSON API. A non-nil Payload is JSON encoded
// into the request body.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Header  map[string]string
	Payload any
	Timeout time.Duration
}

// Client is a JSON API client on top of the stdlib http.Client.
type Client struct {
	*http.Client
	logger *logger.Logger
}

// New returns a new HTTP client
func New(log *logger.Logger) *Client {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}
	httpClient := &http.Client{
		Timeout:   DefaultTimeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}
	return &Client{httpClient, log}
}

// GetJSON fetches endpoint with the given query and decodes the answer into target.
func (h *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, timeout time.Duration,
	target any,
) (int, error) {
	return h.Fetch(ctx, Request{Method: http.MethodGet, URL: endpoint, Query: query, Timeout: timeout}, target)
}

// PostJSON sends payload as JSON body to endpoint and decodes the answer into target.
func (h *Client) PostJSON(ctx context.Context, endpoint string, payload any, timeout time.Duration,
	target any,
) (int, error) {
	return h.Fetch(ctx, Request{Method: http.MethodPost, URL: endpoint, Payload: payload, Timeout: timeout}, target)
}

// Fetch performs req and decodes the JSON answer into target. The returned int is the
// HTTP status code, or 0 if no response was received.
func (h *Client) Fetch(ctx context.Context, req Request, target any) (int, error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return 0, ErrNonPointerTarget
	}

	request, err := h.build(ctx, req)
	if err != nil {
		return 0, err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(request.Context(), timeout)
	defer cancel()

	response, err := h.Do(request.WithContext(ctx))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	defer func() {
		if err := response.Body.Close(); err != nil {
			h.logger.Error("failed to close HTTP response body", logger.Err(err))
		}
	}()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return response.StatusCode, fmt.Errorf("%w: %d %s %s", ErrUnexpectedStatus, response.StatusCode,
			request.Method, request.URL.Redacted())
	}
	if err = json.NewDecoder(io.LimitReader(response.Body, MaxResponseSize)).Decode(target); err != nil {
		return response.StatusCode, fmt.Errorf("failed to decode JSON: %w", err)
	}

	return response.StatusCode, nil
}

// build turns req into a stdlib request with the query merged into the URL and the
// payload encoded as body.
func (h *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	reqURL, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if len(req.Query) > 0 {
		merged := reqURL.Query()
		for key, values := range req.Query {
			merged[key] = append(merged[key], values...)
		}
		reqURL.RawQuery = merged.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Payload != nil {
		buf := new(bytes.Buffer)
		if err = json.NewEncoder(buf).Encode(req.Payload); err != nil {
			return nil, fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = buf
	}

	request, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	request.Header.Set("User-Agent", UserAgent)
	request.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		request.Header.Set("Content-Type", contentTypeJSON)
	}
	for key, value := range req.Header {
		request.Header.Set(key, value)
	}
	return request, nil
}
