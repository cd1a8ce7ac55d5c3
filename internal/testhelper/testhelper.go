// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package testhelper holds shared fixtures for package tests.
package testhelper

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wneessen/taxiwidget/internal/logger"
)

// MockRoundTripper lets tests replace the transport of an http.Client.
type MockRoundTripper struct {
	Fn func(*http.Request) (*http.Response, error)
}

func (m MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Fn(req)
}

// JSONResponse returns a round-trip func that answers every request with the given status and body.
func JSONResponse(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	}
}

// BufferLogger returns a debug level logger that writes into the returned buffer.
func BufferLogger() (*logger.Logger, *bytes.Buffer) {
	buf := bytes.NewBuffer(nil)
	return logger.NewLogger(slog.LevelDebug, buf), buf
}
