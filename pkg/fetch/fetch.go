// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

// Package fetch retrieves telemetry snapshots from a stats server.
package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/n0ot/rtcdash/pkg/telemetry"
)

// maxRedirects is how many redirects a snapshot request may follow.
const maxRedirects = 5

// A Fetcher gets the server's complete current snapshot.
// Fetchers do not retry; polling decides what happens after a failure.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (telemetry.Snapshot, error)
}

// TransportError is returned when a snapshot request does not complete,
// or completes with a status other than 2xx.
type TransportError struct {
	URL        string
	StatusCode int // 0 if no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("Fetch %s: server returned %d %s", e.URL, e.StatusCode, fasthttp.StatusMessage(e.StatusCode))
	}
	return fmt.Sprintf("Fetch %s: %s", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether the cause of err is a TransportError.
func IsTransportError(err error) bool {
	_, ok := errors.Cause(err).(*TransportError)
	return ok
}

// HTTPFetcher fetches snapshots with GET requests.
type HTTPFetcher struct {
	// URL of the stats endpoint, such as http://127.0.0.1:9999/stats.
	URL string

	// Username and Password, if either is set, are sent with HTTP basic auth.
	Username string
	Password string

	// Timeout bounds each request. If 0, requests are bounded only by ctx.
	Timeout time.Duration

	Client *fasthttp.Client
}

// NewHTTPFetcher creates an HTTPFetcher for url.
func NewHTTPFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{
		URL: url,
		Client: &fasthttp.Client{
			Name:                "rtcdash",
			MaxResponseBodySize: 256 << 20,
		},
	}
}

type fetchResult struct {
	snap telemetry.Snapshot
	err  error
}

// FetchSnapshot requests and decodes one snapshot.
// If ctx is cancelled first, ctx.Err() is returned and the request is abandoned.
// If ctx's deadline passes first, a TransportError is returned.
func (f *HTTPFetcher) FetchSnapshot(ctx context.Context) (telemetry.Snapshot, error) {
	if ctx.Err() != nil {
		return telemetry.Snapshot{}, f.contextError(ctx)
	}

	done := make(chan fetchResult, 1)
	go func() {
		snap, err := f.fetch(f.timeout(ctx))
		done <- fetchResult{snap: snap, err: err}
	}()

	select {
	case <-ctx.Done():
		return telemetry.Snapshot{}, f.contextError(ctx)
	case res := <-done:
		return res.snap, res.err
	}
}

// contextError reports a passed deadline as a request that did not complete.
// Cancellation is returned as is.
func (f *HTTPFetcher) contextError(ctx context.Context) error {
	err := ctx.Err()
	if err == context.DeadlineExceeded {
		return &TransportError{URL: f.URL, Err: err}
	}
	return err
}

// timeout picks the tighter of f.Timeout and ctx's deadline.
func (f *HTTPFetcher) timeout(ctx context.Context) time.Duration {
	timeout := f.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if untilDeadline := time.Until(deadline); timeout == 0 || untilDeadline < timeout {
			timeout = untilDeadline
		}
	}
	return timeout
}

func (f *HTTPFetcher) fetch(timeout time.Duration) (telemetry.Snapshot, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(f.URL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if f.Username != "" || f.Password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(f.Username + ":" + f.Password))
		req.Header.Set(fasthttp.HeaderAuthorization, "Basic "+creds)
	}
	if timeout > 0 {
		req.SetTimeout(timeout)
	}

	client := f.Client
	if client == nil {
		client = &fasthttp.Client{}
	}
	if err := client.DoRedirects(req, resp, maxRedirects); err != nil {
		return telemetry.Snapshot{}, &TransportError{URL: f.URL, Err: err}
	}

	status := resp.StatusCode()
	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		return telemetry.Snapshot{}, &TransportError{URL: f.URL, StatusCode: status}
	}

	snap, err := telemetry.DecodeSnapshot(resp.Body())
	if err != nil {
		return telemetry.Snapshot{}, errors.Wrapf(err, "Fetch %s", f.URL)
	}
	return snap, nil
}
