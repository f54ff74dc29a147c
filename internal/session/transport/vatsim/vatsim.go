// Package vatsim implements the VATSIM transport, spec.md §6: an HTTPS
// pull of https://data.vatsim.net/v3/vatsim-data.json at ~0.2 Hz. Unlike
// the other simulator transports this is poll-based, not a persistent
// socket, so Connect is a no-op and Receive blocks until the next poll
// tick is due, rate-limited with golang.org/x/time/rate the same way the
// teacher's providers rate-limit REST polling.
package vatsim

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// DefaultURL is the VATSIM data feed endpoint, spec.md §6.
const DefaultURL = "https://data.vatsim.net/v3/vatsim-data.json"

// DefaultPollHz is the documented pull cadence, spec.md §6 ("~0.2 Hz").
const DefaultPollHz = 0.2

// Transport implements session.Transport as a rate-limited HTTP GET poller.
// Send is a no-op (VATSIM is read-only); Close is also a no-op, and an
// in-flight poll ends only when the ctx passed to Receive is cancelled.
type Transport struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// New builds a VATSIM poller against url. An empty url uses DefaultURL.
func New(url string) *Transport {
	if url == "" {
		url = DefaultURL
	}
	return &Transport{
		url:     url,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(DefaultPollHz), 1),
	}
}

func (t *Transport) Connect(ctx context.Context) error { return nil }

func (t *Transport) Send(ctx context.Context, frame []byte) bool { return false }

func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (t *Transport) Close() error { return nil }
