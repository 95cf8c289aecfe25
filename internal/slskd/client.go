// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package slskd drives a slskd daemon's HTTP API: submitting peer-network
// searches, polling them to completion and enqueueing downloads.
package slskd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/seedbridge/seedbridge/internal/buildinfo"
	"github.com/seedbridge/seedbridge/internal/domain"
)

const (
	apiBase      = "/api/v0"
	pollInterval = 2 * time.Second
)

// Client talks to one slskd instance.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	searchTimeout time.Duration
	responseLimit int
}

func NewClient(baseURL, apiKey string, searchTimeout time.Duration, responseLimit int) *Client {
	if searchTimeout <= 0 {
		searchTimeout = 30 * time.Second
	}
	if responseLimit <= 0 {
		responseLimit = 100
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		searchTimeout: searchTimeout,
		responseLimit: responseLimit,
	}
}

// SearchState is the daemon's view of one search.
type SearchState struct {
	ID            string `json:"id"`
	SearchText    string `json:"searchText"`
	State         string `json:"state"`
	ResponseCount int    `json:"responseCount"`
	FileCount     int    `json:"fileCount"`
}

// Finished reports whether the daemon stopped collecting responses, whether
// by completion, timeout or hitting the response limit.
func (s SearchState) Finished() bool {
	return strings.Contains(s.State, "Completed") || s.LimitReached()
}

// LimitReached reports whether collection was cut short at the response
// limit. A truncated result set can hide the wanted share, so callers may
// want to search again with different queries.
func (s SearchState) LimitReached() bool {
	return strings.Contains(s.State, "ResponseLimitReached")
}

// File is one shared file as reported by a peer. Filename is the peer's full
// share path with Windows-style separators.
type File struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Response is one peer's answer to a search.
type Response struct {
	Username          string `json:"username"`
	HasFreeUploadSlot bool   `json:"hasFreeUploadSlot"`
	UploadSpeed       int    `json:"uploadSpeed"`
	QueueLength       int    `json:"queueLength"`
	Files             []File `json:"files"`
}

// StartSearch submits a new search and returns its daemon-side state.
func (c *Client) StartSearch(ctx context.Context, text string) (*SearchState, error) {
	payload := map[string]any{
		"searchText":           text,
		"searchTimeout":        int(c.searchTimeout / time.Millisecond),
		"responseLimit":        c.responseLimit,
		"filterResponses":      true,
		"minimumPeerFreeSpace": 0,
	}

	var state SearchState
	if err := c.do(ctx, http.MethodPost, apiBase+"/searches", payload, &state); err != nil {
		return nil, errors.Wrapf(err, "start search %q", text)
	}

	log.Debug().Str("id", state.ID).Str("query", text).Msg("peer search started")
	return &state, nil
}

// State fetches the current state of a search.
func (c *Client) State(ctx context.Context, id string) (*SearchState, error) {
	var state SearchState
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/searches/%s", apiBase, id), nil, &state); err != nil {
		return nil, errors.Wrapf(err, "search state %s", id)
	}
	return &state, nil
}

// Responses fetches the collected responses of a search.
func (c *Client) Responses(ctx context.Context, id string) ([]Response, error) {
	var responses []Response
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/searches/%s/responses", apiBase, id), nil, &responses); err != nil {
		return nil, errors.Wrapf(err, "search responses %s", id)
	}
	return responses, nil
}

// Search runs a search end to end: submit, poll until the daemon finishes
// collecting, then fetch responses. The second return reports whether the
// daemon cut collection at the response limit. The daemon's own searchTimeout
// bounds collection; polling additionally stops on context cancellation.
func (c *Client) Search(ctx context.Context, text string) ([]Response, bool, error) {
	state, err := c.StartSearch(ctx, text)
	if err != nil {
		return nil, false, err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for !state.Finished() {
		select {
		case <-ctx.Done():
			return nil, false, errors.Wrapf(ctx.Err(), "search %q interrupted", text)
		case <-ticker.C:
		}

		state, err = c.State(ctx, state.ID)
		if err != nil {
			return nil, false, err
		}
	}

	log.Debug().
		Str("query", text).
		Str("state", state.State).
		Int("responses", state.ResponseCount).
		Int("files", state.FileCount).
		Msg("peer search finished")

	responses, err := c.Responses(ctx, state.ID)
	return responses, state.LimitReached(), err
}

// Enqueue asks the daemon to download the given files from a peer.
func (c *Client) Enqueue(ctx context.Context, username string, files []File) error {
	path := fmt.Sprintf("%s/transfers/downloads/%s", apiBase, username)
	if err := c.do(ctx, http.MethodPost, path, files, nil); err != nil {
		return errors.Wrapf(err, "enqueue %d files from %s", len(files), username)
	}

	log.Info().Str("peer", username).Int("files", len(files)).Msg("download enqueued")
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Wrap(domain.ErrRateLimited, "slskd")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.Errorf("slskd returned status %d for %s %s", resp.StatusCode, method, path)
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}
