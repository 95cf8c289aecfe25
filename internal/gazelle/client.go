// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package gazelle is a minimal client for Gazelle-family tracker APIs,
// covering the browse, torrentgroup, torrent and download actions.
package gazelle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/seedbridge/seedbridge/internal/buildinfo"
	"github.com/seedbridge/seedbridge/internal/domain"
	"github.com/seedbridge/seedbridge/internal/fetchcache"
)

const maxTorrentDownloadBytes int64 = 16 << 20 // safety limit for torrent blobs

// Gazelle allows roughly 5 API requests per 10 seconds; fixed spacing at 3
// per 4 seconds keeps a margin under that.
const requestInterval = 4 * time.Second / 3

// Client talks to one Gazelle instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *fetchcache.Store

	mu       sync.Mutex
	lastCall time.Time
}

type Option func(*Client)

// WithResponseCache caches metadata responses (browse, torrentgroup,
// torrent) in the given store. Downloads are never cached here.
func WithResponseCache(store *fetchcache.Store) Option {
	return func(c *Client) {
		c.cache = store
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Browse runs action=browse for one results page. Pages are 1-based.
func (c *Client) Browse(ctx context.Context, searchstr string, page int) (*BrowseResult, error) {
	params := url.Values{
		"action":    {"browse"},
		"searchstr": {searchstr},
		"page":      {strconv.Itoa(page)},
	}

	var result BrowseResult
	if err := c.getJSON(ctx, params, true, &result); err != nil {
		return nil, errors.Wrapf(err, "browse %q page %d", searchstr, page)
	}
	return &result, nil
}

// GroupDetails runs action=torrentgroup for one release group.
func (c *Client) GroupDetails(ctx context.Context, groupID int) (*GroupDetails, error) {
	params := url.Values{
		"action": {"torrentgroup"},
		"id":     {strconv.Itoa(groupID)},
	}

	var result GroupDetails
	if err := c.getJSON(ctx, params, true, &result); err != nil {
		return nil, errors.Wrapf(err, "torrentgroup %d", groupID)
	}
	return &result, nil
}

// TorrentDetails runs action=torrent for a single torrent.
func (c *Client) TorrentDetails(ctx context.Context, torrentID int) (*TorrentDetails, error) {
	params := url.Values{
		"action": {"torrent"},
		"id":     {strconv.Itoa(torrentID)},
	}

	var result torrentEndpointResponse
	if err := c.getJSON(ctx, params, true, &result); err != nil {
		return nil, errors.Wrapf(err, "torrent %d", torrentID)
	}
	return &result.Torrent, nil
}

// DownloadTorrent fetches the .torrent blob via action=download. The blob is
// account-watermarked, so it bypasses the response cache.
func (c *Client) DownloadTorrent(ctx context.Context, torrentID int) ([]byte, error) {
	params := url.Values{
		"action": {"download"},
		"id":     {strconv.Itoa(torrentID)},
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "download torrent %d", torrentID)
	}

	// A failed download comes back as a JSON envelope instead of bencode.
	if len(body) > 0 && body[0] == '{' {
		var envelope apiEnvelope
		if json.Unmarshal(body, &envelope) == nil && envelope.Status != "success" {
			return nil, errors.Errorf("download torrent %d: %s", torrentID, envelope.Error)
		}
	}

	return body, nil
}

func (c *Client) getJSON(ctx context.Context, params url.Values, cacheable bool, out any) error {
	var body []byte
	var err error

	if cacheable && c.cache != nil {
		body, err = c.cache.GetOrFetch(ctx, c.requestURL(params), func(ctx context.Context) ([]byte, error) {
			return c.get(ctx, params)
		})
	} else {
		body, err = c.get(ctx, params)
	}
	if err != nil {
		return err
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.Wrap(err, "decode response envelope")
	}
	if envelope.Status != "success" {
		return errors.Errorf("api error: %s", envelope.Error)
	}

	return errors.Wrap(json.Unmarshal(envelope.Response, out), "decode response payload")
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	c.throttle(ctx)

	reqURL := c.requestURL(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	log.Trace().Str("action", params.Get("action")).Str("url", c.baseURL).Msg("tracker request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Wrapf(domain.ErrRateLimited, "tracker action=%s", params.Get("action"))
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Errorf("tracker returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTorrentDownloadBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	return body, nil
}

func (c *Client) requestURL(params url.Values) string {
	return fmt.Sprintf("%s/ajax.php?%s", c.baseURL, params.Encode())
}

// throttle spaces requests out to stay inside the API rate limit. Returns
// early if the context is cancelled mid-wait.
func (c *Client) throttle(ctx context.Context) {
	c.mu.Lock()
	wait := requestInterval - time.Since(c.lastCall)
	c.lastCall = time.Now().Add(max(wait, 0))
	c.mu.Unlock()

	if wait <= 0 {
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
