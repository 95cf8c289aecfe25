// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qbittorrent wraps the qBittorrent Web API for the narrow set of
// operations reconciliation needs: presence checks, adding a torrent in a
// stopped state and forcing a recheck.
package qbittorrent

import (
	"context"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Client struct {
	qbt *qbt.Client

	localPrefix  string
	remotePrefix string
}

// NewClient builds and authenticates a client. Path prefixes translate local
// staging paths into the client's view of the filesystem when qBittorrent
// runs on another host or inside a container.
func NewClient(ctx context.Context, host, username, password string, tlsSkipVerify bool, localPrefix, remotePrefix string) (*Client, error) {
	c := qbt.NewClient(qbt.Config{
		Host:          host,
		Username:      username,
		Password:      password,
		TLSSkipVerify: tlsSkipVerify,
		Timeout:       int((60 * time.Second).Seconds()),
	})

	loginCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := c.LoginCtx(loginCtx); err != nil {
		return nil, errors.Wrapf(err, "login to qbittorrent at %s", host)
	}

	return &Client{qbt: c, localPrefix: localPrefix, remotePrefix: remotePrefix}, nil
}

// HasTorrentHash reports whether a torrent with the given infohash exists.
func (c *Client) HasTorrentHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}

	torrents, err := c.qbt.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{
		Hashes: []string{strings.ToLower(hash)},
	})
	if err != nil {
		return false, errors.Wrap(err, "list torrents by hash")
	}

	return len(torrents) > 0, nil
}

// HasTorrentName reports whether any torrent carries the given display name.
// Used as a weaker presence check when the tracker did not expose an infohash.
func (c *Client) HasTorrentName(ctx context.Context, name string) (bool, error) {
	torrents, err := c.qbt.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return false, errors.Wrap(err, "list torrents")
	}

	for _, t := range torrents {
		if strings.EqualFold(t.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// AddTorrentStopped registers a torrent blob pointing at savePath without
// starting it. Automatic torrent management stays off so qBittorrent does not
// move the payload out from under the staged folder.
func (c *Client) AddTorrentStopped(ctx context.Context, blob []byte, savePath string) error {
	options := map[string]string{
		"paused":   "true",
		"stopped":  "true",
		"autoTMM":  "false",
		"savepath": c.RemotePath(savePath),
	}

	if err := c.qbt.AddTorrentFromMemoryCtx(ctx, blob, options); err != nil {
		return errors.Wrap(err, "add torrent")
	}

	log.Debug().Str("savePath", savePath).Msg("torrent added stopped")
	return nil
}

// Recheck asks qBittorrent to verify the payload on disk against the torrent.
func (c *Client) Recheck(ctx context.Context, hash string) error {
	if err := c.qbt.RecheckCtx(ctx, []string{strings.ToLower(hash)}); err != nil {
		return errors.Wrapf(err, "recheck %s", hash)
	}
	return nil
}

// RemotePath maps a local staging path to the client's filesystem view.
func (c *Client) RemotePath(localPath string) string {
	if c.localPrefix == "" || c.remotePrefix == "" {
		return localPath
	}
	if !strings.HasPrefix(localPath, c.localPrefix) {
		return localPath
	}
	return c.remotePrefix + strings.TrimPrefix(localPath, c.localPrefix)
}
