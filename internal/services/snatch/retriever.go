// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package snatch

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/seedbridge/seedbridge/internal/domain"
	"github.com/seedbridge/seedbridge/internal/gazelle"
	"github.com/seedbridge/seedbridge/internal/normalize"
	"github.com/seedbridge/seedbridge/internal/pkg/backoff"
	"github.com/seedbridge/seedbridge/internal/slskd"
)

// trackerCatalog is the slice of the tracker API the retriever needs.
type trackerCatalog interface {
	Browse(ctx context.Context, searchstr string, page int) (*gazelle.BrowseResult, error)
	GroupDetails(ctx context.Context, groupID int) (*gazelle.GroupDetails, error)
}

// peerSupplier runs one peer-network search to completion. The bool reports
// whether the daemon cut collection at the response limit.
type peerSupplier interface {
	Search(ctx context.Context, text string) ([]slskd.Response, bool, error)
}

// retriever gathers the two sides of a match: qualifying tracker releases
// for an album and peer candidates for its search queries.
type retriever struct {
	tracker trackerCatalog
	peers   peerSupplier
	policy  backoff.Policy

	maxPages         int
	allowedFormats   []string
	allowedEncodings []string
	allowTrumpable   bool
}

// withRetry runs op, retrying only on rate-limit errors with the configured
// backoff between attempts.
func (r *retriever) withRetry(ctx context.Context, op func() error) error {
	err := retry.Do(op,
		retry.Context(ctx),
		retry.Attempts(r.policy.Attempts()),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return r.policy.Delay(n)
		}),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, domain.ErrRateLimited)
		}),
		retry.LastErrorOnly(true),
	)
	if errors.Is(err, domain.ErrRateLimited) {
		return errors.Wrap(domain.ErrExhaustedRetries, err.Error())
	}
	return err
}

// Releases returns the album's qualifying tracker releases, in the order the
// tracker returned them. Every torrent that survives the format allow-list is
// a candidate release; downstream scoring decides between format variants.
func (r *retriever) Releases(ctx context.Context, album domain.AlbumQuery) ([]domain.TrackerRelease, error) {
	wantArtist := normalize.Normalize(album.Artist)
	wantAlbum := normalize.Normalize(album.Album)

	var groupIDs []int
	page, pages := 1, 1
	for page <= pages && page <= r.maxPages {
		var result *gazelle.BrowseResult
		err := r.withRetry(ctx, func() error {
			var err error
			result, err = r.tracker.Browse(ctx, album.Artist+" "+album.Album, page)
			return err
		})
		if err != nil {
			return nil, err
		}

		pages = result.Pages
		for _, sr := range result.Results {
			if normalize.Normalize(sr.Artist) != wantArtist || normalize.Normalize(sr.GroupName) != wantAlbum {
				continue
			}
			if album.Year > 0 && sr.GroupYear > 0 && sr.GroupYear != album.Year {
				continue
			}
			groupIDs = append(groupIDs, sr.GroupID)
		}
		page++
	}

	if len(groupIDs) == 0 {
		return nil, errors.Wrap(domain.ErrNoTrackerMatch, album.String())
	}

	var releases []domain.TrackerRelease
	for _, groupID := range groupIDs {
		var details *gazelle.GroupDetails
		err := r.withRetry(ctx, func() error {
			var err error
			details, err = r.tracker.GroupDetails(ctx, groupID)
			return err
		})
		if err != nil {
			return nil, err
		}

		for _, td := range details.Torrents {
			if !r.qualifies(td) {
				continue
			}

			rel, err := td.Release()
			if err != nil {
				log.Warn().Err(err).Int("torrentId", td.ID).Msg("skipping torrent with unparseable file list")
				continue
			}
			if hasSubfolders(rel) {
				log.Debug().Int("torrentId", td.ID).Msg("skipping torrent with nested folders")
				continue
			}

			releases = append(releases, rel)
		}
	}

	if len(releases) == 0 {
		return nil, errors.Wrapf(domain.ErrNoTrackerMatch, "%s: no release passes the format filter", album)
	}

	return releases, nil
}

func (r *retriever) qualifies(td gazelle.TorrentDetails) bool {
	if td.Trumpable && !r.allowTrumpable {
		return false
	}
	if len(r.allowedFormats) > 0 && !containsFold(r.allowedFormats, td.Format) {
		return false
	}
	if len(r.allowedEncodings) > 0 && !containsFold(r.allowedEncodings, td.Encoding) {
		return false
	}
	return true
}

// hasSubfolders reports whether any declared file sits below the release
// root. Peer shares flatten to one folder per candidate, so nested releases
// cannot be laid out correctly and are skipped.
func hasSubfolders(rel domain.TrackerRelease) bool {
	for _, f := range rel.Files {
		if strings.ContainsAny(f.Name, `/\`) {
			return true
		}
	}
	return false
}

// Candidates runs each search query against the peer network and returns the
// per-folder candidates, deduplicated by (peer, folder) across queries, plus
// whether any search was cut short at the daemon's response limit.
// Query order is preserved; within a query the supplier's triage order holds.
func (r *retriever) Candidates(ctx context.Context, queries []string) ([]domain.PeerCandidate, bool, error) {
	type key struct {
		peer   string
		folder string
	}

	seen := make(map[key]struct{})
	var out []domain.PeerCandidate
	var limited bool

	for _, query := range queries {
		var responses []slskd.Response
		err := r.withRetry(ctx, func() error {
			var err error
			var hitLimit bool
			responses, hitLimit, err = r.peers.Search(ctx, query)
			limited = limited || hitLimit
			return err
		})
		if err != nil {
			return nil, limited, err
		}

		for _, cand := range slskd.Candidates(responses) {
			k := key{peer: cand.Peer, folder: cand.Folder}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, cand)
		}
	}

	log.Debug().Int("candidates", len(out)).Int("queries", len(queries)).Bool("limited", limited).Msg("peer candidates collected")
	return out, limited, nil
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
