// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package snatch implements the album sourcing pipeline: resolve each album
// to tracker releases, search the peer network, score candidate folders and
// stage accepted matches for download.
package snatch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/seedbridge/seedbridge/internal/domain"
	"github.com/seedbridge/seedbridge/internal/matching"
	"github.com/seedbridge/seedbridge/internal/normalize"
	"github.com/seedbridge/seedbridge/internal/pkg/backoff"
	"github.com/seedbridge/seedbridge/internal/prompt"
	"github.com/seedbridge/seedbridge/internal/shard"
	"github.com/seedbridge/seedbridge/internal/slskd"
)

// peerNetwork is the slice of the slskd API the service needs.
type peerNetwork interface {
	peerSupplier
	Enqueue(ctx context.Context, username string, files []slskd.File) error
}

// torrentChecker answers infohash presence checks against the torrent client.
type torrentChecker interface {
	HasTorrentHash(ctx context.Context, hash string) (bool, error)
}

// Summary tallies per-album outcomes of one run.
type Summary struct {
	Albums         int
	Matched        int
	NoTrackerMatch int
	NoPeerMatch    int
	AlreadyHave    int
	Failed         int
}

type Service struct {
	cfg       *domain.Config
	retriever *retriever
	resolver  *resolver
	peers     peerNetwork
	checker   torrentChecker
	scorer    *matching.Scorer
	prompter  prompt.Prompter
}

// NewService wires the pipeline. checker may be nil when infohash checks are
// disabled in config.
func NewService(cfg *domain.Config, tracker trackerCatalog, peers peerNetwork, checker torrentChecker, prompter prompt.Prompter) *Service {
	policy := backoff.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		policy = backoff.Policy{
			Base:        time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
			Max:         time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
			MaxAttempts: cfg.Retry.MaxAttempts,
		}
	}

	maxPages := cfg.Tracker.MaxPages
	if maxPages <= 0 {
		maxPages = 3
	}

	return &Service{
		cfg: cfg,
		retriever: &retriever{
			tracker:          tracker,
			peers:            peers,
			policy:           policy,
			maxPages:         maxPages,
			allowedFormats:   cfg.AllowedFormats,
			allowedEncodings: cfg.AllowedEncodings,
			allowTrumpable:   cfg.AllowTrumpable,
		},
		resolver: &resolver{
			prompter:        prompter,
			out:             os.Stdout,
			acceptThreshold: cfg.Matching.AcceptThreshold,
			ambiguityMargin: cfg.Matching.AmbiguityMargin,
			floorScore:      cfg.Matching.FloorScore,
		},
		peers:    peers,
		checker:  checker,
		scorer:   matching.NewScorer(cfg.Matching.MaxNameDistance),
		prompter: prompter,
	}
}

// Run processes the album list sequentially. Per-album failures are counted
// and logged but do not stop the run; only context cancellation aborts it.
func (s *Service) Run(ctx context.Context, albums []domain.AlbumQuery) (Summary, error) {
	summary := Summary{Albums: len(albums)}

	for _, album := range albums {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		outcome, err := s.processAlbum(ctx, album)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return summary, err
		case errors.Is(err, domain.ErrNoTrackerMatch):
			log.Info().Str("album", album.String()).Msg("no tracker release for album")
			summary.NoTrackerMatch++
		case err != nil:
			log.Error().Err(err).Str("album", album.String()).Msg("album failed")
			summary.Failed++
		default:
			switch outcome {
			case outcomeMatched:
				summary.Matched++
			case outcomeAlreadyHave:
				summary.AlreadyHave++
			default:
				summary.NoPeerMatch++
			}
		}
	}

	log.Info().
		Int("albums", summary.Albums).
		Int("matched", summary.Matched).
		Int("noTrackerMatch", summary.NoTrackerMatch).
		Int("noPeerMatch", summary.NoPeerMatch).
		Int("alreadyHave", summary.AlreadyHave).
		Int("failed", summary.Failed).
		Msg("run complete")

	return summary, nil
}

type outcome int

const (
	outcomeNoPeerMatch outcome = iota
	outcomeMatched
	outcomeAlreadyHave
)

func (s *Service) processAlbum(ctx context.Context, album domain.AlbumQuery) (outcome, error) {
	log.Info().Str("album", album.String()).Msg("processing album")

	// Routine, so this only actually asks in timid mode.
	if !s.prompter.Confirm(prompt.Question{
		Message: fmt.Sprintf("search for %s", album),
		Default: true,
		Routine: true,
	}) {
		log.Info().Str("album", album.String()).Msg("album search declined")
		return outcomeNoPeerMatch, nil
	}

	releases, err := s.retriever.Releases(ctx, album)
	if err != nil {
		return outcomeNoPeerMatch, err
	}
	log.Debug().Int("releases", len(releases)).Msg("qualifying tracker releases")

	candidates, limited, err := s.retriever.Candidates(ctx, normalize.SearchQueries(album))
	if err != nil {
		return outcomeNoPeerMatch, err
	}

	o, err := s.matchReleases(ctx, releases, candidates)
	if err != nil || o != outcomeNoPeerMatch {
		return o, err
	}

	// Last resort: the tracker folder name sometimes finds shares the album
	// queries miss, at the cost of one extra search per release.
	if s.wantFolderNameSearch(limited) {
		queries := make([]string, 0, len(releases))
		for _, rel := range releases {
			queries = append(queries, normalize.FolderQuery(rel.FolderName))
		}

		candidates, _, err = s.retriever.Candidates(ctx, queries)
		if err != nil {
			return outcomeNoPeerMatch, err
		}
		return s.matchReleases(ctx, releases, candidates)
	}

	return outcomeNoPeerMatch, nil
}

// wantFolderNameSearch decides whether to run the folder-name fallback.
// Config turns it on outright; when the daemon cut collection at the response
// limit the wanted share may be hiding behind the truncation, so the fallback
// is offered even with the flag off.
func (s *Service) wantFolderNameSearch(limited bool) bool {
	if s.cfg.SearchFolderNames {
		return true
	}
	if !limited {
		return false
	}
	return s.prompter.Confirm(prompt.Question{
		Message: "response limit reached before the search finished; retry searching by folder names",
		Default: true,
	})
}

// matchReleases scores every candidate against each release in declared
// order and stages the first accepted pairing.
func (s *Service) matchReleases(ctx context.Context, releases []domain.TrackerRelease, candidates []domain.PeerCandidate) (outcome, error) {
	if len(candidates) == 0 {
		return outcomeNoPeerMatch, nil
	}

	for _, release := range releases {
		results := make([]matching.Result, 0, len(candidates))
		for _, cand := range candidates {
			results = append(results, s.scorer.Score(release, cand))
		}

		accepted, ok := s.resolver.Resolve(results)
		if !ok {
			continue
		}

		return s.stage(ctx, release, accepted)
	}

	return outcomeNoPeerMatch, nil
}

// stage commits an accepted match: verify it is new, persist the shard and
// hand the peer files to the download daemon.
func (s *Service) stage(ctx context.Context, release domain.TrackerRelease, result matching.Result) (outcome, error) {
	if s.cfg.CheckInfohash && s.checker != nil && release.InfoHash != "" {
		have, err := s.checker.HasTorrentHash(ctx, release.InfoHash)
		if err != nil {
			return outcomeNoPeerMatch, errors.Wrap(err, "infohash check")
		}
		if have {
			log.Info().Int("torrentId", release.TorrentID).Msg("torrent already in client, skipping")
			return outcomeAlreadyHave, nil
		}
	}

	shardPath, err := shard.Write(s.cfg.StagingDir, release, result)
	if errors.Is(err, shard.ErrAlreadyExists) {
		log.Info().Int("torrentId", release.TorrentID).Msg("release already staged, skipping")
		return outcomeAlreadyHave, nil
	}
	if err != nil {
		return outcomeNoPeerMatch, err
	}

	var files []domain.PeerFileEntry
	for _, a := range result.Files {
		if a.Peer != nil {
			files = append(files, *a.Peer)
		}
	}

	if err := s.peers.Enqueue(ctx, result.Candidate.Peer, slskd.PeerFiles(files)); err != nil {
		return outcomeNoPeerMatch, err
	}

	log.Info().
		Int("torrentId", release.TorrentID).
		Str("peer", result.Candidate.Peer).
		Str("shard", shardPath).
		Int("files", len(files)).
		Msg("match staged")

	return outcomeMatched, nil
}
