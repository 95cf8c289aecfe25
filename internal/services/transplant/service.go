// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package transplant finishes what a snatch run started: once peer downloads
// have landed in the staged folders, it restores the tracker's file names
// from each folder's shard and registers the torrent with the client for a
// recheck.
package transplant

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/seedbridge/seedbridge/internal/domain"
	"github.com/seedbridge/seedbridge/internal/fetchcache"
	"github.com/seedbridge/seedbridge/internal/prompt"
	"github.com/seedbridge/seedbridge/internal/shard"
)

// torrentSource fetches torrent blobs from the tracker.
type torrentSource interface {
	DownloadTorrent(ctx context.Context, torrentID int) ([]byte, error)
}

// torrentClient is the slice of the download client API registration needs.
type torrentClient interface {
	HasTorrentHash(ctx context.Context, hash string) (bool, error)
	AddTorrentStopped(ctx context.Context, blob []byte, savePath string) error
	Recheck(ctx context.Context, hash string) error
}

// FolderReport is the reconciliation outcome for one staged folder. Dir is
// the folder's final path, reflecting the rename to the tracker's name when
// it happened. Unresolved counts declined or blocked renames, the folder
// rename included.
type FolderReport struct {
	Dir        string
	TorrentID  int
	Matched    int
	Renamed    int
	Missing    int
	Unresolved int
	Registered bool
}

// Complete reports whether every declared file is accounted for on disk.
func (r FolderReport) Complete() bool {
	return r.Missing == 0 && r.Unresolved == 0
}

// Summary tallies one transplant run.
type Summary struct {
	Folders    int
	Registered int
	Incomplete int
	Failed     int
}

type Service struct {
	cfg      *domain.Config
	source   torrentSource
	client   torrentClient
	cache    *fetchcache.Store
	prompter prompt.Prompter
}

// NewService wires the reconciliation pipeline. client may be nil for a
// rename-only run; cache may be nil to fetch torrent blobs uncached.
func NewService(cfg *domain.Config, source torrentSource, client torrentClient, cache *fetchcache.Store, prompter prompt.Prompter) *Service {
	return &Service{cfg: cfg, source: source, client: client, cache: cache, prompter: prompter}
}

// Run reconciles staged folders. With no arguments it walks the staging
// directory for folders holding a shard; explicit folder paths are taken as
// given, and a missing shard there is a failure rather than a skip. Folder
// failures are logged and counted; only context cancellation aborts the run.
func (s *Service) Run(ctx context.Context, folders ...string) (Summary, error) {
	dirs := folders
	if len(dirs) == 0 {
		var err error
		if dirs, err = s.stagedFolders(); err != nil {
			return Summary{}, err
		}
	}

	var summary Summary
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Folders++

		report, err := s.ReconcileFolder(ctx, dir)
		if err != nil {
			log.Error().Err(err).Str("dir", dir).Msg("folder reconciliation failed")
			summary.Failed++
			continue
		}

		if !report.Complete() {
			log.Warn().
				Str("dir", dir).
				Int("missing", report.Missing).
				Int("unresolved", report.Unresolved).
				Msg("folder incomplete, not registering")
			summary.Incomplete++
			continue
		}

		if s.client == nil {
			continue
		}
		if err := s.register(ctx, report.Dir, report.TorrentID); err != nil {
			log.Error().Err(err).Str("dir", report.Dir).Msg("torrent registration failed")
			summary.Failed++
			continue
		}
		report.Registered = true
		summary.Registered++
	}

	log.Info().
		Int("folders", summary.Folders).
		Int("registered", summary.Registered).
		Int("incomplete", summary.Incomplete).
		Int("failed", summary.Failed).
		Msg("transplant complete")

	return summary, nil
}

// stagedFolders lists the staging directory's subfolders that hold a shard.
func (s *Service) stagedFolders() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.StagingDir)
	if err != nil {
		return nil, errors.Wrap(err, "read staging directory")
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.cfg.StagingDir, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, shard.FileBasename)); err != nil {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// ReconcileFolder restores tracker file names inside one staged folder, then
// renames the folder itself to the tracker's declared name once every file is
// accounted for. Rerunning on an already-reconciled folder is a no-op: every
// file matches by its original name and nothing is renamed twice.
func (s *Service) ReconcileFolder(ctx context.Context, dir string) (FolderReport, error) {
	sh, err := shard.Read(dir)
	if err != nil {
		return FolderReport{}, err
	}
	if sh.Root != "" && sh.Root != dir {
		log.Debug().Str("recorded", sh.Root).Str("dir", dir).Msg("staging folder moved since snatch")
	}

	report := FolderReport{Dir: dir, TorrentID: sh.TorrentID}

	onDisk, err := scanFolder(dir)
	if err != nil {
		return report, err
	}

	claimed := make(map[string]bool, len(onDisk))
	for _, m := range sh.Files {
		size, present := onDisk[m.OriginalName]
		switch {
		case present && !claimed[m.OriginalName] && size == m.OriginalSize:
			claimed[m.OriginalName] = true
			report.Matched++

		case m.DownloadName != "" && hasUnclaimed(onDisk, claimed, m.DownloadName):
			// The right name with the wrong size is suspicious, likely a
			// truncated transfer; never rename that one routinely.
			sizeOK := onDisk[m.DownloadName] == m.OriginalSize
			if s.rename(dir, m.DownloadName, m.OriginalName, sizeOK) {
				rekey(onDisk, claimed, m.DownloadName, m.OriginalName)
				report.Renamed++
			} else {
				report.Unresolved++
			}

		default:
			name, exact := closestBySize(onDisk, claimed, m.OriginalSize)
			if name == "" {
				report.Missing++
				continue
			}
			// An exact size hit is almost certainly the right file under a
			// different name; anything else needs the user's judgement.
			if s.rename(dir, name, m.OriginalName, exact) {
				rekey(onDisk, claimed, name, m.OriginalName)
				report.Renamed++
			} else {
				report.Unresolved++
			}
		}
	}

	if report.Complete() {
		report.Dir = s.restoreFolderName(dir, sh.ReferenceFolder, &report)
	}

	log.Info().
		Str("dir", report.Dir).
		Int("matched", report.Matched).
		Int("renamed", report.Renamed).
		Int("missing", report.Missing).
		Int("unresolved", report.Unresolved).
		Msg("folder reconciled")

	return report, nil
}

// restoreFolderName renames a fully reconciled folder to the tracker's
// declared name so the registered torrent can find its payload. A folder
// already carrying the tracker name blocks the rename; that copy was
// reconciled earlier and must not be clobbered.
func (s *Service) restoreFolderName(dir, reference string, report *FolderReport) string {
	if filepath.Base(dir) == reference {
		return dir
	}

	target := filepath.Join(filepath.Dir(dir), reference)
	if _, err := os.Stat(target); err == nil {
		log.Warn().Str("dir", dir).Str("target", target).Msg("tracker-named folder already exists, leaving download in place")
		report.Unresolved++
		return dir
	}

	ok := s.prompter.Confirm(prompt.Question{
		Message: fmt.Sprintf("rename folder %q -> %q", filepath.Base(dir), reference),
		Default: true,
		Routine: true,
	})
	if !ok {
		report.Unresolved++
		return dir
	}

	if err := os.Rename(dir, target); err != nil {
		log.Error().Err(err).Str("dir", dir).Str("target", target).Msg("folder rename failed")
		report.Unresolved++
		return dir
	}
	return target
}

// rekey moves a reconciled file's bookkeeping to its restored name.
func rekey(onDisk map[string]int64, claimed map[string]bool, from, to string) {
	size := onDisk[from]
	delete(onDisk, from)
	onDisk[to] = size
	claimed[to] = true
}

// rename proposes and performs one file rename. Exact matches are routine;
// size-guessed ones default to declined.
func (s *Service) rename(dir, from, to string, exact bool) bool {
	ok := s.prompter.Confirm(prompt.Question{
		Message: fmt.Sprintf("rename %q -> %q", from, to),
		Default: exact,
		Routine: exact,
	})
	if !ok {
		return false
	}

	if err := os.Rename(filepath.Join(dir, from), filepath.Join(dir, to)); err != nil {
		log.Error().Err(err).Str("from", from).Str("to", to).Msg("rename failed")
		return false
	}
	return true
}

// register fetches the torrent, skips it if the client already has it, then
// adds it stopped against the staging directory and forces a recheck.
func (s *Service) register(ctx context.Context, dir string, torrentID int) error {
	fetch := func(ctx context.Context) ([]byte, error) {
		return s.source.DownloadTorrent(ctx, torrentID)
	}

	var blob []byte
	var err error
	if s.cache != nil {
		blob, err = s.cache.GetOrFetch(ctx, "torrent:"+strconv.Itoa(torrentID), fetch)
	} else {
		blob, err = fetch(ctx)
	}
	if err != nil {
		return err
	}

	mi, err := metainfo.Load(bytes.NewReader(blob))
	if err != nil {
		return errors.Wrapf(err, "parse torrent %d", torrentID)
	}
	hash := mi.HashInfoBytes().HexString()

	have, err := s.client.HasTorrentHash(ctx, hash)
	if err != nil {
		return err
	}
	if have {
		log.Info().Int("torrentId", torrentID).Str("hash", hash).Msg("torrent already registered")
		return nil
	}

	// The torrent's folder name equals the staged folder, so the save path is
	// the staging root.
	if err := s.client.AddTorrentStopped(ctx, blob, filepath.Dir(dir)); err != nil {
		return err
	}

	if err := s.client.Recheck(ctx, hash); err != nil {
		return err
	}

	log.Info().Int("torrentId", torrentID).Str("hash", hash).Msg("torrent registered for recheck")
	return nil
}

// scanFolder maps the folder's payload files to their sizes. The shard and
// other dotfiles are not payload.
func scanFolder(dir string) (map[string]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read staged folder")
	}

	files := make(map[string]int64, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, errors.Wrap(err, "stat staged file")
		}
		files[entry.Name()] = info.Size()
	}

	return files, nil
}

func hasUnclaimed(onDisk map[string]int64, claimed map[string]bool, name string) bool {
	_, ok := onDisk[name]
	return ok && !claimed[name]
}

// closestBySize picks the unclaimed file nearest in size to want. The second
// return reports an exact size match.
func closestBySize(onDisk map[string]int64, claimed map[string]bool, want int64) (string, bool) {
	var bestName string
	var bestDiff int64 = -1

	for name, size := range onDisk {
		if claimed[name] {
			continue
		}
		diff := size - want
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff || (diff == bestDiff && name < bestName) {
			bestName, bestDiff = name, diff
		}
	}

	return bestName, bestDiff == 0
}
