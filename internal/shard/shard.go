// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package shard persists the per-folder reconciliation manifest. A shard is
// written next to an accepted download and records how the peer's file names
// map onto the tracker release's declared files, so a later transplant run can
// restore tracker names without re-scoring anything.
package shard

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/seedbridge/seedbridge/internal/domain"
	"github.com/seedbridge/seedbridge/internal/matching"
)

// FileBasename is the shard file name inside a staged download folder.
const FileBasename = ".seedbridge-shard.yaml"

var (
	ErrAlreadyExists = errors.New("shard already exists for this folder")
	ErrMalformed     = errors.New("malformed shard file")
)

// FileMapping links one tracker-declared file to the peer file selected for
// it. DownloadName is empty when no peer file aligned; the entry is still
// present so the shard always carries exactly one mapping per declared file.
type FileMapping struct {
	DownloadName string `yaml:"download_name"`
	OriginalName string `yaml:"original_name"`
	OriginalSize int64  `yaml:"original_size"`
}

// Shard is the on-disk manifest for one accepted download folder. Root
// records the absolute path the download was staged under; ReferenceFolder is
// the tracker's declared folder name, which reconciliation renames the folder
// to once its files check out.
type Shard struct {
	Root            string        `yaml:"root"`
	ReferenceFolder string        `yaml:"reference_folder"`
	TorrentID       int           `yaml:"torrent_id"`
	Files           []FileMapping `yaml:"files"`
}

// Write persists the manifest for an accepted match. The shard lands in the
// staging directory under the peer's folder name, since that is where the
// daemon will deliver the files; reconciliation renames the folder to the
// tracker's name afterwards. An existing folder under either name means the
// release was already snatched or transplanted; Write refuses and touches
// nothing.
func Write(stagingDir string, release domain.TrackerRelease, result matching.Result) (string, error) {
	// Peer folder paths may carry Windows separators.
	downloadDir := filepath.Join(stagingDir, path.Base(strings.ReplaceAll(result.Candidate.Folder, "\\", "/")))
	trackerDir := filepath.Join(stagingDir, release.FolderName)

	for _, dir := range []string{downloadDir, trackerDir} {
		if _, err := os.Stat(dir); err == nil {
			return "", errors.Wrapf(ErrAlreadyExists, "%s", dir)
		}
	}

	root, err := filepath.Abs(downloadDir)
	if err != nil {
		return "", errors.Wrap(err, "resolve staging folder")
	}

	s := Shard{
		Root:            root,
		ReferenceFolder: release.FolderName,
		TorrentID:       release.TorrentID,
		Files:           make([]FileMapping, 0, len(result.Files)),
	}
	for _, a := range result.Files {
		m := FileMapping{
			OriginalName: a.Release.Name,
			OriginalSize: a.Release.Size,
		}
		if a.Peer != nil {
			m.DownloadName = path.Base(strings.ReplaceAll(a.Peer.Name, "\\", "/"))
		}
		s.Files = append(s.Files, m)
	}

	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create staging folder")
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return "", errors.Wrap(err, "marshal shard")
	}

	// Write-and-rename so a crash never leaves a half-written shard behind.
	target := filepath.Join(downloadDir, FileBasename)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write shard")
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", errors.Wrap(err, "finalize shard")
	}

	return target, nil
}

// Read loads the shard from a staged folder.
func Read(dir string) (*Shard, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileBasename))
	if err != nil {
		return nil, errors.Wrap(err, "read shard")
	}

	var s Shard
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%s: %v", dir, err)
	}
	if s.TorrentID == 0 || len(s.Files) == 0 || s.ReferenceFolder == "" {
		return nil, errors.Wrapf(ErrMalformed, "%s: missing torrent_id, reference_folder or files", dir)
	}

	return &s, nil
}
