// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package gazelle

import (
	"encoding/json"
	"html"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/seedbridge/seedbridge/internal/domain"
)

// apiEnvelope is the outer wrapper every endpoint shares.
type apiEnvelope struct {
	Status   string          `json:"status"`
	Error    string          `json:"error,omitempty"`
	Response json.RawMessage `json:"response"`
}

// BrowseResult is one page of action=browse.
type BrowseResult struct {
	CurrentPage int            `json:"currentPage"`
	Pages       int            `json:"pages"`
	Results     []SearchResult `json:"results"`
}

// SearchResult is one release group in a browse page. The torrent entries
// here are summaries; file lists require a torrentgroup lookup.
type SearchResult struct {
	GroupID   int             `json:"groupId"`
	GroupName string          `json:"groupName"`
	Artist    string          `json:"artist"`
	GroupYear int             `json:"groupYear"`
	Torrents  []TorrentResult `json:"torrents"`
}

type TorrentResult struct {
	TorrentID int    `json:"torrentId"`
	Format    string `json:"format"`
	Encoding  string `json:"encoding"`
	Media     string `json:"media"`
	Trumpable bool   `json:"isTrumpable"`
	FileCount int    `json:"fileCount"`
	Size      int64  `json:"size"`
}

// GroupDetails is action=torrentgroup: the group plus full torrent records
// including packed file lists.
type GroupDetails struct {
	Group struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Year int    `json:"year"`
	} `json:"group"`
	Torrents []TorrentDetails `json:"torrents"`
}

// TorrentDetails is the full record for one torrent, shared by the
// torrentgroup and torrent endpoints.
type TorrentDetails struct {
	ID        int    `json:"id"`
	GroupID   int    `json:"groupId"`
	InfoHash  string `json:"infoHash"`
	Format    string `json:"format"`
	Encoding  string `json:"encoding"`
	Media     string `json:"media"`
	Trumpable bool   `json:"isTrumpable"`
	FilePath  string `json:"filePath"`
	FileList  string `json:"fileList"`
	Size      int64  `json:"size"`
}

// torrentEndpointResponse wraps action=torrent.
type torrentEndpointResponse struct {
	Torrent TorrentDetails `json:"torrent"`
}

// packedFileRe matches one entry of the API's packed file list format:
// "Name.flac{{{12345}}}" entries joined by "|||", with HTML-escaped names.
var packedFileRe = regexp.MustCompile(`([^|{]+)\{\{\{(\d+)\}\}\}`)

// ParseFileList unpacks the API's packed file list into file entries,
// unescaping HTML entities in names.
func ParseFileList(packed string) ([]domain.ReleaseFileEntry, error) {
	if packed == "" {
		return nil, nil
	}

	matches := packedFileRe.FindAllStringSubmatch(packed, -1)
	if len(matches) == 0 {
		return nil, errors.Errorf("unrecognized file list format: %.60q", packed)
	}

	files := make([]domain.ReleaseFileEntry, 0, len(matches))
	for _, m := range matches {
		size, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "file size in %q", m[0])
		}
		files = append(files, domain.ReleaseFileEntry{
			Name: html.UnescapeString(m[1]),
			Size: size,
		})
	}

	return files, nil
}

// Release converts a torrent record into the neutral release form used by
// matching and staging.
func (t TorrentDetails) Release() (domain.TrackerRelease, error) {
	files, err := ParseFileList(t.FileList)
	if err != nil {
		return domain.TrackerRelease{}, errors.Wrapf(err, "torrent %d", t.ID)
	}

	return domain.TrackerRelease{
		GroupID:    t.GroupID,
		TorrentID:  t.ID,
		Format:     t.Format,
		Encoding:   t.Encoding,
		FolderName: html.UnescapeString(t.FilePath),
		InfoHash:   t.InfoHash,
		Trumpable:  t.Trumpable,
		Files:      files,
	}, nil
}
