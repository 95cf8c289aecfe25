// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// AlbumQuery is one entry from the input list: an album the user wants to
// source from the peer network. Field names follow the beets/lidarr export
// convention used by the input file.
type AlbumQuery struct {
	Album  string `json:"album"`
	Artist string `json:"albumartist"`
	Year   int    `json:"original_year,omitempty"`
}

func (a AlbumQuery) String() string {
	if a.Year > 0 {
		return fmt.Sprintf("%s - %s (%d)", a.Artist, a.Album, a.Year)
	}
	return fmt.Sprintf("%s - %s", a.Artist, a.Album)
}

// LoadAlbumList reads the input list: a JSON array of album/albumartist/original_year records.
func LoadAlbumList(path string) ([]AlbumQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read album list")
	}

	var albums []AlbumQuery
	if err := json.Unmarshal(data, &albums); err != nil {
		return nil, errors.Wrapf(err, "parse album list %s", path)
	}

	for i, a := range albums {
		if a.Album == "" || a.Artist == "" {
			return nil, errors.Errorf("album list entry %d is missing album or albumartist", i)
		}
	}

	return albums, nil
}
