// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// ReleaseFileEntry is one file declared by the tracker for a torrent.
// Size is authoritative; the name is whatever the uploader chose and may
// differ from any peer's copy.
type ReleaseFileEntry struct {
	Name string
	Size int64
}

// TrackerRelease is a single torrent within a tracker group that survived
// the format allow-list. FolderName is the tracker-side base folder and
// names the staging directory for an accepted download.
type TrackerRelease struct {
	GroupID    int
	TorrentID  int
	Format     string
	Encoding   string
	FolderName string
	InfoHash   string
	Trumpable  bool
	Files      []ReleaseFileEntry
}

func (r TrackerRelease) TotalSize() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

// PeerFileEntry is one shared file reported by a peer. Name is the full
// share path exactly as the peer reported it, separators included; transfer
// requests must echo it unchanged.
type PeerFileEntry struct {
	Name string
	Size int64
	Peer string
}

// PeerCandidate is the per-folder slice of one peer's search response.
// Folder nesting inside the share is flattened away by the retriever; one
// candidate covers exactly one (peer, folder) pair.
type PeerCandidate struct {
	Peer   string
	Folder string
	Files  []PeerFileEntry
}
