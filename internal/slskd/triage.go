// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package slskd

import (
	"path"
	"sort"
	"strings"

	"github.com/seedbridge/seedbridge/internal/domain"
)

// Candidates flattens search responses into per-folder candidates. Peers
// without a free upload slot are dropped up front since a queued download can
// stall indefinitely; survivors are ordered by upload speed, fastest first,
// so downstream scoring visits the most promising sources before any slow
// ones.
func Candidates(responses []Response) []domain.PeerCandidate {
	type key struct {
		peer   string
		folder string
	}

	byFolder := make(map[key]*domain.PeerCandidate)
	var order []key

	speeds := make(map[string]int, len(responses))
	for _, resp := range responses {
		if !resp.HasFreeUploadSlot {
			continue
		}
		speeds[resp.Username] = resp.UploadSpeed

		for _, f := range resp.Files {
			// Folder grouping works on slash form, but the stored name stays
			// exactly as the peer reported it: transfer requests must echo
			// the peer's share path byte for byte.
			slashed := strings.ReplaceAll(f.Filename, "\\", "/")
			k := key{peer: resp.Username, folder: path.Dir(slashed)}

			cand, ok := byFolder[k]
			if !ok {
				cand = &domain.PeerCandidate{Peer: k.peer, Folder: k.folder}
				byFolder[k] = cand
				order = append(order, k)
			}
			cand.Files = append(cand.Files, domain.PeerFileEntry{
				Name: f.Filename,
				Size: f.Size,
				Peer: resp.Username,
			})
		}
	}

	out := make([]domain.PeerCandidate, 0, len(order))
	for _, k := range order {
		out = append(out, *byFolder[k])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return speeds[out[i].Peer] > speeds[out[j].Peer]
	})

	return out
}

// PeerFiles converts candidate file entries back to the daemon's transfer
// request form.
func PeerFiles(files []domain.PeerFileEntry) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		out = append(out, File{Filename: f.Name, Size: f.Size})
	}
	return out
}
