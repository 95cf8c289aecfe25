// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package slskd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidatesSplitsPerFolder(t *testing.T) {
	t.Parallel()

	responses := []Response{{
		Username:          "cellwall",
		HasFreeUploadSlot: true,
		Files: []File{
			{Filename: `share\flac\album one\01 a.flac`, Size: 100},
			{Filename: `share\flac\album one\02 b.flac`, Size: 200},
			{Filename: `share\flac\album two\01 c.flac`, Size: 300},
		},
	}}

	cands := Candidates(responses)
	require.Len(t, cands, 2)

	assert.Equal(t, "share/flac/album one", cands[0].Folder)
	assert.Len(t, cands[0].Files, 2)
	assert.Equal(t, `share\flac\album one\01 a.flac`, cands[0].Files[0].Name, "raw share path is preserved")

	assert.Equal(t, "share/flac/album two", cands[1].Folder)
	assert.Len(t, cands[1].Files, 1)
}

func TestCandidatesDropsPeersWithoutFreeSlot(t *testing.T) {
	t.Parallel()

	responses := []Response{
		{Username: "busy", HasFreeUploadSlot: false, Files: []File{{Filename: "a/x.flac", Size: 1}}},
		{Username: "open", HasFreeUploadSlot: true, Files: []File{{Filename: "b/y.flac", Size: 1}}},
	}

	cands := Candidates(responses)
	require.Len(t, cands, 1)
	assert.Equal(t, "open", cands[0].Peer)
}

func TestCandidatesOrderedBySpeed(t *testing.T) {
	t.Parallel()

	responses := []Response{
		{Username: "slow", HasFreeUploadSlot: true, UploadSpeed: 100, Files: []File{{Filename: "a/x.flac", Size: 1}}},
		{Username: "fast", HasFreeUploadSlot: true, UploadSpeed: 9000, Files: []File{{Filename: "b/y.flac", Size: 1}}},
	}

	cands := Candidates(responses)
	require.Len(t, cands, 2)
	assert.Equal(t, "fast", cands[0].Peer)
	assert.Equal(t, "slow", cands[1].Peer)
}

func TestPeerFilesRoundTrip(t *testing.T) {
	t.Parallel()

	responses := []Response{{
		Username:          "cellwall",
		HasFreeUploadSlot: true,
		Files:             []File{{Filename: `share\flac\01 a.flac`, Size: 100}},
	}}

	cands := Candidates(responses)
	require.Len(t, cands, 1)

	files := PeerFiles(cands[0].Files)
	assert.Equal(t, responses[0].Files, files, "transfer request echoes the peer's share paths")
}
