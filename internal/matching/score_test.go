// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedbridge/seedbridge/internal/domain"
)

func release(files ...domain.ReleaseFileEntry) domain.TrackerRelease {
	return domain.TrackerRelease{
		GroupID:    7,
		TorrentID:  42,
		Format:     "FLAC",
		Encoding:   "Lossless",
		FolderName: "Organica - Master of Membranes (1896) [FLAC]",
		Files:      files,
	}
}

func candidate(files ...domain.PeerFileEntry) domain.PeerCandidate {
	return domain.PeerCandidate{Peer: "cellwall", Folder: "music/flac/membranes", Files: files}
}

func TestScoreIdenticalFileLists(t *testing.T) {
	t.Parallel()

	rel := release(
		domain.ReleaseFileEntry{Name: "01 Mitochondria.flac", Size: 100},
		domain.ReleaseFileEntry{Name: "02 Organelle.flac", Size: 200},
		domain.ReleaseFileEntry{Name: "03 Leper Mitosis.flac", Size: 300},
	)
	cand := candidate(
		domain.PeerFileEntry{Name: "music/flac/membranes/01 Mitochondria.flac", Size: 100},
		domain.PeerFileEntry{Name: "music/flac/membranes/02 Organelle.flac", Size: 200},
		domain.PeerFileEntry{Name: "music/flac/membranes/03 Leper Mitosis.flac", Size: 300},
	)

	result := NewScorer(0.4).Score(rel, cand)

	assert.Equal(t, 1.0, result.Score)
	assert.True(t, result.Complete())
	for _, a := range result.Files {
		assert.Equal(t, AlignExact, a.Kind)
		assert.Equal(t, 100, a.Percent())
	}
}

func TestScoreExactAndSizeOnly(t *testing.T) {
	t.Parallel()

	// Scenario: one file retagged on the peer side, identical bytes.
	rel := release(
		domain.ReleaseFileEntry{Name: "01 Track.flac", Size: 100},
		domain.ReleaseFileEntry{Name: "02 Track.flac", Size: 200},
	)
	cand := candidate(
		domain.PeerFileEntry{Name: "01 Track.flac", Size: 100},
		domain.PeerFileEntry{Name: "02 Song.flac", Size: 200},
	)

	result := NewScorer(0.4).Score(rel, cand)

	require.Len(t, result.Files, 2)
	assert.Equal(t, AlignExact, result.Files[0].Kind)
	assert.Equal(t, 1.0, result.Files[0].Score)
	assert.Equal(t, AlignSizeOnly, result.Files[1].Kind)
	assert.Equal(t, 0.6, result.Files[1].Score)
	assert.InDelta(t, 0.8, result.Score, 1e-9)
}

func TestScoreMissingFile(t *testing.T) {
	t.Parallel()

	rel := release(
		domain.ReleaseFileEntry{Name: "01 Track.flac", Size: 100},
		domain.ReleaseFileEntry{Name: "02 Track.flac", Size: 200},
	)
	cand := candidate(
		domain.PeerFileEntry{Name: "01 Track.flac", Size: 100},
	)

	result := NewScorer(0.4).Score(rel, cand)

	assert.InDelta(t, 0.5, result.Score, 1e-9)
	assert.Equal(t, AlignUnmatched, result.Files[1].Kind)
	assert.Nil(t, result.Files[1].Peer)
}

func TestScoreOneMissingOfN(t *testing.T) {
	t.Parallel()

	files := make([]domain.ReleaseFileEntry, 0, 5)
	peerFiles := make([]domain.PeerFileEntry, 0, 4)
	for i := 0; i < 5; i++ {
		name := []string{"01 a.flac", "02 b.flac", "03 c.flac", "04 d.flac", "05 e.flac"}[i]
		files = append(files, domain.ReleaseFileEntry{Name: name, Size: int64(100 + i)})
		if i != 2 {
			peerFiles = append(peerFiles, domain.PeerFileEntry{Name: name, Size: int64(100 + i)})
		}
	}

	result := NewScorer(0.4).Score(release(files...), candidate(peerFiles...))

	assert.InDelta(t, 4.0/5.0, result.Score, 1e-9)
}

func TestScoreNameOnlyNeverOutranksSizeMatch(t *testing.T) {
	t.Parallel()

	rel := release(domain.ReleaseFileEntry{Name: "01 Mitochondria.flac", Size: 100})

	// Same name, wrong size: capped below the size-only anchor.
	nameOnly := NewScorer(0.4).Score(rel, candidate(
		domain.PeerFileEntry{Name: "01 Mitochondria.flac", Size: 999},
	))
	require.Equal(t, AlignNameOnly, nameOnly.Files[0].Kind)
	assert.Equal(t, 0.5, nameOnly.Files[0].Score)

	sizeOnly := NewScorer(0.4).Score(rel, candidate(
		domain.PeerFileEntry{Name: "something else entirely.flac", Size: 100},
	))
	require.Equal(t, AlignSizeOnly, sizeOnly.Files[0].Kind)
	assert.Greater(t, sizeOnly.Files[0].Score, nameOnly.Files[0].Score)
}

func TestScoreDissimilarNamesUnmatched(t *testing.T) {
	t.Parallel()

	rel := release(domain.ReleaseFileEntry{Name: "01 Mitochondria.flac", Size: 100})
	cand := candidate(domain.PeerFileEntry{Name: "totally unrelated recording.flac", Size: 999})

	result := NewScorer(0.4).Score(rel, cand)

	assert.Equal(t, AlignUnmatched, result.Files[0].Kind)
	assert.Equal(t, 0.0, result.Score)
}

func TestScoreNeverReusesPeerFile(t *testing.T) {
	t.Parallel()

	// Two release files with the same size; only one peer file carries it.
	rel := release(
		domain.ReleaseFileEntry{Name: "01 Intro.flac", Size: 100},
		domain.ReleaseFileEntry{Name: "02 Outro.flac", Size: 100},
	)
	cand := candidate(domain.PeerFileEntry{Name: "01 Intro.flac", Size: 100})

	result := NewScorer(0.4).Score(rel, cand)

	seen := map[string]bool{}
	matched := 0
	for _, a := range result.Files {
		if a.Peer == nil {
			continue
		}
		matched++
		assert.False(t, seen[a.Peer.Name], "peer file %s consumed twice", a.Peer.Name)
		seen[a.Peer.Name] = true
	}
	assert.Equal(t, 1, matched)
	assert.Equal(t, AlignExact, result.Files[0].Kind, "declared order wins the contested file")
}

func TestScoreMonotonicUnderImprovedAlignment(t *testing.T) {
	t.Parallel()

	rel := release(
		domain.ReleaseFileEntry{Name: "01 Track.flac", Size: 100},
		domain.ReleaseFileEntry{Name: "02 Track.flac", Size: 200},
	)

	retagged := NewScorer(0.4).Score(rel, candidate(
		domain.PeerFileEntry{Name: "01 Track.flac", Size: 100},
		domain.PeerFileEntry{Name: "02 Something.flac", Size: 200},
	))
	restored := NewScorer(0.4).Score(rel, candidate(
		domain.PeerFileEntry{Name: "01 Track.flac", Size: 100},
		domain.PeerFileEntry{Name: "02 Track.flac", Size: 200},
	))

	assert.GreaterOrEqual(t, restored.Score, retagged.Score)
	assert.Equal(t, 1.0, restored.Score)
}

func TestScoreIgnoresPeerFolderPrefixAndCase(t *testing.T) {
	t.Parallel()

	rel := release(domain.ReleaseFileEntry{Name: "01 Mitochondria.flac", Size: 100})
	cand := candidate(domain.PeerFileEntry{Name: `share\FLAC\01 MITOCHONDRIA.FLAC`, Size: 100})

	result := NewScorer(0.4).Score(rel, cand)

	assert.Equal(t, AlignExact, result.Files[0].Kind)
}

func TestScoreEmptyRelease(t *testing.T) {
	t.Parallel()

	result := NewScorer(0.4).Score(release(), candidate())
	assert.Equal(t, 0.0, result.Score)
	assert.Empty(t, result.Files)
}
