// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package matching aligns a tracker release's declared file list against a
// peer candidate's shared files and scores the result. Pure computation, no
// side effects.
package matching

import (
	"math"
	"path"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/seedbridge/seedbridge/internal/domain"
	"github.com/seedbridge/seedbridge/internal/normalize"
)

// Per-file confidence anchors. Identical size is stronger evidence of
// byte-identical content than any name similarity, so a name-only alignment
// never outranks a size match.
const (
	exactScore    = 1.0
	sizeOnlyScore = 0.6
	nameOnlyCap   = 0.5
)

// AlignmentKind records which rule produced an alignment.
type AlignmentKind string

const (
	AlignExact     AlignmentKind = "exact"
	AlignSizeOnly  AlignmentKind = "size"
	AlignNameOnly  AlignmentKind = "name"
	AlignUnmatched AlignmentKind = "unmatched"
)

// Alignment pairs one release file with at most one peer file.
type Alignment struct {
	Release domain.ReleaseFileEntry
	Peer    *domain.PeerFileEntry
	Kind    AlignmentKind
	Score   float64
}

// Percent renders the per-file score for the decision surface.
func (a Alignment) Percent() int {
	return int(math.Round(a.Score * 100))
}

// Result is a scored pairing of one release against one candidate.
// Score is the mean per-file score over the release's file count; unmatched
// release files contribute zero, so partial folders score proportionally low
// instead of failing hard.
type Result struct {
	Release   domain.TrackerRelease
	Candidate domain.PeerCandidate
	Files     []Alignment
	Score     float64
}

// Complete reports whether every release file aligned exactly.
func (r Result) Complete() bool {
	for _, a := range r.Files {
		if a.Kind != AlignExact {
			return false
		}
	}
	return true
}

// Scorer holds the tunables for candidate scoring.
type Scorer struct {
	// maxNameDistance is the normalized edit distance ceiling for name-only
	// alignments; anything farther apart is treated as a different track.
	maxNameDistance float64
}

func NewScorer(maxNameDistance float64) *Scorer {
	if maxNameDistance <= 0 || maxNameDistance >= 1 {
		maxNameDistance = 0.4
	}
	return &Scorer{maxNameDistance: maxNameDistance}
}

// Score aligns release files against candidate files, greedy in declared
// release order: each release file takes the best still-unclaimed peer file,
// ties broken by first encounter. Deliberately not a globally optimal
// assignment; release file counts are small and the greedy pass is
// deterministic and easy to reason about.
func (s *Scorer) Score(release domain.TrackerRelease, candidate domain.PeerCandidate) Result {
	type peerEntry struct {
		file domain.PeerFileEntry
		key  fileKey
		used bool
	}

	peers := make([]*peerEntry, 0, len(candidate.Files))
	for _, pf := range candidate.Files {
		peers = append(peers, &peerEntry{file: pf, key: makeFileKey(pf.Name)})
	}

	result := Result{
		Release:   release,
		Candidate: candidate,
		Files:     make([]Alignment, 0, len(release.Files)),
	}

	var total float64
	for _, rf := range release.Files {
		refKey := makeFileKey(rf.Name)

		best := Alignment{Release: rf, Kind: AlignUnmatched}
		var bestEntry *peerEntry

		for _, pe := range peers {
			if pe.used {
				continue
			}

			score, kind := s.scorePair(rf, refKey, pe.file, pe.key)
			if score > best.Score {
				pf := pe.file
				best = Alignment{Release: rf, Peer: &pf, Kind: kind, Score: score}
				bestEntry = pe
			}

			if best.Score >= exactScore {
				break
			}
		}

		if bestEntry != nil {
			bestEntry.used = true
		}
		result.Files = append(result.Files, best)
		total += best.Score
	}

	if len(release.Files) > 0 {
		result.Score = total / float64(len(release.Files))
	}

	return result
}

func (s *Scorer) scorePair(rf domain.ReleaseFileEntry, refKey fileKey, pf domain.PeerFileEntry, peerKey fileKey) (float64, AlignmentKind) {
	sameSize := rf.Size == pf.Size

	if sameSize && refKey.equal(peerKey) {
		return exactScore, AlignExact
	}
	if sameSize {
		return sizeOnlyScore, AlignSizeOnly
	}

	if sim := nameSimilarity(refKey.name, peerKey.name); sim >= 1-s.maxNameDistance {
		return sim * nameOnlyCap, AlignNameOnly
	}

	return 0, AlignUnmatched
}

// fileKey is the comparison form of a file name: normalized base name plus
// lowercased extension, with any folder prefix stripped.
type fileKey struct {
	name string
	ext  string
}

func (k fileKey) equal(other fileKey) bool {
	return k.name == other.name && k.ext == other.ext
}

func makeFileKey(name string) fileKey {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	stem := strings.TrimSuffix(base, path.Ext(base))
	return fileKey{name: normalize.Normalize(stem), ext: ext}
}

// nameSimilarity is 1 - normalized Levenshtein distance over canonical names.
func nameSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}

	dist := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
