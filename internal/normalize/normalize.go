// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package normalize canonicalizes free-text album, artist and track strings
// so that tracker-side and peer-side names can be compared symmetrically.
// Display strings are never mutated; callers keep the originals for output.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/seedbridge/seedbridge/internal/domain"
)

// editionTag matches parenthesized or bracketed edition qualifiers like
// "(Deluxe Edition)", "[2024 Remaster]" or "(10th Anniversary Version)".
// Plain parentheticals that are part of the title are left alone.
var editionTag = regexp.MustCompile(`(?i)[([][^)\]]*\b(deluxe|remaster(?:ed)?|reissue|edition|expanded|anniversary|bonus|version)\b[^)\]]*[)\]]`)

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns the canonical comparison form of s. It is deterministic,
// pure and idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	return fold(s, false)
}

// query is the search-string variant of Normalize: it keeps double quotes so
// exact-phrase peer-network queries survive canonicalization.
func query(s string) string {
	return fold(s, true)
}

func fold(s string, keepQuotes bool) string {
	if folded, _, err := transform.String(diacriticFolder, s); err == nil {
		s = folded
	}

	s = strings.ToLower(s)
	s = editionTag.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case keepQuotes && r == '"':
			b.WriteRune(r)
		default:
			// En/em dashes, underscores and every other punctuation variant
			// collapse to word separators.
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// SearchQueries builds the peer-network query strings for an album, widest
// net last: a quoted exact-phrase query first, then a bare one.
func SearchQueries(album domain.AlbumQuery) []string {
	quoted := fmt.Sprintf(`"%s" "%s"`, album.Artist, album.Album)
	if album.Year > 0 {
		quoted = fmt.Sprintf("%s %d", quoted, album.Year)
	}

	return []string{
		query(quoted),
		query(fmt.Sprintf("%s %s", album.Artist, album.Album)),
	}
}

// FolderQuery canonicalizes a tracker folder name for use as a search string.
func FolderQuery(folderName string) string {
	return query(folderName)
}
