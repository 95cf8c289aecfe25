// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedbridge/seedbridge/internal/domain"
)

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Master of Membranes",
		"Master of Membranes (Deluxe Edition)",
		"Sigur Rós – Ágætis byrjun",
		"Simon & Garfunkel",
		"  spaced\tout — title  ",
		"Album [2024 Remaster]",
		"",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalize must be idempotent for %q", in)
	}
}

func TestNormalizeFoldsVariantsTogether(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    string
		b    string
	}{
		{name: "edition tag", a: "Master of Membranes (Deluxe Edition)", b: "Master of Membranes"},
		{name: "bracketed remaster", a: "Master of Membranes [2024 Remaster]", b: "master of membranes"},
		{name: "ampersand", a: "Simon & Garfunkel", b: "Simon and Garfunkel"},
		{name: "diacritics", a: "Sigur Rós", b: "sigur ros"},
		{name: "dash variants", a: "Self–Titled — Live", b: "Self-Titled - Live"},
		{name: "underscores", a: "01_mitochondria", b: "01 Mitochondria"},
		{name: "punctuation and case", a: "What's GOING On?", b: "what s going on"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, Normalize(tt.a), Normalize(tt.b))
		})
	}
}

func TestNormalizeKeepsOrdinaryParentheticals(t *testing.T) {
	t.Parallel()

	// "(Mitochondria)" carries no edition keyword and must survive as words.
	assert.Equal(t, "welcome home mitochondria", Normalize("Welcome Home (Mitochondria)"))
}

func TestSearchQueries(t *testing.T) {
	t.Parallel()

	album := domain.AlbumQuery{Album: "Master of Membranes", Artist: "Organica", Year: 1896}

	queries := SearchQueries(album)
	require.Len(t, queries, 2)

	assert.Equal(t, `"organica" "master of membranes" 1896`, queries[0])
	assert.Equal(t, "organica master of membranes", queries[1])

	noYear := SearchQueries(domain.AlbumQuery{Album: "Master of Membranes", Artist: "Organica"})
	assert.Equal(t, `"organica" "master of membranes"`, noYear[0])
}

func TestFolderQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "organica master of membranes 1896 flac", FolderQuery("Organica - Master of Membranes (1896) [FLAC]"))
}
