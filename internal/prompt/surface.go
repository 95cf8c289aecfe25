// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package prompt

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/seedbridge/seedbridge/internal/matching"
)

// RenderDecisionSurface prints the per-file alignment table for a scored
// candidate so the user can judge a borderline match before committing a
// download slot.
func RenderDecisionSurface(w io.Writer, result matching.Result) {
	if w == nil {
		w = os.Stdout
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("%s @ %s (%d%%)", result.Candidate.Peer, result.Candidate.Folder, int(result.Score*100))
	t.AppendHeader(table.Row{"#", "Release File", "Size", "Peer File", "Peer Size", "Match"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	for i, a := range result.Files {
		peerName := "-"
		peerSize := "-"
		if a.Peer != nil {
			peerName = a.Peer.Name
			peerSize = humanize.IBytes(uint64(a.Peer.Size))
		}
		t.AppendRow(table.Row{
			i + 1,
			a.Release.Name,
			humanize.IBytes(uint64(a.Release.Size)),
			peerName,
			peerSize,
			fmt.Sprintf("%s %d%%", a.Kind, a.Percent()),
		})
	}

	t.AppendFooter(table.Row{"", "", humanize.IBytes(uint64(result.Release.TotalSize())), "", "", fmt.Sprintf("%d%%", int(result.Score*100))})
	t.Render()
}
