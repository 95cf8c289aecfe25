// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package snatch

import (
	"fmt"
	"io"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/seedbridge/seedbridge/internal/matching"
	"github.com/seedbridge/seedbridge/internal/prompt"
)

// maxPresented bounds how many borderline candidates one release may put in
// front of the user.
const maxPresented = 5

// resolver turns a pile of scored candidates into at most one accepted match.
type resolver struct {
	prompter prompt.Prompter
	out      io.Writer

	acceptThreshold float64
	ambiguityMargin float64
	floorScore      float64
}

// Resolve picks a candidate for one release. A clear winner at or above the
// accept threshold goes through as a routine confirmation; anything ambiguous
// or below threshold is presented with its decision surface and defaults to
// declined. Candidates below the floor are never presented.
func (r *resolver) Resolve(results []matching.Result) (matching.Result, bool) {
	viable := make([]matching.Result, 0, len(results))
	for _, res := range results {
		if res.Score >= r.floorScore && res.Score > 0 {
			viable = append(viable, res)
		}
	}
	if len(viable) == 0 {
		return matching.Result{}, false
	}

	sort.SliceStable(viable, func(i, j int) bool {
		return viable[i].Score > viable[j].Score
	})

	top := viable[0]
	ambiguous := len(viable) > 1 && top.Score-viable[1].Score < r.ambiguityMargin

	if top.Score >= r.acceptThreshold && !ambiguous {
		ok := r.prompter.Confirm(prompt.Question{
			Message: fmt.Sprintf("accept %s @ %s (%d%%)", top.Candidate.Peer, top.Candidate.Folder, int(top.Score*100)),
			Default: true,
			Routine: true,
		})
		return top, ok
	}

	if ambiguous {
		log.Debug().
			Float64("top", top.Score).
			Float64("runnerUp", viable[1].Score).
			Msg("top candidates too close to call")
	}

	// Walk the borderline candidates best-first; the first acceptance wins.
	for i, res := range viable {
		if i >= maxPresented {
			break
		}

		prompt.RenderDecisionSurface(r.out, res)
		ok := r.prompter.Confirm(prompt.Question{
			Message: fmt.Sprintf("accept %s @ %s (%d%%)", res.Candidate.Peer, res.Candidate.Folder, int(res.Score*100)),
			Default: false,
		})
		if ok {
			return res, true
		}
	}

	return matching.Result{}, false
}
