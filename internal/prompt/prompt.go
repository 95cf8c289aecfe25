// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package prompt models user confirmation as explicit decision values so
// that the snatch and transplant services stay testable: they ask a Prompter
// and tests inject scripted answers instead of blocking on stdin.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Question is a single pending yes/no decision.
type Question struct {
	Message string
	Default bool

	// Routine questions are auto-answered with Default unless the user asked
	// for timid mode. Non-routine questions always reach the user.
	Routine bool
}

// Prompter answers pending decisions. Implementations must be safe for
// strictly sequential use; there is no concurrent prompting.
type Prompter interface {
	Confirm(q Question) bool
}

// Terminal prompts on stdin/stdout. Without a TTY every question falls back
// to its default answer.
type Terminal struct {
	timid bool
	in    *bufio.Reader
	out   io.Writer
	isTTY bool
}

func NewTerminal(timid bool) *Terminal {
	return &Terminal{
		timid: timid,
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
		isTTY: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

func (t *Terminal) Confirm(q Question) bool {
	if q.Routine && !t.timid {
		log.Info().Str("answer", yn(q.Default)).Msg(q.Message)
		return q.Default
	}

	if !t.isTTY {
		log.Warn().Str("answer", yn(q.Default)).Msg(q.Message + " (no terminal, using default)")
		return q.Default
	}

	suffix := "[y/N]"
	if q.Default {
		suffix = "[Y/n]"
	}

	for {
		fmt.Fprintf(t.out, "%s %s ", q.Message, suffix)

		line, err := t.in.ReadString('\n')
		if err != nil {
			return q.Default
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return q.Default
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			fmt.Fprintln(t.out, "please answer y or n")
		}
	}
}

func yn(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// Scripted replays a fixed sequence of answers; once exhausted it answers
// with Fallback. Intended for tests.
type Scripted struct {
	Answers  []bool
	Fallback bool

	Asked []Question
	next  int
}

func (s *Scripted) Confirm(q Question) bool {
	s.Asked = append(s.Asked, q)
	if s.next < len(s.Answers) {
		answer := s.Answers[s.next]
		s.next++
		return answer
	}
	return s.Fallback
}
