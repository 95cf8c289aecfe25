// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package backoff is a pure retry-delay policy, decoupled from transport so
// it can be tested without real waits.
package backoff

import "time"

// Policy maps a zero-based retry attempt to the delay preceding it.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts uint
}

// DefaultPolicy suits tracker-style limits of a few requests per few seconds.
func DefaultPolicy() Policy {
	return Policy{
		Base:        2 * time.Second,
		Max:         time.Minute,
		MaxAttempts: 5,
	}
}

// Delay returns the wait before retry attempt n (0-based): Base doubled per
// attempt, capped at Max.
func (p Policy) Delay(n uint) time.Duration {
	base := p.Base
	if base <= 0 {
		base = time.Second
	}

	d := base
	for i := uint(0); i < n; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// Attempts returns the total number of tries (first call plus retries).
func (p Policy) Attempts() uint {
	if p.MaxAttempts == 0 {
		return 1
	}
	return p.MaxAttempts
}
