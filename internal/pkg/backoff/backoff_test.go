// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayDoublesPerAttempt(t *testing.T) {
	t.Parallel()

	p := Policy{Base: time.Second, Max: time.Minute, MaxAttempts: 5}

	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
}

func TestDelayCappedAtMax(t *testing.T) {
	t.Parallel()

	p := Policy{Base: time.Second, Max: 5 * time.Second, MaxAttempts: 10}

	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(60))
}

func TestDelayZeroBaseFallsBack(t *testing.T) {
	t.Parallel()

	p := Policy{}
	assert.Equal(t, time.Second, p.Delay(0))
}

func TestAttempts(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint(1), Policy{}.Attempts())
	assert.Equal(t, uint(5), DefaultPolicy().Attempts())
}
