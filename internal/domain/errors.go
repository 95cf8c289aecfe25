// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "github.com/pkg/errors"

// Cross-package failure taxonomy. Transport clients wrap ErrRateLimited so
// the retriever can apply its backoff policy without knowing which remote
// throttled; the remaining sentinels are raised and handled per package.
var (
	ErrRateLimited      = errors.New("rate limited by remote service")
	ErrNoTrackerMatch   = errors.New("no tracker release matches the album")
	ErrExhaustedRetries = errors.New("retry attempts exhausted")
)
