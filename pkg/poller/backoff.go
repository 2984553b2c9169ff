// Copyright © 2026 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package poller

import (
	"math"
	"math/rand"
	"time"
)

// Backoff describes how long to wait after consecutive failed polls.
type Backoff struct {
	// Initial is the delay after the first failure. If 0, failures are not delayed.
	Initial time.Duration

	// Max caps the delay. If 0, the delay is uncapped.
	Max time.Duration

	// Jitter randomly spreads each delay by up to this fraction of itself, in either direction.
	Jitter float64
}

// Delay gets the wait after the given number of consecutive failures.
// rnd should return a number in [0, 1); it is only called when Jitter is set.
func (b Backoff) Delay(failures int, rnd func() float64) time.Duration {
	if b.Initial <= 0 || failures <= 0 {
		return 0
	}

	d := b.Initial
	for i := 1; i < failures; i++ {
		if b.Max > 0 && d >= b.Max {
			break
		}
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}

	if b.Jitter > 0 && rnd != nil {
		spread := float64(d) * b.Jitter * (2*rnd() - 1)
		d += time.Duration(spread)
		if d < 0 {
			d = 0
		}
	}
	return d
}

func newRand() func() float64 {
	return rand.New(rand.NewSource(time.Now().UnixNano())).Float64
}
