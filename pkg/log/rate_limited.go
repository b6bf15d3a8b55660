// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitedLogger forwards warnings to a Logger no more than once per
// interval. Warnings over the limit are counted, and the next warning that
// gets through reports how many were suppressed.
type RateLimitedLogger struct {
	logger  Logger
	limit   *rate.Limiter
	now     func() time.Time
	dropped atomic.Int64
}

// BasicRateLimitedLogger returns a RateLimitedLogger for the global logger.
// The global logger is resolved at each call, so targets installed later
// with SetTarget are honored.
func BasicRateLimitedLogger(every time.Duration) *RateLimitedLogger {
	return NewRateLimitedLogger(global{}, every)
}

// NewRateLimitedLogger returns a RateLimitedLogger for logger.
func NewRateLimitedLogger(logger Logger, every time.Duration) *RateLimitedLogger {
	return &RateLimitedLogger{
		logger: logger,
		limit:  rate.NewLimiter(rate.Every(every), 1),
		now:    time.Now,
	}
}

// Warningf logs a warning unless one was logged less than an interval ago.
func (rl *RateLimitedLogger) Warningf(format string, v ...any) {
	if !rl.limit.AllowN(rl.now(), 1) {
		rl.dropped.Add(1)
		return
	}
	if n := rl.dropped.Swap(0); n > 0 {
		format += " (%d similar warnings suppressed)"
		v = append(v[:len(v):len(v)], n)
	}
	rl.logger.Warningf(format, v...)
}

// Suppressed returns the number of warnings dropped since the last one
// logged.
func (rl *RateLimitedLogger) Suppressed() int64 {
	return rl.dropped.Load()
}
