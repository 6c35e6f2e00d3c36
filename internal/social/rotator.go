package social

import (
	"log/slog"
	"time"
)

// Path identifies one of the two publishing paths.
type Path string

const (
	// PathPrimary is the rate-limited, credential-based API path.
	PathPrimary Path = "primary"
	// PathSecondary is the session-login path used as alternation partner.
	PathSecondary Path = "secondary"
	// PathNone means no path has been used yet.
	PathNone Path = ""
)

// primaryDailyCap is the platform's free-tier daily write allowance on the
// primary path. The counter is tracked against it for visibility only; path
// selection does not consult it (strict alternation).
const primaryDailyCap = 17

const usageResetWindow = 24 * time.Hour

// Rotator alternates between the two publishing paths and tracks daily usage
// of the primary one. All state is in-memory and process-lifetime.
type Rotator struct {
	primaryUsageCount int
	lastPrimaryUse    time.Time
	lastUsedPath      Path

	logger *slog.Logger
	now    func() time.Time
}

// NewRotator creates a rotator with no usage history.
func NewRotator(logger *slog.Logger) *Rotator {
	r := &Rotator{
		logger: logger,
		now:    time.Now,
	}
	r.lastPrimaryUse = r.now()
	return r
}

// NextPath returns the path to use for the next post. The first ever post
// goes on Primary; after that the paths strictly alternate. Alternation is
// unconditional and never blocks.
func (r *Rotator) NextPath() Path {
	r.resetIfDayElapsed()

	if r.lastUsedPath == PathNone {
		return PathPrimary
	}
	if r.lastUsedPath == PathPrimary {
		return PathSecondary
	}
	return PathPrimary
}

// RecordUse registers the outcome of a publish attempt. Only successes
// advance rotation and usage counters; a failed attempt leaves the rotator
// unchanged so the same path is tried again next cycle.
func (r *Rotator) RecordUse(path Path, success bool) {
	if !success {
		return
	}

	if path == PathPrimary {
		r.primaryUsageCount++
		r.lastPrimaryUse = r.now()
		r.logger.Info("primary path used",
			"posts_today", r.primaryUsageCount,
			"daily_cap", primaryDailyCap)
	}
	r.lastUsedPath = path
}

// PrimaryUsageCount reports how many primary-path posts have happened in the
// current 24h accounting window.
func (r *Rotator) PrimaryUsageCount() int {
	return r.primaryUsageCount
}

// LastUsedPath reports which path the most recent successful post used.
func (r *Rotator) LastUsedPath() Path {
	return r.lastUsedPath
}

// resetIfDayElapsed zeroes the usage counter once 24h have passed since the
// last primary-path post. The anchor is the last use, not the last reset, so
// recent primary activity keeps the current accounting window alive.
func (r *Rotator) resetIfDayElapsed() {
	now := r.now()
	if now.Sub(r.lastPrimaryUse) >= usageResetWindow {
		r.primaryUsageCount = 0
		r.lastPrimaryUse = now
		r.logger.Info("primary path usage counter reset")
	}
}
