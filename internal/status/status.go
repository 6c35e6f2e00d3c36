package status

import (
	"sync"
	"time"
)

// Bot tracks the observable state of the posting loop. The scheduler is the
// only writer; the health handler takes read snapshots. The mutex exists
// because the handler serves from a different goroutine than the loop.
type Bot struct {
	mu sync.RWMutex

	running        bool
	lastPostTime   time.Time
	totalPosts     int64
	lastError      string
	lastAuthMethod string
}

// Snapshot is a point-in-time copy of the bot's status fields.
type Snapshot struct {
	IsRunning      bool
	LastPostTime   time.Time
	TotalPosts     int64
	LastError      string
	LastAuthMethod string
}

// NewBot returns a status record for a loop that has not started yet.
func NewBot() *Bot {
	return &Bot{}
}

// SetRunning marks the loop as started or stopped.
func (b *Bot) SetRunning(running bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = running
}

// RecordPost registers a successful post: bumps the counter, stamps the post
// time, remembers which path was used, and clears any previous error.
func (b *Bot) RecordPost(at time.Time, authMethod string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalPosts++
	b.lastPostTime = at
	b.lastAuthMethod = authMethod
	b.lastError = ""
}

// RecordError stores the most recent loop error message.
func (b *Bot) RecordError(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastError = msg
}

// Snapshot returns a copy of the current status fields.
func (b *Bot) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		IsRunning:      b.running,
		LastPostTime:   b.lastPostTime,
		TotalPosts:     b.totalPosts,
		LastError:      b.lastError,
		LastAuthMethod: b.lastAuthMethod,
	}
}
