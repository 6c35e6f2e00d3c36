package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"log/slog"

	"github.com/hypebot-ai/hypebot/internal/mentions"
	"github.com/hypebot-ai/hypebot/internal/metrics"
	"github.com/hypebot-ai/hypebot/internal/social"
	"github.com/hypebot-ai/hypebot/internal/state"
	"github.com/hypebot-ai/hypebot/internal/status"
)

// publishDelay is the fixed pause between generating a message and sending it.
const publishDelay = 2 * time.Second

// mentionWindowDays is the trailing window requested from the mentions API.
const mentionWindowDays = 7

// Clock abstracts wall-clock access so the loop's timed waits are testable
// without real sleeps.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// MentionSource fetches recent mentions; nil means "nothing usable".
type MentionSource interface {
	FetchRecent(ctx context.Context, keyword string, windowDays int) *mentions.Result
}

// MessageGenerator produces post text from mentions or from the fixed topic.
type MessageGenerator interface {
	Summarize(ctx context.Context, items []mentions.Mention, total int) (string, error)
	GenericMessage(ctx context.Context) (string, error)
}

// StateStore persists the last posted content for duplicate suppression.
type StateStore interface {
	Load() state.PostState
	Save(content string)
}

// Publisher sends a message on the selected path.
type Publisher interface {
	Publish(ctx context.Context, path social.Path, text string) error
}

// CredentialVerifier probes the primary path's identity at startup.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context) error
}

// SessionLogin establishes the secondary path's session at startup.
type SessionLogin interface {
	Login(ctx context.Context) error
}

// Config holds the loop's timing and content parameters.
type Config struct {
	Keyword         string
	PostingInterval time.Duration
	ErrorBackoff    time.Duration
}

// PostScheduler drives the posting pipeline: fetch, generate, duplicate
// check, rotate, publish, persist. One perpetual loop, no parallel cycles.
type PostScheduler struct {
	cfg       Config
	source    MentionSource
	generator MessageGenerator
	store     StateStore
	rotator   *social.Rotator
	publisher Publisher
	verifier  CredentialVerifier
	session   SessionLogin
	bot       *status.Bot
	collector *metrics.Collector
	logger    *slog.Logger
	clock     Clock
}

// NewPostScheduler wires the posting loop.
func NewPostScheduler(
	cfg Config,
	source MentionSource,
	generator MessageGenerator,
	store StateStore,
	rotator *social.Rotator,
	publisher Publisher,
	verifier CredentialVerifier,
	session SessionLogin,
	bot *status.Bot,
	collector *metrics.Collector,
	logger *slog.Logger,
) *PostScheduler {
	return &PostScheduler{
		cfg:       cfg,
		source:    source,
		generator: generator,
		store:     store,
		rotator:   rotator,
		publisher: publisher,
		verifier:  verifier,
		session:   session,
		bot:       bot,
		collector: collector,
		logger:    logger,
		clock:     realClock{},
	}
}

// Run initializes both publishing paths and then loops until the context is
// cancelled. An initialization failure is fatal: the loop never starts and
// the status endpoint reports not-running.
func (s *PostScheduler) Run(ctx context.Context) error {
	s.bot.SetRunning(true)

	if err := s.initialize(ctx); err != nil {
		s.bot.SetRunning(false)
		s.bot.RecordError(err.Error())
		s.logger.Error("fatal: publishing path initialization failed", "error", err)
		return err
	}

	s.logger.Info("posting loop started",
		"keyword", s.cfg.Keyword,
		"posting_interval", s.cfg.PostingInterval,
		"error_backoff", s.cfg.ErrorBackoff)

	for {
		wait := s.step(ctx)

		select {
		case <-ctx.Done():
			s.bot.SetRunning(false)
			s.logger.Info("posting loop stopped")
			return ctx.Err()
		case <-s.clock.After(wait):
		}
	}
}

// initialize verifies the primary path's identity and performs the secondary
// path's session login.
func (s *PostScheduler) initialize(ctx context.Context) error {
	s.logger.Info("verifying publishing paths")

	if err := s.verifier.VerifyCredentials(ctx); err != nil {
		return fmt.Errorf("primary path verification failed: %w", err)
	}
	if err := s.session.Login(ctx); err != nil {
		return fmt.Errorf("secondary path login failed: %w", err)
	}

	s.logger.Info("both publishing paths verified")
	return nil
}

// step runs one cycle under a panic supervisor and returns how long to wait
// before the next one. Anything escaping the cycle is classified as a
// recoverable error.
func (s *PostScheduler) step(ctx context.Context) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic in posting cycle: %v", r)
			s.bot.RecordError(msg)
			s.collector.RecordCycle("error")
			s.logger.Error("recovered from panic in posting cycle", "panic", r)
			wait = s.cfg.ErrorBackoff
		}
	}()

	return s.runCycle(ctx)
}

// runCycle executes one pass of the pipeline.
func (s *PostScheduler) runCycle(ctx context.Context) time.Duration {
	logger := s.logger.With("cycle_id", uuid.NewString())

	path := s.rotator.NextPath()
	lastState := s.store.Load()

	logger.Info("starting posting cycle", "path", string(path))

	text := s.generateText(ctx, logger)
	if text == "" {
		logger.Warn("failed to generate any message text, skipping cycle")
		s.collector.RecordCycle("skipped")
		return s.cfg.PostingInterval
	}

	if text == lastState.LastContent {
		logger.Info("skipping post, content identical to last post")
		s.collector.RecordCycle("duplicate")
		return s.cfg.PostingInterval
	}

	// Brief settle delay before the publish call.
	select {
	case <-ctx.Done():
		return s.cfg.PostingInterval
	case <-s.clock.After(publishDelay):
	}

	if err := s.publisher.Publish(ctx, path, text); err != nil {
		s.rotator.RecordUse(path, false)
		s.bot.RecordError(err.Error())
		s.collector.RecordPublishFailure(string(path))
		s.collector.RecordCycle("error")
		logger.Error("publish failed, backing off",
			"path", string(path),
			"backoff", s.cfg.ErrorBackoff,
			"error", err)
		return s.cfg.ErrorBackoff
	}

	s.store.Save(text)
	s.rotator.RecordUse(path, true)
	s.bot.RecordPost(s.clock.Now(), string(path))
	s.collector.RecordPost(string(path))
	s.collector.RecordCycle("posted")

	logger.Info("post published",
		"path", string(path),
		"primary_posts_today", s.rotator.PrimaryUsageCount(),
		"text_length", len(text))

	return s.cfg.PostingInterval
}

// generateText produces the message for this cycle: a summary of fetched
// mentions when available, otherwise the generic topic message. Empty string
// means both attempts failed.
func (s *PostScheduler) generateText(ctx context.Context, logger *slog.Logger) string {
	result := s.source.FetchRecent(ctx, s.cfg.Keyword, mentionWindowDays)
	if result == nil {
		s.collector.RecordFetch("none")
		logger.Info("no mentions available, using generic content")
		return s.genericFallback(ctx, logger)
	}
	s.collector.RecordFetch("ok")

	text, err := s.generator.Summarize(ctx, result.Items, result.Total)
	if err != nil {
		logger.Warn("summarization failed, using generic content", "error", err)
		return s.genericFallback(ctx, logger)
	}
	return text
}

func (s *PostScheduler) genericFallback(ctx context.Context, logger *slog.Logger) string {
	s.collector.RecordGenericFallback()

	text, err := s.generator.GenericMessage(ctx)
	if err != nil {
		logger.Error("generic message generation failed", "error", err)
		return ""
	}
	return text
}
