package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hypebot-ai/hypebot/internal/mentions"
	"github.com/hypebot-ai/hypebot/internal/metrics"
	"github.com/hypebot-ai/hypebot/internal/social"
	"github.com/hypebot-ai/hypebot/internal/state"
	"github.com/hypebot-ai/hypebot/internal/status"
)

type fakeClock struct {
	now   time.Time
	waits []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type fakeSource struct {
	result *mentions.Result
	calls  int
}

func (f *fakeSource) FetchRecent(ctx context.Context, keyword string, windowDays int) *mentions.Result {
	f.calls++
	return f.result
}

type fakeGenerator struct {
	summary    string
	summaryErr error
	generic    string
	genericErr error

	summarizeCalls int
	genericCalls   int
	gotItems       []mentions.Mention
	gotTotal       int
}

func (f *fakeGenerator) Summarize(ctx context.Context, items []mentions.Mention, total int) (string, error) {
	f.summarizeCalls++
	f.gotItems = items
	f.gotTotal = total
	return f.summary, f.summaryErr
}

func (f *fakeGenerator) GenericMessage(ctx context.Context) (string, error) {
	f.genericCalls++
	return f.generic, f.genericErr
}

type fakeStore struct {
	loaded    state.PostState
	saved     []string
	loadCalls int
}

func (f *fakeStore) Load() state.PostState {
	f.loadCalls++
	return f.loaded
}

func (f *fakeStore) Save(content string) {
	f.saved = append(f.saved, content)
}

type fakePublisher struct {
	err      error
	panicMsg string
	calls    int
	lastPath social.Path
	lastText string
}

func (f *fakePublisher) Publish(ctx context.Context, path social.Path, text string) error {
	f.calls++
	f.lastPath = path
	f.lastText = text
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.err
}

type fakeVerifier struct{ err error }

func (f *fakeVerifier) VerifyCredentials(ctx context.Context) error { return f.err }

type fakeSession struct {
	err   error
	calls int
}

func (f *fakeSession) Login(ctx context.Context) error {
	f.calls++
	return f.err
}

type fixture struct {
	scheduler *PostScheduler
	source    *fakeSource
	generator *fakeGenerator
	store     *fakeStore
	publisher *fakePublisher
	rotator   *social.Rotator
	bot       *status.Bot
	clock     *fakeClock
	session   *fakeSession
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	collector, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("NewCollector returned error: %v", err)
	}

	f := &fixture{
		source:    &fakeSource{},
		generator: &fakeGenerator{summary: "summary #HyperLiquid", generic: "generic #HyperLiquid"},
		store:     &fakeStore{loaded: state.PostState{LastPostTime: time.Unix(0, 0).UTC()}},
		publisher: &fakePublisher{},
		rotator:   social.NewRotator(logger),
		bot:       status.NewBot(),
		clock:     &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		session:   &fakeSession{},
	}

	f.scheduler = NewPostScheduler(
		Config{
			Keyword:         "hyperliquid",
			PostingInterval: 60 * time.Minute,
			ErrorBackoff:    5 * time.Minute,
		},
		f.source,
		f.generator,
		f.store,
		f.rotator,
		f.publisher,
		&fakeVerifier{},
		f.session,
		f.bot,
		collector,
		logger,
	)
	f.scheduler.clock = f.clock

	return f
}

func sampleResult(n, total int) *mentions.Result {
	items := make([]mentions.Mention, n)
	for i := range items {
		items[i] = mentions.Mention{ID: "m", Content: "body", Type: "post", Sentiment: "neutral"}
	}
	return &mentions.Result{Items: items, Total: total}
}

func TestFirstPostUsesPrimaryAndPersistsState(t *testing.T) {
	f := newFixture(t)
	f.source.result = sampleResult(15, 57)

	wait := f.scheduler.step(context.Background())

	if f.generator.summarizeCalls != 1 {
		t.Fatalf("expected summarizer called once, got %d", f.generator.summarizeCalls)
	}
	if len(f.generator.gotItems) != 15 || f.generator.gotTotal != 57 {
		t.Errorf("summarizer received %d items / total %d, want 15 / 57",
			len(f.generator.gotItems), f.generator.gotTotal)
	}
	if f.generator.genericCalls != 0 {
		t.Errorf("generic generator should not be called, got %d calls", f.generator.genericCalls)
	}

	if f.publisher.calls != 1 {
		t.Fatalf("expected one publish attempt, got %d", f.publisher.calls)
	}
	if f.publisher.lastPath != social.PathPrimary {
		t.Errorf("first-ever post should use the primary path, got %q", f.publisher.lastPath)
	}
	if f.publisher.lastText != "summary #HyperLiquid" {
		t.Errorf("unexpected published text %q", f.publisher.lastText)
	}

	if len(f.store.saved) != 1 || f.store.saved[0] != "summary #HyperLiquid" {
		t.Errorf("expected state saved with published text, got %v", f.store.saved)
	}

	snap := f.bot.Snapshot()
	if snap.TotalPosts != 1 {
		t.Errorf("expected totalPosts 1, got %d", snap.TotalPosts)
	}
	if !snap.LastPostTime.Equal(f.clock.now) {
		t.Errorf("expected lastPostTime %v, got %v", f.clock.now, snap.LastPostTime)
	}
	if snap.LastAuthMethod != "primary" {
		t.Errorf("expected auth method primary, got %q", snap.LastAuthMethod)
	}

	if wait != 60*time.Minute {
		t.Errorf("expected full interval wait after success, got %v", wait)
	}
}

func TestPathsAlternateAcrossSuccessfulPosts(t *testing.T) {
	f := newFixture(t)
	f.source.result = sampleResult(3, 3)

	paths := make([]social.Path, 0, 4)
	for i := 0; i < 4; i++ {
		// Vary the summary so the duplicate check never triggers.
		f.generator.summary = "summary " + string(rune('a'+i)) + " #HyperLiquid"
		f.scheduler.step(context.Background())
		paths = append(paths, f.publisher.lastPath)
	}

	want := []social.Path{social.PathPrimary, social.PathSecondary, social.PathPrimary, social.PathSecondary}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("post %d: expected path %q, got %q", i, want[i], paths[i])
		}
	}
}

func TestNilFetchFallsBackToGenericExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.source.result = nil

	f.scheduler.step(context.Background())

	if f.generator.summarizeCalls != 0 {
		t.Errorf("summarizer must not run on nil fetch, got %d calls", f.generator.summarizeCalls)
	}
	if f.generator.genericCalls != 1 {
		t.Errorf("expected exactly one generic call, got %d", f.generator.genericCalls)
	}
	if f.publisher.lastText != "generic #HyperLiquid" {
		t.Errorf("expected generic text published, got %q", f.publisher.lastText)
	}
}

func TestFailedSummaryFallsBackToGeneric(t *testing.T) {
	f := newFixture(t)
	f.source.result = sampleResult(3, 3)
	f.generator.summaryErr = errors.New("completion failed")

	f.scheduler.step(context.Background())

	if f.generator.genericCalls != 1 {
		t.Errorf("expected one generic fallback call, got %d", f.generator.genericCalls)
	}
	if f.publisher.calls != 1 || f.publisher.lastText != "generic #HyperLiquid" {
		t.Errorf("expected generic text published, got %q (%d calls)", f.publisher.lastText, f.publisher.calls)
	}
}

func TestCycleSkippedWhenBothGeneratorsFail(t *testing.T) {
	f := newFixture(t)
	f.source.result = nil
	f.generator.genericErr = errors.New("completion failed")

	wait := f.scheduler.step(context.Background())

	if f.publisher.calls != 0 {
		t.Errorf("expected no publish attempt, got %d", f.publisher.calls)
	}
	if len(f.store.saved) != 0 {
		t.Errorf("expected no state writes, got %v", f.store.saved)
	}
	if snap := f.bot.Snapshot(); snap.TotalPosts != 0 {
		t.Errorf("expected no posts counted, got %d", snap.TotalPosts)
	}
	if wait != 60*time.Minute {
		t.Errorf("expected full interval after skipped cycle, got %v", wait)
	}
}

func TestDuplicateContentSuppressesPublish(t *testing.T) {
	f := newFixture(t)
	f.source.result = sampleResult(3, 3)
	f.store.loaded = state.PostState{
		LastPostTime: time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		LastContent:  "summary #HyperLiquid",
	}

	wait := f.scheduler.step(context.Background())

	if f.publisher.calls != 0 {
		t.Errorf("expected no publish for duplicate content, got %d calls", f.publisher.calls)
	}
	if len(f.store.saved) != 0 {
		t.Errorf("expected no state writes for duplicate, got %v", f.store.saved)
	}
	if snap := f.bot.Snapshot(); snap.TotalPosts != 0 {
		t.Errorf("expected counters unchanged, got totalPosts=%d", snap.TotalPosts)
	}
	if f.rotator.LastUsedPath() != social.PathNone {
		t.Errorf("expected rotation unchanged, got %q", f.rotator.LastUsedPath())
	}
	if wait != 60*time.Minute {
		t.Errorf("expected full interval after duplicate, got %v", wait)
	}
}

func TestPublishFailureBacksOffWithoutAdvancingRotation(t *testing.T) {
	f := newFixture(t)
	f.source.result = sampleResult(3, 3)
	f.publisher.err = errors.New("rate limit exceeded")

	wait := f.scheduler.step(context.Background())

	if wait != 5*time.Minute {
		t.Errorf("expected 5 minute backoff after failure, got %v", wait)
	}

	snap := f.bot.Snapshot()
	if snap.LastError == "" {
		t.Error("expected lastError recorded")
	}
	if snap.TotalPosts != 0 {
		t.Errorf("expected no posts counted, got %d", snap.TotalPosts)
	}

	if f.rotator.LastUsedPath() != social.PathNone {
		t.Errorf("failure must not advance rotation, got last-used %q", f.rotator.LastUsedPath())
	}
	if len(f.store.saved) != 0 {
		t.Errorf("expected no state writes after failed publish, got %v", f.store.saved)
	}

	// Next cycle retries the same path.
	f.publisher.err = nil
	f.scheduler.step(context.Background())
	if f.publisher.lastPath != social.PathPrimary {
		t.Errorf("expected retry on primary path, got %q", f.publisher.lastPath)
	}
}

func TestSuccessClearsPreviousError(t *testing.T) {
	f := newFixture(t)
	f.source.result = sampleResult(3, 3)
	f.publisher.err = errors.New("transient")

	f.scheduler.step(context.Background())
	if snap := f.bot.Snapshot(); snap.LastError == "" {
		t.Fatal("expected error recorded after failed publish")
	}

	f.publisher.err = nil
	f.scheduler.step(context.Background())
	if snap := f.bot.Snapshot(); snap.LastError != "" {
		t.Errorf("expected lastError cleared after success, got %q", snap.LastError)
	}
}

func TestPublishDelayPrecedesPublish(t *testing.T) {
	f := newFixture(t)
	f.source.result = sampleResult(1, 1)

	f.scheduler.step(context.Background())

	if len(f.clock.waits) == 0 || f.clock.waits[0] != publishDelay {
		t.Errorf("expected %v publish delay before posting, got waits %v", publishDelay, f.clock.waits)
	}
}

func TestPanicInCycleIsSupervised(t *testing.T) {
	f := newFixture(t)
	f.source.result = sampleResult(1, 1)
	f.publisher.panicMsg = "unexpected nil"

	wait := f.scheduler.step(context.Background())

	if wait != 5*time.Minute {
		t.Errorf("expected backoff wait after panic, got %v", wait)
	}
	if snap := f.bot.Snapshot(); snap.LastError == "" {
		t.Error("expected panic recorded as lastError")
	}
}

func TestRunFailsFatallyWhenPrimaryVerificationFails(t *testing.T) {
	f := newFixture(t)

	f.scheduler.verifier = &fakeVerifier{err: errors.New("invalid credentials")}

	err := f.scheduler.Run(context.Background())
	if err == nil {
		t.Fatal("expected fatal error from Run")
	}

	snap := f.bot.Snapshot()
	if snap.IsRunning {
		t.Error("expected bot reported not-running after fatal init failure")
	}
	if snap.LastError == "" {
		t.Error("expected init failure recorded as lastError")
	}
	if f.source.calls != 0 {
		t.Errorf("loop must not start after init failure, got %d fetches", f.source.calls)
	}
}

func TestRunFailsFatallyWhenSessionLoginFails(t *testing.T) {
	f := newFixture(t)
	f.session.err = errors.New("login challenge")

	if err := f.scheduler.Run(context.Background()); err == nil {
		t.Fatal("expected fatal error from Run")
	}
	if f.source.calls != 0 {
		t.Errorf("loop must not start after login failure, got %d fetches", f.source.calls)
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	f := newFixture(t)
	f.source.result = sampleResult(1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.scheduler.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if snap := f.bot.Snapshot(); snap.IsRunning {
		t.Error("expected bot reported not-running after cancellation")
	}
}
