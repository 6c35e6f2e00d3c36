package social

import (
	"context"
	"fmt"

	"log/slog"
)

// PublishError wraps a failed publish attempt with the path it happened on.
type PublishError struct {
	Path Path
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish on %s path failed: %v", e.Path, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// pathClient is the per-path posting surface both clients satisfy.
type pathClient interface {
	Post(ctx context.Context, text string) error
}

// Publisher sends generated messages through whichever path the rotator
// selected. It carries no retry logic; the scheduler owns backoff.
type Publisher struct {
	primary   pathClient
	secondary pathClient
	logger    *slog.Logger
}

// NewPublisher binds the two path clients.
func NewPublisher(primary *TwitterClient, secondary *SessionClient, logger *slog.Logger) *Publisher {
	return &Publisher{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Publish sends text on the given path. Failures come back as *PublishError.
func (p *Publisher) Publish(ctx context.Context, path Path, text string) error {
	var client pathClient
	switch path {
	case PathPrimary:
		client = p.primary
	case PathSecondary:
		client = p.secondary
	default:
		return &PublishError{Path: path, Err: fmt.Errorf("unknown publishing path")}
	}

	p.logger.Info("publishing message", "path", string(path), "text_length", len(text))

	if err := client.Post(ctx, text); err != nil {
		return &PublishError{Path: path, Err: err}
	}
	return nil
}
