package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ai-daily/newsdigest/internal/model"
	"github.com/ai-daily/newsdigest/internal/storage"
)

type UserProvider interface {
	Users(ctx context.Context) ([]model.User, error)
}

type PreferenceProvider interface {
	Preferences(ctx context.Context, userID string) (model.Preferences, error)
}

type Generator interface {
	GenerateForUser(ctx context.Context, userID string) (*model.Digest, error)
}

// Scheduler is the periodic trigger: on every tick it evaluates each
// user's configuration against the firing predicate and runs the
// generator for those that match. One user's failure never stops the
// others.
type Scheduler struct {
	users     UserProvider
	prefs     PreferenceProvider
	generator Generator

	tickInterval time.Duration
	log          *slog.Logger
}

func NewScheduler(users UserProvider, prefs PreferenceProvider, generator Generator, tickInterval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		users:        users,
		prefs:        prefs,
		generator:    generator,
		tickInterval: tickInterval,
		log:          log,
	}
}

// Start runs the tick loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx, time.Now())
		}
	}
}

// Tick evaluates every user once against the given clock value.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	users, err := s.users.Users(ctx)
	if err != nil {
		s.log.Error("listing users for scheduler tick failed", "error", err)
		return
	}

	for _, user := range users {
		prefs, err := s.prefs.Preferences(ctx, user.ID)
		if err != nil {
			// Users who never configured delivery don't get digests
			// pushed at them on a guessed default slot.
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}

			s.log.Error("loading preferences failed", "user_id", user.ID, "error", err)
			continue
		}

		if prefs.IsPaused {
			continue
		}
		if prefs.ResumeDate != nil && prefs.ResumeDate.After(now) {
			continue
		}

		if !ShouldRun(prefs, now) {
			continue
		}

		if _, err := s.generator.GenerateForUser(ctx, user.ID); err != nil {
			s.log.Error("digest generation failed", "user_id", user.ID, "error", err)
			continue
		}

		s.log.Info("digest generated", "user_id", user.ID)
	}

	s.log.Debug("scheduler tick complete", "at", now)
}
