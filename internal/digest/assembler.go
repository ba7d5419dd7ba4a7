// Package digest orchestrates one full generation run per user:
// fetch, dedupe, rank, truncate, summarize, persist, deliver.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bpradana/weave"

	"github.com/ai-daily/newsdigest/internal/model"
	"github.com/ai-daily/newsdigest/internal/ranking"
	"github.com/ai-daily/newsdigest/internal/storage"
	"github.com/ai-daily/newsdigest/internal/summary"
)

// Summaries fall back to this many characters of raw content when the
// summarizer is unavailable.
const fallbackSummaryLen = 240

type UserStore interface {
	UserByID(ctx context.Context, id string) (*model.User, error)
	Keywords(ctx context.Context, userID string) ([]string, error)
	Preferences(ctx context.Context, userID string) (model.Preferences, error)
	PrimaryDeliveryEmail(ctx context.Context, userID string) (string, error)
}

type DigestStore interface {
	Create(ctx context.Context, userID string) (*model.Digest, error)
	AddItem(ctx context.Context, digestID string, item model.RankedItem, summary string) error
	DigestByID(ctx context.Context, userID, digestID string) (*model.Digest, error)
	MarkSent(ctx context.Context, digestID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, digestID string) error
}

type ItemFetcher interface {
	FetchForUser(ctx context.Context, userID string) ([]model.Item, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, title, content, language string, depth model.SummaryDepth) (string, error)
}

type EmailSender interface {
	SendDigest(ctx context.Context, to string, digest *model.Digest, userName, baseURL string) error
}

// FailureNotifier hears about digests that end up FAILED. Optional.
type FailureNotifier interface {
	DigestFailed(ctx context.Context, userID, digestID, reason string)
}

type Assembler struct {
	users      UserStore
	digests    DigestStore
	fetcher    ItemFetcher
	summarizer Summarizer
	email      EmailSender

	summarizeTimeout time.Duration
	deliveryTimeout  time.Duration
	baseURL          string

	log      *slog.Logger
	notifier FailureNotifier
}

func NewAssembler(
	users UserStore,
	digests DigestStore,
	fetcher ItemFetcher,
	summarizer Summarizer,
	email EmailSender,
	summarizeTimeout time.Duration,
	deliveryTimeout time.Duration,
	baseURL string,
	log *slog.Logger,
	notifier FailureNotifier,
) *Assembler {
	return &Assembler{
		users:            users,
		digests:          digests,
		fetcher:          fetcher,
		summarizer:       summarizer,
		email:            email,
		summarizeTimeout: summarizeTimeout,
		deliveryTimeout:  deliveryTimeout,
		baseURL:          baseURL,
		log:              log,
		notifier:         notifier,
	}
}

// userContext is everything the run needs to know about the user
// before touching any feed.
type userContext struct {
	user          *model.User
	keywords      []string
	prefs         model.Preferences
	deliveryEmail string
}

// GenerateForUser runs one complete digest generation. It returns an
// error only for fatal problems (unknown user, broken storage); a
// missing delivery address or a delivery failure yields a FAILED
// digest, not an error.
func (a *Assembler) GenerateForUser(ctx context.Context, userID string) (*model.Digest, error) {
	uc, err := a.loadUserContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	pool, err := a.fetcher.FetchForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates for user %s: %w", userID, err)
	}

	ranked := ranking.Rank(ranking.Dedupe(pool), uc.keywords, time.Now().UTC())

	limit := uc.prefs.DigestLength.ItemLimit()
	if len(ranked) < limit {
		limit = len(ranked)
	}
	selected := ranked[:limit]

	digest, err := a.digests.Create(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create digest for user %s: %w", userID, err)
	}

	if err := a.summarizeAndPersist(ctx, digest.ID, selected, uc.prefs); err != nil {
		return nil, err
	}

	result, err := a.digests.DigestByID(ctx, userID, digest.ID)
	if err != nil {
		return nil, fmt.Errorf("reload digest %s: %w", digest.ID, err)
	}

	return a.deliver(ctx, uc, result)
}

// loadUserContext issues the four read queries concurrently and joins
// them; any failure here is fatal to the run.
func (a *Assembler) loadUserContext(ctx context.Context, userID string) (*userContext, error) {
	graph := weave.NewGraph()

	userTask, err := weave.AddTask(graph, "load-user", func(ctx context.Context, _ weave.DependencyResolver) (*model.User, error) {
		return a.users.UserByID(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	keywordsTask, err := weave.AddTask(graph, "load-keywords", func(ctx context.Context, _ weave.DependencyResolver) ([]string, error) {
		return a.users.Keywords(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	prefsTask, err := weave.AddTask(graph, "load-preferences", func(ctx context.Context, deps weave.DependencyResolver) (model.Preferences, error) {
		prefs, err := a.users.Preferences(ctx, userID)
		if err != nil {
			// A user without a saved row still gets a digest when
			// explicitly asked for one; only the row's absence is
			// recoverable.
			if !errors.Is(err, storage.ErrNotFound) {
				return model.Preferences{}, err
			}

			user, uErr := userTask.Value(deps)
			if uErr != nil {
				return model.Preferences{}, uErr
			}
			return model.DefaultPreferences(user.Timezone), nil
		}
		return prefs, nil
	}, weave.DependsOn(userTask))
	if err != nil {
		return nil, err
	}

	emailTask, err := weave.AddTask(graph, "load-delivery-email", func(ctx context.Context, _ weave.DependencyResolver) (string, error) {
		return a.users.PrimaryDeliveryEmail(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	results, _, err := graph.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}

	uc := &userContext{}
	if uc.user, err = userTask.Value(results); err != nil {
		return nil, err
	}
	if uc.keywords, err = keywordsTask.Value(results); err != nil {
		return nil, err
	}
	if uc.prefs, err = prefsTask.Value(results); err != nil {
		return nil, err
	}
	if uc.deliveryEmail, err = emailTask.Value(results); err != nil {
		return nil, err
	}

	return uc, nil
}

// summarizeAndPersist fans out over the selected items, summarizing
// and storing each one concurrently, and joins before returning. A
// summarizer error degrades to a local summary; a storage error is
// fatal.
func (a *Assembler) summarizeAndPersist(ctx context.Context, digestID string, selected []model.RankedItem, prefs model.Preferences) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(selected))

	for _, item := range selected {
		wg.Add(1)

		go func(item model.RankedItem) {
			defer wg.Done()

			text := a.summarizeItem(ctx, item, prefs)

			if err := a.digests.AddItem(ctx, digestID, item, text); err != nil {
				errCh <- fmt.Errorf("persist digest item %q: %w", item.Title, err)
			}
		}(item)
	}

	wg.Wait()
	close(errCh)

	return <-errCh
}

func (a *Assembler) summarizeItem(ctx context.Context, item model.RankedItem, prefs model.Preferences) string {
	summarizeCtx, cancel := context.WithTimeout(ctx, a.summarizeTimeout)
	defer cancel()

	content := item.Content
	// Feeds without a snippet leave the title as content; fetch the
	// page itself so the model has something to work with.
	if content == item.Title {
		if extracted, err := summary.ExtractReadable(summarizeCtx, item.URL); err == nil && extracted != "" {
			content = extracted
		}
	}

	text, err := a.summarizer.Summarize(summarizeCtx, item.Title, content, prefs.Language, prefs.SummaryDepth)
	if err != nil {
		a.log.Debug("summarizer unavailable, using local fallback",
			"title", item.Title,
			"error", err,
		)
		return fallbackSummary(item.Title, content)
	}

	return text
}

// deliver sends the digest if the user has a primary address and
// settles the terminal status either way.
func (a *Assembler) deliver(ctx context.Context, uc *userContext, digest *model.Digest) (*model.Digest, error) {
	if uc.deliveryEmail == "" {
		a.log.Info("no primary delivery email, marking digest failed",
			"user_id", uc.user.ID,
			"digest_id", digest.ID,
		)
		return a.fail(ctx, uc, digest, "no primary delivery email")
	}

	deliveryCtx, cancel := context.WithTimeout(ctx, a.deliveryTimeout)
	defer cancel()

	if err := a.email.SendDigest(deliveryCtx, uc.deliveryEmail, digest, uc.user.Name, a.baseURL); err != nil {
		a.log.Warn("digest delivery failed",
			"user_id", uc.user.ID,
			"digest_id", digest.ID,
			"error", err,
		)
		return a.fail(ctx, uc, digest, err.Error())
	}

	sentAt := time.Now().UTC()
	if err := a.digests.MarkSent(ctx, digest.ID, sentAt); err != nil {
		return nil, fmt.Errorf("mark digest %s sent: %w", digest.ID, err)
	}

	digest.Status = model.DigestSent
	digest.SentAt = &sentAt

	return digest, nil
}

func (a *Assembler) fail(ctx context.Context, uc *userContext, digest *model.Digest, reason string) (*model.Digest, error) {
	if err := a.digests.MarkFailed(ctx, digest.ID); err != nil {
		return nil, fmt.Errorf("mark digest %s failed: %w", digest.ID, err)
	}

	if a.notifier != nil {
		a.notifier.DigestFailed(ctx, uc.user.ID, digest.ID, reason)
	}

	digest.Status = model.DigestFailed

	return digest, nil
}

// fallbackSummary is the deterministic local truncation used whenever
// the summarizer cannot be reached.
func fallbackSummary(title, content string) string {
	trimmed := []rune(strings.Join(strings.Fields(content), " "))
	if len(trimmed) > fallbackSummaryLen {
		return fmt.Sprintf("%s: %s...", title, string(trimmed[:fallbackSummaryLen]))
	}

	return fmt.Sprintf("%s: %s", title, string(trimmed))
}
