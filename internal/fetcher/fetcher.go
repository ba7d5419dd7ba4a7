package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/ai-daily/newsdigest/internal/model"
	"github.com/ai-daily/newsdigest/internal/source"
)

type SourceProvider interface {
	EnabledSources(ctx context.Context, userID string) ([]model.Source, error)
}

type CustomSourceProvider interface {
	EnabledCustomSources(ctx context.Context, userID string) ([]model.CustomSource, error)
}

// Source is anything that can produce candidate items: an RSS feed
// client or a keyword watch.
type Source interface {
	Label() string
	Fetch(ctx context.Context) ([]model.Item, error)
}

// FailureHook is notified about per-source fetch failures. The fetcher
// itself stays fail-open: a broken source contributes zero items and
// never aborts the user's run.
type FailureHook interface {
	SourceFailed(ctx context.Context, userID, sourceLabel string, err error)
}

// Fetcher builds the candidate pool of content for one user by
// fanning out over all of their enabled sources concurrently.
type Fetcher struct {
	sources SourceProvider
	custom  CustomSourceProvider

	// Upper bound for a single feed fetch; slow feeds time out and
	// contribute nothing rather than stalling the run
	fetchTimeout time.Duration

	log  *slog.Logger
	hook FailureHook
}

func New(sources SourceProvider, custom CustomSourceProvider, fetchTimeout time.Duration, log *slog.Logger, hook FailureHook) *Fetcher {
	return &Fetcher{
		sources:      sources,
		custom:       custom,
		fetchTimeout: fetchTimeout,
		log:          log,
		hook:         hook,
	}
}

// FetchForUser returns the union of all per-source results for the
// user. Result order is not significant; ranking imposes the final
// order. Only the source-configuration reads can fail the call.
func (f *Fetcher) FetchForUser(ctx context.Context, userID string) ([]model.Item, error) {
	catalog, err := f.sources.EnabledSources(ctx, userID)
	if err != nil {
		return nil, err
	}

	custom, err := f.custom.EnabledCustomSources(ctx, userID)
	if err != nil {
		return nil, err
	}

	feeds := make([]Source, 0, len(catalog)+len(custom))
	for _, s := range catalog {
		feeds = append(feeds, source.NewRSSSourceFromCatalog(s))
	}
	for _, s := range custom {
		switch s.Type {
		case model.CustomSourceRSS, model.CustomSourceURL:
			feeds = append(feeds, source.NewRSSSourceFromCustom(s))
		case model.CustomSourceKeyword:
			feeds = append(feeds, source.NewKeywordSource(s))
		}
	}

	// One batch per source; the channel is the join point, so no
	// shared accumulator is needed across goroutines.
	results := make(chan []model.Item, len(feeds))

	for _, feed := range feeds {
		go func(src Source) {
			fetchCtx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
			defer cancel()

			items, err := src.Fetch(fetchCtx)
			if err != nil {
				f.log.Warn("fetching items from source failed",
					"user_id", userID,
					"source", src.Label(),
					"error", err,
				)
				if f.hook != nil {
					f.hook.SourceFailed(ctx, userID, src.Label(), err)
				}
				results <- nil
				return
			}

			results <- items
		}(feed)
	}

	var pool []model.Item
	for range feeds {
		pool = append(pool, <-results...)
	}

	return pool, nil
}
