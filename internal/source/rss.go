package source

import (
	"context"
	"time"

	"github.com/SlyMarbo/rss"

	"github.com/ai-daily/newsdigest/internal/model"
)

// Feeds yield at most this many entries per fetch; rankings decide
// what actually makes a digest, so there is no point pulling more.
const maxEntriesPerFeed = 15

// RSSSource is a feed client for one catalog or custom RSS/URL source.
type RSSSource struct {
	URL         string
	SourceID    string
	SourceLabel string
}

// NewRSSSourceFromCatalog builds a feed client for a catalog source.
func NewRSSSourceFromCatalog(s model.Source) RSSSource {
	return RSSSource{
		URL:         s.FeedURL,
		SourceID:    s.ID,
		SourceLabel: s.Name,
	}
}

// NewRSSSourceFromCustom builds a feed client for a user-defined
// RSS or URL source. Such items carry no catalog source id.
func NewRSSSourceFromCustom(s model.CustomSource) RSSSource {
	return RSSSource{
		URL:         s.Value,
		SourceLabel: s.Name,
	}
}

// Fetch loads the feed and maps its entries to candidate items.
// Entries missing a link or a title are dropped; the publish date
// defaults to now when the feed omits it.
func (s RSSSource) Fetch(ctx context.Context) ([]model.Item, error) {
	feed, err := s.loadFeed(ctx, s.URL)
	if err != nil {
		return nil, err
	}

	entries := feed.Items
	if len(entries) > maxEntriesPerFeed {
		entries = entries[:maxEntriesPerFeed]
	}

	var items []model.Item
	for _, entry := range entries {
		if entry.Link == "" || entry.Title == "" {
			continue
		}

		publishedAt := entry.Date
		if publishedAt.IsZero() {
			publishedAt = time.Now().UTC()
		}

		items = append(items, model.Item{
			SourceID:    s.SourceID,
			SourceLabel: s.SourceLabel,
			Title:       entry.Title,
			URL:         entry.Link,
			Content:     entryContent(entry),
			PublishedAt: publishedAt,
			Topic:       ExtractTopic(entry.Title),
		})
	}

	return items, nil
}

// entryContent picks the first usable text field: the short snippet,
// then the full content, else the title itself.
func entryContent(entry *rss.Item) string {
	if entry.Summary != "" {
		return entry.Summary
	}
	if entry.Content != "" {
		return entry.Content
	}
	return entry.Title
}

func (s RSSSource) loadFeed(ctx context.Context, url string) (*rss.Feed, error) {
	// Buffered so the sender can finish and exit even when the select
	// below already returned on a cancelled context; the fetcher wraps
	// every fetch in a timeout, so that race is routine.
	var (
		feedCh = make(chan *rss.Feed, 1)
		errCh  = make(chan error, 1)
	)

	go func() {
		feed, err := rss.Fetch(url)
		if err != nil {
			errCh <- err
			return
		}

		feedCh <- feed
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case feed := <-feedCh:
		return feed, nil
	}
}

func (s RSSSource) Label() string {
	return s.SourceLabel
}
