package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ai-daily/newsdigest/internal/model"
)

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)

	return server
}

func rssBody(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title><link>https://example.com</link><description>test</description>` +
		items + `</channel></rss>`
}

func TestRSSSourceFetch(t *testing.T) {
	t.Parallel()

	server := feedServer(t, rssBody(`
		<item>
			<title>LLM breakthrough</title>
			<link>https://example.com/llm</link>
			<description>A model update.</description>
			<pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
		</item>
		<item>
			<title>No link entry</title>
			<description>dropped</description>
		</item>
		<item>
			<link>https://example.com/no-title</link>
			<description>dropped too</description>
		</item>
		<item>
			<title>Bare entry</title>
			<link>https://example.com/bare</link>
		</item>`))

	src := RSSSource{URL: server.URL, SourceID: "src-1", SourceLabel: "Example"}

	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items (entries without link or title dropped), got %d", len(items))
	}

	first := items[0]
	if first.SourceID != "src-1" || first.SourceLabel != "Example" {
		t.Errorf("source attribution wrong: %+v", first)
	}
	if first.Topic != "LLM" {
		t.Errorf("expected topic inferred from title, got %q", first.Topic)
	}
	if first.Content != "A model update." {
		t.Errorf("expected snippet used as content, got %q", first.Content)
	}
	if want := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC); !first.PublishedAt.Equal(want) {
		t.Errorf("publishedAt = %v, want %v", first.PublishedAt, want)
	}

	bare := items[1]
	if bare.Content != "Bare entry" {
		t.Errorf("expected title fallback for content, got %q", bare.Content)
	}
	if bare.PublishedAt.IsZero() {
		t.Error("expected publishedAt to default to fetch time")
	}
}

func TestRSSSourceFetchCapsEntries(t *testing.T) {
	t.Parallel()

	var entries strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&entries, `<item><title>Entry %d</title><link>https://example.com/%d</link></item>`, i, i)
	}

	server := feedServer(t, rssBody(entries.String()))
	src := RSSSource{URL: server.URL, SourceLabel: "Big"}

	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(items) != maxEntriesPerFeed {
		t.Fatalf("expected %d items, got %d", maxEntriesPerFeed, len(items))
	}
}

func TestRSSSourceFetchError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	src := RSSSource{URL: server.URL, SourceLabel: "Broken"}

	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for broken feed")
	}
}

func TestFetchTimeoutDoesNotLeakGoroutines(t *testing.T) {
	// Counts process-wide goroutines, so this test must not run in
	// parallel with others.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(150 * time.Millisecond)
		fmt.Fprint(w, rssBody(`<item><title>Late entry</title><link>https://example.com/late</link></item>`))
	}))
	t.Cleanup(server.Close)

	src := RSSSource{URL: server.URL, SourceLabel: "Slow"}

	before := runtime.NumGoroutine()

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		if _, err := src.Fetch(ctx); err == nil {
			t.Fatal("expected timeout error")
		}
		cancel()
	}

	// The in-flight fetches finish once the server responds; their
	// sender goroutines must then exit instead of blocking on the
	// result channel forever.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+10 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatalf("goroutines before=%d after=%d; timed-out fetches must not leak senders", before, runtime.NumGoroutine())
}

func TestKeywordSourceFetch(t *testing.T) {
	t.Parallel()

	src := NewKeywordSource(model.CustomSource{
		Name:  "My watch",
		Type:  model.CustomSourceKeyword,
		Value: "mixture of experts",
	})

	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected exactly one watch item, got %d", len(items))
	}

	item := items[0]
	if item.Title != "Keyword watch: mixture of experts" {
		t.Errorf("unexpected title %q", item.Title)
	}
	if item.Topic != "mixture of experts" {
		t.Errorf("expected topic to be the keyword itself, got %q", item.Topic)
	}
	if !strings.Contains(item.URL, "mixture+of+experts") {
		t.Errorf("expected query-escaped search URL, got %q", item.URL)
	}
	if item.SourceID != "" {
		t.Errorf("watch items carry no catalog source id, got %q", item.SourceID)
	}
	if time.Since(item.PublishedAt) > time.Minute {
		t.Errorf("expected publishedAt = now, got %v", item.PublishedAt)
	}
}
