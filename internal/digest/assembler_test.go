package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ai-daily/newsdigest/internal/model"
	"github.com/ai-daily/newsdigest/internal/storage"
)

type fakeUserStore struct {
	user    *model.User
	userErr error

	keywords []string
	prefs    model.Preferences
	prefsErr error
	email    string
}

func (f *fakeUserStore) UserByID(_ context.Context, _ string) (*model.User, error) {
	return f.user, f.userErr
}

func (f *fakeUserStore) Keywords(_ context.Context, _ string) ([]string, error) {
	return f.keywords, nil
}

func (f *fakeUserStore) Preferences(_ context.Context, _ string) (model.Preferences, error) {
	if f.prefsErr != nil {
		return model.Preferences{}, f.prefsErr
	}
	return f.prefs, nil
}

func (f *fakeUserStore) PrimaryDeliveryEmail(_ context.Context, _ string) (string, error) {
	return f.email, nil
}

type storedItem struct {
	item    model.RankedItem
	summary string
}

type fakeDigestStore struct {
	mu     sync.Mutex
	digest *model.Digest
	items  []storedItem
}

func (f *fakeDigestStore) Create(_ context.Context, userID string) (*model.Digest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.digest = &model.Digest{
		ID:          "digest-1",
		UserID:      userID,
		GeneratedAt: time.Now().UTC(),
		Status:      model.DigestPending,
	}
	return f.digest, nil
}

func (f *fakeDigestStore) AddItem(_ context.Context, _ string, item model.RankedItem, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, storedItem{item: item, summary: summary})
	return nil
}

func (f *fakeDigestStore) DigestByID(_ context.Context, _, _ string) (*model.Digest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.digest == nil {
		return nil, storage.ErrNotFound
	}

	result := *f.digest
	result.Items = nil
	for i, stored := range f.items {
		result.Items = append(result.Items, model.DigestItem{
			ID:          fmt.Sprintf("item-%d", i),
			SourceLabel: stored.item.SourceLabel,
			Title:       stored.item.Title,
			URL:         stored.item.URL,
			Summary:     stored.summary,
			PublishedAt: stored.item.PublishedAt,
			Score:       stored.item.Score,
			Topic:       stored.item.Topic,
		})
	}
	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].Score > result.Items[j].Score
	})

	return &result, nil
}

func (f *fakeDigestStore) MarkSent(_ context.Context, _ string, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.digest.Status = model.DigestSent
	f.digest.SentAt = &sentAt
	return nil
}

func (f *fakeDigestStore) MarkFailed(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.digest.Status = model.DigestFailed
	return nil
}

type fakeFetcher struct {
	items []model.Item
}

func (f *fakeFetcher) FetchForUser(_ context.Context, _ string) ([]model.Item, error) {
	return f.items, nil
}

type fakeSummarizer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(_ context.Context, title, _, _ string, _ model.SummaryDepth) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	return "summary of " + title, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendDigest(_ context.Context, to string, _ *model.Digest, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func candidateItems(n int) []model.Item {
	now := time.Now().UTC()

	items := make([]model.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, model.Item{
			SourceLabel: "Feed",
			Title:       fmt.Sprintf("Story %d", i),
			URL:         fmt.Sprintf("https://example.com/%d", i),
			Content:     fmt.Sprintf("Content of story %d", i),
			PublishedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return items
}

func newTestAssembler(users *fakeUserStore, digests *fakeDigestStore, items []model.Item, summarizer *fakeSummarizer, sender *fakeSender) *Assembler {
	return NewAssembler(
		users,
		digests,
		&fakeFetcher{items: items},
		summarizer,
		sender,
		time.Second,
		time.Second,
		"https://app.example.com",
		quietLogger(),
		nil,
	)
}

func briefUser(email string) *fakeUserStore {
	prefs := model.DefaultPreferences("UTC")
	prefs.DigestLength = model.LengthBrief

	return &fakeUserStore{
		user:  &model.User{ID: "user-1", Name: "Ada", Timezone: "UTC"},
		prefs: prefs,
		email: email,
	}
}

func TestGenerateForUserHonorsItemCap(t *testing.T) {
	t.Parallel()

	digests := &fakeDigestStore{}
	a := newTestAssembler(briefUser("ada@example.com"), digests, candidateItems(12), &fakeSummarizer{}, &fakeSender{})

	result, err := a.GenerateForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GenerateForUser returned error: %v", err)
	}

	if len(result.Items) != 5 {
		t.Fatalf("BRIEF digest must cap at 5 items, got %d", len(result.Items))
	}
	if result.Status != model.DigestSent {
		t.Errorf("status = %s, want SENT", result.Status)
	}
	if result.SentAt == nil {
		t.Error("expected SentAt to be stamped")
	}
}

func TestGenerateForUserDefaultsWhenUnconfigured(t *testing.T) {
	t.Parallel()

	users := &fakeUserStore{
		user:     &model.User{ID: "user-1", Name: "Ada", Timezone: "UTC"},
		prefsErr: fmt.Errorf("preferences for user user-1: %w", storage.ErrNotFound),
		email:    "ada@example.com",
	}

	digests := &fakeDigestStore{}
	a := newTestAssembler(users, digests, candidateItems(12), &fakeSummarizer{}, &fakeSender{})

	result, err := a.GenerateForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GenerateForUser must fall back to defaults, got: %v", err)
	}

	if len(result.Items) != 10 {
		t.Fatalf("default STANDARD digest must cap at 10 items, got %d", len(result.Items))
	}
	if result.Status != model.DigestSent {
		t.Errorf("status = %s, want SENT", result.Status)
	}
}

func TestGenerateForUserWithFewerItemsThanCap(t *testing.T) {
	t.Parallel()

	digests := &fakeDigestStore{}
	a := newTestAssembler(briefUser("ada@example.com"), digests, candidateItems(3), &fakeSummarizer{}, &fakeSender{})

	result, err := a.GenerateForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GenerateForUser returned error: %v", err)
	}

	if len(result.Items) != 3 {
		t.Fatalf("expected min(cap, available) = 3 items, got %d", len(result.Items))
	}
}

func TestGenerateForUserItemsInRankOrder(t *testing.T) {
	t.Parallel()

	users := briefUser("ada@example.com")
	users.keywords = []string{"llm"}

	now := time.Now().UTC()
	items := []model.Item{
		{SourceLabel: "Feed", Title: "Old plain story", URL: "https://example.com/1", Content: "x", PublishedAt: now.Add(-40 * time.Hour)},
		{SourceLabel: "Feed", Title: "LLM story", URL: "https://example.com/2", Content: "llm content", PublishedAt: now.Add(-40 * time.Hour)},
		{SourceLabel: "Feed", Title: "Fresh plain story", URL: "https://example.com/3", Content: "y", PublishedAt: now},
	}

	digests := &fakeDigestStore{}
	a := newTestAssembler(users, digests, items, &fakeSummarizer{}, &fakeSender{})

	result, err := a.GenerateForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GenerateForUser returned error: %v", err)
	}

	if result.Items[0].Title != "LLM story" {
		t.Errorf("expected keyword match first, got %q", result.Items[0].Title)
	}
	for i := 1; i < len(result.Items); i++ {
		if result.Items[i].Score > result.Items[i-1].Score {
			t.Fatalf("items not in score-descending order at position %d", i)
		}
	}
}

func TestGenerateForUserNoDeliveryEmail(t *testing.T) {
	t.Parallel()

	digests := &fakeDigestStore{}
	sender := &fakeSender{}
	a := newTestAssembler(briefUser(""), digests, candidateItems(4), &fakeSummarizer{}, sender)

	result, err := a.GenerateForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("missing delivery email must not be an error, got: %v", err)
	}

	if result.Status != model.DigestFailed {
		t.Fatalf("status = %s, want FAILED", result.Status)
	}
	if len(sender.sent) != 0 {
		t.Errorf("no email send must be attempted, got %d", len(sender.sent))
	}
	if len(result.Items) != 4 {
		t.Errorf("failed digest still keeps its items, got %d", len(result.Items))
	}
}

func TestGenerateForUserDeliveryFailure(t *testing.T) {
	t.Parallel()

	digests := &fakeDigestStore{}
	sender := &fakeSender{err: errors.New("smtp down")}
	a := newTestAssembler(briefUser("ada@example.com"), digests, candidateItems(2), &fakeSummarizer{}, sender)

	result, err := a.GenerateForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("delivery failure must not become an error, got: %v", err)
	}

	if result.Status != model.DigestFailed {
		t.Fatalf("status = %s, want FAILED", result.Status)
	}
}

func TestGenerateForUserSummarizerFallback(t *testing.T) {
	t.Parallel()

	digests := &fakeDigestStore{}
	summarizer := &fakeSummarizer{err: errors.New("model unavailable")}
	a := newTestAssembler(briefUser("ada@example.com"), digests, candidateItems(2), summarizer, &fakeSender{})

	result, err := a.GenerateForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("summarizer failure must be recovered per item, got: %v", err)
	}

	if result.Status != model.DigestSent {
		t.Fatalf("status = %s, want SENT", result.Status)
	}
	for _, item := range result.Items {
		if !strings.HasPrefix(item.Summary, item.Title+": ") {
			t.Errorf("expected local fallback summary, got %q", item.Summary)
		}
	}
}

func TestGenerateForUserUnknownUserIsFatal(t *testing.T) {
	t.Parallel()

	users := briefUser("ada@example.com")
	users.user = nil
	users.userErr = fmt.Errorf("user user-1: %w", storage.ErrNotFound)

	a := newTestAssembler(users, &fakeDigestStore{}, candidateItems(2), &fakeSummarizer{}, &fakeSender{})

	if _, err := a.GenerateForUser(context.Background(), "user-1"); err == nil {
		t.Fatal("expected unknown user to surface as an error")
	}
}

func TestFallbackSummary(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 100)
	got := fallbackSummary("Title", long)

	if !strings.HasPrefix(got, "Title: word word") {
		t.Errorf("unexpected prefix: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis on truncated content: %q", got)
	}

	short := fallbackSummary("Title", "a  short\n summary")
	if short != "Title: a short summary" {
		t.Errorf("expected whitespace collapsed, got %q", short)
	}
}
