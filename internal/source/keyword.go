package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ai-daily/newsdigest/internal/model"
)

// KeywordSource synthesizes a single passive "watch" entry for a
// user-defined keyword. Nothing is fetched from the network.
type KeywordSource struct {
	Keyword     string
	SourceLabel string
}

func NewKeywordSource(s model.CustomSource) KeywordSource {
	return KeywordSource{
		Keyword:     s.Value,
		SourceLabel: s.Name,
	}
}

func (s KeywordSource) Fetch(_ context.Context) ([]model.Item, error) {
	return []model.Item{{
		SourceLabel: s.SourceLabel,
		Title:       fmt.Sprintf("Keyword watch: %s", s.Keyword),
		URL:         "https://www.google.com/search?q=" + url.QueryEscape(s.Keyword),
		Content:     fmt.Sprintf("Track new mentions and updates for %s.", s.Keyword),
		PublishedAt: time.Now().UTC(),
		Topic:       s.Keyword,
	}}, nil
}

func (s KeywordSource) Label() string {
	return s.SourceLabel
}
