// Package ranking deduplicates and scores candidate items. Everything
// here is pure: no I/O, deterministic given the inputs and the clock
// value passed in.
package ranking

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tomakado/containers/set"

	"github.com/ai-daily/newsdigest/internal/model"
)

const (
	keywordWeight   = 0.7
	freshnessWeight = 0.3
	// Freshness decays linearly to zero over this many hours
	freshnessWindowHours = 24
)

// Dedupe drops items whose (title, normalized URL) key was already
// seen earlier in the input. First occurrence wins; relative order of
// the survivors is preserved.
func Dedupe(items []model.Item) []model.Item {
	seen := set.New[string]()

	deduped := make([]model.Item, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item.Title)) + "|" + normalizeURL(item.URL)
		if seen.Contains(key) {
			continue
		}

		seen.Add(key)
		deduped = append(deduped, item)
	}

	return deduped
}

// Rank scores every item against the user's keywords and returns them
// sorted by score descending. Ties keep input order, so running twice
// over the same input with the same clock yields identical output.
// Nothing is dropped here; truncation belongs to the caller.
func Rank(items []model.Item, keywords []string, now time.Time) []model.RankedItem {
	lowered := lo.Map(keywords, func(keyword string, _ int) string {
		return strings.ToLower(keyword)
	})

	ranked := make([]model.RankedItem, 0, len(items))
	for _, item := range items {
		text := strings.ToLower(item.Title + " " + item.Content)

		keywordScore := 0
		for _, keyword := range lowered {
			if strings.Contains(text, keyword) {
				keywordScore++
			}
		}

		ranked = append(ranked, model.RankedItem{
			Item:  item,
			Score: float64(keywordScore)*keywordWeight + freshness(item.PublishedAt, now)*freshnessWeight,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// freshness is 1.0 at publish time and decays linearly to 0.0 at 24
// hours; older items score zero but are never excluded. Age is floored
// at one hour to absorb clock skew and future-dated entries.
func freshness(publishedAt, now time.Time) float64 {
	hours := now.Sub(publishedAt).Hours()
	if hours < 1 {
		hours = 1
	}

	score := (freshnessWindowHours - hours) / freshnessWindowHours
	if score < 0 {
		return 0
	}
	return score
}

// normalizeURL strips the fragment and the utm_source/utm_medium query
// parameters so tracking variants of the same link dedupe together.
// Unparseable URLs are used as-is.
func normalizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	parsed.Fragment = ""

	query := parsed.Query()
	query.Del("utm_source")
	query.Del("utm_medium")
	parsed.RawQuery = query.Encode()

	return parsed.String()
}
