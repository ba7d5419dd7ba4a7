package model

import "time"

// Item is a candidate content entry produced by the fetcher.
// Title and URL are always non-empty; entries missing either are
// dropped at fetch time.
type Item struct {
	// ID of the catalog source, empty for ad-hoc/custom origins
	SourceID string
	// Display name of the origin
	SourceLabel string
	Title       string
	URL         string
	Content     string
	// Publish time from the origin feed, or fetch time if absent
	PublishedAt time.Time
	// Coarse category inferred from the title, empty if none matched
	Topic string
}

// RankedItem is an Item with its relevance score attached.
// Produced only by the ranking engine; ordering by Score descending
// defines digest composition.
type RankedItem struct {
	Item
	Score float64
}

// Source is a catalog feed a user can enable.
type Source struct {
	ID        string
	Name      string
	FeedURL   string
	CreatedAt time.Time
}

type CustomSourceType string

const (
	CustomSourceRSS     CustomSourceType = "RSS"
	CustomSourceURL     CustomSourceType = "URL"
	CustomSourceKeyword CustomSourceType = "KEYWORD"
)

// CustomSource is a user-defined content origin: an RSS/URL feed,
// or a bare keyword to watch.
type CustomSource struct {
	ID        string
	UserID    string
	Name      string
	Type      CustomSourceType
	Value     string
	IsEnabled bool
	CreatedAt time.Time
}

type User struct {
	ID       string
	Email    string
	Name     string
	Timezone string
}

type Frequency string

const (
	FrequencyDaily       Frequency = "DAILY"
	FrequencyTwiceDaily  Frequency = "TWICE_DAILY"
	FrequencyWeekly      Frequency = "WEEKLY"
	FrequencyWeekdayOnly Frequency = "WEEKDAY_ONLY"
)

type DigestLength string

const (
	LengthBrief         DigestLength = "BRIEF"
	LengthStandard      DigestLength = "STANDARD"
	LengthComprehensive DigestLength = "COMPREHENSIVE"
)

// ItemLimit maps a digest length to its item-count cap.
func (l DigestLength) ItemLimit() int {
	switch l {
	case LengthBrief:
		return 5
	case LengthComprehensive:
		return 20
	default:
		return 10
	}
}

type SummaryDepth string

const (
	DepthHeadlines SummaryDepth = "HEADLINES"
	DepthShort     SummaryDepth = "SHORT"
	DepthDetailed  SummaryDepth = "DETAILED"
)

// Preferences is the per-user delivery configuration read by the
// scheduling predicate and the assembler.
type Preferences struct {
	Frequency Frequency
	// Local delivery time, "HH:MM"
	DeliveryTime string
	// IANA zone name, carried over from the user row
	Timezone string
	// 0–6, Sunday=0; only used for WEEKLY, nil means Monday
	WeeklyDay    *int
	DigestLength DigestLength
	SummaryDepth SummaryDepth
	Language     string
	IsPaused     bool
	// If set and in the future, generation stays suppressed
	ResumeDate *time.Time
}

// DefaultPreferences apply to users who never saved preferences.
func DefaultPreferences(timezone string) Preferences {
	return Preferences{
		Frequency:    FrequencyDaily,
		DeliveryTime: "08:00",
		Timezone:     timezone,
		DigestLength: LengthStandard,
		SummaryDepth: DepthShort,
		Language:     "en",
	}
}

type DigestStatus string

const (
	DigestPending DigestStatus = "PENDING"
	DigestSent    DigestStatus = "SENT"
	DigestFailed  DigestStatus = "FAILED"
)

// Digest is one generated bundle of ranked content for a user.
// Status moves PENDING -> SENT or PENDING -> FAILED; both are terminal.
type Digest struct {
	ID          string
	UserID      string
	GeneratedAt time.Time
	SentAt      *time.Time
	Status      DigestStatus
	// Ordered by relevance score descending
	Items []DigestItem
}

// DigestItem is a single persisted entry within a digest.
type DigestItem struct {
	ID           string
	SourceID     string
	SourceLabel  string
	Title        string
	URL          string
	Summary      string
	PublishedAt  time.Time
	Score        float64
	Topic        string
	ReadAt       *time.Time
	IsBookmarked bool
}

type EngagementAction string

const (
	ActionRead     EngagementAction = "READ"
	ActionBookmark EngagementAction = "BOOKMARK"
)
