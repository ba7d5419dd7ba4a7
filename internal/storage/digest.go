package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/ai-daily/newsdigest/internal/model"
)

type DigestPostgresStorage struct {
	db *sqlx.DB
}

func NewDigestPostgresStorage(db *sqlx.DB) *DigestPostgresStorage {
	return &DigestPostgresStorage{db: db}
}

// Create inserts a fresh PENDING digest for the user and returns it.
// Every generation run gets its own id, so concurrent runs never
// contend on the same row.
func (s *DigestPostgresStorage) Create(ctx context.Context, userID string) (*model.Digest, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	digest := model.Digest{
		ID:          uuid.NewString(),
		UserID:      userID,
		GeneratedAt: time.Now().UTC(),
		Status:      model.DigestPending,
	}

	_, err = conn.ExecContext(ctx,
		`INSERT INTO digests (id, user_id, status, generated_at) VALUES ($1, $2, $3, $4)`,
		digest.ID, digest.UserID, digest.Status, digest.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}

	return &digest, nil
}

// AddItem persists one ranked, summarized item under the digest.
func (s *DigestPostgresStorage) AddItem(ctx context.Context, digestID string, item model.RankedItem, summary string) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `
		INSERT INTO digest_items (id, digest_id, source_id, source_label, title, url, summary, published_at, relevance_score, topic)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.NewString(),
		digestID,
		nullIfEmpty(item.SourceID),
		item.SourceLabel,
		item.Title,
		item.URL,
		summary,
		item.PublishedAt,
		item.Score,
		nullIfEmpty(item.Topic),
	)

	return err
}

// MarkSent moves the digest to its terminal SENT state.
func (s *DigestPostgresStorage) MarkSent(ctx context.Context, digestID string, sentAt time.Time) error {
	return s.setStatus(ctx, digestID, model.DigestSent, &sentAt)
}

// MarkFailed moves the digest to its terminal FAILED state.
func (s *DigestPostgresStorage) MarkFailed(ctx context.Context, digestID string) error {
	return s.setStatus(ctx, digestID, model.DigestFailed, nil)
}

func (s *DigestPostgresStorage) setStatus(ctx context.Context, digestID string, status model.DigestStatus, sentAt *time.Time) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if sentAt != nil {
		_, err = conn.ExecContext(ctx, `UPDATE digests SET status = $1, sent_at = $2 WHERE id = $3`, status, *sentAt, digestID)
		return err
	}

	_, err = conn.ExecContext(ctx, `UPDATE digests SET status = $1 WHERE id = $2`, status, digestID)
	return err
}

// DigestByID loads one digest with its items ordered by relevance.
func (s *DigestPostgresStorage) DigestByID(ctx context.Context, userID, digestID string) (*model.Digest, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var digest dbDigest
	err = conn.GetContext(ctx, &digest,
		`SELECT id, user_id, status, generated_at, sent_at FROM digests WHERE id = $1 AND user_id = $2`,
		digestID, userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("digest %s: %w", digestID, ErrNotFound)
		}
		return nil, err
	}

	items, err := s.digestItems(ctx, conn, userID, digestID)
	if err != nil {
		return nil, err
	}

	result := digest.toModel()
	result.Items = items

	return &result, nil
}

// Digests lists the user's digests, newest first, with an optional
// case-insensitive search across item titles, summaries and topics.
func (s *DigestPostgresStorage) Digests(ctx context.Context, userID, search string) ([]model.Digest, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	builder := sq.
		Select("d.id", "d.user_id", "d.status", "d.generated_at", "d.sent_at").
		From("digests d").
		Where(sq.Eq{"d.user_id": userID}).
		OrderBy("d.generated_at DESC").
		Limit(100).
		PlaceholderFormat(sq.Dollar)

	if search != "" {
		pattern := "%" + search + "%"
		builder = builder.Where(sq.Expr(`EXISTS (
			SELECT 1 FROM digest_items di
			WHERE di.digest_id = d.id
			  AND (di.title ILIKE ? OR di.summary ILIKE ? OR di.topic ILIKE ?)
		)`, pattern, pattern, pattern))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var digests []dbDigest
	if err := conn.SelectContext(ctx, &digests, query, args...); err != nil {
		return nil, err
	}

	result := make([]model.Digest, 0, len(digests))
	for _, digest := range digests {
		items, err := s.digestItems(ctx, conn, userID, digest.ID)
		if err != nil {
			return nil, err
		}

		d := digest.toModel()
		d.Items = items
		result = append(result, d)
	}

	return result, nil
}

// MarkRead stamps the item and records the engagement.
func (s *DigestPostgresStorage) MarkRead(ctx context.Context, userID, digestItemID string) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `UPDATE digest_items SET read_at = $1 WHERE id = $2`, time.Now().UTC(), digestItemID); err != nil {
		return err
	}

	return s.logEngagement(ctx, conn, userID, digestItemID, model.ActionRead)
}

// Bookmark is idempotent; re-bookmarking an item is a no-op beyond
// the engagement log entry.
func (s *DigestPostgresStorage) Bookmark(ctx context.Context, userID, digestItemID string) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `
		INSERT INTO bookmarks (user_id, digest_item_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, digest_item_id) DO NOTHING`,
		userID, digestItemID, time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	return s.logEngagement(ctx, conn, userID, digestItemID, model.ActionBookmark)
}

func (s *DigestPostgresStorage) Unbookmark(ctx context.Context, userID, digestItemID string) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `DELETE FROM bookmarks WHERE user_id = $1 AND digest_item_id = $2`, userID, digestItemID)
	return err
}

func (s *DigestPostgresStorage) logEngagement(ctx context.Context, conn *sqlx.Conn, userID, digestItemID string, action model.EngagementAction) error {
	_, err := conn.ExecContext(ctx, `
		INSERT INTO engagement_logs (id, user_id, digest_item_id, action, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), userID, digestItemID, action, time.Now().UTC(),
	)
	return err
}

func (s *DigestPostgresStorage) digestItems(ctx context.Context, conn *sqlx.Conn, userID, digestID string) ([]model.DigestItem, error) {
	var items []dbDigestItem
	err := conn.SelectContext(ctx, &items, `
		SELECT di.id, di.source_id, di.source_label, di.title, di.url, di.summary,
		       di.published_at, di.relevance_score, di.topic, di.read_at,
		       EXISTS (
		           SELECT 1 FROM bookmarks b
		           WHERE b.digest_item_id = di.id AND b.user_id = $1
		       ) AS is_bookmarked
		FROM digest_items di
		WHERE di.digest_id = $2
		ORDER BY di.relevance_score DESC`,
		userID, digestID,
	)
	if err != nil {
		return nil, err
	}

	return lo.Map(items, func(item dbDigestItem, _ int) model.DigestItem {
		return item.toModel()
	}), nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

type dbDigest struct {
	ID          string       `db:"id"`
	UserID      string       `db:"user_id"`
	Status      string       `db:"status"`
	GeneratedAt time.Time    `db:"generated_at"`
	SentAt      sql.NullTime `db:"sent_at"`
}

func (d dbDigest) toModel() model.Digest {
	digest := model.Digest{
		ID:          d.ID,
		UserID:      d.UserID,
		Status:      model.DigestStatus(d.Status),
		GeneratedAt: d.GeneratedAt,
	}
	if d.SentAt.Valid {
		sentAt := d.SentAt.Time
		digest.SentAt = &sentAt
	}
	return digest
}

type dbDigestItem struct {
	ID           string         `db:"id"`
	SourceID     sql.NullString `db:"source_id"`
	SourceLabel  string         `db:"source_label"`
	Title        string         `db:"title"`
	URL          string         `db:"url"`
	Summary      string         `db:"summary"`
	PublishedAt  time.Time      `db:"published_at"`
	Score        float64        `db:"relevance_score"`
	Topic        sql.NullString `db:"topic"`
	ReadAt       sql.NullTime   `db:"read_at"`
	IsBookmarked bool           `db:"is_bookmarked"`
}

func (i dbDigestItem) toModel() model.DigestItem {
	item := model.DigestItem{
		ID:           i.ID,
		SourceID:     i.SourceID.String,
		SourceLabel:  i.SourceLabel,
		Title:        i.Title,
		URL:          i.URL,
		Summary:      i.Summary,
		PublishedAt:  i.PublishedAt,
		Score:        i.Score,
		Topic:        i.Topic.String,
		IsBookmarked: i.IsBookmarked,
	}
	if i.ReadAt.Valid {
		readAt := i.ReadAt.Time
		item.ReadAt = &readAt
	}
	return item
}
