package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/ai-daily/newsdigest/internal/model"
)

type SourcePostgresStorage struct {
	db *sqlx.DB
}

func NewSourcePostgresStorage(db *sqlx.DB) *SourcePostgresStorage {
	return &SourcePostgresStorage{db: db}
}

// EnabledSources returns the catalog sources the user has enabled.
func (s *SourcePostgresStorage) EnabledSources(ctx context.Context, userID string) ([]model.Source, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var sources []dbSource
	err = conn.SelectContext(ctx, &sources, `
		SELECT s.id, s.name, s.feed_url, s.created_at
		FROM sources s
		JOIN user_sources us ON us.source_id = s.id
		WHERE us.user_id = $1 AND us.is_enabled`,
		userID,
	)
	if err != nil {
		return nil, err
	}

	return lo.Map(sources, func(source dbSource, _ int) model.Source {
		return model.Source(source)
	}), nil
}

// EnabledCustomSources returns the user's own enabled sources,
// whatever their type.
func (s *SourcePostgresStorage) EnabledCustomSources(ctx context.Context, userID string) ([]model.CustomSource, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var sources []dbCustomSource
	err = conn.SelectContext(ctx, &sources, `
		SELECT id, user_id, name, type, value, is_enabled, created_at
		FROM custom_sources
		WHERE user_id = $1 AND is_enabled`,
		userID,
	)
	if err != nil {
		return nil, err
	}

	return lo.Map(sources, func(source dbCustomSource, _ int) model.CustomSource {
		return model.CustomSource{
			ID:        source.ID,
			UserID:    source.UserID,
			Name:      source.Name,
			Type:      model.CustomSourceType(source.Type),
			Value:     source.Value,
			IsEnabled: source.IsEnabled,
			CreatedAt: source.CreatedAt,
		}
	}), nil
}

// SourceByID looks up a single catalog source.
func (s *SourcePostgresStorage) SourceByID(ctx context.Context, id string) (*model.Source, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var source dbSource
	if err := conn.GetContext(ctx, &source, `SELECT id, name, feed_url, created_at FROM sources WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	return (*model.Source)(&source), nil
}

type dbSource struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	FeedURL   string    `db:"feed_url"`
	CreatedAt time.Time `db:"created_at"`
}

type dbCustomSource struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	Type      string    `db:"type"`
	Value     string    `db:"value"`
	IsEnabled bool      `db:"is_enabled"`
	CreatedAt time.Time `db:"created_at"`
}
