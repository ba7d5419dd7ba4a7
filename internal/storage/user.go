package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/ai-daily/newsdigest/internal/model"
)

type UserPostgresStorage struct {
	db *sqlx.DB
}

func NewUserPostgresStorage(db *sqlx.DB) *UserPostgresStorage {
	return &UserPostgresStorage{db: db}
}

// UserByID returns ErrNotFound for unknown ids; the assembler treats
// that as fatal for the generation call.
func (s *UserPostgresStorage) UserByID(ctx context.Context, id string) (*model.User, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var user dbUser
	if err := conn.GetContext(ctx, &user, `SELECT id, email, name, timezone FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	return &model.User{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name.String,
		Timezone: user.Timezone,
	}, nil
}

// Users lists every user; the scheduler iterates this on each tick.
func (s *UserPostgresStorage) Users(ctx context.Context) ([]model.User, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var users []dbUser
	if err := conn.SelectContext(ctx, &users, `SELECT id, email, name, timezone FROM users`); err != nil {
		return nil, err
	}

	return lo.Map(users, func(user dbUser, _ int) model.User {
		return model.User{
			ID:       user.ID,
			Email:    user.Email,
			Name:     user.Name.String,
			Timezone: user.Timezone,
		}
	}), nil
}

// Keywords returns the user's interest keywords used for relevance
// scoring.
func (s *UserPostgresStorage) Keywords(ctx context.Context, userID string) ([]string, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var keywords []string
	if err := conn.SelectContext(ctx, &keywords, `SELECT keyword FROM user_keywords WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}

	return keywords, nil
}

// Preferences returns the user's delivery configuration, or
// ErrNotFound when the user never saved any. The scheduler treats
// that as "never configured, skip"; the assembler substitutes
// model.DefaultPreferences.
func (s *UserPostgresStorage) Preferences(ctx context.Context, userID string) (model.Preferences, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return model.Preferences{}, err
	}
	defer conn.Close()

	var row dbPreferences
	err = conn.GetContext(ctx, &row, `
		SELECT p.frequency, p.delivery_time, u.timezone, p.weekly_day, p.digest_length,
		       p.summary_depth, p.language, p.is_paused, p.resume_date
		FROM user_preferences p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1`,
		userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Preferences{}, fmt.Errorf("preferences for user %s: %w", userID, ErrNotFound)
		}
		return model.Preferences{}, err
	}

	prefs := model.Preferences{
		Frequency:    model.Frequency(row.Frequency),
		DeliveryTime: row.DeliveryTime,
		Timezone:     row.Timezone,
		DigestLength: model.DigestLength(row.DigestLength),
		SummaryDepth: model.SummaryDepth(row.SummaryDepth),
		Language:     row.Language,
		IsPaused:     row.IsPaused,
	}
	if row.WeeklyDay.Valid {
		day := int(row.WeeklyDay.Int64)
		prefs.WeeklyDay = &day
	}
	if row.ResumeDate.Valid {
		resume := row.ResumeDate.Time
		prefs.ResumeDate = &resume
	}

	return prefs, nil
}

// PrimaryDeliveryEmail returns the user's primary address, or "" when
// none is configured.
func (s *UserPostgresStorage) PrimaryDeliveryEmail(ctx context.Context, userID string) (string, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	var email string
	err = conn.GetContext(ctx, &email,
		`SELECT email FROM delivery_emails WHERE user_id = $1 AND is_primary ORDER BY created_at LIMIT 1`,
		userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}

	return email, nil
}

type dbUser struct {
	ID       string         `db:"id"`
	Email    string         `db:"email"`
	Name     sql.NullString `db:"name"`
	Timezone string         `db:"timezone"`
}

type dbPreferences struct {
	Frequency    string        `db:"frequency"`
	DeliveryTime string        `db:"delivery_time"`
	Timezone     string        `db:"timezone"`
	WeeklyDay    sql.NullInt64 `db:"weekly_day"`
	DigestLength string        `db:"digest_length"`
	SummaryDepth string        `db:"summary_depth"`
	Language     string        `db:"language"`
	IsPaused     bool          `db:"is_paused"`
	ResumeDate   sql.NullTime  `db:"resume_date"`
}
