package mastery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store on user_knowledge_mastery.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const selectRecord = `SELECT user_id, knowledge_id, mastery, attempts, correct,
	last_attempt_at, last_review_at, review_count, next_review_at, created_at, updated_at
	FROM user_knowledge_mastery`

func (s *PostgresStore) Get(ctx context.Context, userID, knowledgeID string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		selectRecord+` WHERE user_id = $1 AND knowledge_id = $2`,
		userID, knowledgeID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get mastery: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		selectRecord+` WHERE user_id = $1 ORDER BY knowledge_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query mastery: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mastery: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mastery: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	if rec.UserID == "" || rec.KnowledgeID == "" {
		return ErrInvalidInput
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_knowledge_mastery
		   (user_id, knowledge_id, mastery, attempts, correct, last_attempt_at,
		    last_review_at, review_count, next_review_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id, knowledge_id) DO UPDATE SET
		   mastery = EXCLUDED.mastery,
		   attempts = EXCLUDED.attempts,
		   correct = EXCLUDED.correct,
		   last_attempt_at = EXCLUDED.last_attempt_at,
		   last_review_at = EXCLUDED.last_review_at,
		   review_count = EXCLUDED.review_count,
		   next_review_at = EXCLUDED.next_review_at,
		   updated_at = EXCLUDED.updated_at`,
		rec.UserID,
		rec.KnowledgeID,
		rec.Mastery,
		rec.Attempts,
		rec.Correct,
		nullTime(rec.LastAttemptAt),
		nullTime(rec.LastReviewAt),
		rec.ReviewCount,
		nullTime(rec.NextReviewAt),
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert mastery: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var lastAttempt, lastReview, nextReview *time.Time
	if err := row.Scan(
		&rec.UserID,
		&rec.KnowledgeID,
		&rec.Mastery,
		&rec.Attempts,
		&rec.Correct,
		&lastAttempt,
		&lastReview,
		&rec.ReviewCount,
		&nextReview,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return Record{}, err
	}
	if lastAttempt != nil {
		rec.LastAttemptAt = *lastAttempt
	}
	if lastReview != nil {
		rec.LastReviewAt = *lastReview
	}
	if nextReview != nil {
		rec.NextReviewAt = *nextReview
	}
	return rec, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
