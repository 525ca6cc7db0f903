package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store on review_schedules.
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

const selectSchedule = `SELECT id::text, user_id, knowledge_id, stage, scheduled_at, completed_at,
	performance, quality, interval_days, ease_factor, created_at
	FROM review_schedules`

func (s *PostgresStore) Save(ctx context.Context, sc Schedule) error {
	if sc.ID == "" {
		return ErrInvalidInput
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO review_schedules
		   (id, user_id, knowledge_id, stage, scheduled_at, completed_at,
		    performance, quality, interval_days, ease_factor, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   stage = EXCLUDED.stage,
		   scheduled_at = EXCLUDED.scheduled_at,
		   completed_at = EXCLUDED.completed_at,
		   performance = EXCLUDED.performance,
		   quality = EXCLUDED.quality,
		   interval_days = EXCLUDED.interval_days,
		   ease_factor = EXCLUDED.ease_factor`,
		sc.ID,
		sc.UserID,
		sc.KnowledgeID,
		sc.Stage,
		sc.ScheduledAt,
		sc.CompletedAt,
		string(sc.Performance),
		sc.Quality,
		sc.IntervalDays,
		sc.EaseFactor,
		sc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save review schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) Complete(ctx context.Context, sc Schedule) error {
	if sc.ID == "" || sc.CompletedAt == nil {
		return ErrInvalidInput
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`UPDATE review_schedules
		    SET completed_at = $2, performance = $3, quality = $4
		  WHERE id::text = $1 AND completed_at IS NULL`,
		sc.ID, *sc.CompletedAt, string(sc.Performance), sc.Quality,
	)
	if err != nil {
		return fmt.Errorf("complete review schedule: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.Get(ctx, sc.ID); err != nil {
		return err
	}
	return ErrAlreadyCompleted
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Schedule, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sc, err := scanSchedule(s.pool.QueryRow(ctx, selectSchedule+` WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Schedule{}, ErrNotFound
	}
	if err != nil {
		return Schedule{}, fmt.Errorf("get review schedule: %w", err)
	}
	return sc, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Schedule, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		selectSchedule+` WHERE user_id = $1 ORDER BY scheduled_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query review schedules: %w", err)
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review schedule: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review schedules: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DueUsers(ctx context.Context, t time.Time) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM review_schedules
		 WHERE completed_at IS NULL AND scheduled_at <= $1
		 ORDER BY user_id`,
		t,
	)
	if err != nil {
		return nil, fmt.Errorf("query due users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due user: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanSchedule(row pgx.Row) (Schedule, error) {
	var sc Schedule
	var perf string
	if err := row.Scan(
		&sc.ID,
		&sc.UserID,
		&sc.KnowledgeID,
		&sc.Stage,
		&sc.ScheduledAt,
		&sc.CompletedAt,
		&perf,
		&sc.Quality,
		&sc.IntervalDays,
		&sc.EaseFactor,
		&sc.CreatedAt,
	); err != nil {
		return Schedule{}, err
	}
	sc.Performance = Performance(perf)
	return sc, nil
}
