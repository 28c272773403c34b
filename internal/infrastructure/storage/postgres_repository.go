package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"medwatch/internal/domain"
	"medwatch/internal/ports"
)

// ErrDuplicateURL marks a unique-constraint violation on news_history.url.
// The caller is expected to have deduplicated before recording.
var ErrDuplicateURL = errors.New("history: duplicate url")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists delivered articles into Postgres for
// cross-run deduplication.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.HistoryRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// EnsureSchema creates the history table and its indexes if absent.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS news_history (
    id         BIGSERIAL PRIMARY KEY,
    title      VARCHAR(512)  NOT NULL,
    url        VARCHAR(1024) NOT NULL UNIQUE,
    date       VARCHAR(32),
    source     VARCHAR(128),
    sent_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ix_news_history_sent_at ON news_history (sent_at);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordMany inserts one row per article inside a single transaction. A
// failure anywhere rolls back the whole batch; a unique-constraint hit is
// reported as ErrDuplicateURL rather than silently overwriting.
func (r *PostgresRepository) RecordMany(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}

	sentAt := r.now().UTC()
	for _, article := range articles {
		query, args, err := psql.Insert("news_history").
			Columns("title", "url", "date", "source", "sent_at").
			Values(article.Title, article.URL, article.PublishDate, article.Source, sentAt).
			ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) {
				return fmt.Errorf("record %s: %w", article.URL, ErrDuplicateURL)
			}
			return fmt.Errorf("record %s: %w", article.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history tx: %w", err)
	}
	return nil
}

// AllURLs returns the set of every URL ever recorded.
func (r *PostgresRepository) AllURLs(ctx context.Context) (map[string]struct{}, error) {
	return r.keySet(ctx, "url")
}

// AllTitles returns the set of every title ever recorded.
func (r *PostgresRepository) AllTitles(ctx context.Context) (map[string]struct{}, error) {
	return r.keySet(ctx, "title")
}

func (r *PostgresRepository) keySet(ctx context.Context, column string) (map[string]struct{}, error) {
	query, args, err := psql.Select(column).From("news_history").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s set: %w", column, err)
	}
	defer rows.Close()

	result := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		result[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// PruneOlderThan deletes rows whose sent_at is strictly before now-days.
// A row exactly days old survives; see pruneCutoff.
func (r *PostgresRepository) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	query, args, err := psql.Delete("news_history").
		Where(sq.Lt{"sent_at": pruneCutoff(r.now(), days)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return deleted, nil
}

// Count returns the total number of history rows.
func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From("news_history").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

// Clear deletes every history row and returns how many were removed.
func (r *PostgresRepository) Clear(ctx context.Context) (int64, error) {
	query, args, err := psql.Delete("news_history").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear rows affected: %w", err)
	}
	return deleted, nil
}

// pruneCutoff computes the retention boundary: rows with sent_at before this
// instant are deleted, rows at or after it are kept.
func pruneCutoff(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, -days)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
