package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"books-etl/models"
	"books-etl/utils"
)

// Table names owned by the loader.
const (
	BooksTable    = "books"
	TopBooksTable = "top_10_books"
)

// LoadError wraps any failure while persisting the processed tables. The
// in-flight transaction has been rolled back when it is returned.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("postgres load: %v", e.Err)
	}
	return fmt.Sprintf("postgres load (%s): %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PostgresLoader replaces the books and top_10_books tables wholesale.
type PostgresLoader struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresLoader opens a connection to PostgreSQL, retrying the initial
// ping with back-off while the database comes up.
func NewPostgresLoader(ctx context.Context, dsn string, retry *utils.RetryConfig, logger *utils.Logger) (*PostgresLoader, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("open: %w", err)}
	}

	err = retry.Do(ctx, "postgres-ping", func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, &LoadError{Err: err}
	}

	return &PostgresLoader{db: db, logger: logger}, nil
}

// Load drops, recreates and fills both tables in a single transaction.
func (pl *PostgresLoader) Load(ctx context.Context, tables *models.Tables) (err error) {
	tx, err := pl.db.BeginTx(ctx, nil)
	if err != nil {
		return &LoadError{Err: fmt.Errorf("begin: %w", err)}
	}
	defer func() {
		if err != nil {
			rollback(tx, pl.logger)
		}
	}()

	if err = pl.recreate(ctx, tx); err != nil {
		return err
	}

	pl.logger.Info("Loading %d rows into %s", len(tables.Full), BooksTable)
	if err = insertBatches(ctx, tx, BooksTable, FullColumns, fullRows(tables.Full)); err != nil {
		return err
	}

	pl.logger.Info("Loading %d rows into %s", len(tables.Top), TopBooksTable)
	if err = insertBatches(ctx, tx, TopBooksTable, TopColumns, topRows(tables.Top)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return &LoadError{Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

type rollbacker interface {
	Rollback() error
}

// rollback undoes tx after a failed load. A transaction already ended by a
// failed Commit reports sql.ErrTxDone and needs nothing more.
func rollback(tx rollbacker, logger *utils.Logger) {
	switch err := tx.Rollback(); {
	case err == nil:
		logger.Warn("transaction rolled back")
	case errors.Is(err, sql.ErrTxDone):
		logger.Warn("transaction already ended by the failed commit")
	default:
		logger.Error("rollback failed: %v", err)
	}
}

func (pl *PostgresLoader) recreate(ctx context.Context, tx *sql.Tx) error {
	stmts := []struct {
		table string
		sql   string
	}{
		{BooksTable, `DROP TABLE IF EXISTS books`},
		{BooksTable, `
			CREATE TABLE books (
				id      SERIAL PRIMARY KEY,
				title   TEXT    NOT NULL UNIQUE,
				author  TEXT    NOT NULL,
				reviews INTEGER NOT NULL DEFAULT 0,
				rating  NUMERIC(3,2),
				price   NUMERIC(10,2) NOT NULL DEFAULT 0
			)`},
		{TopBooksTable, `DROP TABLE IF EXISTS top_10_books`},
		{TopBooksTable, `
			CREATE TABLE top_10_books (
				id      SERIAL PRIMARY KEY,
				rank    INTEGER NOT NULL,
				title   TEXT    NOT NULL,
				author  TEXT    NOT NULL,
				rating  NUMERIC(3,2),
				price   NUMERIC(10,2) NOT NULL DEFAULT 0
			)`},
	}

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.sql); err != nil {
			return &LoadError{Table: s.table, Err: err}
		}
	}
	return nil
}

const batchSize = 50

func insertBatches(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		query, args := buildInsert(table, columns, rows[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return &LoadError{Table: table, Err: err}
		}
	}
	return nil
}

// buildInsert renders a multi-row INSERT with numbered placeholders.
func buildInsert(table string, columns []string, batch [][]any) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*len(columns))

	for idx, row := range batch {
		base := idx * len(columns)
		ph := make([]string, len(columns))
		for c := range columns {
			ph[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		args = append(args, row...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(valueStrings, ","))
	return query, args
}

func fullRows(records []models.CleanedRecord) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{r.Title, r.Author, r.Reviews, nullableRating(r.Rating), r.Price})
	}
	return rows
}

func topRows(records []models.RankedRecord) [][]any {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{r.Rank, r.Title, r.Author, nullableRating(r.Rating), r.Price})
	}
	return rows
}

func nullableRating(r *float64) sql.NullFloat64 {
	if r == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *r, Valid: true}
}

// FetchTop reads the ranked table back in rank order, for the run report.
func (pl *PostgresLoader) FetchTop(ctx context.Context) ([]models.RankedRecord, error) {
	rows, err := pl.db.QueryContext(ctx, `
		SELECT rank, title, author, rating, price
		FROM top_10_books
		ORDER BY rank, id
	`)
	if err != nil {
		return nil, &LoadError{Table: TopBooksTable, Err: fmt.Errorf("fetch: %w", err)}
	}
	defer rows.Close()

	var out []models.RankedRecord
	for rows.Next() {
		var (
			r      models.RankedRecord
			rating sql.NullFloat64
		)
		if err := rows.Scan(&r.Rank, &r.Title, &r.Author, &rating, &r.Price); err != nil {
			return nil, &LoadError{Table: TopBooksTable, Err: fmt.Errorf("scan row: %w", err)}
		}
		if rating.Valid {
			r.Rating = models.Float(rating.Float64)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (pl *PostgresLoader) Close() error {
	return pl.db.Close()
}
