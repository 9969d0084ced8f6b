package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"goofish-watcher/models"
)

// PostgresWriter mirrors persisted records into PostgreSQL for downstream
// querying. It is an optional secondary sink: the JSONL store stays the
// source of truth, and inserts are conflict-ignored on the canonical link
// so re-runs never duplicate rows.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id                SERIAL PRIMARY KEY,
			keyword           TEXT        NOT NULL,
			item_id           TEXT        NOT NULL,
			title             TEXT        NOT NULL,
			price             TEXT        NOT NULL DEFAULT '',
			link              TEXT        UNIQUE NOT NULL,
			seller_nickname   TEXT        NOT NULL DEFAULT '',
			seller_type       VARCHAR(16) NOT NULL DEFAULT 'unknown',
			registration_days INTEGER,
			enrich_incomplete BOOLEAN     NOT NULL DEFAULT FALSE,
			crawl_time        TEXT        NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_keyword     ON listings(keyword);
		CREATE INDEX IF NOT EXISTS idx_listings_seller_type ON listings(seller_type);
	`)
	return err
}

// Append inserts one record, ignoring listings already mirrored.
func (pw *PostgresWriter) Append(rec *models.PersistedRecord) error {
	_, err := pw.db.Exec(`
		INSERT INTO listings
			(keyword, item_id, title, price, link, seller_nickname,
			 seller_type, registration_days, enrich_incomplete, crawl_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (link) DO NOTHING
	`,
		rec.Keyword, rec.Product.ID, rec.Product.Title, rec.Product.Price,
		rec.Product.Link, rec.Seller.Nickname, string(rec.Seller.Type),
		rec.Seller.RegistrationDays, rec.EnrichmentIncomplete, rec.CrawlTime,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert listing %s: %w", rec.Product.ID, err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
