package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/retail-scraper/internal/domain"
)

// PostgresSink mirrors output rows into a products table, keyed by variant
// ID so reruns of the same chunk stay idempotent.
type PostgresSink struct {
	db *pgxpool.Pool
}

func NewPostgresSink(ctx context.Context, connStr string) (*PostgresSink, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	s := &PostgresSink{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS scraped_products (
			variant_id   TEXT PRIMARY KEY,
			product_id   TEXT NOT NULL,
			product_url  TEXT NOT NULL,
			category     TEXT,
			category_url TEXT,
			brand        TEXT,
			name         TEXT,
			sku          TEXT,
			mpn          TEXT,
			gtin         TEXT,
			price        TEXT,
			main_image   TEXT,
			quantity     INT,
			group_attr_1 TEXT,
			group_attr_2 TEXT,
			status       TEXT,
			date_scraped DATE,
			created_at   TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create products table: %w", err)
	}
	return nil
}

func (s *PostgresSink) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresSink) WriteRows(ctx context.Context, rows []domain.Record) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`INSERT INTO scraped_products
			(variant_id, product_id, product_url, category, category_url, brand,
			 name, sku, mpn, gtin, price, main_image, quantity,
			 group_attr_1, group_attr_2, status, date_scraped)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			 ON CONFLICT (variant_id) DO NOTHING`,
			r.VariantID, r.ProductID, r.ProductURL, r.Category, r.CategoryURL,
			r.Brand, r.Name, r.SKU, r.MPN, r.GTIN, r.Price, r.MainImage,
			r.Quantity, r.GroupAttr1, r.GroupAttr2, r.Status, r.DateScraped)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert product rows: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresSink) Close() error {
	s.db.Close()
	return nil
}
