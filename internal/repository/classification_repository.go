package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/model"
)

// ClassificationRepository caches enrichment results per ISIN in security_classifications.
type ClassificationRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewClassificationRepository creates a new ClassificationRepository with the provided database connection.
func NewClassificationRepository(db *sql.DB) *ClassificationRepository {
	return &ClassificationRepository{db: db}
}

func (r *ClassificationRepository) WithTx(tx *sql.Tx) *ClassificationRepository {
	return &ClassificationRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *ClassificationRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const classificationColumns = `isin, security_type, ticker, exchange, symbol, currency, name, source, status, error, updated_at`

// Upsert inserts or replaces the classification of c.ISIN.
func (r *ClassificationRepository) Upsert(ctx context.Context, c model.SecurityClassification) error {
	query := `
		INSERT INTO security_classifications (` + classificationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (isin) DO UPDATE SET
			security_type = excluded.security_type,
			ticker = excluded.ticker,
			exchange = excluded.exchange,
			symbol = excluded.symbol,
			currency = excluded.currency,
			name = excluded.name,
			source = excluded.source,
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at
	`
	_, err := r.getQuerier().ExecContext(ctx, query,
		c.ISIN, string(c.SecurityType), c.Ticker, c.Exchange, c.Symbol, c.Currency,
		c.Name, c.Source, c.Status, c.Error, formatTimestamp(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert classification: %w", err)
	}
	return nil
}

// Get returns the cached classification of isin.
func (r *ClassificationRepository) Get(ctx context.Context, isin string) (model.SecurityClassification, error) {
	row := r.getQuerier().QueryRowContext(ctx,
		`SELECT `+classificationColumns+` FROM security_classifications WHERE isin = ?`, isin)
	c, err := scanClassification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SecurityClassification{}, apperrors.ErrClassificationNotFound
	}
	if err != nil {
		return model.SecurityClassification{}, fmt.Errorf("failed to query classification: %w", err)
	}
	return c, nil
}

// List returns cached classifications, optionally restricted to one status.
func (r *ClassificationRepository) List(ctx context.Context, status string) ([]model.SecurityClassification, error) {
	query := `SELECT ` + classificationColumns + ` FROM security_classifications`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY isin`

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query security_classifications table: %w", err)
	}
	defer rows.Close()

	out := []model.SecurityClassification{}
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security_classifications results: %w", err)
		}
		out = append(out, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security_classifications table: %w", err)
	}
	return out, nil
}

func scanClassification(s scanner) (model.SecurityClassification, error) {
	var (
		c                       model.SecurityClassification
		securityType, updatedAt string
	)
	err := s.Scan(&c.ISIN, &securityType, &c.Ticker, &c.Exchange, &c.Symbol, &c.Currency,
		&c.Name, &c.Source, &c.Status, &c.Error, &updatedAt)
	if err != nil {
		return model.SecurityClassification{}, err
	}
	c.SecurityType = model.ParseSecurityType(securityType)
	if c.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return model.SecurityClassification{}, err
	}
	return c, nil
}
