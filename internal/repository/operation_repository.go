package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/custody-ingest/internal/model"
)

// OperationRepository provides data access methods for the operations table.
type OperationRepository struct {
	db     *sql.DB
	tx     *sql.Tx
	sealer Sealer
}

// NewOperationRepository creates a new OperationRepository with the provided database connection.
func NewOperationRepository(db *sql.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

func (r *OperationRepository) WithTx(tx *sql.Tx) *OperationRepository {
	return &OperationRepository{
		db:     r.db,
		tx:     tx,
		sealer: r.sealer,
	}
}

func (r *OperationRepository) WithSealer(s Sealer) *OperationRepository {
	return &OperationRepository{
		db:     r.db,
		tx:     r.tx,
		sealer: s,
	}
}

func (r *OperationRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const operationColumns = `
	id, bank_id, bank_name, user_id, portfolio_code, operation_date, value_date,
	booking_date, isin, security_name, operation_type, direction, amount, currency,
	quantity, price, fees, taxes, description, source_file, file_date, processed_at,
	content_hash, raw_payload`

// InsertOperations stores operations, skipping any whose content hash is
// already present. It returns how many were inserted and how many skipped.
func (r *OperationRepository) InsertOperations(ctx context.Context, ops []model.Operation) (inserted, duplicates int, err error) {
	query := `INSERT INTO operations (` + operationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_hash) DO NOTHING`

	for _, op := range ops {
		payload, err := encodePayload(op.RawPayload, r.sealer)
		if err != nil {
			return inserted, duplicates, err
		}
		result, err := r.getQuerier().ExecContext(ctx, query,
			op.ID, op.BankID, op.BankName, op.UserID, op.PortfolioCode,
			formatDate(op.OperationDate), nullDate(op.ValueDate), nullDate(op.BookingDate),
			nullString(op.ISIN), op.SecurityName, string(op.OperationType), string(op.Direction),
			op.Amount, op.Currency, nullFloat(op.Quantity), nullFloat(op.Price),
			nullFloat(op.Fees), nullFloat(op.Taxes), op.Description, op.SourceFile,
			formatDate(op.FileDate), formatTimestamp(op.ProcessedAt), op.ContentHash, payload,
		)
		if err != nil {
			return inserted, duplicates, fmt.Errorf("failed to insert operation: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return inserted, duplicates, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			duplicates++
			continue
		}
		inserted++
	}
	return inserted, duplicates, nil
}

// FindOperations returns operations matching filter, most recent first.
func (r *OperationRepository) FindOperations(ctx context.Context, filter model.OperationFilter) ([]model.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations WHERE 1=1`
	var args []any

	if filter.BankID != "" {
		query += " AND bank_id = ?"
		args = append(args, filter.BankID)
	}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.PortfolioCode != "" {
		query += " AND portfolio_code = ?"
		args = append(args, filter.PortfolioCode)
	}
	if filter.ISIN != "" {
		query += " AND isin = ?"
		args = append(args, filter.ISIN)
	}
	if filter.OperationType != "" {
		query += " AND operation_type = ?"
		args = append(args, string(filter.OperationType))
	}
	if !filter.From.IsZero() {
		query += " AND operation_date >= ?"
		args = append(args, formatDate(filter.From))
	}
	if !filter.To.IsZero() {
		query += " AND operation_date <= ?"
		args = append(args, formatDate(filter.To))
	}
	query += " ORDER BY operation_date DESC, processed_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations table: %w", err)
	}
	defer rows.Close()

	ops := []model.Operation{}
	for rows.Next() {
		var (
			op                            model.Operation
			valueDate, bookingDate, isin  sql.NullString
			opType, direction             string
			opDate, fileDate, processedAt string
			rawPayload                    string
			quantity, price, fees, taxes  sql.NullFloat64
		)
		err := rows.Scan(
			&op.ID, &op.BankID, &op.BankName, &op.UserID, &op.PortfolioCode, &opDate, &valueDate,
			&bookingDate, &isin, &op.SecurityName, &opType, &direction, &op.Amount, &op.Currency,
			&quantity, &price, &fees, &taxes, &op.Description, &op.SourceFile, &fileDate, &processedAt,
			&op.ContentHash, &rawPayload,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operations table results: %w", err)
		}

		op.OperationType = model.OperationType(opType)
		op.Direction = model.Direction(direction)
		op.ISIN = stringPtr(isin)
		op.Quantity = floatPtr(quantity)
		op.Price = floatPtr(price)
		op.Fees = floatPtr(fees)
		op.Taxes = floatPtr(taxes)
		if op.OperationDate, err = ParseTime(opDate); err != nil {
			return nil, err
		}
		if op.FileDate, err = ParseTime(fileDate); err != nil {
			return nil, err
		}
		if op.ProcessedAt, err = ParseTime(processedAt); err != nil {
			return nil, err
		}
		if op.ValueDate, err = nullTimeFromString(valueDate); err != nil {
			return nil, err
		}
		if op.BookingDate, err = nullTimeFromString(bookingDate); err != nil {
			return nil, err
		}
		if op.RawPayload, err = decodePayload(rawPayload, r.sealer); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations table: %w", err)
	}
	return ops, nil
}

// CountOperations returns the number of stored operations.
func (r *OperationRepository) CountOperations(ctx context.Context) (int, error) {
	var n int
	if err := r.getQuerier().QueryRowContext(ctx, `SELECT COUNT(*) FROM operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return n, nil
}
