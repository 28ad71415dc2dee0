package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ndewijer/custody-ingest/internal/apperrors"
	"github.com/ndewijer/custody-ingest/internal/model"
)

// PositionRepository provides data access methods for the positions table.
// It covers the store contract the ingestion pipeline relies on: insert by
// identity, filtered find, bulk update by filter, the latest-by-identity
// aggregate and distinct key enumeration.
type PositionRepository struct {
	db     *sql.DB
	tx     *sql.Tx
	sealer Sealer
}

// NewPositionRepository creates a new PositionRepository with the provided database connection.
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *PositionRepository) WithTx(tx *sql.Tx) *PositionRepository {
	return &PositionRepository{
		db:     r.db,
		tx:     tx,
		sealer: r.sealer,
	}
}

// WithSealer returns a copy of the repository that seals raw payloads.
func (r *PositionRepository) WithSealer(s Sealer) *PositionRepository {
	return &PositionRepository{
		db:     r.db,
		tx:     r.tx,
		sealer: s,
	}
}

// getQuerier returns the active transaction if one is set, otherwise the database connection.
func (r *PositionRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const positionColumns = `
	id, bank_id, bank_name, user_id, portfolio_code, portfolio_currency,
	isin, security_name, security_type, currency, quantity,
	price, price_type, market_value, market_value_portfolio_ccy,
	cost_price, cost_basis, cost_basis_portfolio_ccy,
	unrealized_pnl, unrealized_pnl_portfolio_ccy, unrealized_pnl_percent,
	accrued_interest, fx_rate, maturity_date, snapshot_date, file_date,
	processed_at, source_file, unique_key, version, is_latest, raw_payload`

// identityExpr is the logical identity of a holding: the ISIN, or for
// instruments without one the currency, type and name, plus the maturity
// for term deposits.
const identityExpr = `
	CASE WHEN isin IS NOT NULL AND isin != '' THEN isin
	ELSE currency || ':' || security_type || ':' || security_name ||
		CASE WHEN security_type = 'TERM_DEPOSIT' THEN ':' || COALESCE(maturity_date, '') ELSE '' END
	END`

// InsertPositions stores new position records. Version and latest flags are
// written as given; the reconciler corrects them afterwards.
func (r *PositionRepository) InsertPositions(ctx context.Context, positions []model.Position) error {
	query := `INSERT INTO positions (` + positionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, p := range positions {
		payload, err := encodePayload(p.RawPayload, r.sealer)
		if err != nil {
			return err
		}
		_, err = r.getQuerier().ExecContext(ctx, query,
			p.ID, p.BankID, p.BankName, p.UserID, p.PortfolioCode, p.PortfolioCurrency,
			nullString(p.ISIN), p.SecurityName, string(p.SecurityType), p.Currency, p.Quantity,
			nullFloat(p.Price), string(p.PriceType), p.MarketValue, nullFloat(p.MarketValuePortfolioCcy),
			nullFloat(p.CostPrice), nullFloat(p.CostBasis), nullFloat(p.CostBasisPortfolioCcy),
			nullFloat(p.UnrealizedPnl), nullFloat(p.UnrealizedPnlPortfolio), nullFloat(p.UnrealizedPnlPercent),
			nullFloat(p.AccruedInterest), nullFloat(p.FXRate), nullDate(p.MaturityDate),
			formatDate(p.SnapshotDate), formatDate(p.FileDate), formatTimestamp(p.ProcessedAt),
			p.SourceFile, p.UniqueKey, p.Version, p.IsLatest, payload,
		)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", p.UniqueKey, err)
		}
	}
	return nil
}

// GetPosition retrieves a single position by ID.
func (r *PositionRepository) GetPosition(ctx context.Context, id string) (model.Position, error) {
	row := r.getQuerier().QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)
	p, err := r.scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Position{}, apperrors.ErrPositionNotFound
	}
	if err != nil {
		return model.Position{}, fmt.Errorf("failed to query position: %w", err)
	}
	return p, nil
}

// FindPositions returns positions matching filter, newest snapshot first.
func (r *PositionRepository) FindPositions(ctx context.Context, filter model.PositionFilter) ([]model.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE 1=1`
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
	if filter.UniqueKey != "" {
		query += " AND unique_key = ?"
		args = append(args, filter.UniqueKey)
	}
	if filter.SecurityType != "" {
		query += " AND security_type = ?"
		args = append(args, string(filter.SecurityType))
	}
	if filter.LatestOnly {
		query += " AND is_latest = 1"
	}
	query += " ORDER BY snapshot_date DESC, processed_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return r.queryPositions(ctx, query, args...)
}

// GetPositionsByIDs returns the positions with the given IDs in no particular order.
func (r *PositionRepository) GetPositionsByIDs(ctx context.Context, ids []string) ([]model.Position, error) {
	if len(ids) == 0 {
		return []model.Position{}, nil
	}
	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id IN (` + placeholders(len(ids)) + `)`
	return r.queryPositions(ctx, query, stringArgs(ids)...)
}

func (r *PositionRepository) queryPositions(ctx context.Context, query string, args ...any) ([]model.Position, error) {
	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions table: %w", err)
	}
	defer rows.Close()

	positions := []model.Position{}
	for rows.Next() {
		p, err := r.scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan positions table results: %w", err)
		}
		positions = append(positions, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions table: %w", err)
	}
	return positions, nil
}

func (r *PositionRepository) scanPosition(s scanner) (model.Position, error) {
	var (
		p                                           model.Position
		isin, maturity                              sql.NullString
		securityType, priceType                     string
		snapshot, fileDate, processedAt, rawPayload string
		price, mvPtf, costPrice, costBasis          sql.NullFloat64
		costBasisPtf, pnl, pnlPtf, pnlPct           sql.NullFloat64
		accrued, fxRate                             sql.NullFloat64
	)

	err := s.Scan(
		&p.ID, &p.BankID, &p.BankName, &p.UserID, &p.PortfolioCode, &p.PortfolioCurrency,
		&isin, &p.SecurityName, &securityType, &p.Currency, &p.Quantity,
		&price, &priceType, &p.MarketValue, &mvPtf,
		&costPrice, &costBasis, &costBasisPtf,
		&pnl, &pnlPtf, &pnlPct,
		&accrued, &fxRate, &maturity, &snapshot, &fileDate,
		&processedAt, &p.SourceFile, &p.UniqueKey, &p.Version, &p.IsLatest, &rawPayload,
	)
	if err != nil {
		return model.Position{}, err
	}

	p.ISIN = stringPtr(isin)
	p.SecurityType = model.ParseSecurityType(securityType)
	p.PriceType = model.PriceType(priceType)
	p.Price = floatPtr(price)
	p.MarketValuePortfolioCcy = floatPtr(mvPtf)
	p.CostPrice = floatPtr(costPrice)
	p.CostBasis = floatPtr(costBasis)
	p.CostBasisPortfolioCcy = floatPtr(costBasisPtf)
	p.UnrealizedPnl = floatPtr(pnl)
	p.UnrealizedPnlPortfolio = floatPtr(pnlPtf)
	p.UnrealizedPnlPercent = floatPtr(pnlPct)
	p.AccruedInterest = floatPtr(accrued)
	p.FXRate = floatPtr(fxRate)

	if p.MaturityDate, err = nullTimeFromString(maturity); err != nil {
		return model.Position{}, err
	}
	if p.SnapshotDate, err = ParseTime(snapshot); err != nil {
		return model.Position{}, err
	}
	if p.FileDate, err = ParseTime(fileDate); err != nil {
		return model.Position{}, err
	}
	if p.ProcessedAt, err = ParseTime(processedAt); err != nil {
		return model.Position{}, err
	}
	if p.RawPayload, err = decodePayload(rawPayload, r.sealer); err != nil {
		return model.Position{}, err
	}
	return p, nil
}

// GetVersions returns the version projection of every record sharing uniqueKey.
func (r *PositionRepository) GetVersions(ctx context.Context, bankID, uniqueKey string) ([]model.PositionVersion, error) {
	query := `
		SELECT id, unique_key, snapshot_date, processed_at, version, is_latest
		FROM positions
		WHERE bank_id = ? AND unique_key = ?
		ORDER BY snapshot_date, processed_at, id
	`
	rows, err := r.getQuerier().QueryContext(ctx, query, bankID, uniqueKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query position versions: %w", err)
	}
	defer rows.Close()

	versions := []model.PositionVersion{}
	for rows.Next() {
		var (
			v                     model.PositionVersion
			snapshot, processedAt string
		)
		if err := rows.Scan(&v.ID, &v.UniqueKey, &snapshot, &processedAt, &v.Version, &v.IsLatest); err != nil {
			return nil, fmt.Errorf("failed to scan position versions: %w", err)
		}
		if v.SnapshotDate, err = ParseTime(snapshot); err != nil {
			return nil, err
		}
		if v.ProcessedAt, err = ParseTime(processedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position versions: %w", err)
	}
	return versions, nil
}

// ClearLatest drops the latest flag from every record of uniqueKey so that a
// new latest can be set without tripping the one-latest index.
func (r *PositionRepository) ClearLatest(ctx context.Context, bankID, uniqueKey string) error {
	_, err := r.getQuerier().ExecContext(ctx,
		`UPDATE positions SET is_latest = 0 WHERE bank_id = ? AND unique_key = ? AND is_latest = 1`,
		bankID, uniqueKey)
	if err != nil {
		return fmt.Errorf("failed to clear latest flag: %w", err)
	}
	return nil
}

// SetVersion writes the version number and latest flag of one record.
func (r *PositionRepository) SetVersion(ctx context.Context, id string, version int, isLatest bool) error {
	result, err := r.getQuerier().ExecContext(ctx,
		`UPDATE positions SET version = ?, is_latest = ? WHERE id = ?`, version, isLatest, id)
	if err != nil {
		return fmt.Errorf("failed to update position version: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.ErrPositionNotFound
	}
	return nil
}

// GroupLatestByIdentity aggregates latest records by (bank, user, portfolio,
// identity) and returns only the groups holding more than one record.
func (r *PositionRepository) GroupLatestByIdentity(ctx context.Context) ([]model.IdentityGroup, error) {
	query := `
		SELECT bank_id, user_id, portfolio_code, ` + identityExpr + ` AS identity,
			COUNT(*) AS cnt, json_group_array(id) AS ids
		FROM positions
		WHERE is_latest = 1
		GROUP BY bank_id, user_id, portfolio_code, identity
		HAVING COUNT(*) > 1
		ORDER BY bank_id, user_id, portfolio_code, identity
	`
	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to group latest positions: %w", err)
	}
	defer rows.Close()

	groups := []model.IdentityGroup{}
	for rows.Next() {
		var (
			g              model.IdentityGroup
			bankID, userID string
			ids            string
		)
		if err := rows.Scan(&bankID, &userID, &g.PortfolioCode, &g.Identity, &g.Count, &ids); err != nil {
			return nil, fmt.Errorf("failed to scan identity group: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &g.PositionIDs); err != nil {
			return nil, fmt.Errorf("failed to decode identity group ids: %w", err)
		}
		g.Owner = bankID
		if userID != "" {
			g.Owner = bankID + "/" + userID
		}
		groups = append(groups, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identity groups: %w", err)
	}
	return groups, nil
}

// DeletePositions physically removes records. Only the deduplication engine calls it.
func (r *PositionRepository) DeletePositions(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	result, err := r.getQuerier().ExecContext(ctx,
		`DELETE FROM positions WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete positions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// Rekey moves every record of fromKey under toKey and returns how many moved.
func (r *PositionRepository) Rekey(ctx context.Context, bankID, fromKey, toKey string) (int, error) {
	result, err := r.getQuerier().ExecContext(ctx,
		`UPDATE positions SET unique_key = ? WHERE bank_id = ? AND unique_key = ?`, toKey, bankID, fromKey)
	if err != nil {
		return 0, fmt.Errorf("failed to re-key positions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// BankKey is one distinct (bank, uniqueKey) pair.
type BankKey struct {
	BankID    string
	UniqueKey string
}

// DistinctKeys enumerates every (bank, uniqueKey) pair in the store.
func (r *PositionRepository) DistinctKeys(ctx context.Context) ([]BankKey, error) {
	rows, err := r.getQuerier().QueryContext(ctx,
		`SELECT DISTINCT bank_id, unique_key FROM positions ORDER BY bank_id, unique_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct keys: %w", err)
	}
	defer rows.Close()

	keys := []BankKey{}
	for rows.Next() {
		var k BankKey
		if err := rows.Scan(&k.BankID, &k.UniqueKey); err != nil {
			return nil, fmt.Errorf("failed to scan distinct keys: %w", err)
		}
		keys = append(keys, k)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distinct keys: %w", err)
	}
	return keys, nil
}

// DistinctISINs returns the ISINs of latest records with the given security type.
func (r *PositionRepository) DistinctISINs(ctx context.Context, securityType model.SecurityType) ([]string, error) {
	rows, err := r.getQuerier().QueryContext(ctx, `
		SELECT DISTINCT isin FROM positions
		WHERE is_latest = 1 AND security_type = ? AND isin IS NOT NULL AND isin != ''
		ORDER BY isin`, string(securityType))
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct isins: %w", err)
	}
	defer rows.Close()

	isins := []string{}
	for rows.Next() {
		var isin string
		if err := rows.Scan(&isin); err != nil {
			return nil, fmt.Errorf("failed to scan distinct isins: %w", err)
		}
		isins = append(isins, isin)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distinct isins: %w", err)
	}
	return isins, nil
}

// UpdateSecurityType sets the security type of every record of isin whose
// current type is from. Price type follows the new security type.
func (r *PositionRepository) UpdateSecurityType(ctx context.Context, isin string, from, to model.SecurityType, priceType model.PriceType) (int, error) {
	result, err := r.getQuerier().ExecContext(ctx,
		`UPDATE positions SET security_type = ?, price_type = ? WHERE isin = ? AND security_type = ?`,
		string(to), string(priceType), isin, string(from))
	if err != nil {
		return 0, fmt.Errorf("failed to update security type: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// UpdateClassification rewrites the type dependent columns of one record
// after enrichment changed its security type.
func (r *PositionRepository) UpdateClassification(ctx context.Context, p model.Position) error {
	_, err := r.getQuerier().ExecContext(ctx, `
		UPDATE positions SET
			security_type = ?, price_type = ?, price = ?, cost_price = ?,
			cost_basis = ?, cost_basis_portfolio_ccy = ?,
			unrealized_pnl = ?, unrealized_pnl_portfolio_ccy = ?, unrealized_pnl_percent = ?
		WHERE id = ?`,
		string(p.SecurityType), string(p.PriceType), nullFloat(p.Price), nullFloat(p.CostPrice),
		nullFloat(p.CostBasis), nullFloat(p.CostBasisPortfolioCcy),
		nullFloat(p.UnrealizedPnl), nullFloat(p.UnrealizedPnlPortfolio), nullFloat(p.UnrealizedPnlPercent),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update position classification: %w", err)
	}
	return nil
}

// CountPositions returns the total and latest record counts.
func (r *PositionRepository) CountPositions(ctx context.Context) (total, latest int, err error) {
	err = r.getQuerier().QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_latest = 1 THEN 1 ELSE 0 END), 0) FROM positions`).
		Scan(&total, &latest)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return total, latest, nil
}
