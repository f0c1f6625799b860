package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const marketColumns = `id, creator, name, description,
       strike::TEXT, expiry, settled,
       settlement_price::TEXT, settlement_time,
       total_liquidity::TEXT, balance::TEXT, created_at`

func scanMarket(row pgx.Row) (*model.Market, error) {
	var m model.Market
	var strike, settlementPrice, totalLiquidity, balance string
	var settlementTime *time.Time

	err := row.Scan(&m.ID, &m.Creator, &m.Name, &m.Description,
		&strike, &m.Expiry, &m.Settled,
		&settlementPrice, &settlementTime,
		&totalLiquidity, &balance, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	m.Strike, _ = decimal.NewFromString(strike)
	m.SettlementPrice, _ = decimal.NewFromString(settlementPrice)
	m.TotalLiquidity, _ = decimal.NewFromString(totalLiquidity)
	m.Balance, _ = decimal.NewFromString(balance)
	if settlementTime != nil {
		m.SettlementTime = *settlementTime
	}
	return &m, nil
}

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (id, creator, name, description, strike, expiry, settled,
		                      settlement_price, total_liquidity, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11)`,
		m.ID, m.Creator, m.Name, m.Description,
		m.Strike.String(), m.Expiry, m.Settled,
		m.SettlementPrice.String(), m.TotalLiquidity.String(), m.Balance.String(),
		m.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, id)
		}
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) SettleMarket(ctx context.Context, id string, price decimal.Decimal, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets
		 SET settled = TRUE, settlement_price = $2::NUMERIC, settlement_time = $3
		 WHERE id = $1 AND settled = FALSE`,
		id, price.String(), at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetMarket(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrAlreadySettled, id)
	}
	return nil
}

func (s *PostgresStore) AdjustMarketBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets
		 SET balance = balance + $2::NUMERIC
		 WHERE id = $1 AND balance + $2::NUMERIC >= 0`,
		id, delta.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetMarket(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: market %s, delta %s", ErrInsufficientBalance, id, delta)
	}
	return nil
}

// --- Positions ---

const positionColumns = `account, market_id, direction,
       quantity::TEXT, collateral::TEXT, leverage, margin_mode, entry_style,
       trigger_price::TEXT, collateral_asset, settlement_asset,
       active, claimed, opened_at`

func scanPosition(row pgx.Row) (*model.Position, error) {
	var p model.Position
	var quantity, collateral, triggerPrice string

	err := row.Scan(&p.Account, &p.MarketID, &p.Direction,
		&quantity, &collateral, &p.Leverage, &p.MarginMode, &p.EntryStyle,
		&triggerPrice, &p.CollateralAsset, &p.SettlementAsset,
		&p.Active, &p.Claimed, &p.OpenedAt)
	if err != nil {
		return nil, err
	}

	p.Quantity, _ = decimal.NewFromString(quantity)
	p.Collateral, _ = decimal.NewFromString(collateral)
	p.TriggerPrice, _ = decimal.NewFromString(triggerPrice)
	return &p, nil
}

func (s *PostgresStore) CreatePosition(ctx context.Context, p *model.Position) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO positions (account, market_id, direction, quantity, collateral,
		                        leverage, margin_mode, entry_style, trigger_price,
		                        collateral_asset, settlement_asset, active, claimed, opened_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8, $9::NUMERIC,
		         $10, $11, $12, $13, $14)
		 ON CONFLICT (market_id, account) DO NOTHING`,
		p.Account, p.MarketID, p.Direction, p.Quantity.String(), p.Collateral.String(),
		p.Leverage, p.MarginMode, p.EntryStyle, p.TriggerPrice.String(),
		p.CollateralAsset, p.SettlementAsset, p.Active, p.Claimed, p.OpenedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s in %s", ErrPositionExists, p.Account, p.MarketID)
	}
	return nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, marketID, account string) (*model.Position, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE market_id = $1 AND account = $2`,
		marketID, account))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s in %s", ErrPositionNotFound, account, marketID)
		}
		return nil, fmt.Errorf("get position %s/%s: %w", marketID, account, err)
	}
	return p, nil
}

func (s *PostgresStore) listPositions(ctx context.Context, query, arg string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) ListPositions(ctx context.Context, marketID string) ([]model.Position, error) {
	return s.listPositions(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE market_id = $1 ORDER BY opened_at`,
		marketID)
}

func (s *PostgresStore) ListActivePositions(ctx context.Context, marketID string) ([]model.Position, error) {
	return s.listPositions(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE market_id = $1 AND active ORDER BY opened_at`,
		marketID)
}

func (s *PostgresStore) SetPositionClaimed(ctx context.Context, marketID, account string, claimed bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions SET claimed = $3, active = NOT $3
		 WHERE market_id = $1 AND account = $2`,
		marketID, account, claimed,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s in %s", ErrPositionNotFound, account, marketID)
	}
	return nil
}

func (s *PostgresStore) GetAccountNotionals(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, (collateral * leverage)::TEXT
		 FROM positions WHERE account = $1 AND active`,
		account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notionals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var marketID, notionalS string
		if err := rows.Scan(&marketID, &notionalS); err != nil {
			return nil, err
		}
		notionals[marketID], _ = decimal.NewFromString(notionalS)
	}
	return notionals, rows.Err()
}

// --- Liquidity ---

// AdjustLiquidity moves the provider entry, the market total, and the fund
// balance inside one transaction so the pool invariant holds.
func (s *PostgresStore) AdjustLiquidity(ctx context.Context, marketID, provider string, delta decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		`SELECT amount::TEXT FROM liquidity
		 WHERE market_id = $1 AND provider = $2 FOR UPDATE`,
		marketID, provider).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		current = "0"
	case err != nil:
		return err
	}

	amount, _ := decimal.NewFromString(current)
	next := amount.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: provider %s has %s, removing %s",
			ErrInsufficientLiquidity, provider, amount, delta.Neg())
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO liquidity (market_id, provider, amount, joined_at)
		 VALUES ($1, $2, $3::NUMERIC, $4)
		 ON CONFLICT (market_id, provider) DO UPDATE SET amount = $3::NUMERIC`,
		marketID, provider, next.String(), time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE markets
		 SET total_liquidity = total_liquidity + $2::NUMERIC,
		     balance = balance + $2::NUMERIC
		 WHERE id = $1`,
		marketID, delta.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, marketID)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetLiquidity(ctx context.Context, marketID, provider string) (decimal.Decimal, error) {
	var amountS string
	err := s.pool.QueryRow(ctx,
		`SELECT amount::TEXT FROM liquidity WHERE market_id = $1 AND provider = $2`,
		marketID, provider).Scan(&amountS)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	amount, _ := decimal.NewFromString(amountS)
	return amount, nil
}

func (s *PostgresStore) ListLiquidity(ctx context.Context, marketID string) ([]model.LiquidityEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, provider, amount::TEXT, joined_at
		 FROM liquidity WHERE market_id = $1 ORDER BY joined_at`,
		marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LiquidityEntry
	for rows.Next() {
		var e model.LiquidityEntry
		var amountS string
		if err := rows.Scan(&e.MarketID, &e.Provider, &amountS, &e.JoinedAt); err != nil {
			return nil, err
		}
		e.Amount, _ = decimal.NewFromString(amountS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Users ---

func (s *PostgresStore) UpsertUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (account, registered, display_name, metadata_uri, registered_at, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (account) DO UPDATE
		 SET registered = $2, display_name = $3, metadata_uri = $4, last_login_at = $6`,
		u.Account, u.Registered, u.DisplayName, u.MetadataURI, u.RegisteredAt, u.LastLoginAt,
	)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, account string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT account, registered, display_name, metadata_uri, registered_at, last_login_at
		 FROM users WHERE account = $1`, account).
		Scan(&u.Account, &u.Registered, &u.DisplayName, &u.MetadataURI, &u.RegisteredAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, account)
		}
		return nil, fmt.Errorf("get user %s: %w", account, err)
	}
	return &u, nil
}

// --- Ledger ---

func (s *PostgresStore) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, market_id, account, kind, asset, amount, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7)`,
		e.ID, e.MarketID, e.Account, e.Kind, e.Asset, e.Amount.String(), e.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetLedgerEntriesByMarket(ctx context.Context, marketID string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market_id, account, kind, asset, amount::TEXT, timestamp
		 FROM ledger_entries WHERE market_id = $1 ORDER BY timestamp`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func (s *PostgresStore) GetLedgerEntriesByAccount(ctx context.Context, account string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market_id, account, kind, asset, amount::TEXT, timestamp
		 FROM ledger_entries WHERE account = $1 ORDER BY timestamp`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

func scanLedgerEntries(rows pgx.Rows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var amountS string

		if err := rows.Scan(&e.ID, &e.MarketID, &e.Account, &e.Kind, &e.Asset,
			&amountS, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Amount, _ = decimal.NewFromString(amountS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
