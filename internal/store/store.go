// Package store defines the persistence interface for the settlement
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/model"
)

var (
	ErrMarketNotFound   = errors.New("store: market not found")
	ErrMarketExists     = errors.New("store: market already exists")
	ErrPositionNotFound = errors.New("store: position not found")

	// ErrPositionExists enforces one open position per account per market.
	ErrPositionExists = errors.New("store: account already holds a position in this market")

	ErrUserNotFound = errors.New("store: user not found")

	// ErrAlreadySettled guards the write-once settlement record.
	ErrAlreadySettled = errors.New("store: market already settled")

	// ErrInsufficientLiquidity is returned when a removal exceeds the
	// provider's recorded contribution.
	ErrInsufficientLiquidity = errors.New("store: removal exceeds provider contribution")

	// ErrInsufficientBalance is returned when a debit exceeds the
	// market's fund balance.
	ErrInsufficientBalance = errors.New("store: market balance insufficient")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Every method is atomic: a
// call either fully applies or leaves no trace.
type Store interface {
	// --- Market operations ---

	// CreateMarket persists a new market.
	CreateMarket(ctx context.Context, market *model.Market) error

	// GetMarket retrieves a market by its ID.
	GetMarket(ctx context.Context, id string) (*model.Market, error)

	// ListMarkets returns all markets.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// SettleMarket records the write-once settlement price and time and
	// sets the settled flag. Fails with ErrAlreadySettled on a second call.
	SettleMarket(ctx context.Context, id string, price decimal.Decimal, at time.Time) error

	// AdjustMarketBalance moves value into (positive delta) or out of
	// (negative delta) the market's fund balance. A debit below zero
	// fails with ErrInsufficientBalance.
	AdjustMarketBalance(ctx context.Context, id string, delta decimal.Decimal) error

	// --- Position ledger ---

	// CreatePosition persists a new position. At most one per account per
	// market, ever; ErrPositionExists otherwise.
	CreatePosition(ctx context.Context, pos *model.Position) error

	// GetPosition retrieves one account's position in a market.
	GetPosition(ctx context.Context, marketID, account string) (*model.Position, error)

	// ListPositions returns every position ever opened in a market.
	ListPositions(ctx context.Context, marketID string) ([]model.Position, error)

	// ListActivePositions returns the currently active positions.
	ListActivePositions(ctx context.Context, marketID string) ([]model.Position, error)

	// SetPositionClaimed sets claimed and the inverse active flag.
	// Claimed=false restores the position to active (rollback path).
	SetPositionClaimed(ctx context.Context, marketID, account string, claimed bool) error

	// GetAccountNotionals returns market ID → collateral×leverage for the
	// account's active positions across all markets.
	GetAccountNotionals(ctx context.Context, account string) (map[string]decimal.Decimal, error)

	// --- Liquidity pool ---

	// AdjustLiquidity applies a signed delta to a provider's contribution,
	// the market's total liquidity, and the market's fund balance in one
	// atomic step. A removal beyond the provider's recorded contribution
	// fails with ErrInsufficientLiquidity.
	AdjustLiquidity(ctx context.Context, marketID, provider string, delta decimal.Decimal) error

	// GetLiquidity returns a provider's current contribution.
	GetLiquidity(ctx context.Context, marketID, provider string) (decimal.Decimal, error)

	// ListLiquidity returns all provider contributions for a market.
	ListLiquidity(ctx context.Context, marketID string) ([]model.LiquidityEntry, error)

	// --- Identity collaborator ---

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *model.User) error

	// GetUser retrieves a user by account.
	GetUser(ctx context.Context, account string) (*model.User, error)

	// --- Immutable value-movement ledger ---

	// InsertLedgerEntry appends an immutable value-movement record.
	InsertLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error

	// GetLedgerEntriesByMarket returns all entries for a market.
	GetLedgerEntriesByMarket(ctx context.Context, marketID string) ([]model.LedgerEntry, error)

	// GetLedgerEntriesByAccount returns all entries for an account.
	GetLedgerEntriesByAccount(ctx context.Context, account string) ([]model.LedgerEntry, error)
}
