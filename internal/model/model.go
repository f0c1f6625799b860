// Package model defines the core domain types shared across the settlement
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a position relative to the strike.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// MarginMode is recorded on the position but not behaviorally
// differentiated by the settlement engine.
type MarginMode string

const (
	MarginIsolated MarginMode = "ISOLATED"
	MarginCross    MarginMode = "CROSS"
)

// EntryStyle is how the position was entered. Only market entries have
// functioning semantics; limit and stop carry a trigger price for a future
// matching engine that does not exist yet.
type EntryStyle string

const (
	EntryMarket EntryStyle = "MARKET"
	EntryLimit  EntryStyle = "LIMIT"
	EntryStop   EntryStyle = "STOP"
)

// Asset identifies a collateral or settlement asset. Only the native asset
// has working transfer logic; other identifiers are accepted into storage
// but rejected at the value-movement boundary.
type Asset string

const AssetNative Asset = "NATIVE"

// LedgerKind classifies an immutable value-movement record.
type LedgerKind string

const (
	LedgerDeposit         LedgerKind = "deposit"
	LedgerLiquidityAdd    LedgerKind = "liquidity_add"
	LedgerLiquidityRemove LedgerKind = "liquidity_remove"
	LedgerPayout          LedgerKind = "payout"
)

// Market is one deployed futures instance: a fixed strike against the gas
// price index, settled once after expiry. SettlementPrice and SettlementTime
// are write-once and valid only while Settled is set; Settled never clears.
// Balance is the market's full fund pot — position collateral plus pooled
// liquidity, the source every payout draws from.
type Market struct {
	ID              string          `json:"id" db:"id"`
	Creator         string          `json:"creator" db:"creator"`
	Name            string          `json:"name" db:"name"`
	Description     string          `json:"description" db:"description"`
	Strike          decimal.Decimal `json:"strike" db:"strike"` // index units
	Expiry          time.Time       `json:"expiry" db:"expiry"`
	Settled         bool            `json:"settled" db:"settled"`
	SettlementPrice decimal.Decimal `json:"settlement_price" db:"settlement_price"`
	SettlementTime  time.Time       `json:"settlement_time" db:"settlement_time"`
	TotalLiquidity  decimal.Decimal `json:"total_liquidity" db:"total_liquidity"`
	Balance         decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Trading reports whether the market still accepts position opens.
func (m *Market) Trading(now time.Time) bool {
	return !m.Settled && now.Before(m.Expiry)
}

// Position is one account's open bet in one market. At most one per account
// per market; never deleted — a claimed position stays in the ledger as a
// historical record with Claimed set and Active cleared.
type Position struct {
	Account         string          `json:"account" db:"account"`
	MarketID        string          `json:"market_id" db:"market_id"`
	Direction       Direction       `json:"direction" db:"direction"`
	Quantity        decimal.Decimal `json:"quantity" db:"quantity"` // contract count, integer > 0
	Collateral      decimal.Decimal `json:"collateral" db:"collateral"`
	Leverage        int64           `json:"leverage" db:"leverage"`
	MarginMode      MarginMode      `json:"margin_mode" db:"margin_mode"`
	EntryStyle      EntryStyle      `json:"entry_style" db:"entry_style"`
	TriggerPrice    decimal.Decimal `json:"trigger_price" db:"trigger_price"` // limit/stop only
	CollateralAsset Asset           `json:"collateral_asset" db:"collateral_asset"`
	SettlementAsset Asset           `json:"settlement_asset" db:"settlement_asset"`
	Active          bool            `json:"active" db:"active"`
	Claimed         bool            `json:"claimed" db:"claimed"`
	OpenedAt        time.Time       `json:"opened_at" db:"opened_at"`
}

// Notional is the leveraged exposure: collateral × leverage.
func (p *Position) Notional() decimal.Decimal {
	return p.Collateral.Mul(decimal.NewFromInt(p.Leverage))
}

// LiquidityEntry is one provider's cumulative contribution to a market's
// pool. The sum over all providers equals the market's TotalLiquidity; both
// are only ever adjusted in the same store call.
type LiquidityEntry struct {
	MarketID string          `json:"market_id" db:"market_id"`
	Provider string          `json:"provider" db:"provider"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	JoinedAt time.Time       `json:"joined_at" db:"joined_at"`
}

// User is the identity collaborator record. Registered gates position
// opens; nothing here affects settlement math.
type User struct {
	Account      string    `json:"account" db:"account"`
	Registered   bool      `json:"registered" db:"registered"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	MetadataURI  string    `json:"metadata_uri" db:"metadata_uri"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	LastLoginAt  time.Time `json:"last_login_at" db:"last_login_at"`
}

// LedgerEntry is an immutable record of value crossing the market boundary.
// Once created, these are never modified or deleted.
type LedgerEntry struct {
	ID        string          `json:"id" db:"id"`
	MarketID  string          `json:"market_id" db:"market_id"`
	Account   string          `json:"account" db:"account"`
	Kind      LedgerKind      `json:"kind" db:"kind"`
	Asset     Asset           `json:"asset" db:"asset"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// MarketSummary is the aggregate view returned to read-side consumers.
type MarketSummary struct {
	MarketID         string          `json:"market_id"`
	Strike           decimal.Decimal `json:"strike"`
	Expiry           time.Time       `json:"expiry"`
	Settled          bool            `json:"settled"`
	SettlementPrice  decimal.Decimal `json:"settlement_price"`
	TotalLiquidity   decimal.Decimal `json:"total_liquidity"`
	ParticipantCount int             `json:"participant_count"`
}

// MarketInfo is the static view: construction parameters plus settlement
// outcome.
type MarketInfo struct {
	MarketID        string          `json:"market_id"`
	Creator         string          `json:"creator"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Strike          decimal.Decimal `json:"strike"`
	Expiry          time.Time       `json:"expiry"`
	Settled         bool            `json:"settled"`
	SettlementPrice decimal.Decimal `json:"settlement_price"`
}
