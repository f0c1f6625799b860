// Package instrument validates position parameters before they enter the
// ledger: direction, quantity, leverage, margin mode, entry style, and the
// collateral/settlement asset allow-list.
package instrument

import (
	"errors"
	"fmt"

	"github.com/gasdex/settlement-engine/internal/model"
)

var (
	ErrInvalidDirection  = errors.New("instrument: direction must be LONG or SHORT")
	ErrInvalidQuantity   = errors.New("instrument: quantity must be a positive integer")
	ErrInvalidLeverage   = errors.New("instrument: leverage must be at least 1")
	ErrInvalidCollateral = errors.New("instrument: collateral must be positive")
	ErrInvalidMarginMode = errors.New("instrument: margin mode must be ISOLATED or CROSS")
	ErrInvalidEntryStyle = errors.New("instrument: entry style must be MARKET, LIMIT, or STOP")

	// ErrTriggerPriceRequired is returned when a limit or stop entry lacks
	// its trigger price.
	ErrTriggerPriceRequired = errors.New("instrument: limit/stop entries require a positive trigger price")

	// ErrTriggerPriceForbidden is returned when a market entry carries a
	// trigger price.
	ErrTriggerPriceForbidden = errors.New("instrument: market entries must not carry a trigger price")

	// ErrAssetNotAllowed is returned for assets outside the allow-list.
	// Allow-listed non-native assets are stored but cannot move value; that
	// rejection happens at the funds boundary, not here.
	ErrAssetNotAllowed = errors.New("instrument: asset is not allow-listed")
)

var validDirections = map[model.Direction]bool{
	model.DirectionLong:  true,
	model.DirectionShort: true,
}

var validMarginModes = map[model.MarginMode]bool{
	model.MarginIsolated: true,
	model.MarginCross:    true,
}

var validEntryStyles = map[model.EntryStyle]bool{
	model.EntryMarket: true,
	model.EntryLimit:  true,
	model.EntryStop:   true,
}

// allowedAssets is the asset allow-list. NATIVE is the only asset with
// working transfer logic; the others are reserved extension points.
var allowedAssets = map[model.Asset]bool{
	model.AssetNative: true,
	"USDC":            true,
	"WETH":            true,
}

// AssetAllowed reports whether an asset is on the allow-list.
func AssetAllowed(a model.Asset) bool {
	return allowedAssets[a]
}

// ValidatePosition checks every position parameter a caller controls.
// It does not check market state or account state; those are preconditions
// of the open operation itself.
func ValidatePosition(p *model.Position) error {
	if !validDirections[p.Direction] {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, p.Direction)
	}
	if !p.Quantity.IsPositive() || !p.Quantity.IsInteger() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, p.Quantity)
	}
	if p.Leverage < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidLeverage, p.Leverage)
	}
	if !p.Collateral.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidCollateral, p.Collateral)
	}
	if !validMarginModes[p.MarginMode] {
		return fmt.Errorf("%w: %q", ErrInvalidMarginMode, p.MarginMode)
	}
	if !validEntryStyles[p.EntryStyle] {
		return fmt.Errorf("%w: %q", ErrInvalidEntryStyle, p.EntryStyle)
	}

	switch p.EntryStyle {
	case model.EntryMarket:
		if !p.TriggerPrice.IsZero() {
			return ErrTriggerPriceForbidden
		}
	default:
		if !p.TriggerPrice.IsPositive() {
			return ErrTriggerPriceRequired
		}
	}

	if !AssetAllowed(p.CollateralAsset) {
		return fmt.Errorf("%w: collateral asset %q", ErrAssetNotAllowed, p.CollateralAsset)
	}
	if !AssetAllowed(p.SettlementAsset) {
		return fmt.Errorf("%w: settlement asset %q", ErrAssetNotAllowed, p.SettlementAsset)
	}

	return nil
}
