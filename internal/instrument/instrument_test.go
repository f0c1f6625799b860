package instrument

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func validPosition() *model.Position {
	return &model.Position{
		Account:         "acct-1",
		Direction:       model.DirectionLong,
		Quantity:        d(10),
		Collateral:      d(5),
		Leverage:        2,
		MarginMode:      model.MarginIsolated,
		EntryStyle:      model.EntryMarket,
		CollateralAsset: model.AssetNative,
		SettlementAsset: model.AssetNative,
	}
}

func TestValidatePosition_Valid(t *testing.T) {
	if err := ValidatePosition(validPosition()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatePosition_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.Position)
		wantErr error
	}{
		{"bad direction", func(p *model.Position) { p.Direction = "SIDEWAYS" }, ErrInvalidDirection},
		{"zero quantity", func(p *model.Position) { p.Quantity = decimal.Zero }, ErrInvalidQuantity},
		{"negative quantity", func(p *model.Position) { p.Quantity = d(-3) }, ErrInvalidQuantity},
		{"fractional quantity", func(p *model.Position) { p.Quantity = d(2.5) }, ErrInvalidQuantity},
		{"zero leverage", func(p *model.Position) { p.Leverage = 0 }, ErrInvalidLeverage},
		{"negative leverage", func(p *model.Position) { p.Leverage = -1 }, ErrInvalidLeverage},
		{"zero collateral", func(p *model.Position) { p.Collateral = decimal.Zero }, ErrInvalidCollateral},
		{"bad margin mode", func(p *model.Position) { p.MarginMode = "HYBRID" }, ErrInvalidMarginMode},
		{"bad entry style", func(p *model.Position) { p.EntryStyle = "TWAP" }, ErrInvalidEntryStyle},
		{"limit without trigger", func(p *model.Position) { p.EntryStyle = model.EntryLimit }, ErrTriggerPriceRequired},
		{"stop without trigger", func(p *model.Position) { p.EntryStyle = model.EntryStop }, ErrTriggerPriceRequired},
		{"market with trigger", func(p *model.Position) { p.TriggerPrice = d(42) }, ErrTriggerPriceForbidden},
		{"unknown collateral asset", func(p *model.Position) { p.CollateralAsset = "DOGE" }, ErrAssetNotAllowed},
		{"unknown settlement asset", func(p *model.Position) { p.SettlementAsset = "DOGE" }, ErrAssetNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPosition()
			tt.mutate(p)
			err := ValidatePosition(p)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidatePosition_LimitWithTrigger(t *testing.T) {
	p := validPosition()
	p.EntryStyle = model.EntryLimit
	p.TriggerPrice = d(55)
	if err := ValidatePosition(p); err != nil {
		t.Errorf("limit entry with trigger price should validate, got %v", err)
	}
}

func TestAssetAllowed(t *testing.T) {
	if !AssetAllowed(model.AssetNative) {
		t.Error("native asset must be allow-listed")
	}
	if !AssetAllowed("USDC") {
		t.Error("USDC is a reserved extension asset and should be allow-listed")
	}
	if AssetAllowed("DOGE") {
		t.Error("unknown assets must not be allow-listed")
	}
}
