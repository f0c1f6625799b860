// Package funds is the value-movement boundary of the settlement engine.
//
// Only the native asset can actually move value. Non-native assets on the
// allow-list are accepted into position storage as a deliberate extension
// point, but any attempt to move value in them is rejected here — not
// silently completed.
package funds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/gasdex/settlement-engine/internal/model"
)

var (
	// ErrUnsupportedAsset is returned for any value movement in a
	// non-native asset.
	ErrUnsupportedAsset = errors.New("funds: only the native asset can move value")

	// ErrDepositMismatch is returned when the supplied native value does
	// not exactly match the declared amount.
	ErrDepositMismatch = errors.New("funds: deposited value must exactly match declared amount")
)

// CheckDeposit validates the value supplied with an open against the
// declared collateral. Native deposits must match exactly; non-native
// collateral is recorded without value movement, so its deposit must be
// zero.
func CheckDeposit(asset model.Asset, declared, deposited decimal.Decimal) error {
	if asset == model.AssetNative {
		if !deposited.Equal(declared) {
			return fmt.Errorf("%w: declared %s, deposited %s", ErrDepositMismatch, declared, deposited)
		}
		return nil
	}
	if !deposited.IsZero() {
		return fmt.Errorf("%w: %q", ErrUnsupportedAsset, asset)
	}
	return nil
}

// Transferer moves settled value out of a market to an account. In a
// deployed system this is the payment rail; the engine finalizes all
// ledger state before calling it and rolls that state back if it fails.
type Transferer interface {
	Transfer(ctx context.Context, marketID, account string, asset model.Asset, amount decimal.Decimal) error
}

// NativeTransferer implements Transferer for the native asset.
type NativeTransferer struct{}

// NewNativeTransferer creates the native payment rail.
func NewNativeTransferer() *NativeTransferer {
	return &NativeTransferer{}
}

// Transfer releases native value to an account. Non-native assets are
// explicitly unimplemented.
func (t *NativeTransferer) Transfer(_ context.Context, marketID, account string, asset model.Asset, amount decimal.Decimal) error {
	if asset != model.AssetNative {
		return fmt.Errorf("%w: %q", ErrUnsupportedAsset, asset)
	}
	slog.Info("native transfer released",
		"market_id", marketID,
		"account", account,
		"amount", amount.String(),
	)
	return nil
}
