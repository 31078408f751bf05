// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package outbox

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/xcomm"
)

// Scaling names accepted by ScalingByName.
const (
	ScalingLinear   = "linear"
	ScalingConstant = "constant"
	ScalingInverse  = "inverse"
)

var errUnknownScaling = errors.New("unknown fee scaling")

// ScalingFunc maps a requested finality depth to the factor applied to taxi
// fees.
type ScalingFunc func(finalityBlocks uint16) uint64

// LinearScaling charges proportionally to the finality depth.
func LinearScaling(finalityBlocks uint16) uint64 {
	return uint64(finalityBlocks)
}

// ConstantScaling ignores the finality depth.
func ConstantScaling(uint16) uint64 {
	return 1
}

// InverseScaling charges more for shallower finality: ceil(horizon/k), at
// least 1.
func InverseScaling(horizon uint16) ScalingFunc {
	return func(finalityBlocks uint16) uint64 {
		if finalityBlocks == 0 || finalityBlocks >= horizon {
			return 1
		}
		h, k := uint64(horizon), uint64(finalityBlocks)
		return (h + k - 1) / k
	}
}

// ScalingByName returns a built-in scaling function. horizon is only used by
// the inverse scaling.
func ScalingByName(name string, horizon uint16) (ScalingFunc, error) {
	switch name {
	case "", ScalingLinear:
		return LinearScaling, nil
	case ScalingConstant:
		return ConstantScaling, nil
	case ScalingInverse:
		if horizon == 0 {
			return nil, fmt.Errorf("%w: inverse scaling needs a non-zero horizon", errUnknownScaling)
		}
		return InverseScaling(horizon), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownScaling, name)
	}
}

// FeePolicy prices outbound messages. Stage messages pay BaseFee. Taxi
// messages pay BaseFee * TaxiMultiplier * Scaling(finalityBlocks).
type FeePolicy struct {
	BaseFee        *uint256.Int
	TaxiMultiplier uint64
	Scaling        ScalingFunc
}

// DefaultFeePolicy returns a policy with linear scaling.
func DefaultFeePolicy(baseFee *uint256.Int, multiplier uint64) FeePolicy {
	return FeePolicy{
		BaseFee:        baseFee,
		TaxiMultiplier: multiplier,
		Scaling:        LinearScaling,
	}
}

// Fee computes the fee for a message.
func (p FeePolicy) Fee(finalityBlocks uint16, taxi bool) (*uint256.Int, error) {
	if finalityBlocks == 0 {
		return nil, fmt.Errorf("%w: finality blocks must be at least 1", xcomm.ErrInvalidMessage)
	}
	base := new(uint256.Int)
	if p.BaseFee != nil {
		base.Set(p.BaseFee)
	}
	if !taxi {
		return base, nil
	}

	scaling := p.Scaling
	if scaling == nil {
		scaling = LinearScaling
	}
	fee, overflow := new(uint256.Int).MulOverflow(base, uint256.NewInt(p.TaxiMultiplier))
	if overflow {
		return nil, fmt.Errorf("%w: taxi fee overflows", xcomm.ErrInvalidMessage)
	}
	if _, overflow = fee.MulOverflow(fee, uint256.NewInt(scaling(finalityBlocks))); overflow {
		return nil, fmt.Errorf("%w: taxi fee overflows", xcomm.ErrInvalidMessage)
	}
	return fee, nil
}
