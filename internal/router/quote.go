package router

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"swapcore/internal/amm"
	"swapcore/internal/fixedpoint"
)

var (
	big997  = big.NewInt(997)
	big1000 = big.NewInt(1000)
)

// Quote returns the amount of the other asset with equal value at the
// current reserve ratio: amountB = amountA * reserveB / reserveA.
func Quote(amountA, reserveA, reserveB *big.Int) (*big.Int, error) {
	if amountA == nil || amountA.Sign() <= 0 {
		return nil, amm.ErrInsufficientInputAmount
	}
	if reserveA.Sign() <= 0 || reserveB.Sign() <= 0 {
		return nil, amm.ErrInsufficientLiquidity
	}
	return fixedpoint.MulDiv(amountA, reserveB, reserveA), nil
}

// GetAmountOut returns the output a swap of amountIn buys from the given
// reserves after the 0.3% fee. Floors, so the pool is never short-changed.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, amm.ErrInsufficientInputAmount
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, amm.ErrInsufficientLiquidity
	}
	withFee := new(big.Int).Mul(amountIn, big997)
	numerator := new(big.Int).Mul(withFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big1000)
	denominator.Add(denominator, withFee)
	return numerator.Div(numerator, denominator), nil
}

// GetAmountIn returns the input required to buy exactly amountOut from the
// given reserves. Ceils, so the caller is never under-quoted.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, amm.ErrInsufficientOutputAmount
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, amm.ErrInsufficientLiquidity
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, amm.ErrInsufficientLiquidity
	}
	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, big1000)
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big997)
	return fixedpoint.CeilDiv(numerator, denominator), nil
}

// GetAmountsOut walks the path forward, quoting every hop against current
// reserves. amounts[0] is amountIn, amounts[len-1] the final output.
func (r *Router) GetAmountsOut(amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := r.orientedReserves(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		amounts[i+1], err = GetAmountOut(amounts[i], reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

// GetAmountsIn walks the path backward from the desired output, quoting the
// required input at every hop.
func (r *Router) GetAmountsIn(amountOut *big.Int, path []common.Address) ([]*big.Int, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	amounts := make([]*big.Int, len(path))
	amounts[len(path)-1] = new(big.Int).Set(amountOut)
	for i := len(path) - 1; i > 0; i-- {
		reserveIn, reserveOut, err := r.orientedReserves(path[i-1], path[i])
		if err != nil {
			return nil, err
		}
		amounts[i-1], err = GetAmountIn(amounts[i], reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

// validatePath requires at least two assets with no repeats: a path that
// revisits an asset would be quoted against reserves its own earlier hops
// invalidate.
func validatePath(path []common.Address) error {
	if len(path) < 2 {
		return ErrInvalidPath
	}
	seen := make(map[common.Address]struct{}, len(path))
	for _, asset := range path {
		if _, dup := seen[asset]; dup {
			return ErrInvalidPath
		}
		seen[asset] = struct{}{}
	}
	return nil
}

// orientedReserves resolves the pair for a hop and returns its reserves in
// (input, output) order.
func (r *Router) orientedReserves(tokenIn, tokenOut common.Address) (*big.Int, *big.Int, error) {
	pair, err := r.registry.Pair(tokenIn, tokenOut)
	if err != nil {
		return nil, nil, err
	}
	reserve0, reserve1, _ := pair.GetReserves()
	if tokenIn == pair.Token0() {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}
