// Package router composes pairs into liquidity operations and multi-hop
// swaps. It holds no pool state of its own: pairs are resolved through the
// registry per call, priced against a single reserve snapshot, and executed
// hop by hop as one atomic unit.
package router

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapcore/internal/amm"
	"swapcore/internal/registry"
	"swapcore/internal/token"
)

var (
	ErrExpired              = errors.New("deadline expired")
	ErrInvalidPath          = errors.New("invalid swap path")
	ErrInsufficientAAmount  = errors.New("insufficient token A amount")
	ErrInsufficientBAmount  = errors.New("insufficient token B amount")
	ErrExcessiveInputAmount = errors.New("excessive input amount")
)

// Config carries the router's dependencies.
type Config struct {
	Registry *registry.Registry
	Ledger   *token.Ledger
	Logger   *zap.Logger
	Now      func() uint64
}

// Router orchestrates liquidity operations and swaps across pairs.
type Router struct {
	registry *registry.Registry
	ledger   *token.Ledger
	logger   *zap.Logger
	now      func() uint64
}

// New builds a router.
func New(cfg Config) (*Router, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if cfg.Now == nil {
		return nil, fmt.Errorf("clock is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Router{
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}, nil
}

func (r *Router) checkDeadline(deadline uint64) error {
	if r.now() > deadline {
		return ErrExpired
	}
	return nil
}

// AddLiquidity deposits up to the desired amounts of both tokens at the
// current reserve ratio, creating the pair if needed, and mints shares to
// the recipient. Returns the deposited amounts and the minted shares.
func (r *Router) AddLiquidity(
	tokenA, tokenB common.Address,
	amountADesired, amountBDesired *big.Int,
	amountAMin, amountBMin *big.Int,
	from, to common.Address,
	deadline uint64,
) (*big.Int, *big.Int, *big.Int, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, nil, nil, err
	}

	pair, err := r.registry.Pair(tokenA, tokenB)
	if errors.Is(err, registry.ErrPairNotExists) {
		pair, err = r.registry.CreatePair(tokenA, tokenB)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	amountA, amountB, err := r.optimalAmounts(pair, tokenA, amountADesired, amountBDesired, amountAMin, amountBMin)
	if err != nil {
		return nil, nil, nil, err
	}

	cp, err := r.checkpoint(pair)
	if err != nil {
		return nil, nil, nil, err
	}
	liquidity, err := r.deposit(pair, tokenA, tokenB, amountA, amountB, from, to)
	if err != nil {
		r.rollback(cp)
		return nil, nil, nil, err
	}

	r.logger.Debug("liquidity added",
		zap.String("pair", pair.Address().Hex()),
		zap.String("amount_a", amountA.String()),
		zap.String("amount_b", amountB.String()),
		zap.String("shares", liquidity.String()),
	)
	return amountA, amountB, liquidity, nil
}

func (r *Router) deposit(pair *amm.Pair, tokenA, tokenB common.Address, amountA, amountB *big.Int, from, to common.Address) (*big.Int, error) {
	if err := r.ledger.Transfer(tokenA, from, pair.Address(), amountA); err != nil {
		return nil, fmt.Errorf("transfer token A: %w", err)
	}
	if err := r.ledger.Transfer(tokenB, from, pair.Address(), amountB); err != nil {
		return nil, fmt.Errorf("transfer token B: %w", err)
	}
	return pair.Mint(to)
}

// optimalAmounts picks the deposit pair: the desired amounts for an empty
// pool, otherwise the larger proportional fit within both desired amounts.
func (r *Router) optimalAmounts(pair *amm.Pair, tokenA common.Address, amountADesired, amountBDesired, amountAMin, amountBMin *big.Int) (*big.Int, *big.Int, error) {
	reserve0, reserve1, _ := pair.GetReserves()
	reserveA, reserveB := reserve0, reserve1
	if tokenA != pair.Token0() {
		reserveA, reserveB = reserve1, reserve0
	}

	if reserveA.Sign() == 0 && reserveB.Sign() == 0 {
		return new(big.Int).Set(amountADesired), new(big.Int).Set(amountBDesired), nil
	}

	amountBOptimal, err := Quote(amountADesired, reserveA, reserveB)
	if err != nil {
		return nil, nil, err
	}
	if amountBOptimal.Cmp(amountBDesired) <= 0 {
		if amountBMin != nil && amountBOptimal.Cmp(amountBMin) < 0 {
			return nil, nil, ErrInsufficientBAmount
		}
		return new(big.Int).Set(amountADesired), amountBOptimal, nil
	}

	amountAOptimal, err := Quote(amountBDesired, reserveB, reserveA)
	if err != nil {
		return nil, nil, err
	}
	if amountAOptimal.Cmp(amountADesired) > 0 {
		return nil, nil, ErrInsufficientAAmount
	}
	if amountAMin != nil && amountAOptimal.Cmp(amountAMin) < 0 {
		return nil, nil, ErrInsufficientAAmount
	}
	return amountAOptimal, new(big.Int).Set(amountBDesired), nil
}

// RemoveLiquidity burns the given share amount and pays both underlying
// tokens to the recipient, enforcing the slippage floors.
func (r *Router) RemoveLiquidity(
	tokenA, tokenB common.Address,
	shares *big.Int,
	amountAMin, amountBMin *big.Int,
	from, to common.Address,
	deadline uint64,
) (*big.Int, *big.Int, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, amm.ErrInsufficientLiquidity
	}

	pair, err := r.registry.Pair(tokenA, tokenB)
	if err != nil {
		return nil, nil, err
	}

	cp, err := r.checkpoint(pair)
	if err != nil {
		return nil, nil, err
	}
	amountA, amountB, err := r.withdraw(pair, tokenA, shares, amountAMin, amountBMin, from, to)
	if err != nil {
		r.rollback(cp)
		return nil, nil, err
	}

	r.logger.Debug("liquidity removed",
		zap.String("pair", pair.Address().Hex()),
		zap.String("shares", shares.String()),
	)
	return amountA, amountB, nil
}

func (r *Router) withdraw(pair *amm.Pair, tokenA common.Address, shares, amountAMin, amountBMin *big.Int, from, to common.Address) (*big.Int, *big.Int, error) {
	if err := pair.TransferShares(from, pair.Address(), shares); err != nil {
		return nil, nil, err
	}
	amount0, amount1, err := pair.Burn(to)
	if err != nil {
		return nil, nil, err
	}

	amountA, amountB := amount0, amount1
	if tokenA != pair.Token0() {
		amountA, amountB = amount1, amount0
	}
	if amountAMin != nil && amountA.Cmp(amountAMin) < 0 {
		return nil, nil, ErrInsufficientAAmount
	}
	if amountBMin != nil && amountB.Cmp(amountBMin) < 0 {
		return nil, nil, ErrInsufficientBAmount
	}
	return amountA, amountB, nil
}

// SwapExactIn swaps a fixed input along the path, requiring at least
// amountOutMin of the final token. Returns the per-hop amounts.
func (r *Router) SwapExactIn(
	amountIn, amountOutMin *big.Int,
	path []common.Address,
	from, to common.Address,
	deadline uint64,
) ([]*big.Int, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, amm.ErrInsufficientInputAmount
	}

	amounts, err := r.GetAmountsOut(amountIn, path)
	if err != nil {
		return nil, err
	}
	if amountOutMin != nil && amounts[len(amounts)-1].Cmp(amountOutMin) < 0 {
		return nil, amm.ErrInsufficientOutputAmount
	}

	if err := r.executePath(amounts, path, from, to); err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapExactOut swaps along the path to obtain a fixed output, requiring at
// most amountInMax of the first token. Returns the per-hop amounts.
func (r *Router) SwapExactOut(
	amountOut, amountInMax *big.Int,
	path []common.Address,
	from, to common.Address,
	deadline uint64,
) ([]*big.Int, error) {
	if err := r.checkDeadline(deadline); err != nil {
		return nil, err
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, amm.ErrInsufficientOutputAmount
	}

	amounts, err := r.GetAmountsIn(amountOut, path)
	if err != nil {
		return nil, err
	}
	if amountInMax != nil && amounts[0].Cmp(amountInMax) > 0 {
		return nil, ErrExcessiveInputAmount
	}

	if err := r.executePath(amounts, path, from, to); err != nil {
		return nil, err
	}
	return amounts, nil
}

// executePath runs the precomputed amounts chain: input into the first
// pair's custody, then each hop pays its output into the next pair (or the
// final recipient). Any hop failure rolls the whole chain back.
func (r *Router) executePath(amounts []*big.Int, path []common.Address, from, to common.Address) error {
	pairs := make([]*amm.Pair, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		pair, err := r.registry.Pair(path[i], path[i+1])
		if err != nil {
			return err
		}
		pairs[i] = pair
	}

	cp, err := r.checkpoint(pairs...)
	if err != nil {
		return err
	}
	if err := r.runHops(amounts, path, pairs, from, to); err != nil {
		r.rollback(cp)
		return err
	}

	r.logger.Debug("path executed",
		zap.Int("hops", len(pairs)),
		zap.String("amount_in", amounts[0].String()),
		zap.String("amount_out", amounts[len(amounts)-1].String()),
	)
	return nil
}

func (r *Router) runHops(amounts []*big.Int, path []common.Address, pairs []*amm.Pair, from, to common.Address) error {
	if err := r.ledger.Transfer(path[0], from, pairs[0].Address(), amounts[0]); err != nil {
		return fmt.Errorf("transfer input: %w", err)
	}
	for i, pair := range pairs {
		amount0Out, amount1Out := new(big.Int), new(big.Int)
		if path[i] == pair.Token0() {
			amount1Out = amounts[i+1]
		} else {
			amount0Out = amounts[i+1]
		}

		recipient := to
		if i < len(pairs)-1 {
			recipient = pairs[i+1].Address()
		}
		if err := pair.Swap(amount0Out, amount1Out, recipient); err != nil {
			return fmt.Errorf("hop %d: %w", i, err)
		}
	}
	return nil
}

// checkpoint captures the ledger and the given pairs so a failed multi-step
// operation can be undone as a unit.
type checkpoint struct {
	ledger *token.Snapshot
	pairs  []*amm.Pair
	states []*amm.State
}

func (r *Router) checkpoint(pairs ...*amm.Pair) (*checkpoint, error) {
	cp := &checkpoint{
		ledger: r.ledger.Snapshot(),
		pairs:  pairs,
		states: make([]*amm.State, len(pairs)),
	}
	for i, pair := range pairs {
		state, err := pair.Snapshot()
		if err != nil {
			return nil, err
		}
		cp.states[i] = state
	}
	return cp, nil
}

func (r *Router) rollback(cp *checkpoint) {
	for i := len(cp.pairs) - 1; i >= 0; i-- {
		if err := cp.pairs[i].Restore(cp.states[i]); err != nil {
			r.logger.Error("rollback pair failed",
				zap.String("pair", cp.pairs[i].Address().Hex()),
				zap.Error(err),
			)
		}
	}
	r.ledger.Restore(cp.ledger)
}
