// Package amm implements the constant-product pair engine: reserve
// accounting, liquidity shares, swap pricing, protocol-fee accrual, and the
// cumulative price oracle feed.
package amm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"swapcore/internal/fixedpoint"
	"swapcore/internal/model"
)

var (
	ErrReentrant                    = errors.New("pair is locked")
	ErrInsufficientInitialLiquidity = errors.New("insufficient initial liquidity")
	ErrInsufficientLiquidityMinted  = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidityBurned  = errors.New("insufficient liquidity burned")
	ErrInsufficientInputAmount      = errors.New("insufficient input amount")
	ErrInsufficientOutputAmount     = errors.New("insufficient output amount")
	ErrInsufficientLiquidity        = errors.New("insufficient liquidity")
	ErrInsufficientShares           = errors.New("insufficient share balance")
	ErrInvalidRecipient             = errors.New("invalid recipient")
	ErrInvariantViolation           = errors.New("constant product invariant violated")
	ErrReserveOverflow              = errors.New("reserve exceeds maximum")
	ErrSameToken                    = errors.New("pair tokens must differ")
	ErrTokenOrder                   = errors.New("pair tokens not canonically ordered")
)

// MinimumLiquidity is the share amount permanently locked on the first
// deposit, held by the zero address.
const MinimumLiquidity = 1000

// Fee is 0.3%: the pool keeps 3 of every 1000 input units.
const (
	feeNumerator   = 997
	feeDenominator = 1000
)

// AssetLedger is the transfer capability the pair consumes. Implementations
// must apply a transfer fully or not at all.
type AssetLedger interface {
	BalanceOf(asset, holder common.Address) *big.Int
	Transfer(asset, from, to common.Address, amount *big.Int) error
}

// FeeToFunc reports the protocol-fee recipient, if one is configured.
type FeeToFunc func() (common.Address, bool)

// Recorder receives pair state-change events. Seq is assigned by the sink.
type Recorder interface {
	Record(event model.Event)
}

// Config carries the dependencies of a pair.
type Config struct {
	Address  common.Address
	Token0   common.Address
	Token1   common.Address
	Ledger   AssetLedger
	FeeTo    FeeToFunc
	Recorder Recorder
	Logger   *zap.Logger
	Now      func() uint64
}

// Pair owns the reserves and liquidity shares of one token pair. All state
// mutation goes through its methods under a fail-fast exclusive lock.
type Pair struct {
	address common.Address
	token0  common.Address
	token1  common.Address

	ledger   AssetLedger
	feeTo    FeeToFunc
	recorder Recorder
	logger   *zap.Logger
	now      func() uint64

	locked atomic.Bool

	reserve0   *big.Int
	reserve1   *big.Int
	lastUpdate uint64

	price0Cumulative *uint256.Int
	price1Cumulative *uint256.Int

	kLast *big.Int

	totalShares   *big.Int
	shareBalances map[common.Address]*big.Int
}

// New builds a pair. Token0 must sort strictly below token1.
func New(cfg Config) (*Pair, error) {
	if cfg.Token0 == cfg.Token1 {
		return nil, ErrSameToken
	}
	if bytes.Compare(cfg.Token0.Bytes(), cfg.Token1.Bytes()) >= 0 {
		return nil, ErrTokenOrder
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		return nil, fmt.Errorf("clock is nil")
	}
	if cfg.FeeTo == nil {
		cfg.FeeTo = func() (common.Address, bool) { return common.Address{}, false }
	}

	return &Pair{
		address:          cfg.Address,
		token0:           cfg.Token0,
		token1:           cfg.Token1,
		ledger:           cfg.Ledger,
		feeTo:            cfg.FeeTo,
		recorder:         cfg.Recorder,
		logger:           cfg.Logger,
		now:              cfg.Now,
		reserve0:         new(big.Int),
		reserve1:         new(big.Int),
		price0Cumulative: new(uint256.Int),
		price1Cumulative: new(uint256.Int),
		kLast:            new(big.Int),
		totalShares:      new(big.Int),
		shareBalances:    make(map[common.Address]*big.Int),
	}, nil
}

// Address returns the pair's own custody address.
func (p *Pair) Address() common.Address { return p.address }

// Token0 returns the lower-ordered token of the pair.
func (p *Pair) Token0() common.Address { return p.token0 }

// Token1 returns the higher-ordered token of the pair.
func (p *Pair) Token1() common.Address { return p.token1 }

// GetReserves returns the tracked reserves and the last accumulator update
// timestamp.
func (p *Pair) GetReserves() (reserve0, reserve1 *big.Int, lastUpdate uint64) {
	return new(big.Int).Set(p.reserve0), new(big.Int).Set(p.reserve1), p.lastUpdate
}

// PriceCumulatives returns the wrapping UQ112.112 price accumulators.
// Consumers derive a TWAP from the difference of two observations.
func (p *Pair) PriceCumulatives() (price0, price1 *uint256.Int) {
	return new(uint256.Int).Set(p.price0Cumulative), new(uint256.Int).Set(p.price1Cumulative)
}

// TotalShares returns the outstanding liquidity share supply.
func (p *Pair) TotalShares() *big.Int { return new(big.Int).Set(p.totalShares) }

// SharesOf returns holder's liquidity share balance.
func (p *Pair) SharesOf(holder common.Address) *big.Int {
	if bal := p.shareBalances[holder]; bal != nil {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// lock acquires the pair's exclusive lock, failing immediately when it is
// already held. It never blocks.
func (p *Pair) lock() error {
	if !p.locked.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	return nil
}

func (p *Pair) unlock() { p.locked.Store(false) }

// Mint credits liquidity shares for token amounts already transferred into
// the pair's custody and returns the minted share amount.
func (p *Pair) Mint(to common.Address) (*big.Int, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.unlock()

	balance0 := p.ledger.BalanceOf(p.token0, p.address)
	balance1 := p.ledger.BalanceOf(p.token1, p.address)
	amount0 := new(big.Int).Sub(balance0, p.reserve0)
	amount1 := new(big.Int).Sub(balance1, p.reserve1)

	feeTo, feeShares, feeOn := p.pendingProtocolFee()
	supply := p.totalShares
	if feeShares != nil {
		supply = new(big.Int).Add(supply, feeShares)
	}

	first := supply.Sign() == 0
	var minted *big.Int
	if first {
		minted = fixedpoint.Sqrt(new(big.Int).Mul(amount0, amount1))
		minted.Sub(minted, big.NewInt(MinimumLiquidity))
		if minted.Sign() <= 0 {
			return nil, ErrInsufficientInitialLiquidity
		}
	} else {
		byAmount0 := fixedpoint.MulDiv(amount0, supply, p.reserve0)
		byAmount1 := fixedpoint.MulDiv(amount1, supply, p.reserve1)
		minted = minBig(byAmount0, byAmount1)
		if minted.Sign() <= 0 {
			return nil, ErrInsufficientLiquidityMinted
		}
	}

	// State changes only after every failure check has passed.
	p.applyProtocolFee(feeTo, feeShares, feeOn)
	if first {
		// Permanently locked; no one holds the zero address.
		p.mintShares(common.Address{}, big.NewInt(MinimumLiquidity))
	}
	p.mintShares(to, minted)

	if err := p.update(balance0, balance1); err != nil {
		return nil, err
	}
	if feeOn {
		p.kLast.Mul(p.reserve0, p.reserve1)
	}

	p.emit(model.EventMint, model.MintData{
		Recipient: to.Hex(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
		Shares:    minted.String(),
	})
	p.logger.Debug("mint",
		zap.String("pair", p.address.Hex()),
		zap.String("shares", minted.String()),
	)
	return new(big.Int).Set(minted), nil
}

// Burn redeems the shares held in the pair's own custody and pays both
// tokens out to the recipient. Returns the paid amounts.
func (p *Pair) Burn(to common.Address) (*big.Int, *big.Int, error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()

	shares := p.SharesOf(p.address)
	if shares.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidityBurned
	}

	feeTo, feeShares, feeOn := p.pendingProtocolFee()
	supply := p.totalShares
	if feeShares != nil {
		supply = new(big.Int).Add(supply, feeShares)
	}

	// Floor division: rounding dust stays in the pool.
	amount0 := fixedpoint.MulDiv(shares, p.reserve0, supply)
	amount1 := fixedpoint.MulDiv(shares, p.reserve1, supply)
	if amount0.Sign() == 0 || amount1.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidityBurned
	}

	p.applyProtocolFee(feeTo, feeShares, feeOn)
	if err := p.burnShares(p.address, shares); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(p.token0, p.address, to, amount0); err != nil {
		return nil, nil, fmt.Errorf("transfer token0: %w", err)
	}
	if err := p.ledger.Transfer(p.token1, p.address, to, amount1); err != nil {
		return nil, nil, fmt.Errorf("transfer token1: %w", err)
	}

	balance0 := p.ledger.BalanceOf(p.token0, p.address)
	balance1 := p.ledger.BalanceOf(p.token1, p.address)
	if err := p.update(balance0, balance1); err != nil {
		return nil, nil, err
	}
	if feeOn {
		p.kLast.Mul(p.reserve0, p.reserve1)
	}

	p.emit(model.EventBurn, model.BurnData{
		Recipient: to.Hex(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
		Shares:    shares.String(),
	})
	p.logger.Debug("burn",
		zap.String("pair", p.address.Hex()),
		zap.String("shares", shares.String()),
	)
	return amount0, amount1, nil
}

// Swap pays out the requested amounts against input already pushed into the
// pair's custody, enforcing the fee-adjusted constant-product invariant.
func (p *Pair) Swap(amount0Out, amount1Out *big.Int, to common.Address) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	if amount0Out == nil {
		amount0Out = new(big.Int)
	}
	if amount1Out == nil {
		amount1Out = new(big.Int)
	}
	if amount0Out.Sign() < 0 || amount1Out.Sign() < 0 {
		return ErrInsufficientOutputAmount
	}
	if amount0Out.Sign() == 0 && amount1Out.Sign() == 0 {
		return ErrInsufficientOutputAmount
	}
	if amount0Out.Cmp(p.reserve0) >= 0 || amount1Out.Cmp(p.reserve1) >= 0 {
		return ErrInsufficientLiquidity
	}
	if to == (common.Address{}) || to == p.token0 || to == p.token1 {
		return ErrInvalidRecipient
	}

	// Post-payout balances. Input is whatever was pushed in above reserve.
	balance0 := p.ledger.BalanceOf(p.token0, p.address)
	balance1 := p.ledger.BalanceOf(p.token1, p.address)
	balance0.Sub(balance0, amount0Out)
	balance1.Sub(balance1, amount1Out)

	amount0In := inputAmount(balance0, p.reserve0, amount0Out)
	amount1In := inputAmount(balance1, p.reserve1, amount1Out)
	if amount0In.Sign() == 0 && amount1In.Sign() == 0 {
		return ErrInsufficientInputAmount
	}

	// balance * 1000 - 3 * amountIn on both sides must keep the product at
	// or above the pre-swap product scaled by 1000^2.
	adjusted0 := new(big.Int).Mul(balance0, big.NewInt(feeDenominator))
	adjusted0.Sub(adjusted0, new(big.Int).Mul(amount0In, big.NewInt(feeDenominator-feeNumerator)))
	adjusted1 := new(big.Int).Mul(balance1, big.NewInt(feeDenominator))
	adjusted1.Sub(adjusted1, new(big.Int).Mul(amount1In, big.NewInt(feeDenominator-feeNumerator)))

	before := new(big.Int).Mul(p.reserve0, p.reserve1)
	before.Mul(before, big.NewInt(feeDenominator*feeDenominator))
	if new(big.Int).Mul(adjusted0, adjusted1).Cmp(before) < 0 {
		return ErrInvariantViolation
	}

	if err := p.ledger.Transfer(p.token0, p.address, to, amount0Out); err != nil {
		return fmt.Errorf("transfer token0: %w", err)
	}
	if err := p.ledger.Transfer(p.token1, p.address, to, amount1Out); err != nil {
		return fmt.Errorf("transfer token1: %w", err)
	}

	if err := p.update(balance0, balance1); err != nil {
		return err
	}

	p.emit(model.EventSwap, model.SwapData{
		Recipient:  to.Hex(),
		Amount0In:  amount0In.String(),
		Amount1In:  amount1In.String(),
		Amount0Out: amount0Out.String(),
		Amount1Out: amount1Out.String(),
	})
	p.logger.Debug("swap",
		zap.String("pair", p.address.Hex()),
		zap.String("amount0_out", amount0Out.String()),
		zap.String("amount1_out", amount1Out.String()),
	)
	return nil
}

// Skim transfers any excess of actual custody balance over tracked reserves
// to the recipient.
func (p *Pair) Skim(to common.Address) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	if to == (common.Address{}) || to == p.token0 || to == p.token1 {
		return ErrInvalidRecipient
	}

	excess0 := new(big.Int).Sub(p.ledger.BalanceOf(p.token0, p.address), p.reserve0)
	excess1 := new(big.Int).Sub(p.ledger.BalanceOf(p.token1, p.address), p.reserve1)
	if excess0.Sign() > 0 {
		if err := p.ledger.Transfer(p.token0, p.address, to, excess0); err != nil {
			return fmt.Errorf("transfer token0: %w", err)
		}
	}
	if excess1.Sign() > 0 {
		if err := p.ledger.Transfer(p.token1, p.address, to, excess1); err != nil {
			return fmt.Errorf("transfer token1: %w", err)
		}
	}
	return nil
}

// Sync resets the tracked reserves to the actual custody balances.
func (p *Pair) Sync() error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	balance0 := p.ledger.BalanceOf(p.token0, p.address)
	balance1 := p.ledger.BalanceOf(p.token1, p.address)
	return p.update(balance0, balance1)
}

// TransferShares moves liquidity shares between holders. Moving shares to
// the pair's own address stages them for Burn.
func (p *Pair) TransferShares(from, to common.Address, amount *big.Int) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	if amount == nil || amount.Sign() <= 0 {
		return ErrInsufficientShares
	}
	fromBal := p.shareBalances[from]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	fromBal.Sub(fromBal, amount)
	toBal := p.shareBalances[to]
	if toBal == nil {
		toBal = new(big.Int)
		p.shareBalances[to] = toBal
	}
	toBal.Add(toBal, amount)
	return nil
}

// update advances the price accumulators for the elapsed interval, then
// adopts the given balances as the new reserves.
func (p *Pair) update(balance0, balance1 *big.Int) error {
	if balance0.Cmp(fixedpoint.MaxReserve) > 0 || balance1.Cmp(fixedpoint.MaxReserve) > 0 {
		return ErrReserveOverflow
	}

	now := p.now()
	if now > p.lastUpdate && p.reserve0.Sign() > 0 && p.reserve1.Sign() > 0 {
		elapsed := uint256.NewInt(now - p.lastUpdate)
		// Accumulators wrap on overflow; consumers subtract observations.
		p.price0Cumulative.Add(p.price0Cumulative,
			new(uint256.Int).Mul(fixedpoint.PriceUQ112(p.reserve1, p.reserve0), elapsed))
		p.price1Cumulative.Add(p.price1Cumulative,
			new(uint256.Int).Mul(fixedpoint.PriceUQ112(p.reserve0, p.reserve1), elapsed))
	}
	p.reserve0.Set(balance0)
	p.reserve1.Set(balance1)
	p.lastUpdate = now

	p.emit(model.EventSync, model.SyncData{
		Reserve0: p.reserve0.String(),
		Reserve1: p.reserve1.String(),
	})
	return nil
}

// pendingProtocolFee computes the fee shares owed for sqrt(k) growth since
// the last liquidity event: 1/6 of the trading fee. It mutates nothing;
// callers apply the result once all failure checks have passed, so a failed
// operation never leaves fee shares behind.
func (p *Pair) pendingProtocolFee() (common.Address, *big.Int, bool) {
	feeTo, feeOn := p.feeTo()
	if !feeOn || p.kLast.Sign() == 0 {
		return feeTo, nil, feeOn
	}

	rootK := fixedpoint.Sqrt(new(big.Int).Mul(p.reserve0, p.reserve1))
	rootKLast := fixedpoint.Sqrt(p.kLast)
	if rootK.Cmp(rootKLast) <= 0 {
		return feeTo, nil, true
	}
	numerator := new(big.Int).Sub(rootK, rootKLast)
	numerator.Mul(numerator, p.totalShares)
	denominator := new(big.Int).Mul(rootK, big.NewInt(5))
	denominator.Add(denominator, rootKLast)
	return feeTo, numerator.Div(numerator, denominator), true
}

// applyProtocolFee commits a pending fee computation: mints the owed shares
// when accrual is on, clears kLast when it is off.
func (p *Pair) applyProtocolFee(to common.Address, shares *big.Int, feeOn bool) {
	if !feeOn {
		p.kLast.SetInt64(0)
		return
	}
	if shares != nil && shares.Sign() > 0 {
		p.mintShares(to, shares)
	}
}

func (p *Pair) mintShares(to common.Address, amount *big.Int) {
	bal := p.shareBalances[to]
	if bal == nil {
		bal = new(big.Int)
		p.shareBalances[to] = bal
	}
	bal.Add(bal, amount)
	p.totalShares.Add(p.totalShares, amount)
}

func (p *Pair) burnShares(from common.Address, amount *big.Int) error {
	bal := p.shareBalances[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	bal.Sub(bal, amount)
	p.totalShares.Sub(p.totalShares, amount)
	return nil
}

func (p *Pair) emit(name string, data any) {
	if p.recorder == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		p.logger.Warn("marshal event", zap.String("name", name), zap.Error(err))
		return
	}
	p.recorder.Record(model.Event{
		Timestamp: p.now(),
		Pair:      p.address.Hex(),
		Name:      name,
		Data:      payload,
	})
}

// inputAmount derives the implied input from the post-payout balance: the
// amount above what the reserve would be after a pure payout.
func inputAmount(balance, reserve, amountOut *big.Int) *big.Int {
	expected := new(big.Int).Sub(reserve, amountOut)
	if balance.Cmp(expected) > 0 {
		return new(big.Int).Sub(balance, expected)
	}
	return new(big.Int)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}
