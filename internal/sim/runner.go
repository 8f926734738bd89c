// Package sim drives a deterministic trading session through the engine:
// it builds a ledger, registry, and router, seeds pools, and replays a
// randomized sequence of swaps and liquidity operations.
package sim

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapcore/internal/registry"
	"swapcore/internal/router"
	"swapcore/internal/storage"
	"swapcore/internal/token"
)

// RunConfig holds runtime settings for the simulation.
type RunConfig struct {
	Tokens       int
	Traders      int
	Swaps        int
	Seed         int64
	InitialMint  *big.Int
	FeeRecipient common.Address
}

// Summary reports what a run did.
type Summary struct {
	Tokens        int
	Pools         int
	SwapsExecuted int
	SwapsFailed   int
	Events        int
}

// Runner owns the simulated world.
type Runner struct {
	cfg       RunConfig
	ledger    *token.Ledger
	registry  *registry.Registry
	router    *router.Router
	collector *storage.Collector
	logger    *zap.Logger
	rng       *rand.Rand

	clock   uint64
	tokens  []common.Address
	traders []common.Address
	lp      common.Address
}

// NewRunner builds a Runner and its engine dependencies.
func NewRunner(cfg RunConfig, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Tokens < 2 {
		return nil, fmt.Errorf("at least two tokens are required")
	}
	if cfg.Traders < 1 {
		return nil, fmt.Errorf("at least one trader is required")
	}
	if cfg.InitialMint == nil || cfg.InitialMint.Sign() <= 0 {
		return nil, fmt.Errorf("initial mint must be positive")
	}

	r := &Runner{
		cfg:       cfg,
		ledger:    token.NewLedger(),
		collector: storage.NewCollector(),
		logger:    logger,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		clock:     1,
		lp:        common.BigToAddress(big.NewInt(0x1000)),
	}

	reg, err := registry.New(registry.Config{
		Ledger:   r.ledger,
		Recorder: r.collector,
		Logger:   logger,
		Now:      r.now,
	})
	if err != nil {
		return nil, err
	}
	r.registry = reg
	if cfg.FeeRecipient != (common.Address{}) {
		reg.SetFeeTo(cfg.FeeRecipient)
	}

	rt, err := router.New(router.Config{
		Registry: reg,
		Ledger:   r.ledger,
		Logger:   logger,
		Now:      r.now,
	})
	if err != nil {
		return nil, err
	}
	r.router = rt

	for i := 0; i < cfg.Tokens; i++ {
		r.tokens = append(r.tokens, common.BigToAddress(big.NewInt(int64(0xA0+i))))
	}
	for i := 0; i < cfg.Traders; i++ {
		r.traders = append(r.traders, common.BigToAddress(big.NewInt(int64(0x2000+i))))
	}
	return r, nil
}

// Collector returns the event collector feeding the sinks.
func (r *Runner) Collector() *storage.Collector { return r.collector }

// Registry returns the pair registry of the simulated world.
func (r *Runner) Registry() *registry.Registry { return r.registry }

// now is the logical clock: every operation advances time by one second so
// accumulators and deadlines behave deterministically.
func (r *Runner) now() uint64 { return r.clock }

func (r *Runner) tick() { r.clock++ }

// Run executes the session: fund, seed pools, trade, withdraw.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	summary.Tokens = len(r.tokens)

	if err := r.fund(); err != nil {
		return summary, err
	}
	if err := r.seedPools(); err != nil {
		return summary, err
	}
	summary.Pools = len(r.registry.AllPairs())

	for i := 0; i < r.cfg.Swaps; i++ {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}
		if err := r.randomSwap(); err != nil {
			summary.SwapsFailed++
			r.logger.Debug("swap rejected", zap.Int("swap", i), zap.Error(err))
		} else {
			summary.SwapsExecuted++
		}
		r.tick()
	}

	if err := r.withdrawSome(); err != nil {
		return summary, err
	}

	summary.Events = r.collector.Len()
	r.logger.Info("simulation finished",
		zap.Int("pools", summary.Pools),
		zap.Int("swaps_executed", summary.SwapsExecuted),
		zap.Int("swaps_failed", summary.SwapsFailed),
		zap.Int("events", summary.Events),
	)
	return summary, nil
}

func (r *Runner) fund() error {
	holders := append([]common.Address{r.lp}, r.traders...)
	for _, asset := range r.tokens {
		for _, holder := range holders {
			if err := r.ledger.Mint(asset, holder, r.cfg.InitialMint); err != nil {
				return fmt.Errorf("fund %s: %w", holder.Hex(), err)
			}
		}
	}
	return nil
}

// seedPools creates a pool for every consecutive token pair so any token is
// reachable from any other through a path.
func (r *Runner) seedPools() error {
	// Half the LP's balance per side leaves room for later deposits.
	amount := new(big.Int).Div(r.cfg.InitialMint, big.NewInt(2))
	perPool := new(big.Int).Div(amount, big.NewInt(int64(len(r.tokens))))

	for i := 0; i < len(r.tokens)-1; i++ {
		_, _, _, err := r.router.AddLiquidity(
			r.tokens[i], r.tokens[i+1],
			perPool, perPool,
			nil, nil,
			r.lp, r.lp,
			r.clock+10,
		)
		if err != nil {
			return fmt.Errorf("seed pool %d: %w", i, err)
		}
		r.tick()
	}
	return nil
}

func (r *Runner) randomSwap() error {
	trader := r.traders[r.rng.Intn(len(r.traders))]

	// Pick a random contiguous path of 2 or 3 tokens, forward or reverse.
	hops := 1 + r.rng.Intn(2)
	if hops >= len(r.tokens) {
		hops = len(r.tokens) - 1
	}
	start := r.rng.Intn(len(r.tokens) - hops)
	path := make([]common.Address, 0, hops+1)
	for i := start; i <= start+hops; i++ {
		path = append(path, r.tokens[i])
	}
	if r.rng.Intn(2) == 0 {
		for left, right := 0, len(path)-1; left < right; left, right = left+1, right-1 {
			path[left], path[right] = path[right], path[left]
		}
	}

	balance := r.ledger.BalanceOf(path[0], trader)
	if balance.Sign() == 0 {
		return fmt.Errorf("trader has no %s", path[0].Hex())
	}
	// Up to 1% of the trader's balance per swap.
	amountIn := new(big.Int).Div(balance, big.NewInt(int64(100+r.rng.Intn(900))))
	if amountIn.Sign() == 0 {
		amountIn = big.NewInt(1)
	}

	_, err := r.router.SwapExactIn(amountIn, nil, path, trader, trader, r.clock+10)
	return err
}

// withdrawSome removes a tenth of the LP's shares from every pool.
func (r *Runner) withdrawSome() error {
	for _, pair := range r.registry.AllPairs() {
		shares := pair.SharesOf(r.lp)
		part := new(big.Int).Div(shares, big.NewInt(10))
		if part.Sign() == 0 {
			continue
		}
		_, _, err := r.router.RemoveLiquidity(
			pair.Token0(), pair.Token1(),
			part,
			nil, nil,
			r.lp, r.lp,
			r.clock+10,
		)
		if err != nil {
			return fmt.Errorf("withdraw from %s: %w", pair.Address().Hex(), err)
		}
		r.tick()
	}
	return nil
}
