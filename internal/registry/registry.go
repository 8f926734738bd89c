// Package registry resolves and creates pairs: one pair per unordered token
// pair, with a deterministic custody address and the protocol-fee recipient
// setting.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"swapcore/internal/amm"
	"swapcore/internal/model"
)

var (
	ErrPairExists      = errors.New("pair already exists")
	ErrPairNotExists   = errors.New("pair does not exist")
	ErrIdenticalTokens = errors.New("identical token addresses")
	ErrZeroToken       = errors.New("zero token address")
)

// Config carries the dependencies shared by every pair the registry creates.
type Config struct {
	Ledger   amm.AssetLedger
	Recorder amm.Recorder
	Logger   *zap.Logger
	Now      func() uint64
}

// Registry creates pairs and resolves them by token pair.
type Registry struct {
	cfg Config

	mu    sync.RWMutex
	pairs map[string]*amm.Pair
	order []*amm.Pair
	infos []model.PairInfo

	feeMu sync.RWMutex
	feeTo common.Address
	feeOn bool
}

// New builds an empty registry.
func New(cfg Config) (*Registry, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if cfg.Now == nil {
		return nil, fmt.Errorf("clock is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Registry{
		cfg:   cfg,
		pairs: make(map[string]*amm.Pair),
	}, nil
}

// SortTokens returns the two addresses in canonical order.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, common.Address{}, ErrIdenticalTokens
	}
	if tokenA == (common.Address{}) || tokenB == (common.Address{}) {
		return common.Address{}, common.Address{}, ErrZeroToken
	}
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) < 0 {
		return tokenA, tokenB, nil
	}
	return tokenB, tokenA, nil
}

// PairAddress derives the deterministic custody address for a token pair
// from the keccak256 hash of the sorted token addresses.
func PairAddress(token0, token1 common.Address) common.Address {
	hash := crypto.Keccak256(token0.Bytes(), token1.Bytes())
	return common.BytesToAddress(hash[12:])
}

// CreatePair creates the pair for (tokenA, tokenB). Order does not matter.
func (r *Registry) CreatePair(tokenA, tokenB common.Address) (*amm.Pair, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey(token0, token1)
	if _, exists := r.pairs[key]; exists {
		return nil, ErrPairExists
	}

	pair, err := amm.New(amm.Config{
		Address:  PairAddress(token0, token1),
		Token0:   token0,
		Token1:   token1,
		Ledger:   r.cfg.Ledger,
		FeeTo:    r.FeeTo,
		Recorder: r.cfg.Recorder,
		Logger:   r.cfg.Logger,
		Now:      r.cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	r.pairs[key] = pair
	r.order = append(r.order, pair)
	r.infos = append(r.infos, model.PairInfo{
		Address:   pair.Address().Hex(),
		Token0:    token0.Hex(),
		Token1:    token1.Hex(),
		CreatedAt: r.cfg.Now(),
	})

	r.record(model.EventPairCreated, pair.Address(), model.PairCreatedData{
		Token0: token0.Hex(),
		Token1: token1.Hex(),
		Pair:   pair.Address().Hex(),
	})
	r.cfg.Logger.Info("pair created",
		zap.String("pair", pair.Address().Hex()),
		zap.String("token0", token0.Hex()),
		zap.String("token1", token1.Hex()),
	)
	return pair, nil
}

// Pair resolves the pair for (tokenA, tokenB) in either order.
func (r *Registry) Pair(tokenA, tokenB common.Address) (*amm.Pair, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pair, exists := r.pairs[pairKey(token0, token1)]
	if !exists {
		return nil, ErrPairNotExists
	}
	return pair, nil
}

// AllPairs returns every pair in creation order.
func (r *Registry) AllPairs() []*amm.Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*amm.Pair, len(r.order))
	copy(out, r.order)
	return out
}

// PairInfos returns metadata for every pair in creation order.
func (r *Registry) PairInfos() []model.PairInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.PairInfo, len(r.infos))
	copy(out, r.infos)
	return out
}

// SetFeeTo enables protocol-fee accrual to the given recipient.
func (r *Registry) SetFeeTo(to common.Address) {
	r.feeMu.Lock()
	defer r.feeMu.Unlock()
	r.feeTo = to
	r.feeOn = to != (common.Address{})
}

// ClearFeeTo disables protocol-fee accrual.
func (r *Registry) ClearFeeTo() {
	r.feeMu.Lock()
	defer r.feeMu.Unlock()
	r.feeTo = common.Address{}
	r.feeOn = false
}

// FeeTo reports the protocol-fee recipient, if enabled. Pairs query this
// lazily on every liquidity event.
func (r *Registry) FeeTo() (common.Address, bool) {
	r.feeMu.RLock()
	defer r.feeMu.RUnlock()
	return r.feeTo, r.feeOn
}

func (r *Registry) record(name string, pair common.Address, data any) {
	if r.cfg.Recorder == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		r.cfg.Logger.Warn("marshal event", zap.String("name", name), zap.Error(err))
		return
	}
	r.cfg.Recorder.Record(model.Event{
		Timestamp: r.cfg.Now(),
		Pair:      pair.Hex(),
		Name:      name,
		Data:      payload,
	})
}

func pairKey(token0, token1 common.Address) string {
	return token0.Hex() + "-" + token1.Hex()
}
