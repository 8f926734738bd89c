package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// State is a deep copy of a pair's mutable state, used by the router to
// roll a multi-hop operation back as a unit.
type State struct {
	reserve0         *big.Int
	reserve1         *big.Int
	lastUpdate       uint64
	price0Cumulative *uint256.Int
	price1Cumulative *uint256.Int
	kLast            *big.Int
	totalShares      *big.Int
	shareBalances    map[common.Address]*big.Int
}

// Snapshot captures the pair's current state. Fails fast when an operation
// is in flight.
func (p *Pair) Snapshot() (*State, error) {
	if err := p.lock(); err != nil {
		return nil, err
	}
	defer p.unlock()

	shares := make(map[common.Address]*big.Int, len(p.shareBalances))
	for holder, bal := range p.shareBalances {
		shares[holder] = new(big.Int).Set(bal)
	}
	return &State{
		reserve0:         new(big.Int).Set(p.reserve0),
		reserve1:         new(big.Int).Set(p.reserve1),
		lastUpdate:       p.lastUpdate,
		price0Cumulative: new(uint256.Int).Set(p.price0Cumulative),
		price1Cumulative: new(uint256.Int).Set(p.price1Cumulative),
		kLast:            new(big.Int).Set(p.kLast),
		totalShares:      new(big.Int).Set(p.totalShares),
		shareBalances:    shares,
	}, nil
}

// Restore resets the pair to a previously captured state.
func (p *Pair) Restore(state *State) error {
	if state == nil {
		return nil
	}
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	p.reserve0.Set(state.reserve0)
	p.reserve1.Set(state.reserve1)
	p.lastUpdate = state.lastUpdate
	p.price0Cumulative.Set(state.price0Cumulative)
	p.price1Cumulative.Set(state.price1Cumulative)
	p.kLast.Set(state.kLast)
	p.totalShares.Set(state.totalShares)
	shares := make(map[common.Address]*big.Int, len(state.shareBalances))
	for holder, bal := range state.shareBalances {
		shares[holder] = new(big.Int).Set(bal)
	}
	p.shareBalances = shares
	return nil
}
