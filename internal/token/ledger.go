// Package token provides the in-memory fungible-asset ledger the engine
// moves balances through. The pool and router only see the narrow transfer
// capability; concrete back-ends can replace this one.
package token

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Ledger tracks balances per asset per holder.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Mint credits amount of asset to holder, creating balance entries as needed.
func (l *Ledger) Mint(asset, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	holders := l.balances[asset]
	if holders == nil {
		holders = make(map[common.Address]*big.Int)
		l.balances[asset] = holders
	}
	bal := holders[holder]
	if bal == nil {
		bal = new(big.Int)
		holders[holder] = bal
	}
	bal.Add(bal, amount)
	return nil
}

// BalanceOf returns a copy of holder's balance of asset.
func (l *Ledger) BalanceOf(asset, holder common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if holders := l.balances[asset]; holders != nil {
		if bal := holders[holder]; bal != nil {
			return new(big.Int).Set(bal)
		}
	}
	return new(big.Int)
}

// Transfer moves amount of asset from one holder to another. A zero amount
// transfer is a no-op. The move either fully happens or fails.
func (l *Ledger) Transfer(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	holders := l.balances[asset]
	if holders == nil {
		return fmt.Errorf("%w: asset %s", ErrInsufficientBalance, asset.Hex())
	}
	fromBal := holders[from]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: asset %s holder %s", ErrInsufficientBalance, asset.Hex(), from.Hex())
	}

	toBal := holders[to]
	if toBal == nil {
		toBal = new(big.Int)
		holders[to] = toBal
	}
	fromBal.Sub(fromBal, amount)
	toBal.Add(toBal, amount)
	return nil
}

// Snapshot captures a deep copy of every balance for later restore.
type Snapshot struct {
	balances map[common.Address]map[common.Address]*big.Int
}

// Snapshot returns a point-in-time copy of the ledger.
func (l *Ledger) Snapshot() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := &Snapshot{balances: make(map[common.Address]map[common.Address]*big.Int, len(l.balances))}
	for asset, holders := range l.balances {
		copied := make(map[common.Address]*big.Int, len(holders))
		for h, bal := range holders {
			copied[h] = new(big.Int).Set(bal)
		}
		snap.balances[asset] = copied
	}
	return snap
}

// Restore resets the ledger to a previously captured snapshot.
func (l *Ledger) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	restored := make(map[common.Address]map[common.Address]*big.Int, len(snap.balances))
	for asset, holders := range snap.balances {
		copied := make(map[common.Address]*big.Int, len(holders))
		for h, bal := range holders {
			copied[h] = new(big.Int).Set(bal)
		}
		restored[asset] = copied
	}
	l.balances = restored
}
