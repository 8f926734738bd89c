package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	assetA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func TestMintAndBalance(t *testing.T) {
	l := NewLedger()
	if err := l.Mint(assetA, alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if got := l.BalanceOf(assetA, alice); got.Int64() != 100 {
		t.Fatalf("balance = %s, want 100", got)
	}
	if got := l.BalanceOf(assetA, bob); got.Sign() != 0 {
		t.Fatalf("balance = %s, want 0", got)
	}
}

func TestMintRejectsNonPositive(t *testing.T) {
	l := NewLedger()
	if err := l.Mint(assetA, alice, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	l := NewLedger()
	if err := l.Mint(assetA, alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := l.Transfer(assetA, alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := l.BalanceOf(assetA, alice); got.Int64() != 60 {
		t.Fatalf("alice balance = %s, want 60", got)
	}
	if got := l.BalanceOf(assetA, bob); got.Int64() != 40 {
		t.Fatalf("bob balance = %s, want 40", got)
	}
}

func TestTransferInsufficient(t *testing.T) {
	l := NewLedger()
	if err := l.Mint(assetA, alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	err := l.Transfer(assetA, alice, bob, big.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := l.BalanceOf(assetA, alice); got.Int64() != 10 {
		t.Fatalf("alice balance changed on failed transfer: %s", got)
	}
}

func TestTransferZeroIsNoop(t *testing.T) {
	l := NewLedger()
	if err := l.Transfer(assetA, alice, bob, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer failed: %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	l := NewLedger()
	if err := l.Mint(assetA, alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	snap := l.Snapshot()

	if err := l.Transfer(assetA, alice, bob, big.NewInt(70)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	l.Restore(snap)

	if got := l.BalanceOf(assetA, alice); got.Int64() != 100 {
		t.Fatalf("alice balance after restore = %s, want 100", got)
	}
	if got := l.BalanceOf(assetA, bob); got.Sign() != 0 {
		t.Fatalf("bob balance after restore = %s, want 0", got)
	}
}
