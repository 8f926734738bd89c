package sim

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestRunnerValidation(t *testing.T) {
	if _, err := NewRunner(RunConfig{Tokens: 1, Traders: 1, InitialMint: big.NewInt(1)}, nil); err == nil {
		t.Fatalf("expected error for one token")
	}
	if _, err := NewRunner(RunConfig{Tokens: 2, Traders: 0, InitialMint: big.NewInt(1)}, nil); err == nil {
		t.Fatalf("expected error for zero traders")
	}
	if _, err := NewRunner(RunConfig{Tokens: 2, Traders: 1}, nil); err == nil {
		t.Fatalf("expected error for missing initial mint")
	}
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() Summary {
		runner, err := NewRunner(RunConfig{
			Tokens:      3,
			Traders:     2,
			Swaps:       40,
			Seed:        7,
			InitialMint: big.NewInt(1_000_000_000),
		}, nil)
		if err != nil {
			t.Fatalf("new runner: %v", err)
		}
		summary, err := runner.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return summary
	}

	first := run()
	second := run()
	if first != second {
		t.Fatalf("runs diverged: %+v != %+v", first, second)
	}
	if first.Pools != 2 {
		t.Fatalf("pools = %d, want 2", first.Pools)
	}
	if first.SwapsExecuted == 0 {
		t.Fatalf("no swaps executed")
	}
	if first.Events == 0 {
		t.Fatalf("no events recorded")
	}
}

func TestRunConservesTokens(t *testing.T) {
	initial := big.NewInt(1_000_000_000)
	runner, err := NewRunner(RunConfig{
		Tokens:      3,
		Traders:     2,
		Swaps:       30,
		Seed:        3,
		InitialMint: initial,
	}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Every unit minted is still held by someone: traders, the LP, or a
	// pair's custody.
	holders := append([]common.Address{runner.lp}, runner.traders...)
	for _, pair := range runner.registry.AllPairs() {
		holders = append(holders, pair.Address())
	}
	// lp + traders were each minted one allotment of every token.
	want := new(big.Int).Mul(initial, big.NewInt(int64(1+len(runner.traders))))

	for _, asset := range runner.tokens {
		total := new(big.Int)
		for _, holder := range holders {
			total.Add(total, runner.ledger.BalanceOf(asset, holder))
		}
		if total.Cmp(want) != 0 {
			t.Fatalf("token %s total = %s, want %s", asset.Hex(), total, want)
		}
	}
}

func TestRunHonorsContext(t *testing.T) {
	runner, err := NewRunner(RunConfig{
		Tokens:      2,
		Traders:     1,
		Swaps:       1000,
		Seed:        1,
		InitialMint: big.NewInt(1_000_000_000),
	}, nil)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := runner.Run(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
