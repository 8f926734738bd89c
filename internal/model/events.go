package model

import "encoding/json"

// Event names emitted by pairs.
const (
	EventPairCreated = "pair_created"
	EventMint        = "mint"
	EventBurn        = "burn"
	EventSwap        = "swap"
	EventSync        = "sync"
)

// Event is the normalized representation of a pair state change for storage.
// Amounts inside Data are decimal strings.
type Event struct {
	Seq       uint64          `json:"seq"`
	Timestamp uint64          `json:"timestamp"`
	Pair      string          `json:"pair"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
}

// PairCreatedData is the payload of a pair_created event.
type PairCreatedData struct {
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
	Pair   string `json:"pair"`
}

// MintData is the payload of a mint event.
type MintData struct {
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Shares    string `json:"shares"`
}

// BurnData is the payload of a burn event.
type BurnData struct {
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Shares    string `json:"shares"`
}

// SwapData is the payload of a swap event.
type SwapData struct {
	Recipient  string `json:"recipient"`
	Amount0In  string `json:"amount0_in"`
	Amount1In  string `json:"amount1_in"`
	Amount0Out string `json:"amount0_out"`
	Amount1Out string `json:"amount1_out"`
}

// SyncData is the payload of a sync event, the reserves after any state
// change.
type SyncData struct {
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}
