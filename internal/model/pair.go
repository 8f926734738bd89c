package model

// PairInfo is the pair metadata record for storage.
type PairInfo struct {
	Address   string `json:"address"`
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	CreatedAt uint64 `json:"created_at"`
}
