package types

// Header is the chain-agnostic block header the indexer operates on.
// Hashes are kept as 0x-prefixed hex strings so the type does not depend
// on any particular chain SDK.
type Header struct {
	ChainID    uint64 `json:"chain_id"`
	Number     uint64 `json:"number"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parent_hash"`
	Timestamp  uint64 `json:"timestamp"`
}
