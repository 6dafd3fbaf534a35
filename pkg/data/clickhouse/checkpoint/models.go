package checkpoint

// Checkpoint is one row of the checkpoints table: the lowest unprocessed
// block height for a chain, stamped with the write time. The timestamp is
// used by ReplacingMergeTree to deduplicate to the latest row.
type Checkpoint struct {
	ChainID   uint64 `ch:"chain_id"`
	Lowest    uint64 `ch:"lowest_unprocessed_block"`
	Timestamp int64  `ch:"timestamp"`
}
