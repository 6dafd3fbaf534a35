package chainclient

import (
	"context"
	"errors"

	"github.com/graphops/chain-indexer/internal/types"
)

// ErrBlockNotFound is returned when the node does not know the requested
// height. Callers treat it as terminal: retrying will not make a block that
// was never produced appear.
var ErrBlockNotFound = errors.New("block not found")

// ChainClient exposes the minimal read surface the indexer needs from a
// chain node.
type ChainClient interface {
	// HeaderByNumber fetches the header at the given height.
	// Returns ErrBlockNotFound if the node has no block at that height.
	HeaderByNumber(ctx context.Context, height uint64) (*types.Header, error)

	// LatestHeight returns the current chain tip height.
	LatestHeight(ctx context.Context) (uint64, error)
}
