package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/fd1az/margin-router/internal/health"
)

// ChainIDReader reads the node's chain id. *ethclient.Client satisfies it.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// ReachabilityCheck reports the node healthy when it answers within
// timeout and serves the configured chain.
func ReachabilityCheck(node ChainIDReader, want uint64, timeout time.Duration) health.CheckFunc {
	return func(ctx context.Context) (bool, string) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		id, err := node.ChainID(ctx)
		if err != nil {
			return false, "rpc unreachable: " + err.Error()
		}
		if !id.IsUint64() || id.Uint64() != want {
			return false, fmt.Sprintf("rpc serves chain %s, want %d", id, want)
		}
		return true, fmt.Sprintf("chain %d", want)
	}
}
