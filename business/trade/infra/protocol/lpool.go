package protocol

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/margin-router/business/trade/app"
	"github.com/fd1az/margin-router/business/trade/infra/evm"
)

var _ app.PoolReader = (*LPool)(nil)

// LPool reads any lending pool; the pool address is passed per call.
type LPool struct {
	contract *evm.Contract
}

func NewLPool(caller evm.ContractCaller) (*LPool, error) {
	contract, err := evm.NewContract("lpool", LPoolABI, caller)
	if err != nil {
		return nil, err
	}
	return &LPool{contract: contract}, nil
}

func (l *LPool) BorrowRatePerBlock(ctx context.Context, pool common.Address) (*big.Int, error) {
	return l.contract.CallBig(ctx, pool, "borrowRatePerBlock")
}

func (l *LPool) AvailableForBorrow(ctx context.Context, pool common.Address) (*big.Int, error) {
	return l.contract.CallBig(ctx, pool, "availableForBorrow")
}

func (l *LPool) BorrowBalanceStored(ctx context.Context, pool, borrower common.Address) (*big.Int, error) {
	return l.contract.CallBig(ctx, pool, "borrowBalanceStored", borrower)
}

// BorrowBalanceCurrent accrues interest in an eth_call, so the result
// includes interest up to the pending block.
func (l *LPool) BorrowBalanceCurrent(ctx context.Context, pool, borrower common.Address) (*big.Int, error) {
	return l.contract.CallBig(ctx, pool, "borrowBalanceCurrent", borrower)
}
