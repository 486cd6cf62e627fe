// Package evmtest provides an in-memory ContractCaller that decodes calls
// and encodes answers with the real ABI, for adapter tests.
package evmtest

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// AnyAddress routes a handler regardless of the called address.
var AnyAddress = common.Address{}

// HandlerFunc receives the decoded call arguments and returns the method
// outputs in ABI order.
type HandlerFunc func(args []any) ([]any, error)

type route struct {
	to       common.Address
	selector [4]byte
}

type handler struct {
	method abi.Method
	fn     HandlerFunc
}

// Call is a recorded invocation.
type Call struct {
	To     common.Address
	Method string
	Args   []any
}

// Caller is a fake ContractCaller.
type Caller struct {
	mu     sync.Mutex
	routes map[route]handler
	calls  []Call
}

// NewCaller returns an empty Caller.
func NewCaller() *Caller {
	return &Caller{routes: make(map[route]handler)}
}

// Handle registers fn for method of abiJSON at to. Use AnyAddress to match
// every address.
func (c *Caller) Handle(to common.Address, abiJSON, method string, fn HandlerFunc) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		panic(err)
	}
	m, ok := parsed.Methods[method]
	if !ok {
		panic(fmt.Sprintf("evmtest: no method %q in ABI", method))
	}

	var sel [4]byte
	copy(sel[:], m.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[route{to: to, selector: sel}] = handler{method: m, fn: fn}
}

// Returns is a HandlerFunc answering with fixed outputs.
func Returns(outputs ...any) HandlerFunc {
	return func([]any) ([]any, error) { return outputs, nil }
}

// Reverts is a HandlerFunc that fails every call.
func Reverts(reason string) HandlerFunc {
	return func([]any) ([]any, error) { return nil, fmt.Errorf("execution reverted: %s", reason) }
}

// Calls returns the recorded calls in order.
func (c *Caller) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallContract implements evm.ContractCaller.
func (c *Caller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("evmtest: malformed call")
	}

	var sel [4]byte
	copy(sel[:], msg.Data[:4])

	c.mu.Lock()
	h, ok := c.routes[route{to: *msg.To, selector: sel}]
	if !ok {
		h, ok = c.routes[route{to: AnyAddress, selector: sel}]
	}
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("evmtest: no handler for selector %x at %s", sel, msg.To.Hex())
	}

	args, err := h.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("evmtest: decode %s args: %w", h.method.Name, err)
	}

	c.mu.Lock()
	c.calls = append(c.calls, Call{To: *msg.To, Method: h.method.Name, Args: args})
	c.mu.Unlock()

	out, err := h.fn(args)
	if err != nil {
		return nil, err
	}
	return h.method.Outputs.Pack(out...)
}

// SameBytes compares a decoded bytes argument.
func SameBytes(arg any, want []byte) bool {
	b, ok := arg.([]byte)
	return ok && bytes.Equal(b, want)
}
