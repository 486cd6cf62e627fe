package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe registry of known tokens.
type Registry struct {
	byID map[AssetID]*Asset
	mu   sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[AssetID]*Asset),
	}
}

// Register adds an asset. Registering the same ID twice is an error.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return ErrNilAsset
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.ID()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("asset: %s already registered", id)
	}

	r.byID[id] = a
	return nil
}

// Resolve returns the registered token for address, or registers an ad-hoc
// asset with the given decimals and symbol. A registered token whose
// decimals disagree with the caller is an error: decimals drive every
// minor-unit conversion.
func (r *Registry) Resolve(chainID uint64, address common.Address, symbol string, decimals uint8) (*Asset, error) {
	id := NewTokenAssetID(chainID, address)

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.byID[id]; ok {
		if a.Decimals() != decimals {
			return nil, fmt.Errorf("asset: %s has %d decimals, got %d", a.Symbol(), a.Decimals(), decimals)
		}
		return a, nil
	}

	a := NewAsset(id, symbol, decimals)
	r.byID[id] = a
	return a, nil
}
