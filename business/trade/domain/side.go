// Package domain contains the value objects of the trade context: pairs,
// trade intents, venue descriptors, quotes and positions.
package domain

import (
	"fmt"
)

// Side selects one leg of a pair.
type Side uint8

const (
	Token0 Side = 0
	Token1 Side = 1
)

// Other returns the opposite leg.
func (s Side) Other() Side {
	if s == Token0 {
		return Token1
	}
	return Token0
}

// Valid reports whether s names a pair leg.
func (s Side) Valid() bool {
	return s == Token0 || s == Token1
}

func (s Side) String() string {
	switch s {
	case Token0:
		return "token0"
	case Token1:
		return "token1"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// ParseSide converts the 0/1 leg index used by the protocol.
func ParseSide(v int) (Side, error) {
	switch v {
	case 0:
		return Token0, nil
	case 1:
		return Token1, nil
	default:
		return 0, fmt.Errorf("invalid side %d: must be 0 or 1", v)
	}
}
