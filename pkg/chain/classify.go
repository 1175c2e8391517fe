// Package chain maps raw address strings onto the chain families they could belong to.
package chain

import (
	"regexp"
	"strings"

	"addrscope/pkg/models"
)

var (
	evmAddressRe  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	tronAddressRe = regexp.MustCompile(`^T[a-zA-Z0-9]{33}$`)
)

// Classify returns the candidate families for address in declaration order.
// An empty result means the address is invalid.
func Classify(address string) []models.ChainFamily {
	switch {
	case evmAddressRe.MatchString(address):
		// Same format is valid on every EVM-compatible chain.
		return []models.ChainFamily{models.EVMMain, models.EVMSide}
	case tronAddressRe.MatchString(address):
		return []models.ChainFamily{models.TronLike}
	default:
		return nil
	}
}

// IsEVM reports whether f uses EVM address semantics (case-insensitive hex).
func IsEVM(f models.ChainFamily) bool {
	return f == models.EVMMain || f == models.EVMSide
}

// SameAddress compares two addresses the way family f does: case-insensitively
// for EVM, exactly for Tron.
func SameAddress(f models.ChainFamily, a, b string) bool {
	if IsEVM(f) {
		return strings.EqualFold(a, b)
	}
	return a == b
}
