// Package dedup computes stable transaction fingerprints and gates emission
// against the set of fingerprints already present in the target ledger. The
// gate is re-entrant: it mutates nothing, so running the pipeline twice over
// the same inputs produces the same fingerprints and the same decisions.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ledgertools/beanport/txn"
)

// Set is the externally supplied, read-only collection of fingerprints
// already recorded in the target ledger. Updating it after emission is the
// caller's responsibility.
type Set interface {
	Contains(fingerprint string) bool
}

// MapSet is a trivial in-memory Set.
type MapSet map[string]struct{}

// Contains reports membership.
func (m MapSet) Contains(fingerprint string) bool {
	_, ok := m[fingerprint]
	return ok
}

// Add records a fingerprint.
func (m MapSet) Add(fingerprint string) {
	m[fingerprint] = struct{}{}
}

// Fingerprint derives the deduplication key for a transaction: a SHA256 over
// date, action, amount, security symbol and source file identity. The amount
// is fixed to two decimal places and the security folded to lowercase so the
// same statement line always hashes identically.
func Fingerprint(t *txn.Transaction) string {
	symbol := ""
	if t.Security != nil {
		symbol = strings.ToLower(t.Security.Symbol)
	}
	input := fmt.Sprintf("%s|%s|%s|%s|%s",
		t.Date.Format("2006-01-02"),
		t.Action,
		t.Amount.StringFixed(2),
		symbol,
		t.Source,
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// SkipFunc suppresses specific transactions matching institution-specific
// exclusion rules, independent of deduplication.
type SkipFunc func(t *txn.Transaction) bool

// Gate decides whether a transaction should be emitted.
type Gate struct {
	skip SkipFunc
}

// NewGate creates a gate with an optional skip hook. A nil skip means no
// institution-specific exclusions.
func NewGate(skip SkipFunc) *Gate {
	return &Gate{skip: skip}
}

// Skip reports whether the institution skip hook suppresses the transaction.
func (g *Gate) Skip(t *txn.Transaction) bool {
	return g.skip != nil && g.skip(t)
}

// Duplicate reports whether the transaction's fingerprint is already in the
// existing set.
func (g *Gate) Duplicate(t *txn.Transaction, existing Set) bool {
	return existing != nil && existing.Contains(Fingerprint(t))
}

// ShouldEmit reports whether the transaction passes the skip hook and is not
// already present in the existing fingerprint set.
func (g *Gate) ShouldEmit(t *txn.Transaction, existing Set) bool {
	return !g.Skip(t) && !g.Duplicate(t, existing)
}
