// Package txn holds the normalized transaction passed between the classifier,
// resolvers, posting builder and deduplication gate. A transaction is created
// once per raw record and discarded after its entry is emitted or suppressed.
package txn

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgertools/beanport/accounts"
	"github.com/ledgertools/beanport/classify"
	"github.com/ledgertools/beanport/securities"
)

// Transaction is a raw record after classification and resolution.
type Transaction struct {
	Date   time.Time
	Action classify.Action

	// Amount is the signed cash movement from the user's perspective, in
	// Currency, after the sign convention for the account kind applied.
	Amount   decimal.Decimal
	Currency string

	// Security is nil for pure cash transactions.
	Security *securities.Security

	// Account is the resolved target account for the non-cash leg.
	Account accounts.Account

	Payee     string
	Narration string

	// Investment fields, zero for cash transactions.
	Units     decimal.Decimal
	UnitPrice decimal.Decimal
	Fees      decimal.Decimal

	// SourceID is the statement's own transaction identifier.
	SourceID string
	// Source is the source file identity, part of the fingerprint.
	Source string

	// Flagged marks transactions whose raw type code was not in the
	// institution mapping; they are emitted with a review flag.
	Flagged bool
	// RawType preserves the unclassified raw code for the audit trail.
	RawType string
}
