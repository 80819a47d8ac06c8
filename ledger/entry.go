package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which directive an Entry renders to.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindBalance     Kind = "balance"
	KindPrice       Kind = "price"
	KindOpen        Kind = "open"
	KindClose       Kind = "close"
	KindCommodity   Kind = "commodity"
)

// Flags used on transaction entries. FlagWarning marks entries that need
// user review, such as transactions whose raw type code could not be
// classified.
const (
	FlagCleared = "*"
	FlagWarning = "!"
)

// Posting is one account/amount leg of a transaction entry. Cost records the
// acquisition basis of a commodity leg; Price records a conversion rate
// without affecting the basis.
type Posting struct {
	Account string
	Amount  Amount
	Cost    *Amount
	Price   *Amount
}

// weight returns the posting's contribution to the balance check, expressed
// in the cost (or price) currency when an annotation is present. This mirrors
// double-entry weight rules: 10 HOOL {518.73 USD} weighs 5187.30 USD.
func (p Posting) weight() Amount {
	switch {
	case p.Cost != nil:
		return Amount{Value: p.Amount.Value.Mul(p.Cost.Value), Currency: p.Cost.Currency}
	case p.Price != nil:
		return Amount{Value: p.Amount.Value.Mul(p.Price.Value), Currency: p.Price.Currency}
	default:
		return p.Amount
	}
}

// Entry is one ledger directive. For KindTransaction the Postings hold the
// legs; for KindBalance and KindPrice the Account/Amount pair carries the
// asserted balance or quoted price; KindOpen, KindClose and KindCommodity use
// Account and/or Amount.Currency as appropriate.
type Entry struct {
	Kind      Kind
	Date      time.Time
	Flag      string
	Payee     string
	Narration string
	Meta      map[string]string

	// Transaction legs (KindTransaction only).
	Postings []Posting

	// Directive subject for non-transaction kinds: the account for
	// balance/open/close, the commodity symbol for price/commodity.
	Account   string
	Commodity string
	Amount    Amount
}

// SetMeta attaches a metadata key/value, allocating the map on first use.
func (e *Entry) SetMeta(key, value string) {
	if e.Meta == nil {
		e.Meta = make(map[string]string)
	}
	e.Meta[key] = value
}

// MetaKeys returns metadata keys in sorted order for deterministic rendering.
func (e *Entry) MetaKeys() []string {
	keys := make([]string, 0, len(e.Meta))
	for k := range e.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ImbalanceError reports a transaction entry whose postings do not sum to
// zero within tolerance. It is a defect in posting construction, not a data
// problem, so callers abort the single entry and keep the batch going.
type ImbalanceError struct {
	Date     time.Time
	Payee    string
	Currency string
	Residual decimal.Decimal
}

func (e *ImbalanceError) Error() string {
	return fmt.Sprintf("entry %s %q does not balance: residual %s %s",
		e.Date.Format("2006-01-02"), e.Payee, e.Residual.String(), e.Currency)
}

// defaultTolerance is the per-currency slack allowed by CheckBalance.
// Statement arithmetic routinely disagrees with computed cost by a fraction
// of a cent; anything inside this band is treated as balanced.
var defaultTolerance = decimal.New(5, -3) // 0.005

// Residuals sums posting weights per currency and returns the non-zero sums.
func (e *Entry) Residuals() map[string]decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	for _, p := range e.Postings {
		w := p.weight()
		sums[w.Currency] = sums[w.Currency].Add(w.Value)
	}
	for cur, v := range sums {
		if v.IsZero() {
			delete(sums, cur)
		}
	}
	return sums
}

// CheckBalance verifies the zero-sum invariant for transaction entries.
// Non-transaction kinds always pass. A residual within tolerance passes; a
// larger residual yields an *ImbalanceError naming the worst currency.
func (e *Entry) CheckBalance() error {
	if e.Kind != KindTransaction {
		return nil
	}
	if len(e.Postings) < 2 {
		return fmt.Errorf("entry %s %q has %d postings, need at least 2",
			e.Date.Format("2006-01-02"), e.Payee, len(e.Postings))
	}
	for cur, sum := range e.Residuals() {
		if sum.Abs().GreaterThan(defaultTolerance) {
			return &ImbalanceError{Date: e.Date, Payee: e.Payee, Currency: cur, Residual: sum}
		}
	}
	return nil
}
