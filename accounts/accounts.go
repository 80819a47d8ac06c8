// Package accounts derives ledger account paths for normalized transactions.
// Derivation is a pure function of transaction context and configuration: the
// same inputs always yield the same account, with no hidden state.
package accounts

import (
	"fmt"
	"strings"

	"github.com/ledgertools/beanport/classify"
	"github.com/ledgertools/beanport/securities"
)

// Kind is the five-way ledger taxonomy of an account.
type Kind string

const (
	KindAsset     Kind = "asset"
	KindLiability Kind = "liability"
	KindIncome    Kind = "income"
	KindExpense   Kind = "expense"
	KindEquity    Kind = "equity"
	KindUnknown   Kind = "unknown"
)

// Path is an ordered sequence of account segments, rendered colon-joined.
type Path []string

// ParsePath splits a colon-joined account string into a Path.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return strings.Split(s, ":")
}

// String renders the path in directive grammar: "Assets:Banks:Checking".
func (p Path) String() string {
	return strings.Join(p, ":")
}

// Child returns a new path with leaf appended. The receiver is not modified.
func (p Path) Child(leaf string) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, p...)
	return append(out, leaf)
}

// KindOf derives the taxonomy tag from the path's root segment.
func (p Path) KindOf() Kind {
	if len(p) == 0 {
		return KindUnknown
	}
	switch p[0] {
	case "Assets":
		return KindAsset
	case "Liabilities":
		return KindLiability
	case "Income":
		return KindIncome
	case "Expenses":
		return KindExpense
	case "Equity":
		return KindEquity
	}
	return KindUnknown
}

// Account is a derived path plus its taxonomy tag. Accounts are recomputed
// per transaction from configuration, never persisted.
type Account struct {
	Path Path
	Kind Kind
}

func newAccount(p Path) Account {
	return Account{Path: p, Kind: p.KindOf()}
}

// Roots is the per-institution mapping of transaction class to account path
// prefix. Transfers route through CashEquivalent rather than Cash so that
// transfer netting stays correct across accounts.
type Roots struct {
	Cash           Path
	CashEquivalent Path
	Investment     Path
	Dividends      Path
	Interest       Path
	CapGainsLong   Path
	CapGainsShort  Path
	Fees           Path
	Rounding       Path
	// Unclassified is the counter leg for plain cash transactions whose
	// category the statement cannot know (checks, card purchases).
	Unclassified Path
}

// Validate checks the roots needed by every institution are present.
func (r Roots) Validate() error {
	if len(r.Cash) == 0 {
		return fmt.Errorf("cash account root is required")
	}
	if len(r.Rounding) == 0 {
		return fmt.Errorf("rounding account root is required")
	}
	if len(r.Unclassified) == 0 {
		return fmt.Errorf("unclassified account root is required")
	}
	return nil
}

// Context is the transaction context account derivation sees.
type Context struct {
	Action   classify.Action
	Security *securities.Security
	Payee    string
	Memo     string
}

// OverrideFunc lets an institution take over target-account resolution for
// special cases. Returning ok=false defers to the default template logic;
// it is a sentinel, not an error.
type OverrideFunc func(ctx Context) (Path, bool)

// Deriver derives accounts from Roots plus the commodity-leaf template.
type Deriver struct {
	roots         Roots
	commodityLeaf bool
	leafTemplate  string
	override      OverrideFunc
}

// NewDeriver builds a deriver. leafTemplate supports {ticker} and {currency}
// placeholders and is only consulted when commodityLeaf is enabled.
func NewDeriver(roots Roots, commodityLeaf bool, leafTemplate string, override OverrideFunc) (*Deriver, error) {
	if err := roots.Validate(); err != nil {
		return nil, err
	}
	if leafTemplate == "" {
		leafTemplate = "{ticker}"
	}
	return &Deriver{
		roots:         roots,
		commodityLeaf: commodityLeaf,
		leafTemplate:  leafTemplate,
		override:      override,
	}, nil
}

// Roots exposes the configured roots for builders that need the rounding and
// fee accounts directly.
func (d *Deriver) Roots() Roots {
	return d.roots
}

// Leaf expands the commodity-leaf template for a security. Placeholders whose
// source field is unset degrade to the security's symbol.
func (d *Deriver) Leaf(sec securities.Security) string {
	leaf := strings.ReplaceAll(d.leafTemplate, "{ticker}", sec.Symbol)
	currency := sec.Currency
	if currency == "" {
		currency = sec.Symbol
	}
	return strings.ReplaceAll(leaf, "{currency}", currency)
}

// withLeaf appends the commodity leaf when enabled and a security is present.
func (d *Deriver) withLeaf(base Path, sec *securities.Security) Path {
	if !d.commodityLeaf || sec == nil || len(base) == 0 {
		return base
	}
	return base.Child(d.Leaf(*sec))
}

// Derive resolves the target account for a transaction context. The override
// hook runs first; when it defers, the action routes to its configured root
// with the commodity leaf applied for security-specific accounts.
func (d *Deriver) Derive(ctx Context) Account {
	if d.override != nil {
		if p, ok := d.override(ctx); ok {
			return newAccount(p)
		}
	}

	switch ctx.Action {
	case classify.ActionTransfer:
		if len(d.roots.CashEquivalent) > 0 {
			return newAccount(d.roots.CashEquivalent)
		}
		return newAccount(d.roots.Cash)
	case classify.ActionDividend:
		return newAccount(d.withLeaf(d.fallback(d.roots.Dividends), ctx.Security))
	case classify.ActionInterest:
		return newAccount(d.withLeaf(d.fallback(d.roots.Interest), ctx.Security))
	case classify.ActionCapGainsLong:
		return newAccount(d.withLeaf(d.fallback(d.roots.CapGainsLong), ctx.Security))
	case classify.ActionCapGainsShort:
		return newAccount(d.withLeaf(d.fallback(d.roots.CapGainsShort), ctx.Security))
	case classify.ActionFee:
		return newAccount(d.fallback(d.roots.Fees))
	case classify.ActionBuy, classify.ActionSell, classify.ActionReinvest:
		return newAccount(d.withLeaf(d.fallback(d.roots.Investment), ctx.Security))
	default:
		// Plain cash movements: the counter side is unknowable from the
		// statement, so it lands in the unclassified account for the
		// user to categorize.
		return newAccount(d.roots.Unclassified)
	}
}

// CommodityAccount resolves the account holding a security's position,
// independent of the transaction's target account.
func (d *Deriver) CommodityAccount(sec securities.Security) Account {
	return newAccount(d.withLeaf(d.fallback(d.roots.Investment), &sec))
}

// fallback substitutes the cash root for roots an institution left unset.
func (d *Deriver) fallback(p Path) Path {
	if len(p) == 0 {
		return d.roots.Cash
	}
	return p
}
