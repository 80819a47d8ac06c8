// Package build constructs balanced ledger entries from normalized
// transactions, and emits balance-assertion and price-point entries from
// statement metadata. Every transaction entry it returns satisfies the
// zero-sum invariant; residuals from statement rounding are absorbed into the
// configured rounding account, and anything larger aborts that single entry
// with an ImbalanceError.
package build

import (
	"github.com/shopspring/decimal"

	"github.com/ledgertools/beanport/accounts"
	"github.com/ledgertools/beanport/classify"
	"github.com/ledgertools/beanport/institution"
	"github.com/ledgertools/beanport/ledger"
	"github.com/ledgertools/beanport/txn"
)

// epsilon is the tolerance used when comparing statement-reported figures to
// computed ones. Statement current values routinely diverge from computed
// cost by fractional-cent rounding.
var epsilon = decimal.New(1, -2) // 0.01

// absorbLimit caps the residual the builder will absorb into the rounding
// account. A residual beyond this is a construction defect, not rounding.
var absorbLimit = decimal.New(5, -2) // 0.05

// Builder turns normalized transactions into ledger entries.
type Builder struct {
	cfg     *institution.Config
	deriver *accounts.Deriver
}

// NewBuilder creates a builder for one institution.
func NewBuilder(cfg *institution.Config, deriver *accounts.Deriver) *Builder {
	return &Builder{cfg: cfg, deriver: deriver}
}

// Build constructs the balanced entry for a transaction: a cash leg, a
// commodity leg with cost or price annotation for security trades, and a fee
// leg when the statement reports a separate fee. Returns an error satisfying
// errors.As(*ledger.ImbalanceError) when the entry cannot be balanced.
func (b *Builder) Build(t *txn.Transaction) (*ledger.Entry, error) {
	entry := &ledger.Entry{
		Kind:      ledger.KindTransaction,
		Date:      t.Date,
		Flag:      ledger.FlagCleared,
		Payee:     t.Payee,
		Narration: b.narration(t),
	}
	if t.Flagged {
		entry.Flag = ledger.FlagWarning
	}
	entry.Meta = b.metadata(t)

	switch t.Action {
	case classify.ActionBuy:
		b.buildBuy(entry, t)
	case classify.ActionSell:
		b.buildSell(entry, t)
	case classify.ActionReinvest:
		b.buildReinvest(entry, t)
	default:
		b.buildCash(entry, t)
	}

	if err := b.absorbResidual(entry); err != nil {
		return nil, err
	}
	if err := entry.CheckBalance(); err != nil {
		return nil, err
	}
	return entry, nil
}

// cashAccount is where the cash leg posts. Transfers still post their cash
// leg here; their counter leg lands in the cash-equivalent account so that
// netting across paired statements works.
func (b *Builder) cashAccount() string {
	return b.deriver.Roots().Cash.String()
}

// buildCash assembles the two legs of a pure cash transaction: the signed
// cash leg at the institution's account and the counter leg at the derived
// target account.
func (b *Builder) buildCash(entry *ledger.Entry, t *txn.Transaction) {
	cash := ledger.NewAmount(t.Amount, t.Currency)
	entry.Postings = append(entry.Postings,
		ledger.Posting{Account: b.cashAccount(), Amount: cash},
		ledger.Posting{Account: t.Account.Path.String(), Amount: cash.Neg()},
	)
}

// buildBuy assembles a purchase: cash out, commodity in at cost, optional
// fee leg. The cost basis comes from the statement's unit price when
// consistent with the total, otherwise it is implied from the cash amount.
func (b *Builder) buildBuy(entry *ledger.Entry, t *txn.Transaction) {
	sec := t.Security
	if sec == nil || t.Units.IsZero() {
		// Degenerate buy with no commodity data behaves like cash.
		b.buildCash(entry, t)
		return
	}

	cost := b.effectivePrice(t)
	commodity := ledger.NewAmount(t.Units, sec.Symbol)
	costAmt := ledger.NewAmount(cost, t.Currency)

	entry.Postings = append(entry.Postings,
		ledger.Posting{Account: b.cashAccount(), Amount: ledger.NewAmount(t.Amount, t.Currency)},
		ledger.Posting{Account: t.Account.Path.String(), Amount: commodity, Cost: &costAmt},
	)
	if !t.Fees.IsZero() {
		b.addFeeLeg(entry, t)
	}
}

// buildSell assembles a sale: commodity out priced at the sale price, cash
// in, optional fee leg. When both reported price and cost are exactly zero
// (spin-offs, return-of-capital) the commodity leaves at a zero price and the
// full proceeds route to the long-term gains account instead of dividing by
// zero.
func (b *Builder) buildSell(entry *ledger.Entry, t *txn.Transaction) {
	sec := t.Security
	if sec == nil || t.Units.IsZero() {
		b.buildCash(entry, t)
		return
	}

	units := t.Units.Abs().Neg() // sells reduce the position
	commodity := ledger.NewAmount(units, sec.Symbol)
	cash := ledger.NewAmount(t.Amount, t.Currency)

	// A statement price of zero is meaningful on sales (rights, spin-offs
	// sold with no basis) and is never implied away from the proceeds.
	price := decimal.Zero
	if !t.UnitPrice.IsZero() {
		price = b.effectivePrice(t)
	}
	priceAmt := ledger.NewAmount(price, t.Currency)

	entry.Postings = append(entry.Postings,
		ledger.Posting{Account: b.cashAccount(), Amount: cash},
		ledger.Posting{Account: t.Account.Path.String(), Amount: commodity, Price: &priceAmt},
	)

	if price.IsZero() {
		// Zero price and cost: the commodity leg weighs nothing, so the
		// proceeds need an explicit counter leg.
		gains := b.deriver.Roots().CapGainsLong
		if len(gains) == 0 {
			gains = b.deriver.Roots().Rounding
		}
		entry.Postings = append(entry.Postings,
			ledger.Posting{Account: gains.String(), Amount: cash.Neg()},
		)
	}
	if !t.Fees.IsZero() {
		b.addFeeLeg(entry, t)
	}
}

// buildReinvest assembles a reinvested distribution: income out, commodity in
// at cost, no external cash movement.
func (b *Builder) buildReinvest(entry *ledger.Entry, t *txn.Transaction) {
	sec := t.Security
	if sec == nil || t.Units.IsZero() {
		b.buildCash(entry, t)
		return
	}

	cost := b.effectivePrice(t)
	commodity := ledger.NewAmount(t.Units, sec.Symbol)
	costAmt := ledger.NewAmount(cost, t.Currency)
	income := t.Units.Mul(cost)

	incomeAccount := b.deriver.Derive(accounts.Context{
		Action:   classify.ActionDividend,
		Security: sec,
	})

	entry.Postings = append(entry.Postings,
		ledger.Posting{Account: incomeAccount.Path.String(), Amount: ledger.NewAmount(income.Neg(), t.Currency)},
		ledger.Posting{Account: t.Account.Path.String(), Amount: commodity, Cost: &costAmt},
	)
	if !t.Fees.IsZero() {
		b.addFeeLeg(entry, t)
	}
}

// addFeeLeg posts the separate fee amount to the fee expense account.
func (b *Builder) addFeeLeg(entry *ledger.Entry, t *txn.Transaction) {
	fees := b.deriver.Roots().Fees
	if len(fees) == 0 {
		fees = b.deriver.Roots().Unclassified
	}
	entry.Postings = append(entry.Postings,
		ledger.Posting{Account: fees.String(), Amount: ledger.NewAmount(t.Fees.Abs(), t.Currency)},
	)
}

// effectivePrice picks the unit price for cost/price annotations. The
// statement price wins when it is consistent with the traded principal
// within epsilon; otherwise the price implied by the cash amount is used.
// Zero units, or an all-zero price and principal, yield zero without ever
// dividing by zero.
func (b *Builder) effectivePrice(t *txn.Transaction) decimal.Decimal {
	units := t.Units.Abs()
	if units.IsZero() {
		return decimal.Zero
	}

	// The traded principal is the cash movement gross of fees: a buy pays
	// principal plus fees, a sell receives principal minus fees.
	principal := t.Amount.Abs()
	if t.Action == classify.ActionSell {
		principal = principal.Add(t.Fees.Abs())
	} else {
		principal = principal.Sub(t.Fees.Abs())
	}
	if principal.IsNegative() {
		principal = decimal.Zero
	}

	if !t.UnitPrice.IsZero() {
		computed := units.Mul(t.UnitPrice)
		if principal.IsZero() || computed.Sub(principal).Abs().LessThanOrEqual(epsilon) {
			return t.UnitPrice
		}
	}
	if principal.IsZero() {
		return t.UnitPrice
	}
	return principal.DivRound(units, 8)
}

// absorbResidual moves any small per-currency residual into the rounding
// account. Residuals beyond absorbLimit are construction defects and become
// an ImbalanceError via CheckBalance.
func (b *Builder) absorbResidual(entry *ledger.Entry) error {
	rounding := b.deriver.Roots().Rounding.String()
	for currency, residual := range entry.Residuals() {
		if residual.IsZero() {
			continue
		}
		if residual.Abs().LessThanOrEqual(absorbLimit) {
			entry.Postings = append(entry.Postings,
				ledger.Posting{Account: rounding, Amount: ledger.NewAmount(residual.Neg(), currency)},
			)
		}
	}
	return nil
}

// narration resolves the entry narration: the security-narration hook wins
// when it claims the transaction, otherwise the statement memo, falling back
// to the payee text.
func (b *Builder) narration(t *txn.Transaction) string {
	if hook := b.cfg.Hooks.SecurityNarration; hook != nil && t.Security != nil {
		if s, ok := hook(t); ok {
			return s
		}
	}
	if t.Narration != "" {
		return t.Narration
	}
	return t.Payee
}

// metadata resolves per-transaction metadata: the build-metadata hook wins
// when it claims the transaction, otherwise DefaultMetadata.
func (b *Builder) metadata(t *txn.Transaction) map[string]string {
	if hook := b.cfg.Hooks.BuildMetadata; hook != nil {
		if m, ok := hook(t); ok {
			return m
		}
	}
	return DefaultMetadata(t)
}
