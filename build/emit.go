package build

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgertools/beanport/ledger"
	"github.com/ledgertools/beanport/reader"
)

// BalanceEntries converts statement-reported balance points into balance
// assertion entries against the given account. Callers only pass points the
// statement actually reported; an empty slice yields no entries. Assertions
// hold at the start of the day, so each is dated the day after its point.
func BalanceEntries(points []reader.BalancePoint, account, currency string) []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(points))
	for _, p := range points {
		entries = append(entries, ledger.Entry{
			Kind:    ledger.KindBalance,
			Date:    p.Date.AddDate(0, 0, 1),
			Account: account,
			Amount:  ledger.NewAmount(p.Amount, currency),
		})
	}
	return entries
}

// PriceEntry builds a price-point entry for a commodity on a date. Emitted
// whenever a statement reports a unit price, even on dates with no trade, so
// historical valuation stays accurate.
func PriceEntry(date time.Time, symbol string, price decimal.Decimal, currency string) ledger.Entry {
	return ledger.Entry{
		Kind:      ledger.KindPrice,
		Date:      date,
		Commodity: symbol,
		Amount:    ledger.NewAmount(price, currency),
	}
}
