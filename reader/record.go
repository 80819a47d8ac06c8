package reader

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is one statement line as supplied by a format reader, before any
// normalization. Immutable once constructed; the pipeline invocation that
// received it is its only consumer.
type RawRecord struct {
	id           string // FITID from OFX or synthesized for CSV rows
	date         time.Time
	settleDate   time.Time
	typeCode     string // institution's raw transaction-type code
	amount       decimal.Decimal
	securityID   string // ticker/CUSIP/ISIN as printed on the statement
	securityName string // free-text instrument name, when present
	payee        string
	memo         string
	units        decimal.Decimal
	unitPrice    decimal.Decimal
	fees         decimal.Decimal
	balance      *decimal.Decimal // running balance, when the statement reports one
	source       string           // source file identity
}

// NewRawRecord creates a validated raw record. Optional fields are attached
// with the setters below before the record is handed to the pipeline.
func NewRawRecord(id string, date time.Time, typeCode string, amount decimal.Decimal, payee, source string) (*RawRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("record ID cannot be empty")
	}
	if date.IsZero() {
		return nil, fmt.Errorf("record date cannot be zero")
	}
	if source == "" {
		return nil, fmt.Errorf("record source cannot be empty")
	}
	return &RawRecord{
		id:       id,
		date:     date,
		typeCode: typeCode,
		amount:   amount,
		payee:    payee,
		source:   source,
	}, nil
}

// ID returns the statement-supplied transaction identifier.
func (r *RawRecord) ID() string { return r.id }

// Date returns the transaction date.
func (r *RawRecord) Date() time.Time { return r.date }

// SettleDate returns the settlement date, or the transaction date when the
// statement reports none.
func (r *RawRecord) SettleDate() time.Time {
	if r.settleDate.IsZero() {
		return r.date
	}
	return r.settleDate
}

// TypeCode returns the institution's raw transaction-type code.
func (r *RawRecord) TypeCode() string { return r.typeCode }

// Amount returns the signed cash amount as printed on the statement.
func (r *RawRecord) Amount() decimal.Decimal { return r.amount }

// SecurityID returns the raw security identifier, empty for cash records.
func (r *RawRecord) SecurityID() string { return r.securityID }

// SecurityName returns the statement's free-text instrument name.
func (r *RawRecord) SecurityName() string { return r.securityName }

// Payee returns the payee/description text.
func (r *RawRecord) Payee() string { return r.payee }

// Memo returns additional narration context.
func (r *RawRecord) Memo() string { return r.memo }

// Units returns the commodity quantity for investment records.
func (r *RawRecord) Units() decimal.Decimal { return r.units }

// UnitPrice returns the per-unit price for investment records.
func (r *RawRecord) UnitPrice() decimal.Decimal { return r.unitPrice }

// Fees returns the separate fee amount, zero when none.
func (r *RawRecord) Fees() decimal.Decimal { return r.fees }

// Balance returns the running balance reported on this line, or nil when the
// statement omits it.
func (r *RawRecord) Balance() *decimal.Decimal { return r.balance }

// Source returns the source file identity the record came from.
func (r *RawRecord) Source() string { return r.source }

// SetSettleDate sets the settlement date when it differs from the trade date.
func (r *RawRecord) SetSettleDate(d time.Time) { r.settleDate = d }

// SetSecurity sets the raw security identifier and free-text name.
func (r *RawRecord) SetSecurity(id, name string) {
	r.securityID = id
	r.securityName = name
}

// SetMemo sets the narration memo.
func (r *RawRecord) SetMemo(memo string) { r.memo = memo }

// SetInvestment sets the commodity quantity, unit price and fees.
func (r *RawRecord) SetInvestment(units, unitPrice, fees decimal.Decimal) {
	r.units = units
	r.unitPrice = unitPrice
	r.fees = fees
}

// SetBalance records the running balance the statement reports on this line.
func (r *RawRecord) SetBalance(b decimal.Decimal) { r.balance = &b }

// BalancePoint is a statement-reported balance for a date. Only present when
// the source statement actually carries one.
type BalancePoint struct {
	Date   time.Time
	Amount decimal.Decimal
}

// PricePoint is a statement-reported unit price for a security on a date,
// emitted even on dates with no trades so historical valuation stays exact.
type PricePoint struct {
	Date       time.Time
	SecurityID string
	Price      decimal.Decimal
}

// Statement is the parsed content of one statement file.
type Statement struct {
	Institution string
	AccountID   string
	AccountType string // "checking", "savings", "credit", "investment"
	Currency    string
	Start, End  time.Time
	Source      string // source file identity, stamped on every record

	Records  []*RawRecord
	Balances []BalancePoint
	Prices   []PricePoint
}
