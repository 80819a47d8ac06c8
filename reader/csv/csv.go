// Package csv reads delimited statement exports into raw records. Column
// layout differs per institution, so the reader is driven by a declarative
// Schema naming the columns; the same reader covers banking exports and
// brokerage trade-history exports (which add symbol, quantity, price and fee
// columns).
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgertools/beanport/reader"
)

// Schema names the columns of one institution's export. Date, TypeCode and
// Amount are required; the rest are optional and empty means the export has
// no such column.
type Schema struct {
	// Name distinguishes this schema in the reader identifier
	// ("csv-<name>").
	Name string
	// DateFormat is the export's date layout, e.g. "01/02/2006".
	DateFormat string

	Date         string
	TypeCode     string
	Amount       string
	Description  string
	Symbol       string
	SecurityName string
	Quantity     string
	Price        string
	Fees         string
	Balance      string

	// AccountType tags the statement: "checking", "credit", "investment".
	AccountType string
	// SkipHeadRows drops leading junk rows before the header row.
	SkipHeadRows int
}

// BrokerageSchema is the layout of a typical US brokerage trade-history
// export: an Action column for the transaction type plus symbol, quantity,
// price and commission columns.
func BrokerageSchema() Schema {
	return Schema{
		Name:         "brokerage",
		DateFormat:   "01/02/2006",
		Date:         "Date",
		TypeCode:     "Action",
		Amount:       "Amount",
		Description:  "Description",
		Symbol:       "Symbol",
		Quantity:     "Quantity",
		Price:        "Price",
		Fees:         "Fees & Comm",
		AccountType:  "investment",
		SkipHeadRows: 0,
	}
}

// Validate checks the schema names the required columns.
func (s Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	if s.DateFormat == "" {
		return fmt.Errorf("schema %s: date format is required", s.Name)
	}
	if s.Date == "" || s.TypeCode == "" || s.Amount == "" {
		return fmt.Errorf("schema %s: date, type code and amount columns are required", s.Name)
	}
	return nil
}

// Reader reads one institution's delimited export. Stateless apart from the
// immutable schema; safe for concurrent use.
type Reader struct {
	schema Schema
}

// New creates a reader for a validated schema.
func New(schema Schema) (*Reader, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &Reader{schema: schema}, nil
}

// Name returns the reader identifier.
func (r *Reader) Name() string {
	return "csv-" + r.schema.Name
}

// CanRead checks the extension and that the header row names this schema's
// required columns.
func (r *Reader) CanRead(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" {
		return false
	}

	head := strings.ToLower(string(header))
	for _, col := range []string{r.schema.Date, r.schema.TypeCode, r.schema.Amount} {
		if !strings.Contains(head, strings.ToLower(col)) {
			return false
		}
	}
	return true
}

// Read parses the export. Record IDs are synthesized from the row position,
// so reading the same file twice yields identical identifiers.
func (r *Reader) Read(ctx context.Context, src io.Reader, meta reader.Metadata) (*reader.Statement, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cr := csv.NewReader(src)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content from %s: %w", meta.FilePath, err)
	}
	if len(rows) <= r.schema.SkipHeadRows {
		return nil, fmt.Errorf("CSV file %s has no header row", meta.FilePath)
	}
	rows = rows[r.schema.SkipHeadRows:]

	cols, err := r.mapColumns(rows[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", meta.FilePath, err)
	}

	stmt := &reader.Statement{
		Institution: meta.Institution,
		AccountID:   accountIDFromPath(meta.FilePath),
		AccountType: r.schema.AccountType,
		Currency:    meta.Currency,
		Source:      meta.FilePath,
	}

	for i, row := range rows[1:] {
		rec, err := r.parseRow(row, cols, i, meta)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", meta.FilePath, i+2, err)
		}
		if rec == nil {
			continue // blank or footer row
		}
		stmt.Records = append(stmt.Records, rec)
		if stmt.Start.IsZero() || rec.Date().Before(stmt.Start) {
			stmt.Start = rec.Date()
		}
		if rec.Date().After(stmt.End) {
			stmt.End = rec.Date()
		}
		if b := rec.Balance(); b != nil {
			stmt.Balances = []reader.BalancePoint{{Date: rec.Date(), Amount: *b}}
		}
	}
	return stmt, nil
}

// columns holds resolved column indices; -1 means the schema has no such
// column or the export omits it.
type columns struct {
	date, typeCode, amount, description   int
	symbol, securityName, quantity, price int
	fees, balance                         int
}

func (r *Reader) mapColumns(header []string) (*columns, error) {
	index := func(name string) int {
		if name == "" {
			return -1
		}
		for i, cell := range header {
			if strings.EqualFold(strings.TrimSpace(cell), name) {
				return i
			}
		}
		return -1
	}

	cols := &columns{
		date:         index(r.schema.Date),
		typeCode:     index(r.schema.TypeCode),
		amount:       index(r.schema.Amount),
		description:  index(r.schema.Description),
		symbol:       index(r.schema.Symbol),
		securityName: index(r.schema.SecurityName),
		quantity:     index(r.schema.Quantity),
		price:        index(r.schema.Price),
		fees:         index(r.schema.Fees),
		balance:      index(r.schema.Balance),
	}
	if cols.date < 0 || cols.typeCode < 0 || cols.amount < 0 {
		return nil, fmt.Errorf("header row is missing required columns %q, %q, %q",
			r.schema.Date, r.schema.TypeCode, r.schema.Amount)
	}
	return cols, nil
}

// nonNumeric strips currency symbols and thousands separators from money
// cells. "$1,234.56" -> "1234.56".
var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

func parseMoney(cell string) (decimal.Decimal, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return decimal.Zero, nil
	}
	// Parenthesized values are negative: "(12.34)" -> -12.34.
	negative := strings.HasPrefix(cell, "(") && strings.HasSuffix(cell, ")")
	cleaned := nonNumeric.ReplaceAllString(cell, "")
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", cell, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// cleanDate drops "as of" suffixes some exports append:
// "11/16/2018 as of 11/15/2018" -> "11/16/2018".
func cleanDate(s string) string {
	if i := strings.Index(s, " "); i > 0 {
		return s[:i]
	}
	return s
}

func (r *Reader) parseRow(row []string, cols *columns, rowIndex int, meta reader.Metadata) (*reader.RawRecord, error) {
	dateCell := cleanDate(cell(row, cols.date))
	if dateCell == "" {
		return nil, nil
	}
	date, err := time.Parse(r.schema.DateFormat, dateCell)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateCell, err)
	}

	amount, err := parseMoney(cell(row, cols.amount))
	if err != nil {
		return nil, err
	}

	// Synthesized IDs are positional, stable across re-reads of the file.
	id := fmt.Sprintf("%s-row%04d", dateCell, rowIndex)

	rec, err := reader.NewRawRecord(id, date, cell(row, cols.typeCode), amount, cell(row, cols.description), meta.FilePath)
	if err != nil {
		return nil, err
	}

	if symbol := cell(row, cols.symbol); symbol != "" || cols.securityName >= 0 {
		rec.SetSecurity(symbol, cell(row, cols.securityName))
	}

	quantity, err := parseMoney(cell(row, cols.quantity))
	if err != nil {
		return nil, err
	}
	price, err := parseMoney(cell(row, cols.price))
	if err != nil {
		return nil, err
	}
	fees, err := parseMoney(cell(row, cols.fees))
	if err != nil {
		return nil, err
	}
	if !quantity.IsZero() || !price.IsZero() || !fees.IsZero() {
		rec.SetInvestment(quantity, price, fees)
	}

	if cols.balance >= 0 {
		if balCell := cell(row, cols.balance); balCell != "" {
			balance, err := parseMoney(balCell)
			if err != nil {
				return nil, err
			}
			rec.SetBalance(balance)
		}
	}
	return rec, nil
}

// accountIDFromPath falls back to the file's directory name as the account
// identity when the export carries none.
func accountIDFromPath(path string) string {
	return filepath.Base(filepath.Dir(path))
}
