// Package ofx reads OFX/QFX statements (bank, credit card, and the cash
// movements of investment accounts) into raw records.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/ledgertools/beanport/reader"
)

// Reader implements OFX/QFX reading with a stateless design. Every Read call
// is a pure function of the input bytes and metadata, so repeated reads of
// the same file always yield the same records.
type Reader struct{}

var readerInstance = &Reader{}

// New returns the shared OFX reader instance. Safe for concurrent use.
func New() *Reader {
	return readerInstance
}

// Name returns the reader identifier.
func (r *Reader) Name() string {
	return "ofx"
}

// CanRead checks extension (.ofx/.qfx) and the OFX header markers, covering
// both v1 SGML and v2 XML formats.
func (r *Reader) CanRead(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Read parses the statement out of an OFX/QFX file.
func (r *Reader) Read(ctx context.Context, src io.Reader, meta reader.Metadata) (*reader.Statement, error) {
	content, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content from %s: %w", meta.FilePath, err)
	}

	// ofxgo.ParseResponse does not take a context, so cancellation is only
	// observed between reading and parsing.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	resp, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file %s (%d bytes): %w", meta.FilePath, len(content), err)
	}

	switch {
	case len(resp.CreditCard) > 0:
		return r.readCreditCard(resp, meta)
	case len(resp.Bank) > 0:
		return r.readBank(resp, meta)
	case len(resp.InvStmt) > 0:
		return r.readInvestment(resp, meta)
	}
	return nil, fmt.Errorf("no supported statement type in OFX file (creditcard: %d, bank: %d, investment: %d)",
		len(resp.CreditCard), len(resp.Bank), len(resp.InvStmt))
}

func (r *Reader) readCreditCard(resp *ofxgo.Response, meta reader.Metadata) (*reader.Statement, error) {
	ccStmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected credit card statement type %T", resp.CreditCard[0])
	}
	if ccStmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in credit card statement")
	}

	stmt := &reader.Statement{
		Institution: institutionName(resp, meta),
		AccountID:   ccStmt.CCAcctFrom.AcctID.String(),
		AccountType: "credit",
		Currency:    currencyOf(ccStmt.CurDef.String(), meta),
		Start:       ccStmt.BankTranList.DtStart.Time,
		End:         ccStmt.BankTranList.DtEnd.Time,
		Source:      meta.FilePath,
	}
	if stmt.AccountID == "" {
		return nil, fmt.Errorf("missing account ID in credit card statement")
	}

	if err := appendTransactions(stmt, ccStmt.BankTranList.Transactions); err != nil {
		return nil, err
	}
	appendLedgerBalance(stmt, ccStmt.BalAmt, ccStmt.DtAsOf.Time)
	return stmt, nil
}

func (r *Reader) readBank(resp *ofxgo.Response, meta reader.Metadata) (*reader.Statement, error) {
	bankStmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected bank statement type %T", resp.Bank[0])
	}
	if bankStmt.BankTranList == nil {
		return nil, fmt.Errorf("missing transaction list in bank statement")
	}

	accountType, err := mapBankAccountType(bankStmt.BankAcctFrom)
	if err != nil {
		return nil, err
	}

	stmt := &reader.Statement{
		Institution: institutionName(resp, meta),
		AccountID:   bankStmt.BankAcctFrom.AcctID.String(),
		AccountType: accountType,
		Currency:    currencyOf(bankStmt.CurDef.String(), meta),
		Start:       bankStmt.BankTranList.DtStart.Time,
		End:         bankStmt.BankTranList.DtEnd.Time,
		Source:      meta.FilePath,
	}
	if stmt.AccountID == "" {
		return nil, fmt.Errorf("missing account ID in bank statement")
	}

	if err := appendTransactions(stmt, bankStmt.BankTranList.Transactions); err != nil {
		return nil, err
	}
	appendLedgerBalance(stmt, bankStmt.BalAmt, bankStmt.DtAsOf.Time)
	return stmt, nil
}

// readInvestment reads the cash-movement transactions of an investment
// statement. Security trades arrive through the institution's trade-history
// export handled by the csv reader; OFX investment trade records are out of
// this reader's coverage and rejected loudly rather than half-read.
func (r *Reader) readInvestment(resp *ofxgo.Response, meta reader.Metadata) (*reader.Statement, error) {
	invStmt, ok := resp.InvStmt[0].(*ofxgo.InvStatementResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected investment statement type %T", resp.InvStmt[0])
	}
	if invStmt.InvTranList == nil {
		return nil, fmt.Errorf("missing transaction list in investment statement")
	}

	stmt := &reader.Statement{
		Institution: institutionName(resp, meta),
		AccountID:   invStmt.InvAcctFrom.AcctID.String(),
		AccountType: "investment",
		Currency:    currencyOf(invStmt.CurDef.String(), meta),
		Start:       invStmt.InvTranList.DtStart.Time,
		End:         invStmt.InvTranList.DtEnd.Time,
		Source:      meta.FilePath,
	}
	if stmt.AccountID == "" {
		return nil, fmt.Errorf("missing account ID in investment statement")
	}

	if n := len(invStmt.InvTranList.InvTransactions); n > 0 {
		return nil, fmt.Errorf("investment statement contains %d security trade records; import trades via the institution's delimited trade-history export instead", n)
	}

	for _, invBank := range invStmt.InvTranList.BankTransactions {
		if err := appendTransactions(stmt, invBank.Transactions); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// appendTransactions converts OFX banking transactions into raw records in
// statement order.
func appendTransactions(stmt *reader.Statement, txns []ofxgo.Transaction) error {
	for i, t := range txns {
		rec, err := extractTransaction(t, stmt.Source)
		if err != nil {
			return fmt.Errorf("failed to read transaction at index %d: %w", i, err)
		}
		stmt.Records = append(stmt.Records, rec)
	}
	return nil
}

// extractTransaction converts one OFX transaction to a raw record.
func extractTransaction(t ofxgo.Transaction, source string) (*reader.RawRecord, error) {
	id := t.FiTID.String()
	if id == "" {
		return nil, fmt.Errorf("transaction missing required FITID field")
	}

	date := t.DtPosted.Time
	if date.IsZero() {
		date = t.DtUser.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction %s missing both posted date and user date", id)
	}

	payee := strings.TrimSpace(t.Name.String())
	if payee == "" {
		payee = strings.TrimSpace(t.Memo.String())
	}

	amount, _ := t.TrnAmt.Float64()
	rec, err := reader.NewRawRecord(id, date, t.TrnType.String(), decimal.NewFromFloat(amount), payee, source)
	if err != nil {
		return nil, fmt.Errorf("failed to create record %s: %w", id, err)
	}

	if memo := strings.TrimSpace(t.Memo.String()); memo != "" && memo != payee {
		rec.SetMemo(memo)
	}
	return rec, nil
}

// appendLedgerBalance records the statement's ledger balance when the
// statement reports one. An absent LEDGERBAL leaves DtAsOf zero; in that
// case the balance point is skipped, never fabricated.
func appendLedgerBalance(stmt *reader.Statement, balAmt ofxgo.Amount, asOf time.Time) {
	if asOf.IsZero() {
		return
	}
	value, _ := balAmt.Float64()
	stmt.Balances = append(stmt.Balances, reader.BalancePoint{
		Date:   asOf,
		Amount: decimal.NewFromFloat(value),
	})
}

// mapBankAccountType maps the OFX account type to the statement model's.
func mapBankAccountType(acct ofxgo.BankAcct) (string, error) {
	switch acct.AcctType {
	case ofxgo.AcctTypeChecking:
		return "checking", nil
	case ofxgo.AcctTypeSavings:
		return "savings", nil
	default:
		return "", fmt.Errorf("unknown OFX account type %v for account %s", acct.AcctType, acct.AcctID.String())
	}
}

// institutionName prefers the caller-supplied institution, falling back to
// the OFX signon organization.
func institutionName(resp *ofxgo.Response, meta reader.Metadata) string {
	if meta.Institution != "" {
		return meta.Institution
	}
	return resp.Signon.Org.String()
}

// currencyOf prefers the statement's declared currency over the fallback.
func currencyOf(curDef string, meta reader.Metadata) string {
	if curDef != "" && curDef != "XXX" {
		return strings.ToUpper(curDef)
	}
	return meta.Currency
}
