package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgertools/beanport/classify"
	"github.com/ledgertools/beanport/securities"
	"github.com/ledgertools/beanport/txn"
)

func testTxn() *txn.Transaction {
	return &txn.Transaction{
		Date:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Action:   classify.ActionBuy,
		Amount:   decimal.NewFromFloat(-5187.30),
		Currency: "USD",
		Security: &securities.Security{Symbol: "VTI"},
		Source:   "statements/2024-03.csv",
		SourceID: "TXN001",
	}
}

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint(testTxn())
	b := Fingerprint(testTxn())
	if a != b {
		t.Errorf("same transaction hashed differently: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprint_SymbolCaseInsensitive(t *testing.T) {
	a := testTxn()
	b := testTxn()
	b.Security = &securities.Security{Symbol: "vti"}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("symbol case changed the fingerprint")
	}
}

func TestFingerprint_Discriminates(t *testing.T) {
	base := Fingerprint(testTxn())

	mutations := map[string]func(*txn.Transaction){
		"date":   func(x *txn.Transaction) { x.Date = x.Date.AddDate(0, 0, 1) },
		"action": func(x *txn.Transaction) { x.Action = classify.ActionSell },
		"amount": func(x *txn.Transaction) { x.Amount = x.Amount.Add(decimal.NewFromInt(1)) },
		"symbol": func(x *txn.Transaction) { x.Security = &securities.Security{Symbol: "BND"} },
		"source": func(x *txn.Transaction) { x.Source = "statements/2024-04.csv" },
	}
	for name, mutate := range mutations {
		x := testTxn()
		mutate(x)
		if Fingerprint(x) == base {
			t.Errorf("changing %s did not change the fingerprint", name)
		}
	}
}

func TestFingerprint_IgnoresSourceID(t *testing.T) {
	// The statement's own transaction ID is not part of the key; the same
	// economic line re-exported with a new FITID must still deduplicate.
	a := testTxn()
	b := testTxn()
	b.SourceID = "TXN999"
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("source ID changed the fingerprint")
	}
}

func TestGate(t *testing.T) {
	gate := NewGate(func(x *txn.Transaction) bool {
		return x.Action == classify.ActionTransfer
	})

	existing := make(MapSet)
	keep := testTxn()
	if !gate.ShouldEmit(keep, existing) {
		t.Error("fresh transaction should emit")
	}

	existing.Add(Fingerprint(keep))
	if gate.ShouldEmit(keep, existing) {
		t.Error("recorded transaction should not emit")
	}
	if !gate.Duplicate(keep, existing) {
		t.Error("Duplicate() = false for recorded transaction")
	}

	skipped := testTxn()
	skipped.Action = classify.ActionTransfer
	if !gate.Skip(skipped) {
		t.Error("skip hook did not suppress transfer")
	}
	if gate.ShouldEmit(skipped, make(MapSet)) {
		t.Error("skipped transaction should not emit")
	}
}

func TestGate_NilHookAndSet(t *testing.T) {
	gate := NewGate(nil)
	if gate.Skip(testTxn()) {
		t.Error("nil skip hook suppressed a transaction")
	}
	if gate.Duplicate(testTxn(), nil) {
		t.Error("nil set reported a duplicate")
	}
	if !gate.ShouldEmit(testTxn(), nil) {
		t.Error("nil gate inputs should emit")
	}
}
