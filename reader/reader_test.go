package reader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewRawRecord_Validation(t *testing.T) {
	now := time.Now()
	amt := decimal.NewFromFloat(-50)

	tests := []struct {
		name    string
		id      string
		date    time.Time
		source  string
		wantErr string
	}{
		{"valid", "TXN001", now, "stmt.ofx", ""},
		{"empty id", "", now, "stmt.ofx", "ID cannot be empty"},
		{"zero date", "TXN001", time.Time{}, "stmt.ofx", "date cannot be zero"},
		{"empty source", "TXN001", now, "", "source cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewRawRecord(tt.id, tt.date, "DEBIT", amt, "Shop", tt.source)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NewRawRecord() = %v", err)
				}
				if rec.ID() != tt.id || !rec.Amount().Equal(amt) {
					t.Error("record fields not set")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewRawRecord() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRawRecord_SettleDateFallsBackToDate(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	rec, err := NewRawRecord("T1", date, "BUY", decimal.Zero, "", "s.csv")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.SettleDate().Equal(date) {
		t.Error("SettleDate() should fall back to the transaction date")
	}
	settle := date.AddDate(0, 0, 2)
	rec.SetSettleDate(settle)
	if !rec.SettleDate().Equal(settle) {
		t.Error("SetSettleDate() not honored")
	}
}

func TestRawRecord_OptionalFields(t *testing.T) {
	rec, err := NewRawRecord("T1", time.Now(), "BUY", decimal.Zero, "", "s.csv")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Balance() != nil {
		t.Error("Balance() should be nil until set")
	}
	rec.SetBalance(decimal.NewFromInt(950))
	if rec.Balance() == nil || !rec.Balance().Equal(decimal.NewFromInt(950)) {
		t.Error("SetBalance() not honored")
	}
	rec.SetSecurity("922908769", "Vanguard Total Stock Market ETF")
	if rec.SecurityID() != "922908769" || rec.SecurityName() == "" {
		t.Error("SetSecurity() not honored")
	}
	rec.SetInvestment(decimal.NewFromInt(10), decimal.NewFromFloat(518.73), decimal.NewFromFloat(4.95))
	if !rec.Units().Equal(decimal.NewFromInt(10)) || rec.Fees().IsZero() {
		t.Error("SetInvestment() not honored")
	}
}

// fakeReader claims files by extension for registry tests.
type fakeReader struct {
	name string
	ext  string
	mark string
}

func (f *fakeReader) Name() string { return f.name }

func (f *fakeReader) CanRead(path string, header []byte) bool {
	if filepath.Ext(path) != f.ext {
		return false
	}
	return f.mark == "" || strings.Contains(string(header), f.mark)
}

func (f *fakeReader) Read(ctx context.Context, r io.Reader, meta Metadata) (*Statement, error) {
	return &Statement{Source: meta.FilePath}, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegistry_FindReader(t *testing.T) {
	dir := t.TempDir()
	ofxPath := writeFile(t, dir, "stmt.ofx", "OFXHEADER:100\nDATA:OFXSGML\n")
	csvPath := writeFile(t, dir, "stmt.csv", "Date,Action,Amount\n")
	txtPath := writeFile(t, dir, "notes.txt", "not a statement")

	reg := NewRegistry(
		&fakeReader{name: "ofx", ext: ".ofx", mark: "OFXHEADER"},
		&fakeReader{name: "csv", ext: ".csv"},
	)

	r, err := reg.FindReader(ofxPath)
	if err != nil || r.Name() != "ofx" {
		t.Errorf("FindReader(ofx) = %v, %v", r, err)
	}
	r, err = reg.FindReader(csvPath)
	if err != nil || r.Name() != "csv" {
		t.Errorf("FindReader(csv) = %v, %v", r, err)
	}
	if _, err = reg.FindReader(txtPath); err == nil {
		t.Error("FindReader(txt) = nil error, want no reader found")
	}
}

func TestRegistry_HeaderDecidesBetweenReaders(t *testing.T) {
	dir := t.TempDir()
	// Same extension, different content markers.
	aPath := writeFile(t, dir, "a.csv", "HeaderA\n1,2,3\n")
	bPath := writeFile(t, dir, "b.csv", "HeaderB\n4,5,6\n")

	reg := NewRegistry(
		&fakeReader{name: "fmt-a", ext: ".csv", mark: "HeaderA"},
		&fakeReader{name: "fmt-b", ext: ".csv", mark: "HeaderB"},
	)

	r, err := reg.FindReader(aPath)
	if err != nil || r.Name() != "fmt-a" {
		t.Errorf("FindReader(a) = %v, %v", r, err)
	}
	r, err = reg.FindReader(bPath)
	if err != nil || r.Name() != "fmt-b" {
		t.Errorf("FindReader(b) = %v, %v", r, err)
	}
}

func TestRegistry_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.csv", "")

	reg := NewRegistry(&fakeReader{name: "csv", ext: ".csv"})
	if _, err := reg.FindReader(path); err != nil {
		t.Errorf("FindReader(empty) = %v, want reader matched on extension", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry(&fakeReader{name: "ofx"})
	reg.Register(&fakeReader{name: "csv"})
	names := reg.Names()
	if len(names) != 2 || names[0] != "ofx" || names[1] != "csv" {
		t.Errorf("Names() = %v", names)
	}
}

func TestFormatError_Unwrap(t *testing.T) {
	inner := errors.New("bad header")
	err := &FormatError{File: "stmt.ofx", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("FormatError should unwrap to the inner error")
	}
	if !strings.Contains(err.Error(), "stmt.ofx") {
		t.Errorf("Error() = %q", err.Error())
	}
}
