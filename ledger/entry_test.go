package ledger

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCheckBalance(t *testing.T) {
	tests := []struct {
		name      string
		postings  []Posting
		wantErr   bool
		imbalance bool
	}{
		{
			name: "simple balanced pair",
			postings: []Posting{
				{Account: "Assets:Checking", Amount: NewAmountFloat(-50, "USD")},
				{Account: "Expenses:Food", Amount: NewAmountFloat(50, "USD")},
			},
		},
		{
			name: "within tolerance",
			postings: []Posting{
				{Account: "Assets:Checking", Amount: NewAmountFloat(-50.004, "USD")},
				{Account: "Expenses:Food", Amount: NewAmountFloat(50, "USD")},
			},
		},
		{
			name: "beyond tolerance",
			postings: []Posting{
				{Account: "Assets:Checking", Amount: NewAmountFloat(-50.10, "USD")},
				{Account: "Expenses:Food", Amount: NewAmountFloat(50, "USD")},
			},
			wantErr:   true,
			imbalance: true,
		},
		{
			name: "cost weight balances against cash",
			postings: []Posting{
				{Account: "Assets:Brokerage:Cash", Amount: NewAmountFloat(-5187.30, "USD")},
				{
					Account: "Assets:Brokerage:HOOL",
					Amount:  NewAmountFloat(10, "HOOL"),
					Cost:    &Amount{Value: decimal.NewFromFloat(518.73), Currency: "USD"},
				},
			},
		},
		{
			name: "price weight balances against cash",
			postings: []Posting{
				{Account: "Assets:Brokerage:Cash", Amount: NewAmountFloat(482.50, "USD")},
				{
					Account: "Assets:Brokerage:HOOL",
					Amount:  NewAmountFloat(-5, "HOOL"),
					Price:   &Amount{Value: decimal.NewFromFloat(96.50), Currency: "USD"},
				},
			},
		},
		{
			name: "multi currency balanced independently",
			postings: []Posting{
				{Account: "Assets:US", Amount: NewAmountFloat(-10, "USD")},
				{Account: "Expenses:US", Amount: NewAmountFloat(10, "USD")},
				{Account: "Assets:EU", Amount: NewAmountFloat(-20, "EUR")},
				{Account: "Expenses:EU", Amount: NewAmountFloat(20, "EUR")},
			},
		},
		{
			name: "single posting rejected",
			postings: []Posting{
				{Account: "Assets:Checking", Amount: NewAmountFloat(-50, "USD")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entry{
				Kind:     KindTransaction,
				Date:     date("2024-03-15"),
				Payee:    "Test",
				Postings: tt.postings,
			}
			err := e.CheckBalance()
			if tt.wantErr && err == nil {
				t.Fatal("CheckBalance() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("CheckBalance() = %v, want nil", err)
			}
			var imb *ImbalanceError
			if got := errors.As(err, &imb); got != tt.imbalance {
				t.Errorf("errors.As(ImbalanceError) = %v, want %v", got, tt.imbalance)
			}
		})
	}
}

func TestCheckBalance_NonTransactionPasses(t *testing.T) {
	e := &Entry{Kind: KindBalance, Date: date("2024-03-15"), Account: "Assets:Checking"}
	if err := e.CheckBalance(); err != nil {
		t.Errorf("CheckBalance() on balance entry = %v, want nil", err)
	}
}

func TestResiduals(t *testing.T) {
	e := &Entry{
		Kind: KindTransaction,
		Postings: []Posting{
			{Account: "Assets:Checking", Amount: NewAmountFloat(-50.03, "USD")},
			{Account: "Expenses:Food", Amount: NewAmountFloat(50, "USD")},
		},
	}
	res := e.Residuals()
	if len(res) != 1 {
		t.Fatalf("Residuals() has %d currencies, want 1", len(res))
	}
	if got := res["USD"]; !got.Equal(decimal.NewFromFloat(-0.03)) {
		t.Errorf("residual = %s, want -0.03", got)
	}
}

func TestMetaKeysSorted(t *testing.T) {
	e := &Entry{}
	e.SetMeta("srcfile", "stmt.ofx")
	e.SetMeta("sourceid", "TXN001")
	keys := e.MetaKeys()
	if len(keys) != 2 || keys[0] != "sourceid" || keys[1] != "srcfile" {
		t.Errorf("MetaKeys() = %v, want sorted [sourceid srcfile]", keys)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"50", "50.00"},
		{"-37.4", "-37.40"},
		{"518.73", "518.73"},
		{"96.5012", "96.5012"},
		{"0", "0.00"},
	}
	for _, tt := range tests {
		d, err := decimal.NewFromString(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := FormatValue(d); got != tt.want {
			t.Errorf("FormatValue(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderTransaction(t *testing.T) {
	cost := Amount{Value: decimal.NewFromFloat(518.73), Currency: "USD"}
	e := &Entry{
		Kind:      KindTransaction,
		Date:      date("2024-03-15"),
		Payee:     "Broker",
		Narration: "BUY HOOL",
		Meta:      map[string]string{"sourceid": "TXN001"},
		Postings: []Posting{
			{Account: "Assets:Brokerage:Cash", Amount: NewAmountFloat(-5187.30, "USD")},
			{Account: "Assets:Brokerage:HOOL", Amount: NewAmountFloat(10, "HOOL"), Cost: &cost},
		},
	}

	out := e.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if lines[0] != `2024-03-15 * "Broker" "BUY HOOL"` {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `  sourceid: "TXN001"` {
		t.Errorf("meta line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "Assets:Brokerage:Cash") || !strings.HasSuffix(lines[2], "-5187.30 USD") {
		t.Errorf("cash leg = %q", lines[2])
	}
	if !strings.HasSuffix(lines[3], "10.00 HOOL {518.73 USD}") {
		t.Errorf("commodity leg = %q", lines[3])
	}
	// Amounts right-align so the currency starts at a fixed column.
	if idx := strings.Index(lines[2], "-5187.30"); idx+len("-5187.30") != 51 {
		t.Errorf("amount not aligned, ends at %d: %q", idx+len("-5187.30"), lines[2])
	}
}

func TestRenderDirectives(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{
			name: "balance",
			entry: Entry{
				Kind: KindBalance, Date: date("2024-04-01"),
				Account: "Assets:Checking", Amount: NewAmountFloat(950, "USD"),
			},
			want: "2024-04-01 balance Assets:Checking 950.00 USD\n",
		},
		{
			name: "price",
			entry: Entry{
				Kind: KindPrice, Date: date("2024-03-15"),
				Commodity: "HOOL", Amount: NewAmountFloat(518.73, "USD"),
			},
			want: "2024-03-15 price HOOL 518.73 USD\n",
		},
		{
			name: "open with currency",
			entry: Entry{
				Kind: KindOpen, Date: date("2020-01-01"),
				Account: "Assets:Checking", Commodity: "USD",
			},
			want: "2020-01-01 open Assets:Checking USD\n",
		},
		{
			name: "close",
			entry: Entry{
				Kind: KindClose, Date: date("2024-12-31"),
				Account: "Assets:Old",
			},
			want: "2024-12-31 close Assets:Old\n",
		},
		{
			name: "commodity",
			entry: Entry{
				Kind: KindCommodity, Date: date("2020-01-01"),
				Commodity: "HOOL",
			},
			want: "2020-01-01 commodity HOOL\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderEscapesQuotes(t *testing.T) {
	e := &Entry{
		Kind:      KindTransaction,
		Date:      date("2024-03-15"),
		Narration: `Store "A" \ B`,
		Postings: []Posting{
			{Account: "Assets:Checking", Amount: NewAmountFloat(-1, "USD")},
			{Account: "Expenses:Misc", Amount: NewAmountFloat(1, "USD")},
		},
	}
	out := e.String()
	if !strings.Contains(out, `"Store \"A\" \\ B"`) {
		t.Errorf("expected escaped narration, got %q", out)
	}
}

func TestRenderWarningFlag(t *testing.T) {
	e := &Entry{
		Kind: KindTransaction,
		Date: date("2024-03-15"),
		Flag: FlagWarning, Narration: "unknown code",
		Postings: []Posting{
			{Account: "Assets:Checking", Amount: NewAmountFloat(-1, "USD")},
			{Account: "Expenses:Unclassified", Amount: NewAmountFloat(1, "USD")},
		},
	}
	if !strings.HasPrefix(e.String(), `2024-03-15 ! "unknown code"`) {
		t.Errorf("expected warning flag header, got %q", e.String())
	}
}
