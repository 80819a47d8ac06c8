package ledger

import (
	"fmt"
	"io"
	"strings"
)

const (
	// indentation for postings and metadata lines.
	indent = "  "
	// currencyColumn aligns amounts the way bean-format does.
	currencyColumn = 52
)

// escapeString escapes double quotes and backslashes for directive strings.
func escapeString(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return s
	}
	var b strings.Builder
	for _, c := range s {
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Render writes the entry in plain-text directive grammar followed by a
// trailing newline. Postings and metadata are indented two spaces; amounts
// are right-aligned to a fixed currency column.
func (e *Entry) Render(w io.Writer) error {
	var b strings.Builder
	date := e.Date.Format("2006-01-02")

	switch e.Kind {
	case KindTransaction:
		flag := e.Flag
		if flag == "" {
			flag = FlagCleared
		}
		b.WriteString(date)
		b.WriteByte(' ')
		b.WriteString(flag)
		if e.Payee != "" {
			fmt.Fprintf(&b, " \"%s\"", escapeString(e.Payee))
		}
		fmt.Fprintf(&b, " \"%s\"", escapeString(e.Narration))
		b.WriteByte('\n')
		writeMeta(&b, e)
		for _, p := range e.Postings {
			writePosting(&b, p)
		}
	case KindBalance:
		fmt.Fprintf(&b, "%s balance %s", date, e.Account)
		writeAligned(&b, e.Amount.String())
		b.WriteByte('\n')
		writeMeta(&b, e)
	case KindPrice:
		fmt.Fprintf(&b, "%s price %s", date, e.Commodity)
		writeAligned(&b, e.Amount.String())
		b.WriteByte('\n')
		writeMeta(&b, e)
	case KindOpen:
		fmt.Fprintf(&b, "%s open %s", date, e.Account)
		if e.Commodity != "" {
			fmt.Fprintf(&b, " %s", e.Commodity)
		}
		b.WriteByte('\n')
		writeMeta(&b, e)
	case KindClose:
		fmt.Fprintf(&b, "%s close %s\n", date, e.Account)
		writeMeta(&b, e)
	case KindCommodity:
		fmt.Fprintf(&b, "%s commodity %s\n", date, e.Commodity)
		writeMeta(&b, e)
	default:
		return fmt.Errorf("unknown entry kind %q", e.Kind)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// String renders the entry, swallowing the impossible strings.Builder error.
func (e *Entry) String() string {
	var b strings.Builder
	if err := e.Render(&b); err != nil {
		return fmt.Sprintf("<!invalid entry: %v>", err)
	}
	return b.String()
}

func writeMeta(b *strings.Builder, e *Entry) {
	for _, k := range e.MetaKeys() {
		fmt.Fprintf(b, "%s%s: \"%s\"\n", indent, k, escapeString(e.Meta[k]))
	}
}

func writePosting(b *strings.Builder, p Posting) {
	line := indent + p.Account
	b.WriteString(line)
	value := FormatValue(p.Amount.Value)
	pad := currencyColumn - len(line) - len(value) - 1
	if pad < 2 {
		pad = 2
	}
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(value)
	b.WriteByte(' ')
	b.WriteString(p.Amount.Currency)
	if p.Cost != nil {
		fmt.Fprintf(b, " {%s}", p.Cost.String())
	}
	if p.Price != nil {
		fmt.Fprintf(b, " @ %s", p.Price.String())
	}
	b.WriteByte('\n')
}

func writeAligned(b *strings.Builder, amount string) {
	b.WriteByte(' ')
	b.WriteString(amount)
}
