// Package pipeline orchestrates the import core: raw records are classified,
// resolved and built into balanced entries, deduplicated against the
// caller-supplied fingerprint set, and emitted in source order together with
// a diagnostics report. Each invocation is a pure function of its inputs;
// nothing is cached across calls, so re-running the same statement always
// yields the same fingerprints and entries.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/ledgertools/beanport/accounts"
	"github.com/ledgertools/beanport/build"
	"github.com/ledgertools/beanport/classify"
	"github.com/ledgertools/beanport/dedup"
	"github.com/ledgertools/beanport/institution"
	"github.com/ledgertools/beanport/ledger"
	"github.com/ledgertools/beanport/reader"
	"github.com/ledgertools/beanport/report"
	"github.com/ledgertools/beanport/securities"
	"github.com/ledgertools/beanport/txn"
)

// Pipeline is the import core for one institution. Construct with New; the
// pipeline itself is immutable and safe for concurrent use across statement
// files.
type Pipeline struct {
	cfg        *institution.Config
	resolver   *securities.Resolver
	deriver    *accounts.Deriver
	classifier *classify.Classifier
	builder    *build.Builder
	gate       *dedup.Gate
}

// New builds a pipeline from a validated institution config.
func New(cfg *institution.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	table, err := securities.NewTable(cfg.Securities)
	if err != nil {
		return nil, fmt.Errorf("institution %s: %w", cfg.Name, err)
	}

	deriver, err := accounts.NewDeriver(cfg.Roots, cfg.CommodityLeaf, cfg.LeafTemplate, cfg.Hooks.TargetAccount)
	if err != nil {
		return nil, fmt.Errorf("institution %s: %w", cfg.Name, err)
	}

	classifier, err := classify.New(cfg.TypeMap)
	if err != nil {
		return nil, fmt.Errorf("institution %s: %w", cfg.Name, err)
	}

	p := &Pipeline{
		cfg:        cfg,
		resolver:   securities.NewResolver(table),
		deriver:    deriver,
		classifier: classifier,
		gate:       dedup.NewGate(dedup.SkipFunc(cfg.Hooks.SkipTransaction)),
	}
	p.builder = build.NewBuilder(cfg, deriver)
	return p, nil
}

// Result is the outcome of processing one statement.
type Result struct {
	// Entries in the same relative order as the source records, followed
	// by balance assertions and price points.
	Entries []ledger.Entry
	// Fingerprints of the emitted transaction entries, in emission order.
	// Folding them into the existing set is the caller's responsibility.
	Fingerprints []string
	Report       *report.Report
}

// CustomEntries returns the institution-level directives (commodity
// declarations, account opens/closes, hook-provided entries) that are
// independent of any statement.
func (p *Pipeline) CustomEntries() []ledger.Entry {
	return build.CustomEntries(p.cfg)
}

// ProcessStatement runs the core over one parsed statement. The existing
// fingerprint set is read-only; duplicates are counted and suppressed, never
// re-emitted. Unresolved securities and unclassified type codes surface in
// the report, not as errors.
func (p *Pipeline) ProcessStatement(stmt *reader.Statement, existing dedup.Set) *Result {
	rep := report.New(p.cfg.Name)
	result := &Result{Report: rep}
	currency := p.currency(stmt)

	for _, rec := range stmt.Records {
		t, ok := p.normalize(rec, currency, rep)
		if !ok {
			continue
		}
		if p.gate.Skip(t) {
			rep.Skipped++
			continue
		}
		fp := dedup.Fingerprint(t)
		if p.gate.Duplicate(t, existing) {
			rep.Duplicates++
			continue
		}

		entry, err := p.builder.Build(t)
		if err != nil {
			rep.AddImbalance(err.Error())
			continue
		}
		result.Entries = append(result.Entries, *entry)
		result.Fingerprints = append(result.Fingerprints, fp)
		rep.Emitted++
	}

	// Balance assertions and price points only exist when the statement
	// reported the underlying data; absent data is skipped, not invented.
	result.Entries = append(result.Entries,
		build.BalanceEntries(stmt.Balances, p.deriver.Roots().Cash.String(), currency)...)

	for _, point := range stmt.Prices {
		sec, tie, err := p.resolver.Resolve(point.SecurityID, "")
		if err != nil {
			if unresolved, isUnresolved := err.(*securities.UnresolvedError); isUnresolved {
				rep.AddUnresolved(unresolved)
				continue
			}
			rep.AddFailure(stmt.Source, err)
			continue
		}
		rep.AddTie(tie)
		result.Entries = append(result.Entries,
			build.PriceEntry(point.Date, sec.Symbol, point.Price, currency))
	}

	return result
}

// normalize turns one raw record into a normalized transaction. Returns
// ok=false when the record cannot be emitted (unresolved security); the gap
// is reported, never silently dropped.
func (p *Pipeline) normalize(rec *reader.RawRecord, currency string, rep *report.Report) (*txn.Transaction, bool) {
	res := p.classifier.Classify(rec.TypeCode(), p.cfg.Kind)
	if !res.Known {
		rep.AddUnclassified(rec.TypeCode())
	}

	amount := rec.Amount()
	if res.Sign != classify.SignPreserve {
		amount = amount.Abs()
		if res.Sign < 0 {
			amount = amount.Neg()
		}
	}

	var sec *securities.Security
	if rec.SecurityID() != "" || rec.SecurityName() != "" {
		resolved, tie, err := p.resolver.Resolve(rec.SecurityID(), rec.SecurityName())
		if err != nil {
			if unresolved, isUnresolved := err.(*securities.UnresolvedError); isUnresolved {
				unresolved.CurrencyHint = currency
				rep.AddUnresolved(unresolved)
				return nil, false
			}
			rep.AddFailure(rec.Source(), err)
			return nil, false
		}
		rep.AddTie(tie)
		sec = &resolved
	}

	t := &txn.Transaction{
		Date:      rec.Date(),
		Action:    res.Action,
		Amount:    amount,
		Currency:  currency,
		Security:  sec,
		Payee:     rec.Payee(),
		Narration: rec.Memo(),
		Units:     rec.Units(),
		UnitPrice: rec.UnitPrice(),
		Fees:      rec.Fees(),
		SourceID:  rec.ID(),
		Source:    rec.Source(),
		Flagged:   !res.Known,
		RawType:   rec.TypeCode(),
	}
	t.Account = p.deriver.Derive(accounts.Context{
		Action:   t.Action,
		Security: t.Security,
		Payee:    t.Payee,
		Memo:     t.Narration,
	})
	return t, true
}

// currency picks the statement currency, falling back to the institution's.
func (p *Pipeline) currency(stmt *reader.Statement) string {
	if stmt.Currency != "" {
		return stmt.Currency
	}
	return p.cfg.Currency
}

// ProcessFiles runs the pipeline over a batch of statement files using the
// reader registry. One malformed file becomes a failure report entry; the
// rest of the batch continues. Entry order within each file follows the
// source records; across files, order follows the path list given. The run
// may be cancelled between files via ctx with no cleanup required, since
// nothing is mutated until a file's entries are returned.
func (p *Pipeline) ProcessFiles(ctx context.Context, reg *reader.Registry, paths []string, existing dedup.Set) *Result {
	rep := report.New(p.cfg.Name)
	result := &Result{Report: rep}
	result.Entries = append(result.Entries, p.CustomEntries()...)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			rep.AddFailure(path, err)
			break
		}

		stmt, err := p.readFile(ctx, reg, path)
		if err != nil {
			rep.AddFailure(path, err)
			continue
		}

		fileResult := p.ProcessStatement(stmt, existing)
		result.Entries = append(result.Entries, fileResult.Entries...)
		result.Fingerprints = append(result.Fingerprints, fileResult.Fingerprints...)
		rep.Merge(fileResult.Report)
	}
	return result
}

// readFile locates a reader for the file and parses it, wrapping parse
// failures as *reader.FormatError.
func (p *Pipeline) readFile(ctx context.Context, reg *reader.Registry, path string) (*reader.Statement, error) {
	r, err := reg.FindReader(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	stmt, err := r.Read(ctx, f, reader.Metadata{
		FilePath:    path,
		Institution: p.cfg.Name,
		Currency:    p.cfg.Currency,
	})
	if err != nil {
		return nil, &reader.FormatError{File: path, Err: err}
	}
	return stmt, nil
}
