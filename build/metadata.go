package build

import (
	"path/filepath"

	"github.com/ledgertools/beanport/institution"
	"github.com/ledgertools/beanport/ledger"
	"github.com/ledgertools/beanport/txn"
)

// DefaultMetadata builds the standard per-transaction metadata: the source
// transaction identifier and file, enough to recompute the fingerprint for
// auditing, plus the raw type code when classification failed.
func DefaultMetadata(t *txn.Transaction) map[string]string {
	meta := map[string]string{
		"sourceid": t.SourceID,
		"srcfile":  filepath.Base(t.Source),
	}
	if t.Flagged && t.RawType != "" {
		meta["rawtype"] = t.RawType
	}
	return meta
}

// CustomEntries produces the institution-level directives that are
// independent of any single transaction: commodity declarations and account
// open/close directives from the config, plus whatever the custom-entries
// hook adds.
func CustomEntries(cfg *institution.Config) []ledger.Entry {
	var entries []ledger.Entry

	for _, c := range cfg.Commodities {
		entries = append(entries, ledger.Entry{
			Kind:      ledger.KindCommodity,
			Date:      c.Date,
			Commodity: c.Symbol,
		})
	}
	for _, o := range cfg.Opens {
		entries = append(entries, ledger.Entry{
			Kind:      ledger.KindOpen,
			Date:      o.Date,
			Account:   o.Account,
			Commodity: o.Currency,
		})
	}
	for _, c := range cfg.Closes {
		entries = append(entries, ledger.Entry{
			Kind:    ledger.KindClose,
			Date:    c.Date,
			Account: c.Account,
		})
	}

	if hook := cfg.Hooks.CustomEntries; hook != nil {
		entries = append(entries, hook()...)
	}
	return entries
}
