package institution

import (
	"github.com/ledgertools/beanport/accounts"
	"github.com/ledgertools/beanport/ledger"
	"github.com/ledgertools/beanport/txn"
)

// Hooks are the explicit override points for institution-specific behavior.
// Every hook has a documented default and a sentinel "defer to default"
// return; a nil hook always means default behavior.
type Hooks struct {
	// TargetAccount overrides target-account resolution for special
	// cases. Returning ok=false defers to the template-based default.
	TargetAccount accounts.OverrideFunc

	// SecurityNarration formats a richer narration for security
	// transactions. Returning ok=false keeps the statement text. When it
	// returns ok=true the override always wins over the raw text.
	SecurityNarration func(t *txn.Transaction) (string, bool)

	// BuildMetadata replaces the default per-transaction metadata.
	// Returning ok=false keeps the default, which always includes the
	// source transaction identifier needed to recompute the fingerprint.
	BuildMetadata func(t *txn.Transaction) (map[string]string, bool)

	// SkipTransaction suppresses known no-op statement lines before
	// deduplication even runs. The default skips nothing.
	SkipTransaction func(t *txn.Transaction) bool

	// CustomEntries produces institution-level directives independent of
	// any single transaction, in addition to the commodity/open/close
	// declarations in the config. The default produces none.
	CustomEntries func() []ledger.Entry
}
