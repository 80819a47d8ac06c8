// Package report aggregates the per-run diagnostics the pipeline produces
// alongside its entries: unresolved securities, unclassified type codes,
// skipped and duplicate transactions, and per-file failures. The core never
// logs; everything user-visible flows through here.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/ledgertools/beanport/securities"
)

// FileFailure records one statement file that could not be processed.
// A failed file never aborts the rest of the batch.
type FileFailure struct {
	File string
	Err  string
}

// Report is the diagnostics summary for one import run.
type Report struct {
	RunID       string
	Institution string

	Unresolved   []securities.UnresolvedError
	Ties         []securities.Tie
	Unclassified map[string]int // raw type code -> occurrences
	Skipped      int            // suppressed by the skip hook
	Duplicates   int            // suppressed by the dedup gate
	Emitted      int
	FileFailures []FileFailure

	// Imbalanced lists diagnostics for entries whose construction failed
	// the zero-sum invariant; those entries were not emitted.
	Imbalanced []string
}

// New creates an empty report for an institution with a fresh run ID.
func New(institution string) *Report {
	return &Report{
		RunID:        uuid.NewString(),
		Institution:  institution,
		Unclassified: make(map[string]int),
	}
}

// AddUnresolved records a security that resolution could not place.
func (r *Report) AddUnresolved(err *securities.UnresolvedError) {
	if err != nil {
		r.Unresolved = append(r.Unresolved, *err)
	}
}

// AddTie records a substring resolution that had equally good candidates.
func (r *Report) AddTie(tie *securities.Tie) {
	if tie != nil {
		r.Ties = append(r.Ties, *tie)
	}
}

// AddUnclassified counts a raw type code outside the institution mapping.
func (r *Report) AddUnclassified(rawCode string) {
	r.Unclassified[rawCode]++
}

// AddFailure records a per-file failure.
func (r *Report) AddFailure(file string, err error) {
	r.FileFailures = append(r.FileFailures, FileFailure{File: file, Err: err.Error()})
}

// AddImbalance records an entry that failed the zero-sum invariant and was
// not emitted.
func (r *Report) AddImbalance(diagnostic string) {
	r.Imbalanced = append(r.Imbalanced, diagnostic)
}

// Merge folds another report (typically per-file) into this one. Run ID and
// institution of the receiver are kept.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Unresolved = append(r.Unresolved, other.Unresolved...)
	r.Ties = append(r.Ties, other.Ties...)
	for code, n := range other.Unclassified {
		r.Unclassified[code] += n
	}
	r.Skipped += other.Skipped
	r.Duplicates += other.Duplicates
	r.Emitted += other.Emitted
	r.FileFailures = append(r.FileFailures, other.FileFailures...)
	r.Imbalanced = append(r.Imbalanced, other.Imbalanced...)
}

// Clean reports whether the run finished with nothing for the user to act on.
func (r *Report) Clean() bool {
	return len(r.Unresolved) == 0 && len(r.Ties) == 0 &&
		len(r.Unclassified) == 0 && len(r.FileFailures) == 0 &&
		len(r.Imbalanced) == 0
}

// Render writes a human-readable summary. Problems render in color when the
// writer supports it; color degrades to plain text otherwise.
func (r *Report) Render(w io.Writer) {
	bold := color.New(color.Bold)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)
	good := color.New(color.FgGreen)

	bold.Fprintf(w, "import run %s (%s)\n", r.RunID, r.Institution)
	fmt.Fprintf(w, "  emitted:    %d\n", r.Emitted)
	fmt.Fprintf(w, "  duplicates: %d\n", r.Duplicates)
	fmt.Fprintf(w, "  skipped:    %d\n", r.Skipped)

	if len(r.FileFailures) > 0 {
		bad.Fprintf(w, "  failed files: %d\n", len(r.FileFailures))
		for _, f := range r.FileFailures {
			fmt.Fprintf(w, "    %s: %s\n", f.File, f.Err)
		}
	}

	if len(r.Imbalanced) > 0 {
		bad.Fprintf(w, "  imbalanced entries: %d\n", len(r.Imbalanced))
		for _, d := range r.Imbalanced {
			fmt.Fprintf(w, "    %s\n", d)
		}
	}

	if len(r.Unresolved) > 0 {
		bad.Fprintf(w, "  unresolved securities: %d\n", len(r.Unresolved))
		for _, u := range r.Unresolved {
			fmt.Fprintf(w, "    %q", u.Identifier)
			if u.Name != "" {
				fmt.Fprintf(w, " (%s)", u.Name)
			}
			if len(u.PartialMatches) > 0 {
				fmt.Fprintf(w, " near: %v", u.PartialMatches)
			}
			fmt.Fprintln(w)
		}
	}

	if len(r.Ties) > 0 {
		warn.Fprintf(w, "  ambiguous matches: %d\n", len(r.Ties))
		for _, t := range r.Ties {
			fmt.Fprintf(w, "    %q -> %s (also matched %v)\n", t.Identifier, t.Chosen, t.Others)
		}
	}

	if len(r.Unclassified) > 0 {
		warn.Fprintf(w, "  unclassified type codes: %d\n", len(r.Unclassified))
		codes := make([]string, 0, len(r.Unclassified))
		for code := range r.Unclassified {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "    %q x%d\n", code, r.Unclassified[code])
		}
	}

	if r.Clean() {
		good.Fprintln(w, "  no issues")
	}
}
