package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScan_ArchiveLayout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "american_express", "1001", "jan.qfx"))
	writeFile(t, filepath.Join(root, "american_express", "1001", "feb.ofx"))
	writeFile(t, filepath.Join(root, "broker", "5555", "2024", "trades.csv"))
	writeFile(t, filepath.Join(root, "broker", "5555", "notes.txt"))
	writeFile(t, filepath.Join(root, "README.md"))

	results, err := New(root).Scan()
	if err != nil {
		t.Fatalf("Scan() = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3: %v", len(results), results)
	}

	byPath := make(map[string]Result)
	for _, r := range results {
		rel, err := filepath.Rel(root, r.Path)
		if err != nil {
			t.Fatal(err)
		}
		byPath[filepath.ToSlash(rel)] = r
	}

	amex, ok := byPath["american_express/1001/jan.qfx"]
	if !ok {
		t.Fatal("jan.qfx not found")
	}
	if amex.Institution != "American Express" {
		t.Errorf("Institution = %q, want American Express", amex.Institution)
	}
	if amex.AccountID != "1001" {
		t.Errorf("AccountID = %q, want 1001", amex.AccountID)
	}

	// Deeper nesting still attributes to the first two components.
	trades, ok := byPath["broker/5555/2024/trades.csv"]
	if !ok {
		t.Fatal("trades.csv not found")
	}
	if trades.Institution != "Broker" || trades.AccountID != "5555" {
		t.Errorf("trades = %+v", trades)
	}
}

func TestScan_FileDirectlyUnderRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "loose.ofx"))

	results, err := New(root).Scan()
	if err != nil {
		t.Fatalf("Scan() = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Institution != "" || results[0].AccountID != "" {
		t.Errorf("loose file should carry no provenance, got %+v", results[0])
	}
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent")).Scan()
	if err == nil {
		t.Error("Scan() = nil error for missing root")
	}
}

func TestIsStatementFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"stmt.ofx", true},
		{"stmt.QFX", true},
		{"trades.csv", true},
		{"notes.txt", false},
		{"stmt.pdf", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := isStatementFile(tt.path); got != tt.want {
			t.Errorf("isStatementFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestNormalizeInstitutionName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"american_express", "American Express"},
		{"chase", "Chase"},
		{"td_bank", "Td Bank"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeInstitutionName(tt.in); got != tt.want {
			t.Errorf("normalizeInstitutionName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
