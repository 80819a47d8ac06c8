// Package scan walks a statement archive directory and discovers importable
// files. The archive layout encodes provenance: the first path component
// below the root names the institution, the second the account.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Result is one discovered statement file.
type Result struct {
	Path        string
	Institution string
	AccountID   string
}

// Scanner walks a directory tree for statement files.
type Scanner struct {
	rootDir string
}

// New creates a scanner rooted at rootDir.
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// Scan walks the tree and returns every statement file found, in walk order.
func (s *Scanner) Scan() ([]Result, error) {
	rootDir := expandHome(s.rootDir)

	var results []Result
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !isStatementFile(path) {
			return nil
		}
		results = append(results, resultFor(path, rootDir))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return results, nil
}

// isStatementFile checks for a supported statement extension.
func isStatementFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".qfx", ".ofx", ".csv":
		return true
	}
	return false
}

// resultFor derives institution and account from the path structure:
// {root}/{institution}/{account}/.../file.ext
func resultFor(filePath, rootDir string) Result {
	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		relPath = filePath
	}
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	res := Result{Path: filePath}
	if len(parts) >= 2 {
		res.Institution = normalizeInstitutionName(parts[0])
	}
	if len(parts) >= 3 {
		res.AccountID = parts[1]
	}
	return res
}

// normalizeInstitutionName converts a directory name to a readable name:
// "american_express" becomes "American Express".
func normalizeInstitutionName(dirName string) string {
	words := strings.Split(strings.ReplaceAll(dirName, "_", " "), " ")
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
