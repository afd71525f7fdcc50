package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeRunChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeRunID maps a run identifier onto characters safe for file names.
// Identifiers that had to be rewritten get a short hash of the original,
// so "team a" and "team_a" never share output files.
func SafeRunID(runID string) string {
	safe := unsafeRunChars.ReplaceAllString(runID, "_")
	if safe == runID && safe != "." && safe != ".." && safe != "" {
		return safe
	}
	sum := sha256.Sum256([]byte(runID))
	suffix := hex.EncodeToString(sum[:4])
	if safe == "" || safe == "." || safe == ".." {
		return "run-" + suffix
	}
	return safe + "-" + suffix
}

// OutputPath returns the file for the index-th (1-based) filled template of a run.
func OutputPath(dir, runID string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.txt", SafeRunID(runID), index))
}

// WriteFills writes one plain-text file per filled template. If any write
// fails, files already written for this run are removed.
func WriteFills(dir, runID string, fills []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	paths := make([]string, 0, len(fills))
	for i, fill := range fills {
		path := OutputPath(dir, runID, i+1)
		if err := os.WriteFile(path, []byte(fill), 0o644); err != nil {
			var cleanup []error
			for _, written := range paths {
				cleanup = append(cleanup, os.Remove(written))
			}
			return nil, errors.Join(fmt.Errorf("failed to write %s: %w", path, err), errors.Join(cleanup...))
		}
		paths = append(paths, path)
	}
	return paths, nil
}
