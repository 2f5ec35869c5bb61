// Package discovery walks analysis roots and yields candidate files for
// extraction modules to inspect.
package discovery

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/statweave/statweave/internal/config"
)

// CandidateFile is one discovered file. Modules receive read-only views;
// ownership never transfers.
type CandidateFile struct {
	// Path is the absolute file path.
	Path string

	// Root is the logical analysis root the file was found under. Empty for
	// file-list entries.
	Root string
}

// Name returns the file's base name.
func (cf CandidateFile) Name() string {
	return filepath.Base(cf.Path)
}

// Discover yields candidate files per the run configuration: either by
// reading the configured file list or by walking every root in order.
// The result order is deterministic for identical inputs.
func Discover(cfg *config.RunConfig) ([]CandidateFile, error) {
	if cfg.FileList != "" {
		return fromFileList(cfg.FileList)
	}

	var files []CandidateFile

	for _, root := range cfg.Roots {
		rootFiles, err := walkRoot(root, cfg.IgnoreDirs, cfg.IgnorePatterns)
		if err != nil {
			return nil, err
		}

		files = append(files, rootFiles...)
	}

	return files, nil
}

// walkRoot walks one root directory, pruning ignored directories and
// filtering ignored file patterns. A root that is a plain file yields itself.
func walkRoot(root string, ignoreDirs, ignorePatterns []string) ([]CandidateFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	info, statErr := os.Stat(absRoot)
	if statErr != nil {
		return nil, fmt.Errorf("stat root %s: %w", root, statErr)
	}

	if !info.IsDir() {
		return []CandidateFile{{Path: absRoot, Root: filepath.Dir(absRoot)}}, nil
	}

	var files []CandidateFile

	walkErr := filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if slices.Contains(ignoreDirs, entry.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		if matchesAny(entry.Name(), ignorePatterns) {
			return nil
		}

		files = append(files, CandidateFile{Path: path, Root: absRoot})

		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	return files, nil
}

// fromFileList reads candidate paths from a file, one per line. Blank lines
// and lines starting with '#' are skipped.
func fromFileList(listPath string) ([]CandidateFile, error) {
	f, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file list: %w", err)
	}
	defer f.Close()

	var files []CandidateFile

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		abs, absErr := filepath.Abs(line)
		if absErr != nil {
			return nil, fmt.Errorf("resolve list entry %s: %w", line, absErr)
		}

		files = append(files, CandidateFile{Path: abs})
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return nil, fmt.Errorf("read file list: %w", scanErr)
	}

	return files, nil
}

// matchesAny reports whether name matches any of the glob patterns.
// Malformed patterns never match.
func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		ok, err := filepath.Match(pattern, name)
		if err == nil && ok {
			return true
		}
	}

	return false
}
