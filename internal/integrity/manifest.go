// Package integrity writes and verifies checksum manifests of stage outputs.
package integrity

import (
	"DDoSpectra/internal/fsutil"
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Supported manifest algorithms.
const (
	AlgorithmSHA256 = "sha256"
	AlgorithmBLAKE3 = "blake3"
)

// Entry is one manifest line.
type Entry struct {
	Sum  string
	Name string
}

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case AlgorithmSHA256, "":
		return sha256.New(), nil
	case AlgorithmBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unknown checksum algorithm %q", algorithm)
	}
}

// HashFile returns the hex digest of a file.
func HashFile(path, algorithm string) (string, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file '%s': %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Build hashes every regular file directly under dir, except the manifest itself
// and hidden temp files, sorted by name.
func Build(dir, manifestName, algorithm string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list '%s': %w", dir, err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if !de.Type().IsRegular() || name == manifestName || strings.HasPrefix(name, ".") {
			continue
		}
		sum, err := HashFile(filepath.Join(dir, name), algorithm)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Sum: sum, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// WriteManifest builds the manifest of dir and writes it as dir/manifestName, one
// "<hex>  <filename>" line per file.
func WriteManifest(dir, manifestName, algorithm string) ([]Entry, error) {
	return StageManifest(nil, dir, manifestName, algorithm)
}

// StageManifest is WriteManifest with the manifest file staged in files.
func StageManifest(files *fsutil.Txn, dir, manifestName, algorithm string) ([]Entry, error) {
	entries, err := Build(dir, manifestName, algorithm)
	if err != nil {
		return nil, err
	}
	err = files.Write(filepath.Join(dir, manifestName), func(w io.Writer) error {
		for _, e := range entries {
			if _, err := fmt.Fprintf(w, "%s  %s\n", e.Sum, e.Name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return entries, nil
}

// ReadManifest parses a manifest file.
func ReadManifest(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		sum, name, ok := strings.Cut(line, "  ")
		if !ok {
			return nil, fmt.Errorf("malformed manifest line %q", line)
		}
		entries = append(entries, Entry{Sum: sum, Name: name})
	}
	return entries, scanner.Err()
}

// Verify recomputes every entry of the manifest in dir and returns the names whose
// digest no longer matches.
func Verify(dir, manifestName, algorithm string) ([]string, error) {
	entries, err := ReadManifest(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, err
	}
	var mismatched []string
	for _, e := range entries {
		sum, err := HashFile(filepath.Join(dir, e.Name), algorithm)
		if err != nil || sum != e.Sum {
			mismatched = append(mismatched, e.Name)
		}
	}
	return mismatched, nil
}
