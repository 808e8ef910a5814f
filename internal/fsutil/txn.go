package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

type stagedFile struct {
	tmp, path string
}

// Txn groups the output files of one pipeline stage. Files written through it stay in
// hidden temp files until Commit moves all of them into place; Rollback removes every
// file the Txn staged or moved. A nil *Txn writes each file with WriteAtomic.
type Txn struct {
	mu        sync.Mutex
	pending   []stagedFile
	committed []string
}

// NewTxn returns an empty transaction.
func NewTxn() *Txn {
	return &Txn{}
}

// Write stages the contents of path. A later Write of the same path replaces the
// earlier one.
func (t *Txn) Write(path string, fill func(w io.Writer) error) error {
	if t == nil {
		return WriteAtomic(path, fill)
	}
	tmp, err := writeTemp(path, fill)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i, f := range t.pending {
		if f.path == path {
			os.Remove(f.tmp)
			t.pending[i].tmp = tmp
			return nil
		}
	}
	t.pending = append(t.pending, stagedFile{tmp: tmp, path: path})
	return nil
}

// Pending returns the target paths staged since the last Commit.
func (t *Txn) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	paths := make([]string, len(t.pending))
	for i, f := range t.pending {
		paths[i] = f.path
	}
	return paths
}

// Has reports whether path was staged or committed by the Txn.
func (t *Txn) Has(path string) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range t.pending {
		if f.path == path {
			return true
		}
	}
	for _, p := range t.committed {
		if p == path {
			return true
		}
	}
	return false
}

// Commit renames every staged file into place. When a rename fails, everything the
// Txn has written is removed and the error is returned. Commit may be called again
// for files staged afterwards.
func (t *Txn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, f := range t.pending {
		if err := os.Rename(f.tmp, f.path); err != nil {
			t.pending = t.pending[i:]
			t.rollback()
			return fmt.Errorf("failed to move '%s' into place: %w", f.path, err)
		}
		t.committed = append(t.committed, f.path)
	}
	t.pending = nil
	return nil
}

// Rollback removes the staged temp files and every file already committed.
func (t *Txn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	var errs []error
	for _, f := range t.pending {
		if err := os.Remove(f.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	for _, path := range t.committed {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	t.pending, t.committed = nil, nil
	return errors.Join(errs...)
}
