package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// CorruptStoreError reports a persisted document that does not parse or
// whose entries violate the storage invariants. It is never repaired
// automatically.
type CorruptStoreError struct {
	Suite  string
	Reason string
}

func (e *CorruptStoreError) Error() string {
	if e.Suite == "" {
		return fmt.Sprintf("corrupt benchmark store: %s", e.Reason)
	}
	return fmt.Sprintf("corrupt benchmark store for suite '%s': %s", e.Suite, e.Reason)
}

// InvalidEntryError rejects an incoming entry as a whole. Problems lists
// every violation found.
type InvalidEntryError struct {
	Suite    string
	Problems []string
}

func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("invalid entry for suite '%s': %s", e.Suite, strings.Join(e.Problems, "; "))
}

// OutOfOrderError rejects an entry recorded before the newest entry in the
// store when backfill was not requested.
type OutOfOrderError struct {
	Suite      string
	Date       int64
	LastUpdate int64
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("entry date %d precedes last update %d of suite '%s'; backfill must be requested explicitly",
		e.Date, e.LastUpdate, e.Suite)
}

// ConcurrentModificationError reports that the persisted suite changed after
// the store being written was loaded. The caller must reload and retry.
type ConcurrentModificationError struct {
	Suite  string
	Reason string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("suite '%s' was modified concurrently: %s", e.Suite, e.Reason)
}

// IsCorruptStore reports whether err is or wraps a CorruptStoreError.
func IsCorruptStore(err error) bool {
	var target *CorruptStoreError
	return errors.As(err, &target)
}

// IsInvalidEntry reports whether err is or wraps an InvalidEntryError.
func IsInvalidEntry(err error) bool {
	var target *InvalidEntryError
	return errors.As(err, &target)
}

// IsOutOfOrder reports whether err is or wraps an OutOfOrderError.
func IsOutOfOrder(err error) bool {
	var target *OutOfOrderError
	return errors.As(err, &target)
}

// IsConcurrentModification reports whether err is or wraps a
// ConcurrentModificationError.
func IsConcurrentModification(err error) bool {
	var target *ConcurrentModificationError
	return errors.As(err, &target)
}
