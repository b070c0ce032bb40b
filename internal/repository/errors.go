package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound no row matched the lookup.
var ErrNotFound = errors.New("not found")

// DataAccessError the backing store failed (network, permission, malformed query).
type DataAccessError struct {
	Op    string
	Table string
	Err   error
}

func (e *DataAccessError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("data access %s on %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("data access %s: %v", e.Op, e.Err)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

func dataAccess(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var dae *DataAccessError
	if errors.As(err, &dae) {
		return err
	}
	return &DataAccessError{Op: op, Table: table, Err: err}
}

// IsDataAccess reports whether err (or something it wraps) is a DataAccessError.
func IsDataAccess(err error) bool {
	var dae *DataAccessError
	return errors.As(err, &dae)
}
