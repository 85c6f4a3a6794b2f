package memstore

import "fmt"

type duplicateError struct{ constraint string }

func (e duplicateError) Error() string {
	return fmt.Sprintf("duplicate key value violates unique constraint %q", e.constraint)
}

func errDuplicate(constraint string) error { return duplicateError{constraint: constraint} }
