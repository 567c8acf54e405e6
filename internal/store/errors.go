package store

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrDuplicateAssignment is returned when a kid already has an assignment
	// for the template.
	ErrDuplicateAssignment = errors.New("kid already has an assignment for this task")

	// ErrInUse is returned when a catalog record still anchors task or
	// redemption history. Such records can be deactivated but not deleted.
	ErrInUse = errors.New("record is referenced by history")
)

// inUse explains a delete that matched no row: ErrInUse when the reference
// query finds history, nil when the record was already gone.
func inUse(db *sql.DB, query string, id int64, msg string) error {
	var referenced bool
	if err := db.QueryRow(query, id).Scan(&referenced); err != nil {
		return fmt.Errorf("check references: %w", err)
	}
	if referenced {
		return fmt.Errorf("%s: %w", msg, ErrInUse)
	}
	return nil
}
