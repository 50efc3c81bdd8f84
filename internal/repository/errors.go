package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrActiveAssignmentExists is returned when a prospect already holds a
// pending or accepted assignment.
var ErrActiveAssignmentExists = errors.New("prospect already has an active assignment")

const (
	uniqueViolation       = "23505"
	activeAssignmentIndex = "idx_assignments_one_active"
)

func isActiveAssignmentConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeAssignmentIndex
}
