// Package repository holds the MySQL data access code.  Methods with a
// Tx suffix run inside a caller-owned *sql.Tx; the caller commits or
// rolls back.  Missing rows are reported as model.ErrNotFound and
// unique-key violations as model.ErrConflict so handlers can map them
// without knowing about the driver.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/toolshare/rental-backend/internal/model"
)

var (
	// ErrEmailExists is returned when registering a taken email.
	ErrEmailExists = fmt.Errorf("%w: email already exists", model.ErrConflict)
	// ErrTransactionExists is returned when a rent request already has
	// a transaction.
	ErrTransactionExists = fmt.Errorf("%w: transaction already exists for this rent request", model.ErrConflict)
	// ErrDuplicateReview is returned when a reviewer reviews the same
	// transaction twice.
	ErrDuplicateReview = fmt.Errorf("%w: review already submitted for this transaction", model.ErrConflict)
	// ErrTokenInvalid covers unknown, revoked and expired refresh tokens.
	ErrTokenInvalid = fmt.Errorf("%w: refresh token invalid", model.ErrUnauthenticated)
)

const errDupEntry = 1062

// isDuplicate reports whether err is a MySQL unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

// notFound converts sql.ErrNoRows into a model.ErrNotFound naming what.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", model.ErrNotFound, what)
	}
	return err
}

// timePtr unwraps a nullable DATETIME column.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// stringPtr unwraps a nullable text column.
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
