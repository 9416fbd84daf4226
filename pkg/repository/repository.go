// Package repository implements lifecycle.Store.
//
// GormStore persists to PostgreSQL through gorm. MemoryStore keeps everything
// in process and backs tests and the no-database mode of the server.
package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"trade-ledger/internal/lifecycle"
)

// PostgreSQL SQLSTATE codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// translate maps driver constraint failures onto the lifecycle sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", lifecycle.ErrUniqueViolation, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", lifecycle.ErrUniqueViolation, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", lifecycle.ErrForeignKeyViolation, pgErr.ConstraintName)
		}
	}
	return err
}
