package httperr

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports a duplicate key from either the translated
// gorm error or a raw postgres error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// FromStore turns gorm.ErrRecordNotFound into a NotFoundError for entity.
func FromStore(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound(entity)
	}
	return err
}
