package lib

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Database errors
var (
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
)

// Ingestion errors
var (
	ErrUnknownRegion    = errors.New("unknown region")
	ErrPlatformNotFound = errors.New("platform not found")
	ErrMissingProductID = errors.New("missing product id")
)

// MapPgError translates well known SQLSTATE codes into sentinel errors. Both
// pgdriver and pgx errors are recognized.
func MapPgError(err error) error {
	if err == nil {
		return nil
	}

	var code string
	var driverErr pgdriver.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &driverErr):
		code = driverErr.Field('C')
	case errors.As(err, &pgErr):
		code = pgErr.Code
	default:
		return err
	}

	switch code {
	case "23505": // unique_violation
		return errors.Join(ErrConflict, err)
	case "P0002": // no_data_found
		return errors.Join(ErrNotFound, err)
	}
	return err
}
