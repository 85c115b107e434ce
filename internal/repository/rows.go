package repository

import "github.com/jackc/pgx/v5/pgconn"

// pgxRows is a minimal interface to allow scanning from pgx rows and simplify testing.
type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}

// rowScanner cubre pgx.Row y pgx.Rows.
type rowScanner interface {
	Scan(...interface{}) error
}

// notFoundIfNone convierte un UPDATE/DELETE sin filas afectadas en pgx.ErrNoRows.
func notFoundIfNone(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows
	}
	return nil
}
