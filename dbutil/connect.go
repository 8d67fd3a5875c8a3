// Package dbutil holds the shared postgres plumbing: one way to open a
// connection pool, and a small transaction wrapper.
package dbutil

import (
	"database/sql"
	"errors"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Connect opens a pgx-backed pool for the given URL.  Every part of the
// repository that talks to postgres goes through here, so driver selection
// happens in exactly one place.
func Connect(url string) (*sql.DB, error) {
	if url == "" {
		return nil, errors.New("database URL is empty")
	}
	log.Printf("Connecting to database at %s", url)
	return sql.Open("pgx", url)
}
