package identity

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenDB opens a bun handle over the sqlite shim driver.
func OpenDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open database")
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// CreateSchema builds the users table and its unique handle indexes.
// Migrations proper live outside this service; this keeps a fresh database
// usable and is harmless on an existing one.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create users table")
	}

	// Phone uniqueness spans two columns, so it cannot ride the model tags.
	if _, err := db.NewCreateIndex().
		Model((*User)(nil)).
		Index("phone_number_idx").
		Unique().
		Column("country_code", "mobile_number").
		Where("mobile_number IS NOT NULL").
		IfNotExists().
		Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create phone index")
	}

	return nil
}
