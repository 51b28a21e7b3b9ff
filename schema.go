package nug

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/owlmessenger/owl/pkg/migrations"

	"github.com/nugrepo/nug/internal/sqlstores"
)

var schema = func() *migrations.State {
	x := migrations.InitialState()
	x = sqlstores.Migration(x)
	x = x.ApplyStmt(`CREATE TABLE packages (
		id INTEGER,
		store_id INTEGER REFERENCES stores(id),
		name TEXT,
		version TEXT,
		root BLOB,

		PRIMARY KEY(id)
	)`)
	x = x.ApplyStmt(`CREATE INDEX packages_name_version ON packages (name, version)`)
	x = x.ApplyStmt(`CREATE TABLE package_labels (
		package_id INTEGER REFERENCES packages(id),
		k TEXT,
		v TEXT,

		PRIMARY KEY(package_id, k)
	)`)
	x = x.ApplyStmt(`CREATE TABLE upstreams (
		scheme TEXT NOT NULL,
		path TEXT NOT NULL,
		remote_id TEXT NOT NULL,
		package_id INTEGER NOT NULL REFERENCES packages(id),

		PRIMARY KEY(scheme, path, remote_id)
	)`)
	x = x.ApplyStmt(`CREATE TABLE publishes (
		id INTEGER NOT NULL,
		package_id INTEGER NOT NULL REFERENCES packages(id),
		created_at TIMESTAMP NOT NULL,

		PRIMARY KEY (id)
	)`)
	return x
}()

func setupDB(ctx context.Context, db *sqlx.DB) error {
	return migrations.Migrate(ctx, db, schema)
}
