package nug

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nugrepo/nug/internal/dbutil"
)

// Publish is one entry in the repository's publish log.
type Publish struct {
	ID        uint64    `json:"id"`
	PackageID uint64    `json:"package_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GetLatestPublish returns the most recent publish, or nil if nothing has
// been published.
func (r *Repo) GetLatestPublish(ctx context.Context) (*Publish, error) {
	var id sql.NullInt64
	err := r.db.GetContext(ctx, &id, `SELECT max(id) FROM publishes`)
	if err != nil {
		return nil, err
	}
	if !id.Valid {
		return nil, nil
	}
	return r.GetPublish(ctx, uint64(id.Int64))
}

func (r *Repo) GetPublish(ctx context.Context, id uint64) (*Publish, error) {
	return dbutil.DoTx1(ctx, r.db, func(tx *sqlx.Tx) (*Publish, error) {
		return getPublish(tx, id)
	})
}

func (r *Repo) ListPublishes(ctx context.Context) ([]Publish, error) {
	var rows []struct {
		ID        uint64    `db:"id"`
		PackageID uint64    `db:"package_id"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, package_id, created_at FROM publishes ORDER BY id`); err != nil {
		return nil, err
	}
	var ret []Publish
	for _, row := range rows {
		ret = append(ret, Publish{
			ID:        row.ID,
			PackageID: row.PackageID,
			CreatedAt: row.CreatedAt,
		})
	}
	return ret, nil
}

func appendPublish(tx *sqlx.Tx, pid uint64) error {
	_, err := tx.Exec(`INSERT INTO publishes (package_id, created_at) VALUES (?, ?)`, pid, time.Now())
	return err
}

func getPublish(tx *sqlx.Tx, id uint64) (*Publish, error) {
	var row struct {
		PackageID uint64    `db:"package_id"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := tx.Get(&row, `SELECT package_id, created_at FROM publishes WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &Publish{
		ID:        id,
		PackageID: row.PackageID,
		CreatedAt: row.CreatedAt,
	}, nil
}
