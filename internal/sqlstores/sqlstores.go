// Package sqlstores implements content-addressed blob stores on top of the
// repository's sqlite database. Blobs are shared between stores and garbage
// collected when the last referencing store drops them.
package sqlstores

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/brendoncarroll/go-state/cadata"
	"github.com/jmoiron/sqlx"
	"github.com/owlmessenger/owl/pkg/migrations"

	"github.com/nugrepo/nug/internal/dbutil"
)

func Migration(x *migrations.State) *migrations.State {
	return x.
		ApplyStmt(`CREATE TABLE blobs (
		id BLOB,
		data BLOB NOT NULL,
		PRIMARY KEY(id)
	);`).
		ApplyStmt(`CREATE TABLE stores (
		id INTEGER PRIMARY KEY
	);`).
		ApplyStmt(`CREATE TABLE store_blobs (
		store_id INTEGER,
		blob_id BLOB,
		FOREIGN KEY(store_id) REFERENCES stores(id),
		FOREIGN KEY(blob_id) REFERENCES blobs(id),
		PRIMARY KEY(store_id, blob_id)
	);`)
}

// CreateStore allocates a new store ID which will not be reused.
func CreateStore(tx *sqlx.Tx) (ret uint64, err error) {
	err = tx.Get(&ret, `INSERT INTO stores VALUES (NULL) RETURNING id`)
	return ret, err
}

// DropStore deletes a store and any blobs not included in another store.
func DropStore(tx *sqlx.Tx, storeID uint64) error {
	if _, err := tx.Exec(`DELETE FROM stores WHERE id = ?`, storeID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM store_blobs WHERE store_id = ?`, storeID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM blobs WHERE id NOT IN (
		SELECT blob_id FROM store_blobs
	)`); err != nil {
		return err
	}
	return nil
}

// Store is a cadata.Store backed by one of the stores rows in the database.
type Store struct {
	db      *sqlx.DB
	hf      cadata.HashFunc
	maxSize int
	storeID uint64
}

func NewStore(db *sqlx.DB, hf cadata.HashFunc, maxSize int, storeID uint64) *Store {
	return &Store{db: db, hf: hf, maxSize: maxSize, storeID: storeID}
}

func (s *Store) Post(ctx context.Context, data []byte) (cadata.ID, error) {
	if len(data) > s.maxSize {
		return cadata.ID{}, cadata.ErrTooLarge
	}
	id := s.hf(data)
	err := dbutil.DoTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO blobs (id, data)
			VALUES (?, ?) ON CONFLICT DO NOTHING`, id[:], data); err != nil {
			return err
		}
		return addToStore(tx, s.storeID, id)
	})
	if err != nil {
		return cadata.ID{}, err
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id cadata.ID, buf []byte) (int, error) {
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (int, error) {
		var data []byte
		if err := tx.Get(&data, `SELECT blobs.data FROM store_blobs JOIN blobs ON blob_id = blobs.id
			WHERE store_id = ? AND blob_id = ?
		`, s.storeID, id[:]); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = cadata.ErrNotFound
			}
			return 0, err
		}
		if len(data) > len(buf) {
			return 0, io.ErrShortBuffer
		}
		return copy(buf, data), nil
	})
}

// Add adds an existing blob to the store without reposting its data.
func (s *Store) Add(ctx context.Context, id cadata.ID) error {
	return dbutil.DoTx(ctx, s.db, func(tx *sqlx.Tx) error {
		count, err := refCount(tx, id)
		if err != nil {
			return err
		}
		if count == 0 {
			return cadata.ErrNotFound
		}
		return addToStore(tx, s.storeID, id)
	})
}

func (s *Store) Delete(ctx context.Context, id cadata.ID) error {
	return dbutil.DoTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`DELETE FROM store_blobs WHERE store_id = ? AND blob_id = ?`, s.storeID, id[:]); err != nil {
			return err
		}
		count, err := refCount(tx, id)
		if err != nil {
			return err
		}
		if count < 1 {
			if _, err := tx.Exec(`DELETE FROM blobs WHERE id = ?`, id[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) List(ctx context.Context, span cadata.Span, ids []cadata.ID) (int, error) {
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (int, error) {
		begin := cadata.BeginFromSpan(span)
		rows, err := tx.Query(`SELECT blob_id FROM store_blobs
			WHERE store_id = ? AND blob_id >= ?
			LIMIT ?
		`, s.storeID, begin[:], len(ids))
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		var n int
		for rows.Next() && n < len(ids) {
			var buf []byte
			if err := rows.Scan(&buf); err != nil {
				return 0, err
			}
			ids[n] = cadata.IDFromBytes(buf)
			n++
		}
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return n, nil
	})
}

func (s *Store) MaxSize() int {
	return s.maxSize
}

func (s *Store) Hash(x []byte) cadata.ID {
	return s.hf(x)
}

func addToStore(tx *sqlx.Tx, storeID uint64, id cadata.ID) error {
	_, err := tx.Exec(`INSERT INTO store_blobs (store_id, blob_id)
		VALUES (?, ?) ON CONFLICT DO NOTHING`, storeID, id[:])
	return err
}

// refCount is the number of stores containing the blob.
func refCount(tx *sqlx.Tx, id cadata.ID) (count int, err error) {
	err = tx.Get(&count, `SELECT count(distinct store_id) FROM store_blobs WHERE blob_id = ?`, id[:])
	return count, err
}
