package nug

import (
	"context"
	"os"
	"path/filepath"

	"github.com/blobcache/glfs"
	"github.com/brendoncarroll/go-state/posixfs"
	"github.com/brendoncarroll/stdctx/logctx"
	"github.com/jmoiron/sqlx"

	"github.com/nugrepo/nug/internal/dbutil"
)

const nugPath = ".nug"

type Repo struct {
	db     *sqlx.DB
	dir    posixfs.FS
	glfsOp glfs.Operator
}

func New(db *sqlx.DB, dir posixfs.FS) *Repo {
	return &Repo{
		db:  db,
		dir: dir,

		glfsOp: glfs.NewOperator(),
	}
}

// Init creates a new repo under the path p, which must be a directory
func Init(ctx context.Context, p string) error {
	logctx.Infof(ctx, "initializing repo at %q", p)
	if err := os.Mkdir(filepath.Join(p, nugPath), 0o755); err != nil {
		return err
	}
	return nil
}

// Open opens the repo in the directory at p
func Open(p string) (*Repo, error) {
	_, err := os.Stat(filepath.Join(p, nugPath))
	if err != nil {
		return nil, err
	}
	dbPath := filepath.Join(p, nugPath, "nug.db")
	db, err := dbutil.OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := setupDB(context.Background(), db); err != nil {
		return nil, err
	}
	return New(db, posixfs.NewDirFS(p)), nil
}
