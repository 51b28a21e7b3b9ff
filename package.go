package nug

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/blobcache/glfs"
	"github.com/brendoncarroll/go-state"
	"github.com/brendoncarroll/go-state/posixfs"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/semaphore"

	"github.com/nugrepo/nug/internal/dbutil"
	"github.com/nugrepo/nug/internal/slices2"
	"github.com/nugrepo/nug/internal/sqlstores"
	"github.com/nugrepo/nug/nugmd"
	"github.com/nugrepo/nug/nuspec"
)

var (
	// ErrNotFound is returned when a package or version is not in the repository.
	ErrNotFound = errors.New("package not found")
	// ErrExists is returned when publishing a name + version pair that is already held.
	ErrExists = errors.New("package version already exists")
	// ErrBadPackage is returned when a payload is not a readable .nupkg.
	ErrBadPackage = errors.New("bad package payload")
)

// AddNupkg imports a .nupkg file from the filesystem.
func (r *Repo) AddNupkg(ctx context.Context, fsx posixfs.FS, p string) (uint64, error) {
	data, err := posixfs.ReadFile(ctx, fsx, p)
	if err != nil {
		return 0, err
	}
	return r.AddNupkgData(ctx, data)
}

// AddNupkgData imports a .nupkg from its raw bytes.
// The package's identity is taken from the embedded .nuspec manifest; the
// declared version is validated and stored in normalized form.
func (r *Repo) AddNupkgData(ctx context.Context, data []byte) (uint64, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, errors.Wrapf(ErrBadPackage, "opening nupkg: %v", err)
	}
	ns, err := nuspec.FromNupkg(zr)
	if err != nil {
		return 0, errors.Wrapf(ErrBadPackage, "%v", err)
	}
	ver, err := nugmd.ParseVersion(ns.Metadata.Version)
	if err != nil {
		return 0, err
	}
	name := strings.ToLower(ns.Metadata.ID)
	version := ver.Normalized()

	pid, sid, err := dbutil.DoTx2(ctx, r.db, func(tx *sqlx.Tx) (uint64, uint64, error) {
		if _, err := lookupPackageID(tx, name, version); err == nil {
			return 0, 0, errors.Wrapf(ErrExists, "%s %s", name, version)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return 0, 0, err
		}
		sid, err := sqlstores.CreateStore(tx)
		if err != nil {
			return 0, 0, err
		}
		pid, err := createPackage(tx, sid)
		if err != nil {
			return 0, 0, err
		}
		if err := setPackageIdentity(tx, pid, name, version); err != nil {
			return 0, 0, err
		}
		return pid, sid, nil
	})
	if err != nil {
		return 0, err
	}

	s := sqlstores.NewStore(r.db, Hash, MaxBlobSize, sid)
	w := r.glfsOp.NewBlobWriter(ctx, s)
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return 0, err
	}
	ref, err := w.Finish(ctx)
	if err != nil {
		return 0, err
	}

	labels := ns.Labels()
	labels["version"] = version
	labels["published_at"] = strconv.FormatInt(time.Now().Unix(), 10)
	if err := dbutil.DoTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := putPackageRef(tx, pid, *ref); err != nil {
			return err
		}
		if err := putLabelSet(tx, pid, labels); err != nil {
			return err
		}
		return appendPublish(tx, pid)
	}); err != nil {
		return 0, err
	}
	return pid, nil
}

func (r *Repo) GetPackage(ctx context.Context, pid uint64) (Package, error) {
	return dbutil.DoTx1(ctx, r.db, func(tx *sqlx.Tx) (Package, error) {
		return getPackage(tx, pid)
	})
}

// LookupPackage finds a package by name and any spelling of its version.
// rawVersion is normalized before the lookup, so "1.00.0+build" finds the
// package stored as "1.0.0".
func (r *Repo) LookupPackage(ctx context.Context, name, rawVersion string) (Package, error) {
	version, err := nugmd.Normalize(rawVersion)
	if err != nil {
		return Package{}, err
	}
	name = strings.ToLower(name)
	pid, err := dbutil.DoTx1(ctx, r.db, func(tx *sqlx.Tx) (uint64, error) {
		return lookupPackageID(tx, name, version)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Package{}, ErrNotFound
		}
		return Package{}, err
	}
	return r.GetPackage(ctx, pid)
}

func (r *Repo) ListPackages(ctx context.Context, span state.Span[uint64], limit int) ([]uint64, error) {
	return dbutil.List(ctx, r.db, `SELECT id FROM packages`, "id", dbutil.ListParams[uint64]{
		Span: span,

		Limit:        limit,
		DefaultLimit: 1000,
		MaxLimit:     10_000,
	})
}

func (r *Repo) ListPackagesFull(ctx context.Context, span state.Span[uint64], limit int) ([]Package, error) {
	ids, err := r.ListPackages(ctx, span, limit)
	if err != nil {
		return nil, err
	}
	sem := semaphore.NewWeighted(10)
	return slices2.ParMapErr(ctx, sem, ids, func(ctx context.Context, id uint64) (Package, error) {
		return dbutil.DoTx1(ctx, r.db, func(tx *sqlx.Tx) (Package, error) {
			return getPackage(tx, id)
		})
	})
}

// ListVersions returns the normalized versions held for a package, in the
// order they were added.
func (r *Repo) ListVersions(ctx context.Context, name string) ([]string, error) {
	name = strings.ToLower(name)
	return dbutil.DoTx1(ctx, r.db, func(tx *sqlx.Tx) (ret []string, _ error) {
		err := tx.Select(&ret, `SELECT version FROM packages
			WHERE name = ? AND version IS NOT NULL ORDER BY id`, name)
		return ret, err
	})
}

// FilterPackages returns the packages whose labels match pred.
// The package table is scanned to exhaustion, one page at a time.
func (r *Repo) FilterPackages(ctx context.Context, pred nugmd.Predicate) ([]Package, error) {
	const pageSize = 1000
	span := state.TotalSpan[uint64]()
	ret := []Package{}
	for {
		ps, err := r.ListPackagesFull(ctx, span, pageSize)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			if pred.Matches(p.Labels) {
				ret = append(ret, p)
			}
		}
		if len(ps) < pageSize {
			return ret, nil
		}
		span = span.WithLowerIncl(ps[len(ps)-1].ID + 1)
	}
}

// QueryPackages filters packages by q.Where, orders them by the label keys
// in q.OrderBy, and truncates to q.Limit when it is nonzero.
func (r *Repo) QueryPackages(ctx context.Context, q nugmd.Query) ([]Package, error) {
	ps, err := r.FilterPackages(ctx, q.Where)
	if err != nil {
		return nil, err
	}
	if len(q.OrderBy) > 0 {
		slices.SortStableFunc(ps, func(a, b Package) bool {
			return nugmd.LessByKeys(q.OrderBy, a.Labels, b.Labels)
		})
	}
	if q.Limit > 0 && uint(len(ps)) > q.Limit {
		ps = ps[:q.Limit]
	}
	return ps, nil
}

// OpenPackage returns a reader for the package's .nupkg content.
func (r *Repo) OpenPackage(ctx context.Context, pid uint64) (io.Reader, error) {
	p, err := r.GetPackage(ctx, pid)
	if err != nil {
		return nil, err
	}
	sid, err := dbutil.DoTx1(ctx, r.db, func(tx *sqlx.Tx) (uint64, error) { return getPackageStore(tx, pid) })
	if err != nil {
		return nil, err
	}
	s := sqlstores.NewStore(r.db, Hash, MaxBlobSize, sid)
	return r.glfsOp.GetBlob(ctx, s, p.Root)
}

// Export writes the package's .nupkg beneath p in the filesystem fsx.
func (r *Repo) Export(ctx context.Context, pid uint64, fsx posixfs.FS, p string) error {
	pkg, err := r.GetPackage(ctx, pid)
	if err != nil {
		return err
	}
	sid, err := dbutil.DoTx1(ctx, r.db, func(tx *sqlx.Tx) (uint64, error) { return getPackageStore(tx, pid) })
	if err != nil {
		return err
	}
	s := sqlstores.NewStore(r.db, Hash, MaxBlobSize, sid)
	sem := semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
	return GLFSExport(ctx, &r.glfsOp, sem, s, pkg.Root, fsx, p)
}

func createPackage(tx *sqlx.Tx, storeID uint64) (uint64, error) {
	var pid uint64
	err := tx.Get(&pid, `INSERT INTO packages (store_id) VALUES (?) RETURNING id`, storeID)
	return pid, err
}

func setPackageIdentity(tx *sqlx.Tx, pid uint64, name, version string) error {
	_, err := tx.Exec(`UPDATE packages SET name = ?, version = ? WHERE id = ?`, name, version, pid)
	return err
}

func lookupPackageID(tx *sqlx.Tx, name, version string) (ret uint64, _ error) {
	return ret, tx.Get(&ret, `SELECT id FROM packages WHERE name = ? AND version = ?`, name, version)
}

func getPackage(tx *sqlx.Tx, pid uint64) (Package, error) {
	var row struct {
		Name    sql.NullString `db:"name"`
		Version sql.NullString `db:"version"`
		Root    []byte         `db:"root"`
	}
	if err := tx.Get(&row, `SELECT name, version, root FROM packages WHERE id = ?`, pid); err != nil {
		return Package{}, err
	}
	var root glfs.Ref
	if len(row.Root) > 0 {
		if err := json.Unmarshal(row.Root, &root); err != nil {
			return Package{}, err
		}
	}
	ls, err := getLabelSet(tx, pid)
	if err != nil {
		return Package{}, err
	}
	us, err := lookupUpstream(tx, pid)
	if err != nil {
		return Package{}, err
	}
	return Package{
		ID:       pid,
		Name:     row.Name.String,
		Version:  row.Version.String,
		Labels:   ls,
		Root:     root,
		Upstream: us,
	}, nil
}

func getPackageStore(tx *sqlx.Tx, pid uint64) (ret uint64, _ error) {
	return ret, tx.Get(&ret, `SELECT store_id FROM packages WHERE id = ?`, pid)
}

func putPackageRef(tx *sqlx.Tx, pid uint64, ref glfs.Ref) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE packages SET root = ? WHERE id = ?`, data, pid)
	return err
}

func getLabelSet(tx *sqlx.Tx, pid uint64) (LabelSet, error) {
	var rows []struct {
		Key   string `db:"k"`
		Value string `db:"v"`
	}
	if err := tx.Select(&rows, `SELECT k, v FROM package_labels WHERE package_id = ?`, pid); err != nil {
		return nil, err
	}
	ls := LabelSet{}
	for _, row := range rows {
		ls[row.Key] = row.Value
	}
	return ls, nil
}

func putLabelSet(tx *sqlx.Tx, pid uint64, labels LabelSet) error {
	for k, v := range labels {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO package_labels (package_id, k, v) VALUES (?, ?, ?)`, pid, k, v); err != nil {
			return err
		}
	}
	return nil
}
