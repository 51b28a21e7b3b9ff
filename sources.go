package nug

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/brendoncarroll/go-exp/streams"
	"github.com/brendoncarroll/stdctx/logctx"
	"github.com/itchyny/gojq"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/nugrepo/nug/internal/dbutil"
	"github.com/nugrepo/nug/internal/sqlstores"
	"github.com/nugrepo/nug/nugmd"
	"github.com/nugrepo/nug/nuspec"
	"github.com/nugrepo/nug/sources"
	"github.com/nugrepo/nug/sources/feedscrape"
	"github.com/nugrepo/nug/sources/github"
)

// MakeSource creates a new source from a URL
func MakeSource(u sources.URL) (sources.Source, error) {
	switch u.Scheme {
	case "github":
		parts := strings.SplitN(u.Path, "/", 2)
		if len(parts) < 2 {
			return nil, errors.New("github source URLs have the form github://owner/repo")
		}
		return github.NewGitHubSource(parts[0], parts[1]), nil
	case "http":
		return feedscrape.NewFeedScraper(u.Path)
	default:
		return nil, errors.New("unrecognized URL scheme")
	}
}

// UpstreamURL uniquely identifies a remote package
type UpstreamURL struct {
	sources.URL
	ID string `json:"id"`
}

func (u UpstreamURL) String() string {
	return path.Join(u.URL.String(), u.ID)
}

// Fetch creates metadata-only packages for everything advertised by the source.
func (r *Repo) Fetch(ctx context.Context, srcURL sources.URL) error {
	src, err := MakeSource(srcURL)
	if err != nil {
		return err
	}
	it, err := src.Fetch(ctx)
	if err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)
	results := make(chan sources.RemotePackage)
	eg.Go(func() error {
		defer close(results)
		return streams.LoadChan(ctx, it, results)
	})
	eg.Go(func() error {
		const batchSize = 1000
		const timeout = 100 * time.Millisecond
		it := streams.NewBatcher[sources.RemotePackage](streams.Chan[sources.RemotePackage](results), batchSize, timeout)
		return streams.ForEach[[]sources.RemotePackage](ctx, it, func(xs []sources.RemotePackage) error {
			return dbutil.DoTx(ctx, r.db, func(tx *sqlx.Tx) error {
				for _, x := range xs {
					pid, err := getOrCreateUpstream(tx, srcURL.Scheme, srcURL.Path, x.ID)
					if err != nil {
						return err
					}
					if err := putLabelSet(tx, pid, x.Labels); err != nil {
						return err
					}
				}
				return nil
			})
		})
	})
	return eg.Wait()
}

func (r *Repo) FetchAll(ctx context.Context) error {
	var rows []struct {
		Scheme string `db:"scheme"`
		Path   string `db:"path"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT distinct scheme, path FROM upstreams`); err != nil {
		return err
	}
	var eg errgroup.Group
	eg.SetLimit(10)
	for _, row := range rows {
		u := sources.URL{
			Scheme: row.Scheme,
			Path:   row.Path,
		}
		logctx.Infof(ctx, "fetching package metadata from %v", u)
		eg.Go(func() error {
			return r.Fetch(ctx, u)
		})
	}
	return eg.Wait()
}

// Pull pulls the content for a package from a source
func (r *Repo) Pull(ctx context.Context, u sources.URL, idstr string) (uint64, error) {
	src, err := MakeSource(u)
	if err != nil {
		return 0, err
	}
	pid, err := dbutil.DoTx1(ctx, r.db, func(tx *sqlx.Tx) (uint64, error) {
		return getOrCreateUpstream(tx, u.Scheme, u.Path, idstr)
	})
	if err != nil {
		return 0, err
	}
	sid, err := dbutil.DoTx1(ctx, r.db, func(tx *sqlx.Tx) (uint64, error) { return getPackageStore(tx, pid) })
	if err != nil {
		return 0, err
	}
	s := sqlstores.NewStore(r.db, Hash, MaxBlobSize, sid)
	ref, err := src.Pull(ctx, &r.glfsOp, s, idstr)
	if err != nil {
		return 0, err
	}
	if err := dbutil.DoTx(ctx, r.db, func(tx *sqlx.Tx) error { return putPackageRef(tx, pid, *ref) }); err != nil {
		return 0, err
	}
	if err := r.indexNupkg(ctx, pid, sid); err != nil {
		return 0, err
	}
	return pid, nil
}

// indexNupkg derives the package's identity from its pulled content.
// The manifest's version is normalized before it becomes part of the identity.
func (r *Repo) indexNupkg(ctx context.Context, pid, sid uint64) error {
	rd, err := r.OpenPackage(ctx, pid)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(rd)
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logctx.Warnf(ctx, "pulled content for package %d is not a nupkg: %v", pid, err)
		return nil
	}
	ns, err := nuspec.FromNupkg(zr)
	if err != nil {
		logctx.Warnf(ctx, "pulled content for package %d has no manifest: %v", pid, err)
		return nil
	}
	ver, err := nugmd.ParseVersion(ns.Metadata.Version)
	if err != nil {
		logctx.Warnf(ctx, "pulled content for package %d has a malformed version: %v", pid, err)
		return nil
	}
	name := strings.ToLower(ns.Metadata.ID)
	version := ver.Normalized()
	labels := ns.Labels()
	labels["version"] = version
	labels["published_at"] = strconv.FormatInt(time.Now().Unix(), 10)
	return dbutil.DoTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := setPackageIdentity(tx, pid, name, version); err != nil {
			return err
		}
		if err := putLabelSet(tx, pid, labels); err != nil {
			return err
		}
		return appendPublish(tx, pid)
	})
}

// ListPackagesBySource searches locally cached remote packages for a source.
// To search packages originating locally pass nil for srcURL
func (r *Repo) ListPackagesBySource(ctx context.Context, srcURL *sources.URL, code *gojq.Code) ([]Package, error) {
	qstr := `SELECT DISTINCT packages.id FROM packages`
	var args []any
	if srcURL != nil {
		qstr += ` JOIN upstreams ON upstreams.package_id = packages.id
			WHERE upstreams.scheme = ? AND upstreams.path = ?`
		args = append(args, srcURL.Scheme, srcURL.Path)
	} else {
		qstr += ` WHERE packages.id NOT IN (SELECT package_id FROM upstreams)`
	}
	var fromDB []uint64
	if err := r.db.SelectContext(ctx, &fromDB, qstr, args...); err != nil {
		return nil, err
	}
	eg, ctx := errgroup.WithContext(ctx)
	unfiltered := make(chan Package)
	eg.Go(func() error {
		defer close(unfiltered)
		for _, pid := range fromDB {
			p, err := r.GetPackage(ctx, pid)
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case unfiltered <- p:
			}
		}
		return nil
	})
	var ret []Package
	eg.Go(func() error {
		in := streams.Chan[Package](unfiltered)
		it := nugmd.NewJQFilter[Package](in, code, func(x Package) nugmd.LabelSet {
			return x.Labels
		})
		var err error
		ret, err = streams.Collect[Package](ctx, it, 1e9)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}

// getOrCreateUpstream returns the package for a given upstream
func getOrCreateUpstream(tx *sqlx.Tx, scheme, path, remoteID string) (ret uint64, _ error) {
	err := tx.Get(&ret, `SELECT package_id FROM upstreams WHERE scheme = ? AND path = ? AND remote_id = ?`, scheme, path, remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		sid, err := sqlstores.CreateStore(tx)
		if err != nil {
			return 0, err
		}
		pid, err := createPackage(tx, sid)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(`INSERT INTO upstreams (scheme, path, remote_id, package_id) VALUES (?, ?, ?, ?)`, scheme, path, remoteID, pid); err != nil {
			return 0, err
		}
		return pid, nil
	}
	return ret, err
}

func lookupUpstream(tx *sqlx.Tx, pid uint64) (*UpstreamURL, error) {
	var row struct {
		Scheme   string `db:"scheme"`
		Path     string `db:"path"`
		RemoteID string `db:"remote_id"`
	}
	if err := tx.Get(&row, `SELECT scheme, path, remote_id FROM upstreams WHERE package_id = ?`, pid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &UpstreamURL{
		URL: sources.URL{
			Scheme: row.Scheme,
			Path:   row.Path,
		},
		ID: row.RemoteID,
	}, nil
}
