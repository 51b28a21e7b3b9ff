package sources

import (
	"context"
	"strings"

	"github.com/blobcache/glfs"
	"github.com/brendoncarroll/go-exp/streams"
	"github.com/brendoncarroll/go-state/cadata"
	"github.com/pkg/errors"

	"github.com/nugrepo/nug/nugmd"
)

// Source is an external feed of package artifacts
type Source interface {
	// Fetch lists the packages available from the source.
	Fetch(ctx context.Context) (PackageIterator, error)
	// Pull writes a package's content to the store, and returns the root
	Pull(ctx context.Context, op *glfs.Operator, s cadata.Store, id string) (*glfs.Ref, error)
}

// RemotePackage is a package advertised by a Source.
type RemotePackage struct {
	ID     string
	Labels nugmd.LabelSet
}

type PackageIterator = streams.Iterator[RemotePackage]

// URL identifies a source of packages, e.g. github://owner/repo
type URL struct {
	Scheme string `json:"scheme"`
	Path   string `json:"path"`
}

func ParseURL(x string) (*URL, error) {
	scheme, rest, ok := strings.Cut(x, "://")
	if !ok || scheme == "" || rest == "" {
		return nil, errors.Errorf("could not parse source URL %q", x)
	}
	return &URL{Scheme: scheme, Path: rest}, nil
}

func (u URL) String() string {
	return u.Scheme + "://" + u.Path
}
