package nug

import (
	"path"

	"github.com/blobcache/glfs"
	"github.com/brendoncarroll/go-state/cadata"
	"lukechampine.com/blake3"

	"github.com/nugrepo/nug/nugmd"
)

const MaxBlobSize = 1 << 21

// Hash is the hash function used for package content
func Hash(x []byte) cadata.ID {
	return blake3.Sum256(x)
}

type (
	Label    = nugmd.Label
	LabelSet = nugmd.LabelSet
	Version  = nugmd.Version
)

// Package is one version of a package held by the repository.
type Package struct {
	ID uint64 `json:"id"`
	// Name is the package id, lowercased.
	Name string `json:"name"`
	// Version is the normalized version string.
	Version  string       `json:"version"`
	Labels   LabelSet     `json:"labels"`
	Root     glfs.Ref     `json:"root"`
	Upstream *UpstreamURL `json:"upstream"`
}

func (p Package) IsLocal() bool {
	return p.Upstream == nil
}

// Filename is the canonical name of the package's .nupkg file.
func (p Package) Filename() string {
	return p.Name + "." + p.Version + ".nupkg"
}

// ContentKey is the storage key under which the package content is addressed.
// Name and Version are stored canonicalized, so every spelling of the same
// version produces the identical key.
func (p Package) ContentKey() string {
	return path.Join(p.Name, p.Version, p.Filename())
}
