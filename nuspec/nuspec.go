// Package nuspec reads .nuspec package manifests.
package nuspec

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/nugrepo/nug/nugmd"
)

// Nuspec is the manifest embedded in a .nupkg file.
type Nuspec struct {
	XMLName  xml.Name `xml:"package"`
	Metadata Metadata `xml:"metadata"`
}

type Metadata struct {
	ID          string `xml:"id"`
	Version     string `xml:"version"`
	Authors     string `xml:"authors"`
	Description string `xml:"description"`
	ProjectURL  string `xml:"projectUrl"`
	Tags        string `xml:"tags"`
}

// Parse decodes a .nuspec document.
func Parse(r io.Reader) (*Nuspec, error) {
	var ns Nuspec
	if err := xml.NewDecoder(r).Decode(&ns); err != nil {
		return nil, errors.Wrap(err, "decoding nuspec")
	}
	if ns.Metadata.ID == "" {
		return nil, errors.New("nuspec is missing a package id")
	}
	if ns.Metadata.Version == "" {
		return nil, errors.New("nuspec is missing a version")
	}
	return &ns, nil
}

// FromNupkg finds the manifest in an opened .nupkg archive and parses it.
// The manifest is the single top-level *.nuspec entry.
func FromNupkg(zr *zip.Reader) (*Nuspec, error) {
	for _, f := range zr.File {
		name := f.Name
		if path.Dir(name) != "." {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(name), ".nuspec") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return Parse(rc)
	}
	return nil, errors.New("no .nuspec entry in package")
}

// Labels returns the manifest fields as package labels.
func (ns *Nuspec) Labels() nugmd.LabelSet {
	ls := nugmd.LabelSet{
		"id":      ns.Metadata.ID,
		"version": ns.Metadata.Version,
	}
	put := func(k, v string) {
		if v != "" {
			ls[k] = v
		}
	}
	put("authors", ns.Metadata.Authors)
	put("description", ns.Metadata.Description)
	put("project_url", ns.Metadata.ProjectURL)
	put("tags", ns.Metadata.Tags)
	return ls
}
