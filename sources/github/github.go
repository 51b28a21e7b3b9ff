package github

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/blobcache/glfs"
	"github.com/brendoncarroll/go-exp/streams"
	"github.com/brendoncarroll/go-state/cadata"
	"github.com/brendoncarroll/stdctx/logctx"
	"github.com/google/go-github/v50/github"
	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
	"golang.org/x/oauth2"

	"github.com/nugrepo/nug/nugmd"
	"github.com/nugrepo/nug/sources"
)

var _ sources.Source = &GitHubSource{}

// GitHubSource serves the .nupkg assets attached to a repository's releases.
type GitHubSource struct {
	account string
	repo    string

	tokenSource oauth2.TokenSource
}

func NewGitHubSource(account, repo string) *GitHubSource {
	var tokenSource oauth2.TokenSource
	if v, ok := os.LookupEnv("GITHUB_TOKEN"); ok {
		tokenSource = oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: v},
		)
	}

	return &GitHubSource{
		account: account,
		repo:    repo,

		tokenSource: tokenSource,
	}
}

func (s *GitHubSource) newHTTPClient(ctx context.Context) *http.Client {
	if s.tokenSource == nil {
		return http.DefaultClient
	}
	return oauth2.NewClient(ctx, s.tokenSource)
}

func (s *GitHubSource) newClient(ctx context.Context) *github.Client {
	return github.NewClient(s.newHTTPClient(ctx))
}

const assetPrefix = "ra-"

// Pull writes the release asset to the store, and returns the root
func (s *GitHubSource) Pull(ctx context.Context, op *glfs.Operator, store cadata.Store, idstr string) (*glfs.Ref, error) {
	if !strings.HasPrefix(idstr, assetPrefix) {
		return nil, errors.Errorf("bad id %q", idstr)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(idstr, assetPrefix), 10, 64)
	if err != nil {
		return nil, err
	}
	client := s.newClient(ctx)
	ra, _, err := client.Repositories.GetReleaseAsset(ctx, s.account, s.repo, id)
	if err != nil {
		return nil, err
	}
	rc, err := download(ctx, ra.GetBrowserDownloadURL())
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return importBlob(ctx, op, store, rc)
}

func importBlob(ctx context.Context, op *glfs.Operator, s cadata.Poster, r io.Reader) (*glfs.Ref, error) {
	w := op.NewBlobWriter(ctx, s)
	_, err := io.Copy(w, r)
	if err != nil {
		return nil, err
	}
	return w.Finish(ctx)
}

func download(ctx context.Context, target string) (io.ReadCloser, error) {
	logctx.Infof(ctx, "downloading %v", target)
	res, err := http.Get(target)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != 200 {
		res.Body.Close()
		return nil, errors.Errorf("non-zero status code %v", res.Status)
	}
	return res.Body, nil
}

func (s *GitHubSource) Fetch(ctx context.Context) (sources.PackageIterator, error) {
	return &relAssetIterator{src: s}, nil
}

type relAssetIterator struct {
	src *GitHubSource

	err      error
	nextPage int
	results  []sources.RemotePackage
}

func (it *relAssetIterator) Next(ctx context.Context, dst *sources.RemotePackage) error {
	if it.err != nil {
		return it.err
	}
	for len(it.results) == 0 {
		rels, err := it.listReleases(ctx, it.nextPage)
		if err != nil {
			return err
		}
		if len(rels) == 0 {
			it.err = streams.EOS()
			return it.err
		}
		var results []sources.RemotePackage
		for _, rel := range rels {
			for _, ass := range rel.Assets {
				if !strings.HasSuffix(strings.ToLower(ass.GetName()), ".nupkg") {
					continue
				}
				labels := nugmd.LabelSet{}
				addReleaseLabels(labels, rel)
				addAssetLabels(labels, ass)
				fuzzVersion(labels)
				results = append(results, sources.RemotePackage{
					ID:     assetPrefix + strconv.FormatInt(ass.GetID(), 10),
					Labels: labels,
				})
			}
		}
		it.results = results
		it.nextPage++
	}
	*dst, it.results = it.results[0], it.results[1:]
	return nil
}

func (it *relAssetIterator) listReleases(ctx context.Context, page int) ([]*github.RepositoryRelease, error) {
	client := it.src.newClient(ctx)
	rels, _, err := client.Repositories.ListReleases(ctx, it.src.account, it.src.repo, &github.ListOptions{
		Page:    page,
		PerPage: 100,
	})
	return rels, err
}

func addReleaseLabels(l nugmd.LabelSet, rel *github.RepositoryRelease) {
	l["tag_name"] = rel.GetTagName()
	l["release_name"] = rel.GetName()
}

func addAssetLabels(l nugmd.LabelSet, ass *github.ReleaseAsset) {
	l["filename"] = ass.GetName()
	l["asset_id"] = strconv.Itoa(int(ass.GetID()))
	l["content_type"] = ass.GetContentType()
	if ass.Label != nil {
		l["label"] = *ass.Label
	}
}

// fuzzVersion derives a version label from the release tag when possible.
func fuzzVersion(l nugmd.LabelSet) {
	t, ok := l["tag_name"]
	if !ok {
		return
	}
	t = strings.TrimPrefix(t, "v")
	if v, err := nugmd.Normalize(t); err == nil {
		l["version"] = v
		return
	}
	if sv := semver.Canonical("v" + t); semver.IsValid(sv) {
		l["version"] = strings.TrimPrefix(sv, "v")
	}
}
