// Package feedscrape treats a flat HTML package listing as a source.
package feedscrape

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/blobcache/glfs"
	"github.com/brendoncarroll/go-state/cadata"
	"github.com/brendoncarroll/go-exp/streams"
	"github.com/brendoncarroll/stdctx/logctx"
	"github.com/gocolly/colly/v2"
	"github.com/pkg/errors"

	"github.com/nugrepo/nug/nugmd"
	"github.com/nugrepo/nug/sources"
)

var _ sources.Source = &FeedScraper{}

type FeedScraper struct {
	target url.URL
}

func NewFeedScraper(target string) (*FeedScraper, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	u.Scheme = "https"
	return &FeedScraper{target: *u}, nil
}

func (s *FeedScraper) Fetch(ctx context.Context) (sources.PackageIterator, error) {
	c := colly.NewCollector()
	var pkgs []sources.RemotePackage
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if !strings.HasPrefix(link, s.target.String()) {
			return
		}
		if !strings.HasSuffix(strings.ToLower(link), ".nupkg") {
			return
		}
		id := strings.TrimPrefix(link, s.target.String())
		pkgs = append(pkgs, sources.RemotePackage{
			ID: id,
			Labels: nugmd.LabelSet{
				"name":     e.Text,
				"filename": path.Base(link),
			},
		})
	})
	if err := c.Visit(s.target.String()); err != nil {
		return nil, err
	}
	return streams.NewSlice(pkgs, nil), nil
}

func (s *FeedScraper) Pull(ctx context.Context, op *glfs.Operator, store cadata.Store, id string) (*glfs.Ref, error) {
	u2 := s.target
	u2.Path = path.Join(u2.Path, id)
	logctx.Infof(ctx, "downloading %v", u2.String())
	res, err := http.Get(u2.String())
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		return nil, errors.Errorf("unexpected status %v", res.Status)
	}
	w := op.NewBlobWriter(ctx, store)
	if _, err := io.Copy(w, res.Body); err != nil {
		return nil, err
	}
	return w.Finish(ctx)
}
