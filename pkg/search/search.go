// Package search runs compiled tag queries against the post index.
package search

import (
	"context"
	"strconv"

	"github.com/grindlemire/go-tagquery/pkg/driver"
	"github.com/olivere/elastic/v7"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// page size bounds
const (
	DefaultPageSize = 75
	MaxPageSize     = 320
)

// Page is one page of matching post ids.
type Page struct {
	IDs   []int64
	Total int64
}

// Searcher runs searches on one index.
type Searcher struct {
	client *elastic.Client
	index  string
	logger *zap.Logger
}

// NewClient connects to a single node without sniffing, which suits clusters behind a proxy.
func NewClient(url string) (*elastic.Client, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create elasticsearch client for %s", url)
	}
	return client, nil
}

// New creates a searcher. A nil logger discards output.
func New(client *elastic.Client, index string, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{client: client, index: index, logger: logger}
}

// pageSize picks the page size: the query's limit:n wins over the caller's, both are clamped.
func pageSize(s *driver.Search, perPage int) int {
	size := perPage
	if s.Limit > 0 {
		size = s.Limit
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size
}

// Search returns the 1 based page of results.
func (s *Searcher) Search(ctx context.Context, search *driver.Search, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	size := pageSize(search, perPage)

	res, err := s.client.Search(s.index).
		Query(search.Query).
		SortBy(search.Sorters()...).
		From((page - 1) * size).
		Size(size).
		TrackTotalHits(true).
		FetchSource(false).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to search %s", s.index)
	}

	out := &Page{}
	if res.Hits == nil {
		return out, nil
	}
	if res.Hits.TotalHits != nil {
		out.Total = res.Hits.TotalHits.Value
	}
	out.IDs = make([]int64, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		id, err := strconv.ParseInt(hit.Id, 10, 64)
		if err != nil {
			s.logger.Warn("skipping hit with a non numeric id", zap.String("id", hit.Id))
			continue
		}
		out.IDs = append(out.IDs, id)
	}

	s.logger.Debug("searched",
		zap.String("index", s.index),
		zap.String("order", search.OrderKey),
		zap.Int64("total", out.Total),
		zap.Int64("took_ms", res.TookInMillis),
	)
	return out, nil
}

// SearchAll runs several searches concurrently and returns their first pages in order. It
// stops at the first failure.
func (s *Searcher) SearchAll(ctx context.Context, searches []*driver.Search, perPage int) ([]*Page, error) {
	pages := make([]*Page, len(searches))
	g, ctx := errgroup.WithContext(ctx)
	for i, search := range searches {
		i, search := i, search
		g.Go(func() error {
			p, err := s.Search(ctx, search, 1, perPage)
			if err != nil {
				return err
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}
