package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/MimeLyc/torznab-title-mapper/internal/episode"
	"github.com/MimeLyc/torznab-title-mapper/internal/feed"
	"github.com/MimeLyc/torznab-title-mapper/internal/indexer"
	"github.com/MimeLyc/torznab-title-mapper/internal/mapping"
	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

// FeedContentType is sent with every rewritten feed.
const FeedContentType = "application/xml; charset=utf-8"

var rewriteActions = []string{"search", "tvsearch", "download"}

type MappingResolver interface {
	Resolve(title string) (mapping.Mapping, error)
}

type EpisodeSource interface {
	FetchMonitored(ctx context.Context, seriesID int64) []episode.Episode
}

type Indexer interface {
	Query(ctx context.Context, params url.Values) (*indexer.Response, error)
}

// Proxy runs Torznab requests against the indexer, rewriting search results
// into canonical titles.
type Proxy struct {
	mappings MappingResolver
	episodes EpisodeSource
	indexer  Indexer
}

func NewProxy(mappings MappingResolver, episodes EpisodeSource, idx Indexer) *Proxy {
	return &Proxy{
		mappings: mappings,
		episodes: episodes,
		indexer:  idx,
	}
}

// ShouldRewrite reports whether a request goes through Search rather than
// being forwarded as is.
func ShouldRewrite(params url.Values) bool {
	return slices.Contains(rewriteActions, params.Get("t")) && params.Get("q") != ""
}

// Handle dispatches to Search or Forward.
func (p *Proxy) Handle(ctx context.Context, params url.Values) (*indexer.Response, error) {
	if ShouldRewrite(params) {
		log.Info("Applying title mapping for action type: %s", params.Get("t"))
		return p.Search(ctx, params)
	}
	log.Info("Bypassing title mapping for action type: %s", params.Get("t"))
	return p.Forward(ctx, params)
}

// Forward sends params to the indexer untouched.
func (p *Proxy) Forward(ctx context.Context, params url.Values) (*indexer.Response, error) {
	resp, err := p.indexer.Query(ctx, params)
	if err != nil {
		log.Error("Error forwarding request to indexer: %v", err)
		return nil, WrapError(err, ErrUpstream, "Unable to forward request").
			WithContext("action", params.Get("t"))
	}
	return resp, nil
}

// Search resolves q to its mapping, queries the indexer with the source
// title, and rewrites the returned feed.
func (p *Proxy) Search(ctx context.Context, params url.Values) (*indexer.Response, error) {
	title := params.Get("q")
	if title == "" {
		log.Error("Missing title (q) in %q request", params.Get("t"))
		return nil, NewError(ErrMissingParameter, "Missing title parameter.").
			WithContext("action", params.Get("t"))
	}

	m, err := p.mappings.Resolve(title)
	if err != nil {
		if errors.Is(err, mapping.ErrNotFound) {
			log.Error("No mapping found for title %q", title)
			return nil, WrapError(err, ErrMappingNotFound, fmt.Sprintf("Mapping not found for title: %q", title)).
				WithContext("title", title)
		}
		return nil, WrapError(err, ErrUnknown, "resolve mapping").WithContext("title", title)
	}

	query := cloneValues(params)
	query.Set("q", m.SourceTitle)
	log.Info("Mapped title %q to %q", title, m.SourceTitle)

	var episodes []episode.Episode
	if m.HasCatalogID() {
		episodes = p.episodes.FetchMonitored(ctx, *m.CatalogID)
	} else {
		log.Warn("Mapping %q has no catalog id, titles will not be rewritten", m.CanonicalTitle)
	}

	resp, err := p.indexer.Query(ctx, query)
	if err != nil {
		log.Error("Indexer query failed for %q: %v", m.SourceTitle, err)
		return nil, WrapError(err, ErrUpstream, "Unable to query indexer").
			WithContext("title", title).
			WithContext("query", m.SourceTitle)
	}

	result, err := feed.Rewrite(resp.Body, m.CanonicalTitle, episodes)
	if err != nil {
		kind, message := ErrUnknown, "Unable to rewrite feed"
		switch {
		case errors.Is(err, feed.ErrParse):
			kind, message = ErrParse, "Unable to parse XML"
		case errors.Is(err, feed.ErrSerialize):
			kind, message = ErrSerialize, "Unable to serialize XML"
		}
		log.Error("Feed rewrite failed for %q: %v", title, err)
		return nil, WrapError(err, kind, message).WithContext("title", title)
	}
	log.Info("Rewrote %d of %d items for %q", result.Rewritten, result.Items, title)

	return &indexer.Response{
		StatusCode:  http.StatusOK,
		ContentType: FeedContentType,
		Body:        result.Body,
	}, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = slices.Clone(vals)
	}
	return out
}
