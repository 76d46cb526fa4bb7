package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/MimeLyc/torznab-title-mapper/internal/episode"
	"github.com/MimeLyc/torznab-title-mapper/internal/mapping"
	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

const airDateLayout = "2006-01-02"

// FetchMonitored returns the monitored episodes of a series. Any failure is
// logged and yields an empty list.
func (c *Client) FetchMonitored(ctx context.Context, seriesID int64) []episode.Episode {
	log.Info("Fetching monitored episodes for seriesId: %d", seriesID)

	resources, err := c.Episodes(ctx, seriesID)
	if err != nil {
		log.Error("Error fetching monitored episodes for seriesId %d: %v", seriesID, err)
		return []episode.Episode{}
	}

	ret := make([]episode.Episode, 0, len(resources))
	for _, res := range resources {
		if !res.Monitored {
			continue
		}
		ret = append(ret, toEpisode(seriesID, res))
	}
	log.Debug("seriesId %d: %d of %d episodes monitored", seriesID, len(ret), len(resources))
	return ret
}

// Listing returns the catalog series as reconciliation entries.
func (c *Client) Listing(ctx context.Context) ([]mapping.CatalogEntry, error) {
	series, err := c.AllSeries(ctx)
	if err != nil {
		return nil, err
	}

	ret := make([]mapping.CatalogEntry, 0, len(series))
	for _, s := range series {
		entry := mapping.CatalogEntry{
			ID:    s.ID,
			Title: s.Title,
		}
		for _, alt := range s.AlternateTitles {
			entry.AlternateTitles = append(entry.AlternateTitles, alt.Title)
		}
		ret = append(ret, entry)
	}
	return ret, nil
}

func toEpisode(seriesID int64, res EpisodeResource) episode.Episode {
	ep := episode.Episode{
		CatalogID:             seriesID,
		SeasonNumber:          res.SeasonNumber,
		EpisodeNumber:         res.EpisodeNumber,
		AbsoluteEpisodeNumber: res.AbsoluteEpisodeNumber,
		Title:                 res.Title,
		Monitored:             res.Monitored,
	}
	if airDate := strings.TrimSpace(res.AirDate); airDate != "" {
		if t, err := time.Parse(airDateLayout, airDate); err == nil {
			ep.AirDate = &t
		} else {
			log.Warn("Ignoring unparsable airDate %q for seriesId %d S%02dE%02d", airDate, seriesID, res.SeasonNumber, res.EpisodeNumber)
		}
	}
	return ep
}
