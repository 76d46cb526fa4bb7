package feed

import (
	"errors"
	"fmt"

	"github.com/MimeLyc/torznab-title-mapper/internal/episode"
	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

var (
	ErrParse     = errors.New("feed parse failed")
	ErrSerialize = errors.New("feed serialize failed")
)

// Result is a rewritten feed plus counters for logging.
type Result struct {
	Body      []byte
	Items     int
	Rewritten int
}

// Rewrite parses raw, renames every item whose title carries an absolute
// episode matching one of episodes, and serializes the feed again. Items
// that do not match keep their title untouched.
func Rewrite(raw []byte, canonicalTitle string, episodes []episode.Episode) (*Result, error) {
	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	items := doc.Items()
	result := &Result{Items: len(items)}
	for _, item := range items {
		if RewriteItem(item, canonicalTitle, episodes) {
			result.Rewritten++
		}
	}

	body, err := doc.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialize, err)
	}
	result.Body = body
	return result, nil
}

// RewriteItem replaces the item's title when it matches a monitored episode
// and reports whether it did.
func RewriteItem(item *Node, canonicalTitle string, episodes []episode.Episode) bool {
	titleNode := item.Child("title")
	if titleNode == nil {
		return false
	}
	title := titleNode.Text()

	absolute, ok := episode.ExtractAbsoluteEpisode(title)
	if !ok {
		return false
	}
	resolution := episode.ExtractResolution(title)

	ep, rule, ok := episode.Match(absolute, title, episodes)
	if !ok {
		log.Debug("No monitored episode for %q (E%d)", title, absolute)
		return false
	}

	rewritten := episode.CanonicalTitle(canonicalTitle, ep, resolution)
	titleNode.SetText(rewritten)
	log.Debug("Rewrote %q -> %q (%s)", title, rewritten, rule)
	return true
}
