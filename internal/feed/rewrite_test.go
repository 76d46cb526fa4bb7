package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/MimeLyc/torznab-title-mapper/internal/episode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func intPtr(n int) *int { return &n }

func monitoredEpisodes() []episode.Episode {
	aired := time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC)
	return []episode.Episode{
		{CatalogID: 42, SeasonNumber: 2, EpisodeNumber: 5, AbsoluteEpisodeNumber: intPtr(17), Title: "Episode Seventeen", Monitored: true},
		{CatalogID: 42, SeasonNumber: 2, EpisodeNumber: 6, AbsoluteEpisodeNumber: intPtr(18), AirDate: &aired, Title: "Episode Eighteen", Monitored: true},
	}
}

const singleItemFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed"><channel><title>Jackett</title><item><title>마이쇼.E17.1080p.mkv</title><torznab:attr name="seeders" value="5"/></item></channel></rss>`

func TestRewrite_SingleItemMatched(t *testing.T) {
	result, err := Rewrite([]byte(singleItemFeed), "My Show", monitoredEpisodes())
	require.NoError(t, err)

	want := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed"><channel><title>Jackett</title><item><title>My Show.S02E05.1080p</title><torznab:attr name="seeders" value="5"></torznab:attr></item></channel></rss>`
	assert.Equal(t, want, string(result.Body))
	assert.Equal(t, 1, result.Items)
	assert.Equal(t, 1, result.Rewritten)
}

func TestRewrite_LeadingByteOrderMark(t *testing.T) {
	raw := "\xef\xbb\xbf<?xml version=\"1.0\"?><rss><channel><item><title>X.E17</title></item></channel></rss>"

	result, err := Rewrite([]byte(raw), "My Show", monitoredEpisodes())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rewritten)
	assert.Contains(t, string(result.Body), "<title>My Show.S02E05.unknown</title>")
	assert.NotContains(t, string(result.Body), "\xef\xbb\xbf")
}

func TestRewrite_ManyItems(t *testing.T) {
	raw := `<rss version="2.0"><channel>
<item><title>마이쇼.E17.1080p.mkv</title><link>http://x/1</link></item>
<item><title>마이쇼.E99.720p.mkv</title><link>http://x/2</link></item>
<item><title>마이쇼.Special.720p.mkv</title></item>
<item><title>마이쇼.240309.E01.mkv</title></item>
<item><guid>no-title</guid></item>
</channel></rss>`

	result, err := Rewrite([]byte(raw), "My Show", monitoredEpisodes())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Items)
	assert.Equal(t, 2, result.Rewritten)

	doc, err := Parse(result.Body)
	require.NoError(t, err)
	items := doc.Items()
	require.Len(t, items, 5)
	assert.Equal(t, "My Show.S02E05.1080p", items[0].Child("title").Text())
	assert.Equal(t, "마이쇼.E99.720p.mkv", items[1].Child("title").Text())
	assert.Equal(t, "http://x/2", items[1].Child("link").Text())
	assert.Equal(t, "마이쇼.Special.720p.mkv", items[2].Child("title").Text())
	// E01 matches nothing by number, the air date token picks episode 18
	assert.Equal(t, "My Show.S02E06.unknown", items[3].Child("title").Text())
	assert.Nil(t, items[4].Child("title"))
}

func TestRewrite_NoEpisodesLeavesTitles(t *testing.T) {
	result, err := Rewrite([]byte(singleItemFeed), "My Show", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Rewritten)
	assert.Contains(t, string(result.Body), "<title>마이쇼.E17.1080p.mkv</title>")
}

func TestRewrite_EmptyChannel(t *testing.T) {
	result, err := Rewrite([]byte(`<rss><channel><title>Jackett</title></channel></rss>`), "My Show", monitoredEpisodes())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Items)
	assert.Contains(t, string(result.Body), "<channel><title>Jackett</title></channel>")
}

func TestRewrite_IndexerErrorDocumentPassesThrough(t *testing.T) {
	raw := `<?xml version="1.0" encoding="UTF-8"?><error code="100" description="Invalid API Key"/>`

	result, err := Rewrite([]byte(raw), "My Show", monitoredEpisodes())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Items)
	assert.Contains(t, string(result.Body), `<error code="100" description="Invalid API Key"></error>`)
}

func TestRewrite_ParseError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"plain text", "Bad Gateway"},
		{"unclosed", "<rss><channel><item><title>x</title></item>"},
		{"mismatched", "<rss><channel></rss>"},
		{"two roots", "<rss></rss><rss></rss>"},
		{"broken tag", "<rss><channel <item></channel></rss>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Rewrite([]byte(tt.raw), "My Show", monitoredEpisodes())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse))
			assert.Nil(t, result)
		})
	}
}

func TestRewrite_EUCKRFeed(t *testing.T) {
	body, err := korean.EUCKR.NewEncoder().String(`<rss><channel><item><title>마이쇼.E17.720p.mkv</title><description>마이쇼 17회</description></item></channel></rss>`)
	require.NoError(t, err)
	raw := `<?xml version="1.0" encoding="EUC-KR"?>` + body

	result, err := Rewrite([]byte(raw), "My Show", monitoredEpisodes())
	require.NoError(t, err)
	out := string(result.Body)
	assert.Contains(t, out, `encoding="UTF-8"`)
	assert.Contains(t, out, "<title>My Show.S02E05.720p</title>")
	assert.Contains(t, out, "<description>마이쇼 17회</description>")
}

func TestRewriteItem_MissingTitle(t *testing.T) {
	item := &Node{Kind: ElementNode, Name: "item"}
	assert.False(t, RewriteItem(item, "My Show", monitoredEpisodes()))
}
