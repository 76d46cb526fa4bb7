package indexer

import (
	"context"
	"strings"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresURL(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}

func TestClient_QueryForwardsParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2.0/indexers/torrentsir/results/torznab/api", r.URL.Path)
		assert.Equal(t, "tvsearch", r.URL.Query().Get("t"))
		assert.Equal(t, "마이쇼", r.URL.Query().Get("q"))
		assert.Equal(t, "abc", r.URL.Query().Get("apikey"))
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		_, _ = w.Write([]byte("<rss/>"))
	}))
	defer server.Close()

	client, err := New(server.URL+"/api/v2.0/indexers/torrentsir/results/torznab/api", WithHTTPClient(server.Client()))
	require.NoError(t, err)

	params := url.Values{}
	params.Set("t", "tvsearch")
	params.Set("q", "마이쇼")
	params.Set("apikey", "abc")

	resp, err := client.Query(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/rss+xml; charset=utf-8", resp.ContentType)
	assert.Equal(t, "<rss/>", string(resp.Body))
}

func TestClient_QueryNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "indexer down", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	require.NoError(t, err)

	_, err = client.Query(context.Background(), url.Values{"t": {"caps"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "indexer down")
}

func TestClient_QueryCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Query(ctx, nil)
	assert.Error(t, err)
}

func TestClient_QueryKeepsConfiguredParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		assert.Equal(t, "caps", r.URL.Query().Get("t"))
		assert.Equal(t, []string{"json"}, r.URL.Query()["format"])
		_, _ = w.Write([]byte("<caps/>"))
	}))
	defer server.Close()

	client, err := New(server.URL+"/api?apikey=secret&format=xml", WithHTTPClient(server.Client()))
	require.NoError(t, err)

	_, err = client.Query(context.Background(), url.Values{"t": {"caps"}, "format": {"json"}})
	require.NoError(t, err)
}

func TestClient_QueryRejectsOversizedBody(t *testing.T) {
	defer func(n int) { maxBodyBytes = n }(maxBodyBytes)
	maxBodyBytes = 16

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 17)))
	}))
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	require.NoError(t, err)

	_, err = client.Query(context.Background(), url.Values{"t": {"caps"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 16 bytes")

	maxBodyBytes = 17
	resp, err := client.Query(context.Background(), url.Values{"t": {"caps"}})
	require.NoError(t, err)
	assert.Len(t, resp.Body, 17)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate(" abc ", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
