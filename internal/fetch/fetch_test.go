package fetch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-view/internal/pipeline"
)

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	body, ct, err := NewClient(0).Fetch(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "application/geo+json", ct)
	assert.Contains(t, string(body), "FeatureCollection")
}

func TestClientFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tile store offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, _, err := NewClient(0).Fetch(t.Context(), srv.URL)
	require.Error(t, err)

	var fe *pipeline.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, srv.URL, fe.URL)
	assert.Contains(t, fe.Body, "tile store offline")
}

func TestClientFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, _, err := NewClient(0).Fetch(t.Context(), srv.URL)
	require.Error(t, err)

	var fe *pipeline.FetchError
	assert.False(t, errors.As(err, &fe), "transport errors are not status errors")
}

func TestPrefixProxyResolve(t *testing.T) {
	target := "https://data.example.com/layers/roads.geojson?f=json"

	var empty *PrefixProxy
	assert.Equal(t, target, empty.Resolve(target))
	assert.Equal(t, target, (&PrefixProxy{}).Resolve(target))

	p := &PrefixProxy{Prefix: "https://relay.local/proxy/"}
	assert.Equal(t, p.Prefix+url.QueryEscape(target), p.Resolve(target))
	assert.Equal(t, "not a url", p.Resolve("not a url"))

	scoped := &PrefixProxy{
		Prefix: "https://relay.local/proxy/",
		Hosts:  []string{"data.example.com"},
	}
	assert.True(t, strings.HasPrefix(scoped.Resolve(target), scoped.Prefix))
	other := "https://elsewhere.example.com/roads.geojson"
	assert.Equal(t, other, scoped.Resolve(other))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "lon...", clip("long body text", 3))
}
