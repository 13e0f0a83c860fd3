package registry

import (
	"errors"
	"net/url"
	"testing"

	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(mapLookup(map[string]string{
		"ESQUIRE_USER": "acme",
		"ESQUIRE_PASS": "s3cret",
	}))

	sup := supplier.Supplier{
		ID:  "esquire",
		URL: "https://api.esquire.example/feed?u={{ESQUIRE_USER}}&p={{ ESQUIRE_PASS }}&again={{ESQUIRE_USER}}",
	}
	got, err := r.Resolve(sup)
	require.NoError(t, err)
	assert.Equal(t, "https://api.esquire.example/feed?u=acme&p=s3cret&again=acme", got.URL)
	assert.Contains(t, sup.URL, "{{ESQUIRE_USER}}", "input is not modified")
}

func TestResolver_EscapesValues(t *testing.T) {
	r := NewResolver(mapLookup(map[string]string{
		"HASH":   "s3cr#tTail",
		"AMP":    "ab&cd=ef",
		"SPACED": "a b/c",
		"HOST":   "feeds.example",
	}))

	got, err := r.Resolve(supplier.Supplier{
		ID:  "esc",
		URL: "https://{{HOST}}/{{SPACED}}/feed?user=u&pass={{HASH}}&key={{AMP}}",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://feeds.example/a%20b%2Fc/feed?user=u&pass=s3cr%23tTail&key=ab%26cd%3Def", got.URL)

	u, err := url.Parse(got.URL)
	require.NoError(t, err)
	assert.Empty(t, u.Fragment)
	assert.Equal(t, "s3cr#tTail", u.Query().Get("pass"))
	assert.Equal(t, "ab&cd=ef", u.Query().Get("key"))
	assert.Len(t, u.Query(), 3)
}

func TestResolver_MissingPlaceholder(t *testing.T) {
	r := NewResolver(mapLookup(map[string]string{"A": "1", "EMPTY": ""}))

	_, err := r.Resolve(supplier.Supplier{ID: "s1", URL: "https://x.example/?a={{A}}&b={{B}}&c={{EMPTY}}"})
	require.Error(t, err)

	var cfgErr *ingestion.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "s1", cfgErr.SupplierID)
	assert.Contains(t, cfgErr.Reason, "B, EMPTY")
	assert.Equal(t, "config", ingestion.Stage(err))
}

func TestResolver_NoPlaceholders(t *testing.T) {
	sup := supplier.Supplier{ID: "plain", URL: "https://plain.example/feed.xml"}
	got, err := NewResolver(mapLookup(nil)).Resolve(sup)
	require.NoError(t, err)
	assert.Equal(t, sup, got)
}

func TestNewEnvResolver(t *testing.T) {
	t.Setenv("FEEDSYNC_TEST_TOKEN", "tok")

	got, err := NewEnvResolver().Resolve(supplier.Supplier{URL: "https://e.example/?token={{FEEDSYNC_TEST_TOKEN}}"})
	require.NoError(t, err)
	assert.Equal(t, "https://e.example/?token=tok", got.URL)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, Placeholders("{{A}}/{{B}}/{{A}}"))
	assert.Nil(t, Placeholders("https://no.placeholders/"))
	assert.Nil(t, Placeholders("{{ not valid-name }}"))
}
