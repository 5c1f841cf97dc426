package eol_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskhub/riskhub-backend/feeds/eol"
	"github.com/riskhub/riskhub-backend/feeds/feedstest"
)

const nodeCycles = `[
	{"cycle": "16", "eol": "2023-09-11", "latest": "16.20.2"},
	{"cycle": "20", "eol": "2031-04-30", "latest": "20.11.0"},
	{"cycle": "21", "eol": false, "latest": "21.6.1"}
]`

func TestUpdate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nodejs.json", r.URL.Path)
		_, err := w.Write([]byte(nodeCycles))
		assert.NoError(t, err)
	}))
	defer ts.Close()

	store := feedstest.NewStore()
	updater := eol.NewUpdater(
		eol.WithURL(ts.URL),
		eol.WithProducts([]string{"nodejs"}),
		eol.WithRetry(0),
	)

	stats, err := updater.Update(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.New)

	ended := store.EOL["nodejs/16"]
	assert.True(t, ended.IsEOL)
	require.NotNil(t, ended.EOLDate)
	assert.Equal(t, "2023-09-11", ended.EOLDate.Format("2006-01-02"))

	// Date in the future keeps the cycle alive; boolean false has no date.
	assert.False(t, store.EOL["nodejs/20"].IsEOL)
	assert.False(t, store.EOL["nodejs/21"].IsEOL)
	assert.Nil(t, store.EOL["nodejs/21"].EOLDate)

	assert.False(t, store.Marks["eol"].IsZero())
}

func TestUpdateBadPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte("{"))
		assert.NoError(t, err)
	}))
	defer ts.Close()

	updater := eol.NewUpdater(eol.WithURL(ts.URL), eol.WithProducts([]string{"redis"}), eol.WithRetry(0))
	_, err := updater.Update(context.Background(), feedstest.NewStore())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse EOL data for redis")
}
