package epss_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskhub/riskhub-backend/feeds/epss"
	"github.com/riskhub/riskhub-backend/feeds/feedstest"
	"github.com/riskhub/riskhub-backend/model"
)

const scoreCSV = `#model_version:v2023.03.01,score_date:2024-01-15T00:00:00+0000
cve,epss,percentile
CVE-2021-44228,0.97565,0.99995
CVE-2020-0001,0.00042,0.05012
not-a-cve,0.5,0.5
CVE-2019-0001,garbage,0.1
`

func gzipped(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestParse(t *testing.T) {
	scores, skipped, err := epss.Parse([]byte(scoreCSV))
	require.NoError(t, err)

	assert.Equal(t, 2, skipped)
	require.Len(t, scores, 2)
	assert.Equal(t, "CVE-2021-44228", scores[0].CveID)
	assert.InDelta(t, 0.97565, scores[0].Score, 0.000001)
	assert.InDelta(t, 0.99995, scores[0].Percentile, 0.000001)
}

func TestParseGzip(t *testing.T) {
	scores, _, err := epss.Parse(gzipped(t, scoreCSV))
	require.NoError(t, err)
	assert.Len(t, scores, 2)
}

func TestUpdate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write(gzipped(t, scoreCSV))
		assert.NoError(t, err)
	}))
	defer ts.Close()

	store := feedstest.NewStore().Seed(
		*model.NewVulnerabilityRecord("CVE-2021-44228"),
	)
	updater := epss.NewUpdater(epss.WithURL(ts.URL), epss.WithRetry(0))

	stats, err := updater.Update(context.Background(), store)
	require.NoError(t, err)

	// One score lands on a known CVE; the unknown CVE and the two malformed
	// rows are skipped.
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 3, stats.Skipped)
	assert.InDelta(t, 0.97565, store.Epss["CVE-2021-44228"].Score, 0.000001)
	assert.False(t, store.Marks["epss"].IsZero())
}
