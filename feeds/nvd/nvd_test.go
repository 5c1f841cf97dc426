package nvd_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskhub/riskhub-backend/feeds/feedstest"
	"github.com/riskhub/riskhub-backend/feeds/nvd"
)

const apiPage = `{
	"resultsPerPage": 2,
	"startIndex": 0,
	"totalResults": 2,
	"vulnerabilities": [
		{
			"cve": {
				"id": "CVE-2024-12345",
				"published": "2024-03-01T10:00:00.000",
				"lastModified": "2024-03-05T08:30:00.000",
				"descriptions": [
					{"lang": "en", "value": "Buffer overflow in example parser."},
					{"lang": "es", "value": "Desbordamiento."}
				],
				"metrics": {
					"cvssMetricV31": [
						{"cvssData": {"vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", "baseScore": 9.8}}
					]
				},
				"references": [
					{"url": "https://example.com/poc", "tags": ["Exploit", "Third Party Advisory"]}
				]
			}
		},
		{
			"cve": {
				"id": "CVE-2024-22222",
				"published": "2024-02-01T00:00:00.000",
				"lastModified": "2024-02-02T00:00:00.000",
				"descriptions": [{"lang": "en", "value": "Minor issue."}],
				"metrics": {}
			}
		}
	]
}`

func TestUpdate(t *testing.T) {
	var gotAPIKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("apiKey")
		assert.NotEmpty(t, r.URL.Query().Get("lastModStartDate"))
		_, err := w.Write([]byte(apiPage))
		assert.NoError(t, err)
	}))
	defer ts.Close()

	store := feedstest.NewStore()
	updater := nvd.NewUpdater(nvd.WithURL(ts.URL), nvd.WithAPIKey("test-key"), nvd.WithRetry(0))

	stats, err := updater.Update(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotAPIKey)
	assert.Equal(t, 2, stats.New)

	rec, ok := store.Vulns["CVE-2024-12345"]
	require.True(t, ok)
	assert.Equal(t, "Buffer overflow in example parser.", rec.Description)
	assert.InDelta(t, 9.8, rec.CvssScore, 0.01)
	assert.Equal(t, "CRITICAL", rec.SeverityRating)
	assert.True(t, rec.ExploitEvidence)

	unscored := store.Vulns["CVE-2024-22222"]
	assert.Empty(t, unscored.SeverityRating)
	assert.False(t, unscored.ExploitEvidence)

	assert.False(t, store.Marks["nvd"].IsZero())
}

func TestUpdateBadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte("{"))
		assert.NoError(t, err)
	}))
	defer ts.Close()

	updater := nvd.NewUpdater(nvd.WithURL(ts.URL), nvd.WithRetry(0))
	_, err := updater.Update(context.Background(), feedstest.NewStore())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse NVD response")
}
