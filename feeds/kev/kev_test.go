package kev_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskhub/riskhub-backend/feeds/feedstest"
	"github.com/riskhub/riskhub-backend/feeds/kev"
	"github.com/riskhub/riskhub-backend/model"
)

const happyCatalog = `{
	"count": 2,
	"vulnerabilities": [
		{
			"cveID": "CVE-2021-44228",
			"dateAdded": "2021-12-10",
			"dueDate": "2021-12-24",
			"knownRansomwareCampaignUse": "Known"
		},
		{
			"cveID": "CVE-2023-9999",
			"dateAdded": "2023-06-01",
			"dueDate": "2023-06-22",
			"knownRansomwareCampaignUse": "Unknown"
		}
	]
}`

func TestUpdate(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{
			name:    "happy path",
			payload: happyCatalog,
		},
		{
			name:    "sad path, invalid json",
			payload: "{",
			wantErr: "failed to parse KEV catalog",
		},
		{
			name:    "sad path, count mismatch",
			payload: `{"count": 5, "vulnerabilities": []}`,
			wantErr: "count mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, err := w.Write([]byte(tt.payload))
				assert.NoError(t, err)
			}))
			defer ts.Close()

			store := feedstest.NewStore().Seed(
				*model.NewVulnerabilityRecord("CVE-2021-44228"),
			)
			updater := kev.NewUpdater(kev.WithURL(ts.URL), kev.WithRetry(0))

			stats, err := updater.Update(context.Background(), store)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			// Only the known CVE is flagged, the other entry is skipped.
			assert.Equal(t, 1, stats.Updated)
			assert.Equal(t, 1, stats.Skipped)

			entry, ok := store.Kev["CVE-2021-44228"]
			require.True(t, ok)
			assert.True(t, entry.RansomwareUse)
			assert.Equal(t, "2021-12-10", entry.DateAdded.Format("2006-01-02"))
			assert.Equal(t, "2021-12-24", entry.DueDate.Format("2006-01-02"))
			assert.False(t, store.Marks["kev"].IsZero())
		})
	}
}
