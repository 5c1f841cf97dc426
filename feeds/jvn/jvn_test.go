package jvn_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskhub/riskhub-backend/feeds/feedstest"
	"github.com/riskhub/riskhub-backend/feeds/jvn"
)

const feedRDF = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns="http://purl.org/rss/1.0/"
         xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:sec="http://jvn.jp/rss/mod_sec/3.0/"
         xmlns:dcterms="http://purl.org/dc/terms/"
         xmlns:dc="http://purl.org/dc/elements/1.1/">
  <item rdf:about="https://jvndb.jvn.jp/ja/contents/2024/JVNDB-2024-000011.html">
    <title>Example Product におけるSQLインジェクションの脆弱性</title>
    <link>https://jvndb.jvn.jp/ja/contents/2024/JVNDB-2024-000011.html</link>
    <description>Example Product には SQL インジェクションの脆弱性 (CVE-2024-11111) が存在します。</description>
    <sec:identifier>JVNDB-2024-000011</sec:identifier>
    <sec:references source="CVE" id="CVE-2024-11111">https://www.cve.org/CVERecord?id=CVE-2024-11111</sec:references>
    <sec:cvss version="3.0" score="9.8" severity="Critical" vector="CVSS:3.0/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"/>
    <dcterms:modified>2024-02-01T12:00+09:00</dcterms:modified>
  </item>
  <item rdf:about="https://jvndb.jvn.jp/ja/contents/2024/JVNDB-2024-000012.html">
    <title>Another Product における重要な脆弱性</title>
    <link>https://jvndb.jvn.jp/ja/contents/2024/JVNDB-2024-000012.html</link>
    <description>詳細は現在調査中です。</description>
    <sec:identifier>JVNDB-2024-000012</sec:identifier>
    <dcterms:modified>2024-02-02T09:30+09:00</dcterms:modified>
  </item>
</rdf:RDF>`

func TestUpdate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte(feedRDF))
		assert.NoError(t, err)
	}))
	defer ts.Close()

	store := feedstest.NewStore()
	updater := jvn.NewUpdater(jvn.WithURL(ts.URL), jvn.WithRetry(0))

	stats, err := updater.Update(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.New)

	// The CVE reference becomes the canonical id, JVNDB id stays an alias.
	withCve, ok := store.Vulns["CVE-2024-11111"]
	require.True(t, ok)
	assert.Contains(t, withCve.Aliases, "JVNDB-2024-000011")
	assert.InDelta(t, 9.8, withCve.CvssScore, 0.01)
	assert.Equal(t, "CRITICAL", withCve.SeverityRating)

	// No CVE and no vector: keyword severity from the Japanese title.
	withoutCve, ok := store.Vulns["JVNDB-2024-000012"]
	require.True(t, ok)
	assert.Equal(t, "HIGH", withoutCve.SeverityRating)
	assert.False(t, withoutCve.Modified.IsZero())
}

func TestUpdateInvalidXML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte("<not-rdf"))
		assert.NoError(t, err)
	}))
	defer ts.Close()

	updater := jvn.NewUpdater(jvn.WithURL(ts.URL), jvn.WithRetry(0))
	_, err := updater.Update(context.Background(), feedstest.NewStore())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse JVN feed")
}
