package sync

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/feeds"
	"github.com/riskhub/riskhub-backend/feeds/feedstest"
)

type stubAdapter struct {
	name string
}

func (a stubAdapter) Source() string { return a.name }

func (a stubAdapter) Update(_ context.Context, _ feeds.Store) (feeds.Stats, error) {
	return feeds.Stats{New: 1}, nil
}

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	registry := feeds.NewRegistry(context.Background(), feedstest.NewStore(), zap.NewNop(), nil)
	registry.Register(stubAdapter{name: "nvd"})

	app := fiber.New()
	app.Post("/feeds/:source/sync", PostFeedSync(registry, zap.NewNop()))
	app.Get("/feeds/sources", ListSources(registry))
	return app
}

func decodeBody(t *testing.T, resp io.Reader) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp).Decode(&body))
	return body
}

func TestPostFeedSyncAccepted(t *testing.T) {
	app := newApp(t)

	req := httptest.NewRequest("POST", "/feeds/nvd/sync", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["run_id"])
}

func TestPostFeedSyncUnknownSource(t *testing.T) {
	app := newApp(t)

	req := httptest.NewRequest("POST", "/feeds/ghc/sync", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, false, body["success"])
}

func TestListSources(t *testing.T) {
	app := newApp(t)

	req := httptest.NewRequest("GET", "/feeds/sources", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal(t, []interface{}{"nvd"}, body["sources"])
}
