package feedsync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/feeds"
	"github.com/riskhub/riskhub-backend/model"
)

type fakeLister struct {
	projects []model.Project
	err      error
}

func (f *fakeLister) ListProjects(_ context.Context) ([]model.Project, error) {
	return f.projects, f.err
}

type fakeCorrelator struct {
	calls []string
	fail  map[string]error
}

func (f *fakeCorrelator) Correlate(_ context.Context, tenantID, projectID string) (string, bool, error) {
	f.calls = append(f.calls, tenantID+"/"+projectID)
	if err := f.fail[projectID]; err != nil {
		return "", false, err
	}
	return "run-1", false, nil
}

type fakeAssessor struct {
	calls []string
}

func (f *fakeAssessor) Reassess(_ context.Context, tenantID, projectID string) (int, error) {
	f.calls = append(f.calls, tenantID+"/"+projectID)
	return 0, nil
}

func eventPayload(t *testing.T, eventType string) []byte {
	t.Helper()
	payload, err := json.Marshal(SyncCompletedEvent{
		EventType: eventType,
		EventID:   "e1",
		Source:    "nvd",
		RunID:     "r1",
		Stats:     feeds.Stats{New: 3},
	})
	require.NoError(t, err)
	return payload
}

func TestHandleSyncCompletedRecorrelatesAllProjects(t *testing.T) {
	lister := &fakeLister{projects: []model.Project{
		{Key: "p1", TenantID: "t1"},
		{Key: "p2", TenantID: "t2"},
	}}
	correlator := &fakeCorrelator{}
	assessor := &fakeAssessor{}

	err := HandleSyncCompleted(context.Background(), eventPayload(t, EventTypeSyncCompleted),
		lister, correlator, assessor, zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, []string{"t1/p1", "t2/p2"}, correlator.calls)
	assert.Equal(t, []string{"t1/p1", "t2/p2"}, assessor.calls)
}

func TestHandleSyncCompletedSkipsFailedProject(t *testing.T) {
	lister := &fakeLister{projects: []model.Project{
		{Key: "p1", TenantID: "t1"},
		{Key: "p2", TenantID: "t1"},
	}}
	correlator := &fakeCorrelator{fail: map[string]error{"p1": errors.New("boom")}}
	assessor := &fakeAssessor{}

	err := HandleSyncCompleted(context.Background(), eventPayload(t, EventTypeSyncCompleted),
		lister, correlator, assessor, zap.NewNop())

	require.NoError(t, err)
	assert.Len(t, correlator.calls, 2)
	assert.Equal(t, []string{"t1/p2"}, assessor.calls, "failed project skips reassessment")
}

func TestHandleSyncCompletedIgnoresOtherEventTypes(t *testing.T) {
	correlator := &fakeCorrelator{}

	err := HandleSyncCompleted(context.Background(), eventPayload(t, "feed.sync.started"),
		&fakeLister{}, correlator, &fakeAssessor{}, zap.NewNop())

	require.NoError(t, err)
	assert.Empty(t, correlator.calls)
}

func TestHandleSyncCompletedMalformedPayload(t *testing.T) {
	err := HandleSyncCompleted(context.Background(), []byte("{not json"),
		&fakeLister{}, &fakeCorrelator{}, &fakeAssessor{}, zap.NewNop())
	assert.Error(t, err)
}
