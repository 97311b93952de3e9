package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/damageanalysisflow/internal/models"
)

func newTestSubmitter(store *fakeObjectStore, launcher *fakeLauncher, correlations *fakeCorrelationStore) *SubmitterFunction {
	return &SubmitterFunction{
		objects:      store,
		launcher:     launcher,
		correlations: correlations,
		config: SubmitterConfig{
			ProjectID:             "test-project",
			WorkflowLocation:      "us-central1",
			WorkflowID:            "segmentation-orchestrator",
			SegmentationEndpoint:  "sam-seg-endpoint",
			CorrelationCollection: "segmentation-jobs",
		},
	}
}

func TestSubmitterLaunchesExactlyOneJob(t *testing.T) {
	store := newFakeObjectStore()
	store.put("damage-bucket", "inputs/case1.json", []byte(`{"before":"a.png","after":"b.png","compared_output":"case1-compared.png"}`))
	launcher := &fakeLauncher{}
	correlations := newFakeCorrelationStore()
	f := newTestSubmitter(store, launcher, correlations)

	err := f.Process(context.Background(), models.GCSEvent{Bucket: "damage-bucket", Name: "inputs/case1.json"})
	require.NoError(t, err)
	require.Len(t, launcher.arguments, 1)

	var arg launchArgument
	require.NoError(t, json.Unmarshal([]byte(launcher.arguments[0]), &arg))
	assert.Equal(t, "sam-seg-endpoint", arg.Endpoint)
	assert.True(t, strings.HasPrefix(arg.PayloadLocation, "gs://damage-bucket/payload/"))
	assert.True(t, strings.HasPrefix(arg.OutputLocation, "gs://damage-bucket/async-out/"))
	assert.True(t, strings.HasSuffix(arg.OutputLocation, ".out"))
	require.NotEmpty(t, arg.Token)

	// The payload object carries both image references and the fixed query.
	payloadKey := strings.TrimPrefix(arg.PayloadLocation, "gs://damage-bucket/")
	payloadBytes, ok := store.get("damage-bucket", payloadKey)
	require.True(t, ok, "payload object must be written before launch")

	var request models.SegmentationRequest
	require.NoError(t, json.Unmarshal(payloadBytes, &request))
	assert.Equal(t, "gs://damage-bucket/images/a.png", request.BeforeImage)
	assert.Equal(t, "gs://damage-bucket/images/b.png", request.AfterImage)
	assert.Equal(t, "gs://damage-bucket/compared/case1-compared.png", request.ComparedOutput)
	assert.Equal(t, "house, building, roof", request.Text)
}

func TestSubmitterPersistsCorrelationRecord(t *testing.T) {
	store := newFakeObjectStore()
	store.put("damage-bucket", "inputs/case1.json", []byte(`{"before":"a.png","after":"b.png","compared_output":"c.png"}`))
	launcher := &fakeLauncher{}
	correlations := newFakeCorrelationStore()
	f := newTestSubmitter(store, launcher, correlations)

	require.NoError(t, f.Process(context.Background(), models.GCSEvent{Bucket: "damage-bucket", Name: "inputs/case1.json"}))
	require.Len(t, correlations.records, 1)

	for token, rec := range correlations.records {
		assert.Equal(t, token, rec.Token)
		assert.Equal(t, "payload/"+token+".json", rec.PayloadObject)
		assert.Equal(t, "async-out/"+token+".out", rec.OutputObject)
		assert.Equal(t, "gs://damage-bucket/images/a.png", rec.BeforeURI)
		assert.Equal(t, "gs://damage-bucket/compared/c.png", rec.ComparedURI)
		assert.False(t, rec.SubmittedAt.IsZero())
	}
}

func TestSubmitterRejectsUnmatchedKeys(t *testing.T) {
	launcher := &fakeLauncher{}
	f := newTestSubmitter(newFakeObjectStore(), launcher, newFakeCorrelationStore())

	for _, key := range []string{"other/ignored.txt", "inputs/readme.txt", "compared/x.png"} {
		err := f.Process(context.Background(), models.GCSEvent{Bucket: "b", Name: key})
		require.Error(t, err, "key %q", key)
		assert.Contains(t, err.Error(), key)
	}
	assert.Empty(t, launcher.arguments, "unmatched keys must not reach the launcher")
}

func TestSubmitterRejectsIncompleteDescriptor(t *testing.T) {
	store := newFakeObjectStore()
	store.put("b", "inputs/bad.json", []byte(`{"before":"a.png","after":""}`))
	launcher := &fakeLauncher{}
	f := newTestSubmitter(store, launcher, newFakeCorrelationStore())

	err := f.Process(context.Background(), models.GCSEvent{Bucket: "b", Name: "inputs/bad.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"after"`)
	assert.Empty(t, launcher.arguments)
}

func TestSubmitterRejectsMalformedDescriptor(t *testing.T) {
	store := newFakeObjectStore()
	store.put("b", "inputs/garbage.json", []byte("not json"))
	f := newTestSubmitter(store, &fakeLauncher{}, newFakeCorrelationStore())

	err := f.Process(context.Background(), models.GCSEvent{Bucket: "b", Name: "inputs/garbage.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inputs/garbage.json")
}
