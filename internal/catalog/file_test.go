package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lets-connect/channel-search/internal/channelsearch"
)

func TestWriteThenLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.json")
	enriched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	channels := []channelsearch.Channel{
		{ID: "arte", Name: "Arte", Category: "Culture", Country: "FR", Source: "iptv",
			Metadata: &channelsearch.Metadata{Platform: "web", EnrichedAt: &enriched}},
		{ID: "cnn", Name: "CNN"},
	}

	require.NoError(t, WriteFile(path, channels))
	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "arte", loaded[0].ID)
	require.NotNil(t, loaded[0].Metadata)
	assert.True(t, enriched.Equal(*loaded[0].Metadata.EnrichedAt))
	assert.Nil(t, loaded[1].Metadata)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file is cleaned up")
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	wrapped, err := LoadFile(write("wrapped.json", `{"channels":[{"id":"tf1","name":"TF1"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "tf1", wrapped[0].ID)

	empty, err := LoadFile(write("empty.json", `[]`))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = LoadFile(write("bad.json", `{"items":[]}`))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "reading catalog file")
}

func TestLoadFileToleratesEpochEnrichedAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.json")
	body := `[{"id":"1","name":"Tech Talk","metadata":{"platform":"youtube","enrichedAt":1700000000000}},{"id":"2","name":"CNN"}]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.NotNil(t, loaded[0].Metadata)
	assert.Equal(t, "youtube", loaded[0].Metadata.Platform)
	require.NotNil(t, loaded[0].Metadata.EnrichedAt)
	assert.Equal(t, int64(1700000000000), loaded[0].Metadata.EnrichedAt.UnixMilli())
}

func TestLoadFileReportsArrayError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.json")
	require.NoError(t, os.WriteFile(path, []byte(`  [{"id":"1","name":42}]`), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "cannot unmarshal number")
	assert.NotContains(t, err.Error(), "struct { Channels")
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.json")
	require.NoError(t, WriteFile(path, twoChannels))

	got, err := FileSource{Path: path}.LoadChannels(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileSource{Path: path}.LoadChannels(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
