package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lets-connect/channel-search/internal/channelsearch"
)

func TestHandleCatalogEventReloads(t *testing.T) {
	search := channelsearch.New(nil)
	source := &fakeSource{channels: twoChannels}
	r := NewReloader(search, source, nil, nil, testCatalogConfig())

	var reasons []string
	r.OnRebuilt(func(e IndexRebuiltEvent) { reasons = append(reasons, e.Reason) })

	handle := HandleCatalogEvent(r)
	err := handle(context.Background(), []byte("catalog"),
		[]byte(`{"type":"channels.enriched","source":"youtube","channelIds":["espn"],"timestamp":"2026-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	assert.Equal(t, 2, search.Len())
	assert.Equal(t, []string{ReasonEvent}, reasons)
}

func TestHandleCatalogEventDropsGarbage(t *testing.T) {
	source := &fakeSource{channels: twoChannels}
	r := NewReloader(channelsearch.New(nil), source, nil, nil, testCatalogConfig())

	assert.NoError(t, HandleCatalogEvent(r)(context.Background(), nil, []byte("{not json")))
	assert.Zero(t, source.calls)
}
