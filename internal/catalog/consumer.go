package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/lets-connect/channel-search/pkg/kafka"
)

// CatalogEvent is published on the catalog-updated topic whenever the
// upstream catalog changes.
type CatalogEvent struct {
	Type       string    `json:"type"`
	Source     string    `json:"source,omitempty"`
	ChannelIDs []string  `json:"channelIds,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// HandleCatalogEvent returns a kafka.MessageHandler that reloads the index
// for every catalog event. Undecodable messages are logged and acknowledged.
func HandleCatalogEvent(r *Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "catalog-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[CatalogEvent](value)
		if err != nil {
			logger.Warn("dropping undecodable catalog event", "key", string(key), "error", err)
			return nil
		}
		logger.Debug("catalog event received",
			"type", event.Type,
			"source", event.Source,
			"channel_ids", len(event.ChannelIDs),
		)
		_, err = r.reload(ctx, ReasonEvent)
		return err
	}
}
