// Package channelsearch provides an in-memory full-text and fuzzy search
// index over a snapshot of streaming channel records. The index maps
// normalised terms to channel IDs and supports facet filtering, sorting,
// pagination, autocomplete suggestions, and simple aggregate statistics.
package channelsearch

import (
	"encoding/json"
	"strconv"
	"time"
)

// unknownBucket is the facet value used when a channel field is empty.
const unknownBucket = "Unknown"

// Channel is a single catalog entry. Channels are supplied by external
// collaborators and treated as immutable for the lifetime of a snapshot.
type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Country     string    `json:"country"`
	Language    string    `json:"language"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

// Metadata holds optional enrichment attributes of a channel.
type Metadata struct {
	Platform   string     `json:"platform,omitempty"`
	TvgName    string     `json:"tvgName,omitempty"`
	Handle     string     `json:"handle,omitempty"`
	EnrichedAt *time.Time `json:"enrichedAt,omitempty"`
}

// UnmarshalJSON decodes metadata, accepting enrichedAt as an RFC 3339
// string or as Unix milliseconds. Any other enrichedAt value is dropped
// and the remaining fields are kept.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type plain Metadata
	var raw struct {
		plain
		EnrichedAt json.RawMessage `json:"enrichedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata(raw.plain)
	m.EnrichedAt = parseEnrichedAt(raw.EnrichedAt)
	return nil
}

func parseEnrichedAt(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if t, err := time.Parse(time.RFC3339, text); err == nil {
			return &t
		}
		if ms, err := strconv.ParseInt(text, 10, 64); err == nil {
			t := time.UnixMilli(ms).UTC()
			return &t
		}
		return nil
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		t := time.UnixMilli(int64(ms)).UTC()
		return &t
	}
	return nil
}

// indexedText returns the values of every field contributing terms to the
// inverted index.
func (c *Channel) indexedText() []string {
	fields := []string{c.Name, c.Category, c.Country, c.Language, c.Description}
	if c.Metadata != nil {
		fields = append(fields, c.Metadata.Platform, c.Metadata.TvgName, c.Metadata.Handle)
	}
	return fields
}

// enrichedAtMillis returns metadata.enrichedAt in Unix milliseconds, or 0
// when the channel carries no timestamp.
func (c *Channel) enrichedAtMillis() int64 {
	if c.Metadata == nil || c.Metadata.EnrichedAt == nil || c.Metadata.EnrichedAt.IsZero() {
		return 0
	}
	return c.Metadata.EnrichedAt.UnixMilli()
}

func orUnknown(value string) string {
	if value == "" {
		return unknownBucket
	}
	return value
}
