package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lets-connect/channel-search/internal/channelsearch"
)

// LoadFile reads a channel snapshot from a JSON file holding either an
// array of channels or an object with a "channels" array.
func LoadFile(path string) ([]channelsearch.Channel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %s: %w", path, err)
	}
	channels, err := decodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}
	return channels, nil
}

// WriteFile writes channels to path as an indented JSON array. The file is
// replaced atomically.
func WriteFile(path string, channels []channelsearch.Channel) error {
	if channels == nil {
		channels = []channelsearch.Channel{}
	}
	data, err := json.MarshalIndent(channels, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling channels: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing catalog file %s: %w", path, err)
	}
	return nil
}

func decodeSnapshot(data []byte) ([]channelsearch.Channel, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var channels []channelsearch.Channel
		if err := json.Unmarshal(trimmed, &channels); err != nil {
			return nil, err
		}
		if channels == nil {
			channels = []channelsearch.Channel{}
		}
		return channels, nil
	}
	var wrapped struct {
		Channels []channelsearch.Channel `json:"channels"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Channels == nil {
		return nil, fmt.Errorf("no channels array found")
	}
	return wrapped.Channels, nil
}

// FileSource serves snapshots from a JSON file, re-read on every load.
type FileSource struct {
	Path string
}

func (f FileSource) LoadChannels(ctx context.Context) ([]channelsearch.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(f.Path)
}
