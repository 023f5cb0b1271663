package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lets-connect/channel-search/internal/catalog"
	"github.com/lets-connect/channel-search/internal/channelsearch"
	"github.com/lets-connect/channel-search/pkg/config"
	"github.com/lets-connect/channel-search/pkg/logger"
	"github.com/lets-connect/channel-search/pkg/postgres"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	file       string
	configPath string
	useDB      bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "channelctl",
		Short: "Query and import channel catalog snapshots",
		Long: `channelctl builds the channel index from a JSON snapshot (--file) or the
catalog database (--db) and runs a single query against it.

Examples:
  channelctl search "bbc news" --file channels.json --country UK
  channelctl suggest ne --db --config configs/development.yaml
  channelctl import channels.json --config configs/development.yaml`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Setup(opts.logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&opts.file, "file", "", "JSON channel snapshot to index")
	root.PersistentFlags().BoolVar(&opts.useDB, "db", false, "Load channels from the catalog database")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (database settings)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		newSearchCmd(opts),
		newSuggestCmd(opts),
		newFacetsCmd(opts),
		newStatsCmd(opts),
		newTrendingCmd(opts),
		newSimilarCmd(opts),
		newTermsCmd(opts),
		newImportCmd(opts),
	)
	return root
}

// loadIndex builds a ChannelSearch from the snapshot selected by the flags.
func (o *options) loadIndex(ctx context.Context) (*channelsearch.ChannelSearch, error) {
	switch {
	case o.file != "" && o.useDB:
		return nil, errors.New("--file and --db are mutually exclusive")
	case o.file != "":
		channels, err := catalog.LoadFile(o.file)
		if err != nil {
			return nil, err
		}
		return channelsearch.New(channels), nil
	case o.useDB:
		db, err := o.openDB()
		if err != nil {
			return nil, err
		}
		defer db.Close()
		channels, err := catalog.NewStore(db).LoadChannels(ctx)
		if err != nil {
			return nil, err
		}
		return channelsearch.New(channels), nil
	default:
		return nil, errors.New("one of --file or --db is required")
	}
}

func (o *options) openDB() (*postgres.Client, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connecting to catalog database: %w", err)
	}
	return db, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
