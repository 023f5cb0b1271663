package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lets-connect/channel-search/internal/catalog"
	"github.com/lets-connect/channel-search/internal/channelsearch"
)

func newSearchCmd(opts *options) *cobra.Command {
	var searchOpts channelsearch.SearchOptions
	var noFuzzy bool
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search channels; an empty query lists every channel",
		Long: `Search channels by name, category, country, language, description and
enrichment metadata. Each exact term match scores 10, each fuzzy match 5.

Examples:
  channelctl search "bbc news" --file channels.json
  channelctl search nws --file channels.json --no-fuzzy
  channelctl search --file channels.json --category News --sort name --limit 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !channelsearch.ValidSort(searchOpts.SortBy) {
				return fmt.Errorf("--sort must be one of %s, %s, %s",
					channelsearch.SortRelevance, channelsearch.SortName, channelsearch.SortRecent)
			}
			if noFuzzy {
				searchOpts.Fuzzy = channelsearch.Bool(false)
			}
			cs, err := opts.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return printJSON(cmd.OutOrStdout(), cs.Search(query, searchOpts))
		},
	}
	cmd.Flags().StringVar(&searchOpts.Category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&searchOpts.Country, "country", "", "Filter by country")
	cmd.Flags().StringVar(&searchOpts.Language, "language", "", "Filter by language")
	cmd.Flags().StringVar(&searchOpts.Source, "source", "", "Filter by source")
	cmd.Flags().StringVar(&searchOpts.SortBy, "sort", "", "Sort: relevance, name, or recent")
	cmd.Flags().IntVar(&searchOpts.Limit, "limit", channelsearch.DefaultLimit, "Page size")
	cmd.Flags().IntVar(&searchOpts.Offset, "offset", 0, "Page offset")
	cmd.Flags().BoolVar(&noFuzzy, "no-fuzzy", false, "Disable edit-distance matching")
	return cmd
}

func newSuggestCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "List indexed terms starting with prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := opts.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cs.GetSuggestions(args[0], limit))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum suggestions")
	return cmd
}

func newFacetsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "facets {categories|countries|languages}",
		Short:     "Count channels per facet value",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"categories", "countries", "languages"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := opts.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			var counts []channelsearch.FacetCount
			switch args[0] {
			case "categories":
				counts = cs.GetCategories()
			case "countries":
				counts = cs.GetCountries()
			case "languages":
				counts = cs.GetLanguages()
			}
			return printJSON(cmd.OutOrStdout(), counts)
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show snapshot statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := opts.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cs.GetStats())
		},
	}
}

func newTrendingCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "List the most common category and country combinations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := opts.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cs.GetTrendingSearches(limit))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum combinations")
	return cmd
}

func newSimilarCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "similar <channel-id>",
		Short: "List channels sharing a channel's category and country",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := opts.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cs.FindSimilar(args[0], limit))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum channels")
	return cmd
}

func newTermsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "terms",
		Short: "Dump the inverted index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := opts.loadIndex(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cs.Terms())
		},
	}
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Upsert a JSON snapshot into the catalog database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channels, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			store := catalog.NewStore(db)
			if err := store.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			n, err := store.UpsertChannels(cmd.Context(), channels)
			if err != nil {
				return err
			}
			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"imported": n, "total": total})
		},
	}
}
