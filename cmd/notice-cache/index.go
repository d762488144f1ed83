package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderinc/notice-cache/internal/notice"
)

func searchCmd() *cobra.Command {
	var (
		locations []string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Keyword search over stored notice text",
		Long: `Keyword search over stored notice text.

Examples:
  notice-cache search crane
  notice-cache search "RWY 16L" --locations KSEA
  notice-cache search 'closed~'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			results, err := a.idx.Search(query, notice.SplitLocations(locations...), limit)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("No results found")
				return nil
			}

			fmt.Printf("\nFound %d results:\n\n", len(results))
			for i, result := range results {
				fmt.Printf("%d. %s  %s\n", i+1, result.Location, result.Key)
				fmt.Printf("   ID: %d\n", result.ID)
				fmt.Printf("   Score: %.3f\n", result.Score)
				if snippets, ok := result.Fragments["Body"]; ok && len(snippets) > 0 {
					fmt.Printf("   Preview: %s\n", snippets[0])
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&locations, "locations", "l", nil, "restrict hits to these location codes")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results")
	return cmd
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the keyword index from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Rebuilding Bleve keyword search index...")
			fmt.Println()

			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			startTime := time.Now()

			n, err := a.idx.IndexFromStore(cmd.Context(), a.store)
			if err != nil {
				return err
			}
			pruned, err := a.idx.Prune(cmd.Context(), a.store)
			if err != nil {
				return err
			}

			fmt.Println("=== Reindex Complete ===")
			fmt.Printf("Notices indexed: %d\n", n)
			fmt.Printf("Stale removed:   %d\n", pruned)
			fmt.Printf("Duration:        %v\n", time.Since(startTime).Round(time.Millisecond))
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store, index and fetch cursor statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			dbCount, err := a.store.Count(ctx)
			if err != nil {
				return err
			}
			indexCount, err := a.idx.Count()
			if err != nil {
				return fmt.Errorf("index count: %w", err)
			}
			cursors, err := a.store.Cursors(ctx)
			if err != nil {
				return err
			}

			fmt.Println("=== Notice Cache Statistics ===")
			fmt.Printf("Notices in store: %d\n", dbCount)
			fmt.Printf("Notices in index: %d\n", indexCount)
			fmt.Printf("Freshness window: %v\n", a.cfg.Fetch.FreshnessWindow.Std())
			fmt.Println()

			if len(cursors) == 0 {
				fmt.Println("No locations fetched yet")
				return nil
			}

			now := time.Now().UTC()
			window := a.cfg.Fetch.FreshnessWindow.Std()
			fmt.Println("Location  Last fetched          State")
			for _, c := range cursors {
				state := "fresh"
				if now.Sub(c.LastFetchedAt) > window {
					state = "due"
				}
				fmt.Printf("%-8s  %s  %s\n", c.Location, c.LastFetchedAt.Format("2006-01-02 15:04:05"), state)
			}
			return nil
		},
	}
}
