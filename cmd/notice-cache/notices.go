package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderinc/notice-cache/internal/notice"
)

func fetchCmd() *cobra.Command {
	var (
		start, end string
		interpret  bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <location>...",
		Short: "Get the notices active at locations, refetching stale ones",
		Long: `Get the notices active at one or more locations for a date window.
Locations fetched within the freshness window are served from the cache.
A blank --start or --end means today (UTC).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, interpret)
			if err != nil {
				return err
			}
			defer a.Close()

			window, err := notice.ParseWindow(start, end, time.Now())
			if err != nil {
				return err
			}

			result, err := a.orch.FetchOrFromCache(ctx, notice.SplitLocations(args...), window)
			if err != nil {
				return err
			}

			if interpret {
				if err := a.requireWorker(); err != nil {
					return err
				}
				stats, err := a.worker.Annotate(ctx, result.IDs())
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Interpreted %d notices (%d already done, %d errors)\n",
					stats.Interpreted, stats.Skipped, stats.Errors)
			}

			if asJSON {
				return printJSON(result)
			}

			fmt.Printf("Locations refetched: %d\n", result.Refetched)
			fmt.Printf("New notices stored:  %d\n", result.Inserted)
			fmt.Printf("Active notices:      %d\n", len(result.Records))
			fmt.Println()
			for _, r := range result.Records {
				printRecord(r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "window start, YYYY-MM-DD or RFC 3339 (default: today)")
	cmd.Flags().StringVar(&end, "end", "", "window end, YYYY-MM-DD or RFC 3339 (default: today)")
	cmd.Flags().BoolVar(&interpret, "annotate", false, "interpret the returned notices with the summarizer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func getCmd() *cobra.Command {
	var interpret bool

	cmd := &cobra.Command{
		Use:   "get <ids>",
		Short: "Show stored notices by id with their interpretation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := notice.ParseIDs(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, interpret)
			if err != nil {
				return err
			}
			defer a.Close()

			if interpret {
				if err := a.requireWorker(); err != nil {
					return err
				}
				if _, err := a.worker.Annotate(ctx, ids); err != nil {
					return err
				}
			}

			items, err := a.store.Interpretations(ctx, ids)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("notices not found: %s", notice.FormatIDs(ids))
			}
			return printJSON(items)
		},
	}

	cmd.Flags().BoolVar(&interpret, "annotate", false, "interpret notices that have no interpretation yet")
	return cmd
}

func annotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "annotate [ids]",
		Short: "Interpret stored notices with the summarizer (all when no ids are given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireWorker(); err != nil {
				return err
			}

			var ids []uint32
			if len(args) == 1 {
				if ids, err = notice.ParseIDs(args[0]); err != nil {
					return err
				}
			} else {
				records, err := a.store.List(ctx)
				if err != nil {
					return err
				}
				for _, r := range records {
					ids = append(ids, r.ID)
				}
			}

			stats, err := a.worker.Annotate(ctx, ids)
			if err != nil {
				return err
			}

			fmt.Println()
			fmt.Println("=== Annotation Complete ===")
			fmt.Printf("Requested:   %d\n", stats.Requested)
			fmt.Printf("Interpreted: %d\n", stats.Interpreted)
			fmt.Printf("Skipped:     %d\n", stats.Skipped)
			fmt.Printf("Errors:      %d\n", stats.Errors)
			fmt.Printf("Duration:    %v\n", stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}

func briefCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "brief <ids>",
		Short: "Write a markdown briefing for a role from interpreted notices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := notice.ParseIDs(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireWorker(); err != nil {
				return err
			}
			if _, err := a.worker.Annotate(ctx, ids); err != nil {
				return err
			}

			briefing, err := a.worker.Briefing(ctx, ids, role)
			if err != nil {
				return err
			}
			fmt.Println(briefing)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "role to brief (default: flight dispatcher)")
	return cmd
}

func printRecord(r notice.Record) {
	var validity string
	switch {
	case r.Permanent:
		validity = "PERM"
	case r.Estimated:
		validity = "EST"
	case r.ValidFrom != nil && r.ValidTo != nil:
		validity = r.ValidFrom.Format("2006-01-02 15:04") + " - " + r.ValidTo.Format("2006-01-02 15:04")
	default:
		validity = "unknown"
	}

	fmt.Printf("%s  %d  %s\n", r.Location, r.ID, r.Key)
	fmt.Printf("   Valid: %s\n", validity)
	fmt.Printf("   %s\n", strings.ReplaceAll(strings.TrimSpace(r.Body), "\n", "\n   "))
	fmt.Println()
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
