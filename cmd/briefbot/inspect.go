package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/briefbot/config"
	"github.com/mohammad-safakhou/briefbot/internal/store"
	"github.com/mohammad-safakhou/briefbot/models"
)

// inspectCMD prints recent daily cache rows, or one row's briefing.
func inspectCMD() *cobra.Command {
	var cfgPath string
	var limit int

	var inspect = &cobra.Command{
		Use:   "inspect [category date]",
		Short: "Inspect the daily briefing cache",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}

			if len(args) == 2 {
				entry, err := st.GetCache(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				b, err := models.ParseBriefing(entry.Structured)
				if err != nil {
					return err
				}
				fmt.Printf("%s %s (generated %s)\n%s\n", b.Category, entry.Date,
					entry.GeneratedAt.Format(time.RFC3339), b.Summary)
				for _, c := range b.Clusters {
					fmt.Printf("  %s: %d items\n", c.Name, len(c.Items))
				}
				return nil
			}

			entries, err := st.ListCache(ctx, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %-8s  %6d bytes  %s\n", e.Date, e.Category,
					len(e.Structured), e.GeneratedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	inspect.Flags().IntVar(&limit, "limit", 20, "max rows to list")
	inspect.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return inspect
}
