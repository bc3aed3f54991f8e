package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/briefbot/config"
	"github.com/mohammad-safakhou/briefbot/internal/graph"
	"github.com/mohammad-safakhou/briefbot/internal/session"
	"github.com/mohammad-safakhou/briefbot/internal/store"
	"github.com/mohammad-safakhou/briefbot/news/newsapi"
	openai_provider "github.com/mohammad-safakhou/briefbot/provider/openai"

	"github.com/redis/go-redis/v9"
)

// triggerCMD runs one briefing generation out of band, with the same
// persistence semantics as the scheduled job.
func triggerCMD() *cobra.Command {
	var cfgPath string
	var force bool

	var trigger = &cobra.Command{
		Use:   "trigger [category]",
		Short: "Generate and cache briefings now (all configured categories by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			loc, err := cfg.General.Location()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Storage.Redis.Addr(),
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}

			llm := openai_provider.NewClient(cfg.LLM)
			engine := &graph.Engine{
				Store:         st,
				Sessions:      session.NewRedisStore(rdb),
				Classifier:    llm,
				Synthesizer:   llm,
				Chatter:       llm,
				News:          newsapi.NewClient(cfg.NewsAPI, loc),
				Location:      loc,
				FetchWindow:   cfg.NewsAPI.Window(),
				HeadlineCount: cfg.Briefing.HeadlineCount,
				SummaryMaxLen: cfg.Briefing.SummaryMaxLen,
				HistoryWindow: cfg.Briefing.HistoryWindow,
				Logger:        log.New(log.Writer(), "[TRIGGER] ", log.LstdFlags),
			}

			categories := cfg.Schedule.Categories
			if len(args) == 1 {
				categories = args[:1]
			}
			for _, category := range categories {
				b, err := engine.GenerateCategory(ctx, category, force)
				if err != nil {
					return err
				}
				fmt.Printf("generated %s: %d headlines, %d clusters\n", b.Category, len(b.Headlines), len(b.Clusters))
			}
			return nil
		},
	}
	trigger.Flags().BoolVar(&force, "force", false, "regenerate even when today's cache exists")
	trigger.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return trigger
}
