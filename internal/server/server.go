package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/briefbot/config"
	"github.com/mohammad-safakhou/briefbot/internal/dedup"
	"github.com/mohammad-safakhou/briefbot/internal/graph"
	"github.com/mohammad-safakhou/briefbot/internal/lark"
	"github.com/mohammad-safakhou/briefbot/internal/session"
	"github.com/mohammad-safakhou/briefbot/internal/store"
	"github.com/mohammad-safakhou/briefbot/internal/worker"
	"github.com/mohammad-safakhou/briefbot/models"
	"github.com/mohammad-safakhou/briefbot/news/newsapi"
	openai_provider "github.com/mohammad-safakhou/briefbot/provider/openai"
)

// cardRenderer adapts the card builders to the engine's rendering surface.
type cardRenderer struct{}

func (cardRenderer) Cover(b *models.Briefing) string { return lark.BuildCoverCard(b) }
func (cardRenderer) Detail(category string, cluster models.Cluster) string {
	return lark.RenderClusterDetail(category, cluster)
}

// Run wires every component and serves until the listener fails.
func Run(cfgPath, addr string) error {
	cfg := config.LoadConfig(cfgPath)
	loc, err := cfg.General.Location()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
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
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}

	larkClient := lark.NewClient(cfg.Lark)
	llm := openai_provider.NewClient(cfg.LLM)
	news := newsapi.NewClient(cfg.NewsAPI, loc)

	engine := &graph.Engine{
		Store:         st,
		Sessions:      session.NewRedisStore(rdb),
		Classifier:    llm,
		Synthesizer:   llm,
		Chatter:       llm,
		News:          news,
		Render:        cardRenderer{},
		Location:      loc,
		FetchWindow:   cfg.NewsAPI.Window(),
		HeadlineCount: cfg.Briefing.HeadlineCount,
		SummaryMaxLen: cfg.Briefing.SummaryMaxLen,
		HistoryWindow: cfg.Briefing.HistoryWindow,
		Logger:        log.New(log.Writer(), "[GRAPH] ", log.LstdFlags),
	}

	pool := worker.NewPool(cfg.Briefing.WorkerCount, cfg.Briefing.QueueSize,
		log.New(log.Writer(), "[POOL] ", log.LstdFlags))
	defer pool.Shutdown()

	sched := &Scheduler{
		Engine:    engine,
		Store:     st,
		Messenger: larkClient,
		Archive:   lark.NewDocWriter(larkClient),
		Rdb:       rdb,
		Cfg:       cfg.Schedule,
		WikiToken: cfg.Lark.WikiToken,
		Loc:       loc,
		Logger:    log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
		Stop:      make(chan struct{}),
	}
	sched.Start()
	defer close(sched.Stop)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	wh := &WebhookHandler{
		Engine:      engine,
		Messenger:   larkClient,
		Events:      dedup.NewEventGuard(cfg.Briefing.DedupCapacity),
		Actions:     dedup.NewActionGuard(cfg.Briefing.DedupWindow),
		Pool:        pool,
		VerifyToken: cfg.Lark.VerificationToken,
		Logger:      log.New(log.Writer(), "[HOOK] ", log.LstdFlags),
	}
	wh.Register(e)

	if cfg.Ops.JWTSecret != "" {
		oh := &OpsHandler{Engine: engine, Sched: sched, Store: st, Secret: []byte(cfg.Ops.JWTSecret)}
		oh.Register(e.Group("/api/ops"))
	} else {
		baseLogger.Printf("ops.jwt_secret not set, ops endpoints disabled")
	}

	if addr == "" {
		addr = cfg.General.Listen
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
