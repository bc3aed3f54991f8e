package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/briefbot/config"
	"github.com/mohammad-safakhou/briefbot/internal/graph"
	"github.com/mohammad-safakhou/briefbot/internal/lark"
	"github.com/mohammad-safakhou/briefbot/internal/store"
	"github.com/mohammad-safakhou/briefbot/models"
)

// Scheduler drives the two background jobs: daily briefing generation and
// the push-and-archive pass. Generation runs are serialized by a mutex so a
// manual trigger cannot interleave with the cron job; the push pass instead
// drops an invocation when one is already in flight, because pushing twice
// is worse than pushing late.
type Scheduler struct {
	Engine    *graph.Engine
	Store     *store.Store
	Messenger lark.Messenger
	Archive   *lark.DocWriter
	Rdb       *redis.Client
	Cfg       config.ScheduleConfig
	WikiToken string
	Loc       *time.Location
	Logger    *log.Logger
	Stop      chan struct{}

	genMu  sync.Mutex
	pushMu sync.Mutex

	lastGenerate time.Time
	lastPush     time.Time
}

// Start launches the scheduling loop. After the startup delay a non-forced
// generation pass warms any category missing today's cache, then cron
// expressions drive the daily jobs.
func (s *Scheduler) Start() {
	now := time.Now()
	s.lastGenerate = now
	s.lastPush = now

	go func() {
		select {
		case <-s.Stop:
			return
		case <-time.After(s.Cfg.StartupDelay):
		}
		s.RunGenerate(context.Background(), false)

		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-s.Stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	now := time.Now().In(s.Loc)
	if s.due(s.Cfg.GenerateCron, s.lastGenerate, now) {
		s.lastGenerate = now
		go s.RunGenerate(context.Background(), true)
	}
	if s.due(s.Cfg.PushCron, s.lastPush, now) {
		s.lastPush = now
		go s.RunPushAndArchive(context.Background())
	}
}

// due reports whether the cron expression fires between last and now.
func (s *Scheduler) due(spec string, last, now time.Time) bool {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		s.Logger.Printf("invalid cron %q: %v", spec, err)
		return false
	}
	next := expr.Next(last.In(s.Loc))
	return !next.IsZero() && !next.After(now)
}

// RunGenerate generates briefings for every configured category. With force
// unset, categories already cached for today cost nothing.
func (s *Scheduler) RunGenerate(ctx context.Context, force bool) {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	runID := uuid.NewString()
	for _, category := range s.Cfg.Categories {
		if !s.acquire(ctx, "gen:"+category) {
			s.Logger.Printf("[run %s] generation of %s held by another instance, skipping", runID, category)
			continue
		}
		if _, err := s.Engine.GenerateCategory(ctx, category, force); err != nil {
			generations.WithLabelValues(category, "failure").Inc()
			s.Logger.Printf("[run %s] generate %s: %v", runID, category, err)
			continue
		}
		generations.WithLabelValues(category, "success").Inc()
		s.Logger.Printf("[run %s] generated briefing for %s", runID, category)
	}
}

// RunPushAndArchive delivers today's cached briefings to every subscriber,
// then appends them to the wiki archive. A subscriber whose category has no
// cache row today is skipped with a log line, never given stale content.
func (s *Scheduler) RunPushAndArchive(ctx context.Context) {
	if !s.pushMu.TryLock() {
		s.Logger.Printf("push already running, dropping invocation")
		return
	}
	defer s.pushMu.Unlock()

	day := models.DayKey(time.Now(), s.Loc)
	if !s.acquire(ctx, "push:"+day) {
		s.Logger.Printf("push for %s held by another instance, skipping", day)
		return
	}

	briefings := make(map[string]*models.Briefing, len(s.Cfg.Categories))
	for _, category := range s.Cfg.Categories {
		entry, err := s.Store.GetCache(ctx, category, day)
		if err != nil {
			s.Logger.Printf("no cache for %s/%s: %v", category, day, err)
			continue
		}
		b, err := models.ParseBriefing(entry.Structured)
		if err != nil {
			s.Logger.Printf("cache for %s/%s unparseable: %v", category, day, err)
			continue
		}
		briefings[category] = b
	}

	// archive first, best effort; a failed append never blocks delivery
	if s.WikiToken != "" && s.Archive != nil && len(briefings) > 0 {
		if err := s.Archive.WriteDailyBriefings(ctx, s.WikiToken, briefings, day); err != nil {
			archives.WithLabelValues("failure").Inc()
			s.Logger.Printf("archive %s: %v", day, err)
		} else {
			archives.WithLabelValues("success").Inc()
		}
	}

	subs, err := s.Store.ListAllSubscriptions(ctx)
	if err != nil {
		s.Logger.Printf("list subscriptions: %v", err)
		return
	}
	for _, sub := range subs {
		b, ok := briefings[sub.Category]
		if !ok {
			s.Logger.Printf("skip push to %s: no briefing for %s today", sub.UserID, sub.Category)
			pushes.WithLabelValues("skipped").Inc()
			continue
		}
		if err := s.Messenger.Send(ctx, sub.UserID, lark.BuildCoverCard(b)); err != nil {
			s.Logger.Printf("push to %s: %v", sub.UserID, err)
			pushes.WithLabelValues("failure").Inc()
			continue
		}
		pushes.WithLabelValues("success").Inc()
	}
}

// acquire takes a short-lived cross-process lock so a multi-instance deploy
// runs each job once. Without redis the local mutexes are the only guard.
func (s *Scheduler) acquire(ctx context.Context, name string) bool {
	if s.Rdb == nil {
		return true
	}
	ok, err := s.Rdb.SetNX(ctx, "briefbot:lock:"+name, "1", 10*time.Minute).Result()
	if err != nil {
		s.Logger.Printf("lock %s: %v", name, err)
		return true
	}
	return ok
}
