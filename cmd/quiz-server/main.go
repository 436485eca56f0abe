package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/campus-quiz-core/internal/config"
	"github.com/park285/campus-quiz-core/internal/database"
	"github.com/park285/campus-quiz-core/internal/gateway"
	"github.com/park285/campus-quiz-core/internal/identity"
	"github.com/park285/campus-quiz-core/internal/ledger"
	"github.com/park285/campus-quiz-core/internal/matchqueue"
	"github.com/park285/campus-quiz-core/internal/msgcat"
	"github.com/park285/campus-quiz-core/internal/obslog"
	"github.com/park285/campus-quiz-core/internal/orchestrator"
	"github.com/park285/campus-quiz-core/internal/questions"
	"github.com/park285/campus-quiz-core/internal/registry"
	"github.com/park285/campus-quiz-core/internal/rooms"
	"github.com/park285/campus-quiz-core/internal/roomsched"
	"github.com/park285/campus-quiz-core/internal/session"
	"github.com/park285/campus-quiz-core/internal/upstream"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	rdb, err := database.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis init error: %v", err)
	}
	defer rdb.Close()

	var (
		subs     ledger.Ledger
		roomRepo rooms.Repository
	)
	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres init error: %v", err)
		}
		defer db.Close()
		if err := ledger.Migrate(ctx, db); err != nil {
			log.Fatalf("ledger migrate error: %v", err)
		}
		if err := rooms.Migrate(ctx, db); err != nil {
			log.Fatalf("rooms migrate error: %v", err)
		}
		subs, roomRepo = ledger.NewPostgres(db), rooms.NewPostgres(db)
	} else {
		logger.Warn("storage_in_memory", zap.String("reason", "DATABASE_URL not set"))
		subs, roomRepo = ledger.NewMemory(), rooms.NewMemory()
	}

	bank, err := questions.NewBank(cfg.QuestionBankDir)
	if err != nil {
		log.Fatalf("question bank error: %v", err)
	}
	var provider questions.Provider = bank
	if cfg.QuestionAPIURL != "" {
		gen := upstream.NewClient(cfg.QuestionAPIURL, upstream.WithTimeout(8*time.Second))
		provider = questions.NewFallback(questions.NewRemote(gen), bank)
	}
	var dir identity.Directory
	if cfg.IdentityAPIURL != "" {
		dir = identity.NewCached(identity.NewRemote(upstream.NewClient(cfg.IdentityAPIURL, upstream.WithTimeout(3*time.Second))), 5*time.Minute)
	}

	cat, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}
	sched, err := roomsched.New()
	if err != nil {
		log.Fatalf("scheduler init error: %v", err)
	}

	mgr := orchestrator.NewManager(orchestrator.Deps{
		Queue:     matchqueue.New(rdb),
		Sessions:  session.NewStore(rdb, cfg.MatchSessionTTL()),
		Ledger:    subs,
		Rooms:     roomRepo,
		Members:   rooms.NewMembers(rdb),
		Registry:  registry.New(),
		Scheduler: sched,
		Questions: provider,
		Identity:  dir,
	}, orchestrator.Config{
		MatchDuration: cfg.MatchDuration(),
		QuestionCount: cfg.MatchQuestionCount,
	})

	gw := gateway.NewServer(mgr, cat, gateway.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server_listen", zap.String("addr", cfg.ListenAddr), zap.Strings("topics", bank.Topics()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("server_shutdown")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
	_ = sched.Shutdown()
}
