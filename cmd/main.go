package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mentalhealthai/mhai-backend/internal/data/db"
	authrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/auth"
	diaryrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/diary"
	jobsrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/jobs"
	profilerepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/profile"
	userrepo "github.com/mentalhealthai/mhai-backend/internal/data/repos/user"
	apphttp "github.com/mentalhealthai/mhai-backend/internal/http"
	httpH "github.com/mentalhealthai/mhai-backend/internal/http/handlers"
	httpMW "github.com/mentalhealthai/mhai-backend/internal/http/middleware"
	"github.com/mentalhealthai/mhai-backend/internal/jobs/pipeline/diary_answer"
	"github.com/mentalhealthai/mhai-backend/internal/jobs/pipeline/diary_pipeline"
	"github.com/mentalhealthai/mhai-backend/internal/jobs/pipeline/eval_emotions"
	"github.com/mentalhealthai/mhai-backend/internal/jobs/pipeline/eval_mentbert"
	"github.com/mentalhealthai/mhai-backend/internal/jobs/pipeline/eval_psychbert"
	jobrt "github.com/mentalhealthai/mhai-backend/internal/jobs/runtime"
	"github.com/mentalhealthai/mhai-backend/internal/jobs/worker"
	"github.com/mentalhealthai/mhai-backend/internal/observability"
	"github.com/mentalhealthai/mhai-backend/internal/pkg/logger"
	"github.com/mentalhealthai/mhai-backend/internal/platform/envutil"
	"github.com/mentalhealthai/mhai-backend/internal/platform/inference"
	"github.com/mentalhealthai/mhai-backend/internal/platform/openai"
	"github.com/mentalhealthai/mhai-backend/internal/realtime"
	"github.com/mentalhealthai/mhai-backend/internal/realtime/bus"
	"github.com/mentalhealthai/mhai-backend/internal/services"
	"github.com/mentalhealthai/mhai-backend/internal/temporalx"
	"github.com/mentalhealthai/mhai-backend/internal/temporalx/temporalworker"
)

func main() {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()

	jwtSecret := envutil.Str("JWT_SECRET_KEY", "defaultsecret")
	accessTTL := envutil.Dur("ACCESS_TOKEN_TTL", time.Hour)
	refreshTTL := envutil.Dur("REFRESH_TOKEN_TTL", 24*time.Hour)

	// Postgres
	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	gdb := pg.DB()
	if err := db.AutoMigrateAll(gdb); err != nil {
		log.Error("auto migration failed", "error", err)
		os.Exit(1)
	}
	if err := db.EnsureDiaryIndexes(gdb); err != nil {
		log.Warn("ensuring diary indexes failed", "error", err)
	}

	// Repos
	users := userrepo.NewUserRepo(gdb, log)
	tokens := authrepo.NewUserTokenRepo(gdb, log)
	userProfiles := profilerepo.NewUserProfileRepo(gdb, log)
	aiProfiles := profilerepo.NewAIProfileRepo(gdb, log)
	criticalEvents := profilerepo.NewCriticalEventRepo(gdb, log)
	turns := diaryrepo.NewTurnRepo(gdb, log)
	scores := diaryrepo.NewScoreRepo(gdb, log)
	jobRuns := jobsrepo.NewJobRunRepo(gdb, log)
	jobEvents := jobsrepo.NewJobRunEventRepo(gdb, log)

	// SSE hub, optionally bridged across instances by redis
	hub := realtime.NewSSEHub(log)
	var sseBus bus.Bus
	if os.Getenv("REDIS_ADDR") != "" {
		sseBus, err = bus.NewRedisBus(log)
		if err != nil {
			log.Error("redis bus init failed", "error", err)
			os.Exit(1)
		}
		defer sseBus.Close()
		if err := sseBus.StartForwarder(ctx, hub.Broadcast); err != nil {
			log.Error("redis bus forwarder failed", "error", err)
			os.Exit(1)
		}
	}

	// External clients
	aiClient, err := openai.NewFromEnv(log)
	if err != nil {
		log.Error("openai client init failed", "error", err)
		os.Exit(1)
	}
	classifier, err := inference.NewFromEnv()
	if err != nil {
		log.Error("inference client init failed", "error", err)
		os.Exit(1)
	}
	truncator, err := services.NewTiktokenTruncator()
	if err != nil {
		log.Error("tokenizer init failed", "error", err)
		os.Exit(1)
	}

	// Temporal is optional; a nil client leaves the DB worker in charge.
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("temporal client init failed", "error", err)
		os.Exit(1)
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}
	temporalCfg := temporalx.LoadConfig()

	// Services
	notifier := services.NewJobNotifier(hub, sseBus, jobEvents, log)
	jobService := services.NewJobService(gdb, log, jobRuns, jobEvents, notifier, temporalClient, temporalCfg.TaskQueue)
	authService := services.NewAuthService(gdb, log, users, tokens, userProfiles, aiProfiles, jwtSecret, accessTTL, refreshTTL)
	profileService := services.NewProfileService(gdb, log, userProfiles, aiProfiles, criticalEvents)
	diaryService := services.NewDiaryService(gdb, log, turns, scores, jobService)
	analyticsService := services.NewAnalyticsService(gdb, log, turns, scores)
	composer := services.NewPromptComposer(gdb, log, turns, userProfiles, aiProfiles, criticalEvents)
	scoringService := services.NewScoringService(gdb, log, turns, scores, classifier, truncator)

	// Job handler registry
	registry := jobrt.NewRegistry()
	for _, h := range []jobrt.Handler{
		diary_pipeline.New(gdb, log, turns, jobService, notifier),
		diary_answer.New(gdb, log, aiClient, composer, turns),
		eval_emotions.New(log, scoringService),
		eval_mentbert.New(log, scoringService),
		eval_psychbert.New(log, scoringService),
	} {
		if err := registry.Register(h); err != nil {
			log.Error("registering job handler failed", "error", err)
			os.Exit(1)
		}
	}

	// Execution substrate: temporal worker when configured, else the
	// polling DB worker.
	if temporalClient != nil {
		runner, err := temporalworker.NewRunner(log, temporalClient, gdb, jobRuns, registry, notifier)
		if err != nil {
			log.Error("temporal worker init failed", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := runner.Start(ctx); err != nil {
				log.Error("temporal worker stopped", "error", err)
			}
		}()
	} else {
		worker.NewWorker(gdb, log, jobRuns, registry, notifier).Start(ctx)
	}

	// HTTP
	router := apphttp.NewRouter(apphttp.RouterConfig{
		Log:              log,
		AuthMiddleware:   httpMW.NewAuthMiddleware(log, authService),
		AuthHandler:      httpH.NewAuthHandler(authService),
		UserHandler:      httpH.NewUserHandler(users),
		ProfileHandler:   httpH.NewProfileHandler(profileService),
		DiaryHandler:     httpH.NewDiaryHandler(diaryService),
		AnalyticsHandler: httpH.NewAnalyticsHandler(analyticsService),
		JobHandler:       httpH.NewJobHandler(jobService),
		RealtimeHandler:  httpH.NewRealtimeHandler(log, hub),
		HealthHandler:    httpH.NewHealthHandler(),
	})

	addr := ":" + envutil.Str("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn("server shutdown", "error", err)
	}
}
