package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Sushi-Mampfer/notes/config"
	"github.com/Sushi-Mampfer/notes/constant"
	jobHandler "github.com/Sushi-Mampfer/notes/handler"
	"github.com/Sushi-Mampfer/notes/pkg/asr"
	"github.com/Sushi-Mampfer/notes/pkg/jobs"
	"github.com/Sushi-Mampfer/notes/pkg/ollama"
	"github.com/Sushi-Mampfer/notes/pkg/rabbitmq"
	"github.com/Sushi-Mampfer/notes/pkg/storage"
	"github.com/Sushi-Mampfer/notes/repository"
	"github.com/Sushi-Mampfer/notes/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	// A service that cannot reach its ASR engine must not accept traffic
	// at all; individual requests failing later would strand entries.
	if cfg.ASR.Endpoint == "" {
		zerolog.Ctx(ctx).Fatal().Msg("asr endpoint is not configured")
	}
	asrClient := asr.New(cfg.ASR)
	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := asrClient.Ping(pingCtx); err != nil {
		pingCancel()
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("asr engine not reachable")
	}
	pingCancel()

	repo, err := repository.NewRepo(cfg)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to open entries database")
	}

	var store storage.Storage
	if cfg.Storage.Driver == "minio" {
		store = storage.NewMinio(cfg.MinIO, cfg.MinIOBkt)
	} else {
		local, err := storage.NewLocal(cfg.Storage.Dir)
		if err != nil {
			zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to prepare local storage")
		}
		store = local
	}

	pipeline := service.NewPipeline(repo, store, asrClient, ollama.New(cfg.LLM),
		time.Duration(cfg.Server.JobTimeoutSeconds)*time.Second)

	serviceDeps := jobHandler.ServiceDependencies{
		Pipeline: pipeline,
		Repo:     repo,
		Storage:  store,
	}

	serviceDeps, err = wireSubmitter(ctx, cfg, serviceDeps)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to wire job submission")
	}

	// Jobs accepted before a restart are still pending; put them back on
	// the queue before opening the listener.
	if err := pipeline.RequeuePending(ctx, serviceDeps.Submit); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to requeue pending jobs")
	}

	r := gin.Default()
	addHealth(r)
	r.POST("/upload", jobHandler.Upload(serviceDeps))
	r.GET("/notes", jobHandler.ListNotes(serviceDeps))

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

// wireSubmitter picks the submission path: a RabbitMQ publisher plus a
// consumer fan-out when a queue is configured, otherwise the in-process
// worker pool. The dependencies handed to workers are complete; nothing
// mutates them after a worker goroutine starts.
func wireSubmitter(ctx context.Context, cfg *config.Config, deps jobHandler.ServiceDependencies) (jobHandler.ServiceDependencies, error) {
	if cfg.Queue != nil {
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			return deps, err
		}
		publisher, err := rabbitmq.NewPublisher(conn, cfg.Queue.Kind)
		if err != nil {
			return deps, err
		}
		deps.Submit = publisher

		consumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, jobHandler.JobHandler)
		go func(deps jobHandler.ServiceDependencies) {
			if err := consumer.Consume(ctx, deps); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("transcription consumer error")
			}
		}(deps)
		return deps, nil
	}

	pool := jobs.NewPool(cfg.Server.Workers, cfg.Server.QueueCapacity, deps.Pipeline.Process)
	pool.Start(ctx)
	deps.Submit = pool
	return deps, nil
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
