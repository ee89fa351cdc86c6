package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Skufu/symptom2disease/internal/apperr"
	"github.com/Skufu/symptom2disease/internal/artifact"
	"github.com/Skufu/symptom2disease/internal/config"
	"github.com/Skufu/symptom2disease/internal/predict"
	"github.com/Skufu/symptom2disease/internal/telemetry"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is what the handlers share. The bundle is loaded once and never
// replaced, so handlers read it without locking.
type App struct {
	Bundle  *predict.Bundle
	DB      HealthChecker
	Logger  *zap.Logger
	Metrics *telemetry.Metrics
	TopK    int
	Origins []string
}

type PredictRequest struct {
	Symptoms []string `json:"symptoms"`
}

type SymptomsResponse struct {
	Symptoms []string `json:"symptoms"`
}

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	logger, err := telemetry.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	var (
		db    HealthChecker
		store artifact.Store
	)
	switch cfg.ArtifactStore {
	case config.StorePostgres:
		pool, err := connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
		db = pool
		store = artifact.NewPgStore(pool)
	default:
		store = artifact.NewFileStore(cfg.ArtifactDir)
	}

	bundle, err := store.Load(ctx)
	if err != nil {
		logger.Fatal("model bundle could not be loaded", zap.String("store", cfg.ArtifactStore), zap.Error(err))
	}
	meta := bundle.Meta()
	logger.Info("model bundle loaded",
		zap.String("version", meta.Version),
		zap.Time("created_at", meta.CreatedAt),
		zap.String("model_kind", bundle.Classifier().Kind()),
		zap.Int("symptoms", bundle.Vocabulary().Len()),
		zap.Int("diseases", bundle.Labels().Len()),
	)

	metrics := telemetry.NewMetrics()
	metrics.SetBundle(meta.Version, bundle.Classifier().Kind(), bundle.Vocabulary().Len())

	router := setupRouter(&App{
		Bundle:  bundle,
		DB:      db,
		Logger:  logger,
		Metrics: metrics,
		TopK:    cfg.TopK,
		Origins: cfg.CORSOrigins,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("server listening", zap.String("port", cfg.Port))
	waitForShutdown(server, logger)
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func setupRouter(app *App) *gin.Engine {
	logger := app.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := app.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(
		telemetry.RequestLogger(logger, app.Metrics),
		gin.Recovery(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Symptom to disease prediction API. POST {\"symptoms\": [...]} to /api/predict."})
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		version := app.Bundle.Meta().Version
		if app.DB == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "bundle": version, "db": "disabled"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := app.DB.Ping(ctx); err != nil {
			dbStatus = fmt.Sprintf("unhealthy: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"bundle": version,
				"db":     dbStatus,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"bundle": version,
			"db":     dbStatus,
		})
	})

	router.GET("/api/symptoms", func(c *gin.Context) {
		c.JSON(http.StatusOK, SymptomsResponse{Symptoms: app.Bundle.Vocabulary().Tokens()})
	})

	predictHandler := handlePredict(app, logger)
	router.POST("/api/predict", predictHandler)
	router.POST("/predict", predictHandler)

	if app.Metrics != nil {
		router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))
	}

	return router
}

func handlePredict(app *App, logger *zap.Logger) gin.HandlerFunc {
	observe := func(outcome string, unknown int, top float64) {
		if app.Metrics != nil {
			app.Metrics.ObservePrediction(outcome, unknown, top)
		}
	}

	return func(c *gin.Context) {
		var payload PredictRequest
		if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
				return
			}
			observe(telemetry.OutcomeInputError, 0, 0)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		result, err := app.Bundle.Predict(payload.Symptoms, app.TopK)
		if err != nil {
			status := apperr.HTTPStatus(err)
			if status == http.StatusBadRequest {
				observe(telemetry.OutcomeInputError, 0, 0)
				c.JSON(status, gin.H{"error": err.Error()})
				return
			}
			observe(telemetry.OutcomeError, 0, 0)
			logger.Error("prediction failed", zap.Error(err))
			c.JSON(status, gin.H{"error": fmt.Sprintf("prediction failed: %v", err)})
			return
		}

		var top float64
		if len(result.Predictions) > 0 {
			top = result.Predictions[0].Probability
		}
		observe(telemetry.OutcomeOK, len(result.Unknown), top)
		c.JSON(http.StatusOK, result)
	}
}

func waitForShutdown(server *http.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
