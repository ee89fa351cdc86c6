package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Skufu/symptom2disease/internal/artifact"
	"github.com/Skufu/symptom2disease/internal/config"
	"github.com/Skufu/symptom2disease/internal/dataset"
	"github.com/Skufu/symptom2disease/internal/model"
	"github.com/Skufu/symptom2disease/internal/telemetry"
	"github.com/Skufu/symptom2disease/internal/training"
)

type cliOptions struct {
	dataDir     string
	artifactDir string
	configPath  string
	cleaned     bool
	modelKind   string
	store       string
	databaseURL string
}

func main() {
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		log.Fatalf("train: %v", err)
	}

	logger, err := telemetry.NewLogger(config.GetEnv("ENVIRONMENT", "production"), config.GetEnv("LOG_LEVEL", "info"))
	if err != nil {
		log.Fatalf("train: logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger, os.Stdout); err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}
}

func parseFlags(args []string, output io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.dataDir, "data-dir", config.GetEnv("DATA_DIR", "data"), "Directory holding the raw .csv/.tsv datasets")
	fs.StringVar(&opts.artifactDir, "artifacts", config.GetEnv("ARTIFACT_DIR", "artifacts"), "Directory for the file artifact store")
	fs.StringVar(&opts.configPath, "config", os.Getenv("TRAIN_CONFIG"), "Optional YAML training config")
	fs.BoolVar(&opts.cleaned, "cleaned", false, "Train from an existing "+dataset.CleanedFileName+" instead of the raw datasets")
	fs.StringVar(&opts.modelKind, "model", "", "Classifier: forest or bernoulli_nb (overrides the config file)")
	fs.StringVar(&opts.store, "store", config.GetEnv("ARTIFACT_STORE", config.StoreFile), "Artifact store: file or postgres")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.dataDir = strings.TrimSpace(opts.dataDir)
	opts.modelKind = strings.ToLower(strings.TrimSpace(opts.modelKind))
	opts.store = strings.ToLower(strings.TrimSpace(opts.store))
	opts.databaseURL = os.Getenv("DATABASE_URL")

	if opts.dataDir == "" {
		return opts, fmt.Errorf("missing --data-dir")
	}
	switch opts.store {
	case config.StoreFile:
	case config.StorePostgres:
		if opts.databaseURL == "" {
			return opts, fmt.Errorf("DATABASE_URL is required when the store is postgres")
		}
	default:
		return opts, fmt.Errorf("unknown artifact store %q", opts.store)
	}
	return opts, nil
}

// modelKind accepts the short CLI names as well as the persisted kinds.
func modelKind(name string) (string, error) {
	switch name {
	case "forest", "rf", model.KindForest:
		return model.KindForest, nil
	case "nb", "naive_bayes", model.KindNaiveBayes:
		return model.KindNaiveBayes, nil
	default:
		return "", fmt.Errorf("unknown model %q", name)
	}
}

func run(ctx context.Context, opts cliOptions, logger *zap.Logger, out io.Writer) error {
	cfg, err := config.LoadTraining(opts.configPath)
	if err != nil {
		return err
	}
	if opts.modelKind != "" {
		if cfg.Model.Kind, err = modelKind(opts.modelKind); err != nil {
			return err
		}
	}

	cleanedPath := filepath.Join(opts.dataDir, dataset.CleanedFileName)
	var table *dataset.Table
	if opts.cleaned {
		table, err = dataset.ReadFile(cleanedPath)
	} else {
		table, err = dataset.Discover(opts.dataDir, logger)
	}
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := training.New(*cfg, logger).Run(ctx, table)
	if err != nil {
		return err
	}
	logger.Info("training finished", zap.Duration("elapsed", time.Since(start)))

	if !opts.cleaned {
		if err := dataset.WriteCleaned(cleanedPath, res.Build.Examples); err != nil {
			return err
		}
		logger.Info("cleaned table written", zap.String("path", cleanedPath), zap.Int("rows", len(res.Build.Examples)))
	}

	if res.Evaluation != nil {
		fmt.Fprintf(out, "\nClassification report:\n%s", res.Evaluation.String())
	}
	for _, s := range res.Samples {
		predicted := ""
		if len(s.Predictions) > 0 {
			predicted = s.Predictions[0].Disease
		}
		fmt.Fprintf(out, "\nExample: %v\n -> Predicted: %s, Actual: %s\n", s.Symptoms, predicted, s.Disease)
	}

	store, closeStore, err := openStore(ctx, opts)
	if err != nil {
		return err
	}
	defer closeStore()

	manifest, err := store.Save(ctx, res.Bundle)
	if err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	logger.Info("bundle saved",
		zap.String("store", opts.store),
		zap.String("version", manifest.Version),
		zap.String("model_kind", manifest.ModelKind),
		zap.Int("symptoms", manifest.Features),
		zap.Int("diseases", manifest.Classes),
	)
	return nil
}

func openStore(ctx context.Context, opts cliOptions) (artifact.Store, func(), error) {
	if opts.store != config.StorePostgres {
		return artifact.NewFileStore(opts.artifactDir), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, opts.databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	store := artifact.NewPgStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
