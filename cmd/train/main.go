package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	config "supermart-analytics/configs"
	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/services"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.LoadConfig()

	flag.StringVar(&cfg.DatasetPath, "data", cfg.DatasetPath, "source dataset (.csv or .xlsx)")
	flag.IntVar(&cfg.NEstimators, "trees", cfg.NEstimators, "number of trees in the forest")
	flag.IntVar(&cfg.TopN, "top-n", cfg.TopN, "categorical values kept per column")
	skipCharts := flag.Bool("skip-charts", false, "do not render exploration charts")
	flag.Parse()

	log, err := logger.New(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if envErr != nil {
		log.Debug(".env file not loaded", "error", envErr)
	}

	if err := run(context.Background(), cfg, !*skipCharts, log); err != nil {
		log.Error("training pipeline failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

// run ingests and cleans the dataset, renders the exploration charts, then
// fits the model and rebuilds the reporting store concurrently. A failed fit
// still leaves a rebuilt store.
func run(ctx context.Context, cfg *config.Config, charts bool, log *logger.Logger) error {
	ingest := services.NewIngestionService(log)
	ds, err := ingest.LoadCleaned(cfg.DatasetPath)
	if err != nil {
		return err
	}
	if err := ingest.WriteCSV(cfg.CleanedPath, ds); err != nil {
		return fmt.Errorf("write cleaned dataset: %w", err)
	}

	stats := services.NewStatisticsService(log)
	stats.LogSummary(ds)
	if charts {
		chartSvc := services.NewChartService(cfg.ChartsDir, cfg.OutputsDir, stats, log)
		written := chartSvc.GenerateExplorationCharts(ds)
		log.Info("exploration charts written", "count", len(written), "dir", cfg.ChartsDir)
	}

	tcfg := services.DefaultTrainerConfig(cfg.ModelPath, cfg.FeaturesPath)
	tcfg.NEstimators = cfg.NEstimators
	tcfg.MaxDepth = cfg.MaxDepth
	tcfg.TopN = cfg.TopN
	tcfg.Seed = cfg.RandomSeed
	trainer := services.NewTrainer(tcfg, log)
	store := services.NewReportStore(cfg.DBPath, log)
	records := ingest.Records(ds)

	// Independent steps: a failed fit must not cancel the store rebuild.
	var g errgroup.Group
	g.Go(func() error {
		report, err := trainer.Train(ctx, ds)
		if err != nil {
			return err
		}
		log.Info("model trained", "run_id", report.RunID, "target", report.Target,
			"features", len(report.Columns), "train_rows", report.TrainRows, "test_rows", report.TestRows, "mae", report.MAE)
		return nil
	})
	g.Go(func() error {
		return store.ReplaceRaw(ctx, records)
	})
	return g.Wait()
}
