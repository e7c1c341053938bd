package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	config "supermart-analytics/configs"
	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/services"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	gen := services.DefaultGeneratorConfig()
	out := flag.String("out", cfg.DatasetPath, "output CSV path")
	start := flag.String("start", gen.Start.Format("2006-01-02"), "first date (YYYY-MM-DD)")
	end := flag.String("end", gen.End.Format("2006-01-02"), "last date (YYYY-MM-DD)")
	stores := flag.Int("stores", len(gen.Stores), "number of store locations")
	flag.IntVar(&gen.ProductsPerDay, "per-day", gen.ProductsPerDay, "products sampled per store and day")
	flag.Int64Var(&gen.Seed, "seed", cfg.RandomSeed, "random seed")
	flag.Parse()

	log, err := logger.New(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(gen, *start, *end, *stores, *out, log); err != nil {
		log.Error("dataset generation failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(gen services.GeneratorConfig, start, end string, stores int, out string, log *logger.Logger) error {
	var err error
	if gen.Start, err = time.Parse("2006-01-02", start); err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	if gen.End, err = time.Parse("2006-01-02", end); err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	if stores < 1 || stores > len(gen.Stores) {
		return fmt.Errorf("stores must be between 1 and %d", len(gen.Stores))
	}
	gen.Stores = gen.Stores[:stores]

	records, err := services.GenerateDataset(gen)
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := services.WriteRecordsCSV(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("synthetic dataset written", "path", out, "rows", len(records), "stores", stores)
	return nil
}
