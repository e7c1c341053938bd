package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	config "supermart-analytics/configs"
	"supermart-analytics/internal/logger"
	"supermart-analytics/pkg/services"

	"github.com/joho/godotenv"
)

const backupDirName = "backup_before_update"

func main() {
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	root := flag.String("root", ".", "project root")
	out := flag.String("out", "supermart_project.zip", "zip archive path")
	flag.Parse()

	log, err := logger.New(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *root, *out, log); err != nil {
		log.Error("backup failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

// run copies the key project files to the backup directory, then zips the project.
func run(cfg *config.Config, root, out string, log *logger.Logger) error {
	svc := services.NewBackupService(log)
	backupDir := filepath.Join(root, backupDirName)

	files := []string{
		filepath.Join(root, "cmd", "server", "main.go"),
		filepath.Join(root, "cmd", "train", "main.go"),
		cfg.CleanedPath,
		cfg.DBPath,
		cfg.ModelPath,
		cfg.FeaturesPath,
	}
	written, err := svc.Backup(files, backupDir)
	if err != nil {
		return err
	}

	n, err := svc.Zip(root, out, services.DefaultArchiveExtensions, backupDir)
	if err != nil {
		return err
	}
	log.Info("project archived", "backups", len(written), "archived_files", n, "zip", out)
	return nil
}
