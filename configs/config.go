package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	Port        string
	Environment string
	APIKey      string

	DataDir      string
	DatasetPath  string
	CleanedPath  string
	ModelPath    string
	FeaturesPath string
	DBPath       string
	ChartsDir    string
	OutputsDir   string

	TopN        int
	NEstimators int
	MaxDepth    int
	RandomSeed  int64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	dataDir := getEnv("DATA_DIR", ".")
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		APIKey:      getEnv("API_KEY", ""),

		DataDir:      dataDir,
		DatasetPath:  getEnv("DATASET_PATH", filepath.Join(dataDir, "Supermart Grocery Sales - Retail Analytics Dataset.csv")),
		CleanedPath:  getEnv("CLEANED_PATH", filepath.Join(dataDir, "supermart_cleaned.csv")),
		ModelPath:    getEnv("MODEL_PATH", filepath.Join(dataDir, "model_supermart.gob")),
		FeaturesPath: getEnv("FEATURES_PATH", filepath.Join(dataDir, "feature_columns.json")),
		DBPath:       getEnv("DB_PATH", filepath.Join(dataDir, "supermart.db")),
		ChartsDir:    getEnv("CHARTS_DIR", filepath.Join(dataDir, "static", "charts")),
		OutputsDir:   getEnv("OUTPUTS_DIR", filepath.Join(dataDir, "outputs")),

		TopN:        getEnvInt("TOP_N", 20),
		NEstimators: getEnvInt("N_ESTIMATORS", 150),
		MaxDepth:    getEnvInt("MAX_DEPTH", 0),
		RandomSeed:  int64(getEnvInt("RANDOM_SEED", 42)),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 整数の環境変数を取得（不正な値はデフォルト値）
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
