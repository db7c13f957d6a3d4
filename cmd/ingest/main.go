package main

import (
	"context"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	appconfig "paper-scout/config"
	"paper-scout/models"
	"paper-scout/providers"
	"paper-scout/services"
	"paper-scout/storage"
)

// IngestConfig konfiguriert den Batch-Lauf. Die S3-Werte sind nur nötig,
// wenn der Dump per s3:// URL bezogen wird.
type IngestConfig struct {
	DumpURL    string `envconfig:"DUMP_URL" default:"/data/preprocessed_top_50k_papers_by_n_citation.csv"`
	MaxRecords int    `envconfig:"MAX_RECORDS" default:"6000"`

	DumpS3Endpoint  string `envconfig:"DUMP_S3_ENDPOINT"`
	DumpS3Region    string `envconfig:"DUMP_S3_REGION"`
	DumpS3AccessKey string `envconfig:"DUMP_S3_ACCESS_KEY"`
	DumpS3SecretKey string `envconfig:"DUMP_S3_SECRET_KEY"`
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	_ = godotenv.Load()
	var ingestCfg IngestConfig
	if err := envconfig.Process("", &ingestCfg); err != nil {
		logging.Fatal("Ingest config load error", zap.Error(err))
	}
	cfg, err := appconfig.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(&models.Paper{}, &models.User{}, &models.UserPaper{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	source, err := buildSource(ingestCfg)
	if err != nil {
		logging.Fatal("Cannot build dump source", zap.Error(err))
	}

	catalog := services.NewCatalogService(db, logging)
	normalizer := services.NewRecordNormalizer(logging)
	ingest := services.NewIngestService(catalog, normalizer, logging)

	report, err := ingest.Run(context.Background(), source, ingestCfg.MaxRecords)
	if err != nil {
		logging.Fatal("Ingestion aborted", zap.Error(err),
			zap.Int("accepted_before_abort", report.Accepted))
	}
	logging.Info("Ingestion finished",
		zap.String("job_id", report.JobID),
		zap.Int("accepted", report.Accepted),
		zap.Int("skipped", report.Skipped),
		zap.Int("duplicates", report.Duplicates),
		zap.Duration("elapsed", report.Elapsed))
}

func buildSource(cfg IngestConfig) (providers.Source, error) {
	if !strings.HasPrefix(cfg.DumpURL, "s3://") {
		return providers.NewFileSource(cfg.DumpURL), nil
	}
	client, err := storage.NewS3Client(context.Background(), storage.S3Settings{
		Endpoint:  cfg.DumpS3Endpoint,
		Region:    cfg.DumpS3Region,
		AccessKey: cfg.DumpS3AccessKey,
		SecretKey: cfg.DumpS3SecretKey,
	})
	if err != nil {
		return nil, err
	}
	return providers.NewS3Source(client, cfg.DumpURL)
}
