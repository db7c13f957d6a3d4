package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	// Anzahl der Treffer, die find-by-Abfragen und Hot-Papers maximal liefern
	FindResultLimit int `envconfig:"FIND_RESULT_LIMIT" default:"5"`
	HotPapersLimit  int `envconfig:"HOT_PAPERS_LIMIT" default:"5"`

	// Zeitplan für den Refresh des Recommender-Kandidatenpools
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 * * * *"`

	// Obergrenze für den Kandidatenpool des Default-Scorers
	ScorerPoolSize int `envconfig:"SCORER_POOL_SIZE" default:"1000"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
