package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Server holds the dashboard server settings.
type Server struct {
	Addr string

	// MaxUploadMB caps the size of an uploaded dataset.
	MaxUploadMB int
	// MaxDatasets caps how many uploaded datasets are kept in memory.
	MaxDatasets int

	// MetricsBackend is "none", "prom" or "datadog".
	MetricsBackend string
	PushgatewayURL string
	DatadogAddr    string

	// Shown on the contact page.
	ContactName  string
	ContactEmail string
	ContactBatch string
}

// MaxUploadBytes converts MaxUploadMB to bytes.
func (s Server) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// FromEnv loads the given .env files (".env" when none are given) and reads
// the server settings from the environment. Missing .env files are not an
// error; variables already set in the process win over file values.
func FromEnv(files ...string) Server {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("config: no .env file loaded (%v); using process environment", err)
	}

	return Server{
		Addr:           getEnv("DASH_ADDR", ":8080"),
		MaxUploadMB:    getEnvInt("DASH_MAX_UPLOAD_MB", 200),
		MaxDatasets:    getEnvInt("DASH_MAX_DATASETS", 16),
		MetricsBackend: getEnv("METRICS_BACKEND", "none"),
		PushgatewayURL: getEnv("PUSHGATEWAY_URL", ""),
		DatadogAddr:    getEnv("DD_AGENT_ADDR", "127.0.0.1:8125"),
		ContactName:    getEnv("DASH_CONTACT_NAME", ""),
		ContactEmail:   getEnv("DASH_CONTACT_EMAIL", ""),
		ContactBatch:   getEnv("DASH_CONTACT_BATCH", ""),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
		log.Printf("config: %s=%q is not an integer; using %d", key, val, fallback)
	}
	return fallback
}
