package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/wfs-extractor/internal/core/security"
)

type QueueCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr        string
	LogLevel    string
	OutputDir   string
	CORSOrigins []string

	SecuredHost         string
	AdminUsername       string
	AdminPassword       string
	WFSTimeout          time.Duration
	CapabilitiesTimeout time.Duration

	SchemaCacheSize int
	SchemaCacheTTL  time.Duration

	RedisAddr   string
	JobsEnabled bool
	JobTTL      time.Duration

	Queue QueueCfg

	Ogr2ogrPath string
}

func FromEnv() Config {
	cacheSize := getint("SCHEMA_CACHE_SIZE", 128)
	if cacheSize < 1 {
		cacheSize = 1
	}

	return Config{
		Addr:        getenv("ADDR", ":8090"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		OutputDir:   getenv("OUTPUT_DIR", filepath.Join(os.TempDir(), "extractions")),
		CORSOrigins: getlist("CORS_ORIGINS"),

		SecuredHost:         getenv("SECURED_HOST", ""),
		AdminUsername:       getenv("ADMIN_USERNAME", ""),
		AdminPassword:       getenv("ADMIN_PASSWORD", ""),
		WFSTimeout:          getduration("WFS_TIMEOUT", 60*time.Second),
		CapabilitiesTimeout: getduration("CAPABILITIES_TIMEOUT", 30*time.Second),

		SchemaCacheSize: cacheSize,
		SchemaCacheTTL:  getduration("SCHEMA_CACHE_TTL", 5*time.Minute),

		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
		JobsEnabled: getbool("JOBS_ENABLED", false),
		JobTTL:      getduration("JOB_TTL", 24*time.Hour),

		Queue: QueueCfg{
			Enabled: getbool("EXTRACT_QUEUE_ENABLED", false),
			Topic:   getenv("EXTRACT_TOPIC", "extraction-requests"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "wfs-extractor"),
		},

		Ogr2ogrPath: getenv("OGR2OGR_PATH", "ogr2ogr"),
	}
}

// getlist splits a comma separated variable, dropping empty items.
func getlist(k string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(k), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Security is the trust configuration handed to the gate and the retriever.
func (c Config) Security() security.Config {
	return security.Config{
		SecuredHost: c.SecuredHost,
		Admin:       security.Credentials{Username: c.AdminUsername, Password: c.AdminPassword},
		Timeout:     c.WFSTimeout,
	}
}
