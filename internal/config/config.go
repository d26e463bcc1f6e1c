package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	LLM      LLMConfig
	Places   PlacesConfig
	Distance DistanceConfig
	Artifact ArtifactConfig

	DatabaseURL string
	SQLitePath  string
	RedisAddr   string

	TripWorkers       int
	GenerationTimeout time.Duration
	LookupTimeout     time.Duration

	AllowedOrigins    []string
	RequestsPerSecond float64
	RequestBurst      int
}

type LLMConfig struct {
	Provider string // gemini | fake
	APIKey   string
	Model    string
	RPS      float64
	Burst    int
	Retries  int
	Timeout  time.Duration
}

type PlacesConfig struct {
	APIKey    string
	BaseURL   string
	Gazetteer string
	CacheSize int
	CacheTTL  time.Duration
}

type DistanceConfig struct {
	APIKey      string
	BaseURL     string
	RPS         float64
	Concurrency int
	CacheSize   int
	CacheTTL    time.Duration
}

type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether enough is configured to reach an object store.
func (a ArtifactConfig) CanUseS3() bool {
	return a.Enabled && a.Endpoint != "" && a.AccessKey != "" && a.SecretKey != "" && a.Bucket != ""
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	env := firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), "local")
	return &Config{
		Port:              resolvePort(os.Getenv("PORT")),
		Env:               env,
		LLM:               loadLLMConfig(),
		Places:            loadPlacesConfig(),
		Distance:          loadDistanceConfig(),
		Artifact:          loadArtifactConfig(),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:        strings.TrimSpace(os.Getenv("SQLITE_PATH")),
		RedisAddr:         strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		TripWorkers:       envInt("TRIP_WORKERS", 4),
		GenerationTimeout: envDuration("GENERATION_TIMEOUT", 25*time.Second),
		LookupTimeout:     envDuration("LOOKUP_TIMEOUT", 10*time.Second),
		AllowedOrigins:    envList("CORS_ALLOWED_ORIGINS"),
		RequestsPerSecond: envFloat("HTTP_RPS", 0),
		RequestBurst:      envInt("HTTP_BURST", 10),
	}
}

func resolvePort(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ":8081"
	}
	if strings.HasPrefix(raw, ":") {
		return raw
	}
	return ":" + raw
}

func loadLLMConfig() LLMConfig {
	key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if provider == "" {
		provider = "fake"
		if key != "" {
			provider = "gemini"
		}
	}
	return LLMConfig{
		Provider: provider,
		APIKey:   key,
		Model:    firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.5-flash"),
		RPS:      envFloat("LLM_RPS", 1),
		Burst:    envInt("LLM_BURST", 1),
		Retries:  envInt("LLM_RETRIES", 3),
		Timeout:  envDuration("LLM_TIMEOUT", 60*time.Second),
	}
}

func loadPlacesConfig() PlacesConfig {
	return PlacesConfig{
		APIKey:    strings.TrimSpace(os.Getenv("PLACES_API_KEY")),
		BaseURL:   strings.TrimSpace(os.Getenv("PLACES_BASE_URL")),
		Gazetteer: strings.TrimSpace(os.Getenv("GAZETTEER")),
		CacheSize: envInt("PLACES_CACHE_SIZE", 1024),
		CacheTTL:  envDuration("PLACES_CACHE_TTL", 6*time.Hour),
	}
}

func loadDistanceConfig() DistanceConfig {
	return DistanceConfig{
		APIKey:      strings.TrimSpace(os.Getenv("DISTANCE_API_KEY")),
		BaseURL:     strings.TrimSpace(os.Getenv("DISTANCE_BASE_URL")),
		RPS:         envFloat("DISTANCE_RPS", 10),
		Concurrency: envInt("DISTANCE_CONCURRENCY", 4),
		CacheSize:   envInt("DISTANCE_CACHE_SIZE", 4096),
		CacheTTL:    envDuration("DISTANCE_CACHE_TTL", 24*time.Hour),
	}
}

func loadArtifactConfig() ArtifactConfig {
	endpoint := firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")), strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT")))
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "roadplan-artifacts"),
		UseSSL:    envBool("ARTIFACT_S3_USE_SSL", true),
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envDuration accepts Go durations ("30s") or bare seconds ("30").
func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
