package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port              string
	Env               string
	LogLevel          string
	CORSAllowOrigin   []string
	UploadDir         string
	PublicFilesPath   string
	MaxUploadBytes    int64
	ObjectStoreType   string
	AWSRegion         string
	S3Bucket          string
	S3Prefix          string
	SSEKMSKeyID       string
	DatabaseURL       string
	MongoURI          string
	MongoDatabase     string
	SQSQueueURL       string
	WorkerConcurrency int
	JobBuffer         int
	JWTSecret         string
	RateLimitEnabled  bool
	// TrustProxyHeaders honours X-Forwarded-Proto/Host when building file URLs.
	TrustProxyHeaders bool
}

var defaults = map[string]any{
	"PORT":               "8080",
	"ENV":                "dev",
	"LOG_LEVEL":          "info",
	"CORS_ALLOW_ORIGINS": "http://localhost:5173",
	"UPLOAD_DIR":         "./uploads/documents",
	"PUBLIC_FILES_PATH":  "/uploads/documents",
	"MAX_UPLOAD_BYTES":   int64(10 << 20),
	"OBJECT_STORE":       "local",
	"AWS_REGION":         "",
	"S3_BUCKET":          "",
	"S3_PREFIX":          "",
	"SSE_KMS_KEY_ID":     "",
	"DATABASE_URL":       "",
	"MONGODB_URI":        "",
	"MONGODB_DATABASE":   "studydocs",
	"SQS_QUEUE_URL":      "",
	"WORKER_CONCURRENCY": 4,
	"JOB_BUFFER":         64,
	"JWT_SECRET":         "",
	"RATE_LIMIT_ENABLED": true,
	"TRUST_PROXY_HEADERS": false,
}

// Load reads configuration from .env files, an optional CONFIG_FILE and the environment.
func Load() Config {
	// Best-effort load of local env files for dev convenience; existing env wins.
	_ = godotenv.Load(existing(".env", "cmd/.env")...)

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("config: read %s: %v", file, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	env := normalizeEnv(v.GetString("ENV"))
	cfg := Config{
		Port:              v.GetString("PORT"),
		Env:               env,
		LogLevel:          strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		CORSAllowOrigin:   splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		UploadDir:         v.GetString("UPLOAD_DIR"),
		PublicFilesPath:   normalizePublicPath(v.GetString("PUBLIC_FILES_PATH")),
		MaxUploadBytes:    v.GetInt64("MAX_UPLOAD_BYTES"),
		ObjectStoreType:   normalizeStoreType(v.GetString("OBJECT_STORE")),
		AWSRegion:         v.GetString("AWS_REGION"),
		S3Bucket:          v.GetString("S3_BUCKET"),
		S3Prefix:          v.GetString("S3_PREFIX"),
		SSEKMSKeyID:       v.GetString("SSE_KMS_KEY_ID"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		MongoURI:          v.GetString("MONGODB_URI"),
		MongoDatabase:     v.GetString("MONGODB_DATABASE"),
		SQSQueueURL:       strings.TrimSpace(v.GetString("SQS_QUEUE_URL")),
		WorkerConcurrency: v.GetInt("WORKER_CONCURRENCY"),
		JobBuffer:         v.GetInt("JOB_BUFFER"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		RateLimitEnabled:  v.GetBool("RATE_LIMIT_ENABLED"),
		TrustProxyHeaders: v.GetBool("TRUST_PROXY_HEADERS"),
	}

	if env == "production" && cfg.DatabaseURL == "" && cfg.MongoURI == "" {
		log.Printf("MONGODB_URI or DATABASE_URL is required in production")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}
	if cfg.JobBuffer <= 0 {
		cfg.JobBuffer = 1
	}
	return cfg
}

func existing(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if _, err := godotenv.Read(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizePublicPath(raw string) string {
	p := "/" + strings.Trim(strings.TrimSpace(raw), "/")
	if p == "/" {
		return "/uploads/documents"
	}
	return p
}

// IsDevLike reports whether env allows development conveniences.
func IsDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
