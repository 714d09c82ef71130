package config

import "time"

// ServerConfig holds runtime configuration for the benchmark API service.
type ServerConfig struct {
	Environment        string
	Addr               string
	LogLevel           string
	Storage            string
	DatabaseURL        string
	MigrationsDir      string
	AutoMigrate        bool
	TokenSecret        string
	UploadTokenTTL     time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	AnalysisProfile    string
	AnalysisCacheSize  int
	AnalysisCacheTTL   time.Duration
	AnalysisWorkers    int
	MaxCaptureBytes    int64
	FPSTargets         []int
	ShutdownTimeout    time.Duration
}

// LoadServerConfig constructs a ServerConfig from environment variables.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		LogLevel:           GetString("LOG_LEVEL", "info"),
		Storage:            GetString("STORAGE_BACKEND", "postgres"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://lgb:lgb@db:5432/lgb?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", ""),
		AutoMigrate:        GetBool("DB_AUTO_MIGRATE", true),
		TokenSecret:        GetString("JWT_SECRET", "supersecuresecret"),
		UploadTokenTTL:     GetDuration("UPLOAD_TOKEN_TTL_HOURS", 24*90, time.Hour),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		AnalysisProfile:    GetString("ANALYSIS_CONFIG", ""),
		AnalysisCacheSize:  GetInt("ANALYSIS_CACHE_SIZE", 256),
		AnalysisCacheTTL:   GetDuration("ANALYSIS_CACHE_TTL_SECONDS", 600, time.Second),
		AnalysisWorkers:    GetInt("ANALYSIS_WORKERS", 4),
		MaxCaptureBytes:    int64(GetInt("MAX_CAPTURE_BYTES", 32<<20)),
		FPSTargets:         GetInts("FPS_TARGETS", nil),
		ShutdownTimeout:    GetDuration("SHUTDOWN_TIMEOUT_SECONDS", 10, time.Second),
	}
}
